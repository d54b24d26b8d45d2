package core

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// SendError carries provider response detail alongside the failure so the
// throttle policy can react to 429s and retry-after hints.
type SendError struct {
	StatusCode int
	RetryAfter *time.Duration
	Err        error
}

func (e *SendError) Error() string {
	if e == nil {
		return "core: send failed"
	}
	if e.Err != nil {
		return fmt.Sprintf("core: send failed: %v", e.Err)
	}
	return fmt.Sprintf("core: send failed: status %d", e.StatusCode)
}

func (e *SendError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Sender is the single path for outbound SMS. Every send runs under a
// bounded timeout and through the throttle policy when one is configured.
// A send that fails never fails the surrounding webhook; callers decide
// what the failure means for their step.
type Sender struct {
	Transport MessageTransport
	Policy    RateLimitPolicy
	Timeout   time.Duration
	Logger    Logger
}

func NewSender(transport MessageTransport) *Sender {
	return &Sender{Transport: transport}
}

func (s *Sender) sendTimeout() time.Duration {
	if s != nil && s.Timeout > 0 {
		return s.Timeout
	}
	return defaultSendTimeout
}

func (s *Sender) Send(ctx context.Context, key RateLimitKey, req SendRequest) (SendResult, error) {
	if s == nil || s.Transport == nil {
		return SendResult{}, fmt.Errorf("core: sender is not configured")
	}
	if strings.TrimSpace(req.To) == "" || strings.TrimSpace(req.From) == "" {
		return SendResult{}, fmt.Errorf("core: send to and from numbers are required")
	}

	to, err := NormalizePhone(req.To)
	if err != nil {
		return SendResult{}, fmt.Errorf("core: send destination: %w", err)
	}
	from, err := NormalizePhone(req.From)
	if err != nil {
		return SendResult{}, fmt.Errorf("core: send origin: %w", err)
	}
	req.To = to
	req.From = from

	if s.Policy != nil {
		if err := s.Policy.BeforeCall(ctx, key); err != nil {
			return SendResult{}, fmt.Errorf("core: send throttled: %w", err)
		}
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.sendTimeout())
	defer cancel()

	result, sendErr := s.Transport.Send(sendCtx, req)

	if s.Policy != nil {
		meta := providerMetaFromSend(result, sendErr)
		if afterErr := s.Policy.AfterCall(ctx, key, meta); afterErr != nil && s.Logger != nil {
			s.Logger.Error("rate limit state update failed", "error", afterErr, "provider_id", key.ProviderID)
		}
	}

	if sendErr != nil {
		var sendFailure *SendError
		if errors.As(sendErr, &sendFailure) {
			return SendResult{}, sendFailure
		}
		return SendResult{}, &SendError{Err: sendErr}
	}
	return result, nil
}

func providerMetaFromSend(result SendResult, err error) ProviderResponseMeta {
	if err == nil {
		meta := ProviderResponseMeta{StatusCode: http.StatusOK}
		if result.Metadata != nil {
			if code, ok := result.Metadata["status_code"].(int); ok && code > 0 {
				meta.StatusCode = code
			}
		}
		return meta
	}
	var sendFailure *SendError
	if errors.As(err, &sendFailure) {
		return ProviderResponseMeta{
			StatusCode: sendFailure.StatusCode,
			RetryAfter: sendFailure.RetryAfter,
		}
	}
	return ProviderResponseMeta{StatusCode: http.StatusInternalServerError}
}
