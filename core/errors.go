package core

import (
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	RelayErrorBadInput         = "RELAY_BAD_INPUT"
	RelayErrorInvalidPhone     = "RELAY_INVALID_PHONE"
	RelayErrorBusinessNotFound = "RELAY_BUSINESS_NOT_FOUND"
	RelayErrorContextNotFound  = "RELAY_CONTEXT_NOT_FOUND"
	RelayErrorDuplicateMessage = "RELAY_DUPLICATE_MESSAGE"
	RelayErrorSignatureInvalid = "RELAY_SIGNATURE_INVALID"
	RelayErrorRateLimited      = "RELAY_RATE_LIMITED"
	RelayErrorSendFailed       = "RELAY_SEND_FAILED"
	RelayErrorInternal         = "RELAY_INTERNAL_ERROR"
)

func relayErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureRelayErrorEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "invalid phone number"):
		return newRelayError(err.Error(), goerrors.CategoryBadInput, RelayErrorInvalidPhone)
	case strings.Contains(msg, "business not found"):
		return newRelayError(err.Error(), goerrors.CategoryNotFound, RelayErrorBusinessNotFound)
	case strings.Contains(msg, "reply context not found"):
		return newRelayError(err.Error(), goerrors.CategoryNotFound, RelayErrorContextNotFound)
	case strings.Contains(msg, "duplicate provider message"), strings.Contains(msg, "duplicate key"):
		return newRelayError(err.Error(), goerrors.CategoryConflict, RelayErrorDuplicateMessage)
	case strings.Contains(msg, "signature"):
		return newRelayError(err.Error(), goerrors.CategoryAuth, RelayErrorSignatureInvalid)
	case strings.Contains(msg, "throttl"), strings.Contains(msg, "rate limit"):
		return newRelayError(err.Error(), goerrors.CategoryRateLimit, RelayErrorRateLimited)
	case strings.Contains(msg, "send failed"), strings.Contains(msg, "transport"):
		return newRelayError(err.Error(), goerrors.CategoryOperation, RelayErrorSendFailed)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "mismatch"):
		return newRelayError(err.Error(), goerrors.CategoryBadInput, RelayErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureRelayErrorEnvelope(mapped)
}

func newRelayError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureRelayErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureRelayErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = relayHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultRelayTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultRelayTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return RelayErrorBadInput
	case goerrors.CategoryNotFound:
		return RelayErrorBusinessNotFound
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return RelayErrorSignatureInvalid
	case goerrors.CategoryConflict:
		return RelayErrorDuplicateMessage
	case goerrors.CategoryRateLimit:
		return RelayErrorRateLimited
	case goerrors.CategoryOperation:
		return RelayErrorSendFailed
	default:
		return RelayErrorInternal
	}
}

// IsNotFound reports whether err is any of the relay's not-found
// sentinels or a rich error in the not-found category.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, ErrBusinessNotFound),
		errors.Is(err, ErrClientNotFound),
		errors.Is(err, ErrMessageNotFound),
		errors.Is(err, ErrReplyContextNotFound):
		return true
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.Category == goerrors.CategoryNotFound
	}
	return false
}

// IsDuplicate reports whether err marks a provider message id the relay
// has already accepted. Duplicate deliveries are acknowledged, never
// retried.
func IsDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDuplicateMessage) {
		return true
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.Category == goerrors.CategoryConflict
	}
	return false
}

func relayHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
