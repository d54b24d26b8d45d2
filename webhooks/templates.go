package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/MuhammadAslam635/referable-dev-sub000/core"
)

// ProviderWebhookTemplate bundles the per-gateway pieces of the inbound
// pipeline: how to verify a delivery, how to key its dedup claim, how to
// map its payload into the canonical inbound shape, and what body the
// gateway expects back on success.
type ProviderWebhookTemplate struct {
	ProviderID string
	Verifier   Verifier
	Extractor  DeliveryIDExtractor
	Parser     MessageParser
	Ack        func() core.InboundResult
}

type HeaderHMACVerifier struct {
	Header   string
	Prefix   string
	Secret   string
	Encoding string // hex | base64
}

func (v HeaderHMACVerifier) Verify(_ context.Context, req core.InboundRequest) error {
	header := strings.TrimSpace(headerValue(req.Headers, v.Header))
	if header == "" {
		return fmt.Errorf("webhooks: %s signature header is required", strings.TrimSpace(v.Header))
	}
	secret := strings.TrimSpace(v.Secret)
	if secret == "" {
		return fmt.Errorf("webhooks: signature secret is required")
	}
	signature := strings.TrimPrefix(header, strings.TrimSpace(v.Prefix))
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return fmt.Errorf("webhooks: signature value is required")
	}

	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(req.Body)
	expected := mac.Sum(nil)

	switch strings.ToLower(strings.TrimSpace(v.Encoding)) {
	case "base64":
		decoded, err := base64.StdEncoding.DecodeString(signature)
		if err != nil {
			return fmt.Errorf("webhooks: decode base64 signature: %w", err)
		}
		if subtle.ConstantTimeCompare(decoded, expected) != 1 {
			return fmt.Errorf("webhooks: signature verification failed")
		}
	default:
		decoded, err := hex.DecodeString(signature)
		if err != nil {
			return fmt.Errorf("webhooks: decode hex signature: %w", err)
		}
		if subtle.ConstantTimeCompare(decoded, expected) != 1 {
			return fmt.Errorf("webhooks: signature verification failed")
		}
	}
	return nil
}

type HeaderTokenVerifier struct {
	Header string
	Token  string
}

func (v HeaderTokenVerifier) Verify(_ context.Context, req core.InboundRequest) error {
	expected := strings.TrimSpace(v.Token)
	if expected == "" {
		return fmt.Errorf("webhooks: verification token is required")
	}
	actual := strings.TrimSpace(headerValue(req.Headers, v.Header))
	if actual == "" {
		return fmt.Errorf("webhooks: %s verification header is required", strings.TrimSpace(v.Header))
	}
	if subtle.ConstantTimeCompare([]byte(actual), []byte(expected)) != 1 {
		return fmt.Errorf("webhooks: verification token mismatch")
	}
	return nil
}

func HeaderDeliveryIDExtractor(headers ...string) DeliveryIDExtractor {
	keys := append([]string(nil), headers...)
	return func(req core.InboundRequest) (string, error) {
		for _, key := range keys {
			if value := strings.TrimSpace(headerValue(req.Headers, key)); value != "" {
				return value, nil
			}
		}
		return "", fmt.Errorf("webhooks: delivery id is required for dedupe")
	}
}

func ChainDeliveryIDExtractors(extractors ...DeliveryIDExtractor) DeliveryIDExtractor {
	list := append([]DeliveryIDExtractor(nil), extractors...)
	return func(req core.InboundRequest) (string, error) {
		var lastErr error
		for _, extractor := range list {
			if extractor == nil {
				continue
			}
			deliveryID, err := extractor(req)
			if err == nil && strings.TrimSpace(deliveryID) != "" {
				return strings.TrimSpace(deliveryID), nil
			}
			if err != nil {
				lastErr = err
			}
		}
		if lastErr != nil {
			return "", lastErr
		}
		return "", fmt.Errorf("webhooks: delivery id is required for dedupe")
	}
}

// PlainAck is the success acknowledgment for gateways that only need a 200.
func PlainAck() core.InboundResult {
	return core.InboundResult{Accepted: true, StatusCode: http.StatusOK}
}

type jsonInboundPayload struct {
	MessageID string `json:"message_id"`
	From      string `json:"from"`
	To        string `json:"to"`
	Body      string `json:"body"`
}

// ParseJSONInbound maps the neutral JSON shape regional gateways post. The
// provider id comes from the request envelope, not the payload.
func ParseJSONInbound(req core.InboundRequest) (core.InboundMessage, error) {
	var payload jsonInboundPayload
	if err := json.Unmarshal(req.Body, &payload); err != nil {
		return core.InboundMessage{}, fmt.Errorf("webhooks: parse gateway payload: %w", err)
	}
	messageID := strings.TrimSpace(payload.MessageID)
	if messageID == "" {
		return core.InboundMessage{}, fmt.Errorf("webhooks: gateway payload is missing message_id")
	}
	from := strings.TrimSpace(payload.From)
	to := strings.TrimSpace(payload.To)
	if from == "" || to == "" {
		return core.InboundMessage{}, fmt.Errorf("webhooks: gateway payload is missing from or to")
	}
	return core.InboundMessage{
		ProviderID:        strings.TrimSpace(req.ProviderID),
		ProviderMessageID: messageID,
		From:              from,
		To:                to,
		Body:              payload.Body,
		Metadata:          map[string]any{},
	}, nil
}

type TwilioGatewayConfig struct {
	AuthToken        string
	PublicURL        string
	SkipVerification bool
	Logger           core.Logger
}

func NewTwilioWebhookTemplate(cfg TwilioGatewayConfig) ProviderWebhookTemplate {
	verifier := NewTwilioVerifier(cfg.AuthToken, cfg.PublicURL)
	verifier.SkipVerification = cfg.SkipVerification
	verifier.Logger = cfg.Logger
	return ProviderWebhookTemplate{
		ProviderID: TwilioProviderID,
		Verifier:   verifier,
		Extractor: ChainDeliveryIDExtractors(
			TwilioMessageSidExtractor,
			DefaultDeliveryIDExtractor,
		),
		Parser: ParseTwilioInbound,
		Ack:    TwiMLAck,
	}
}

func NewHMACGatewayTemplate(providerID, header, secret, encoding string) ProviderWebhookTemplate {
	return ProviderWebhookTemplate{
		ProviderID: strings.TrimSpace(providerID),
		Verifier: HeaderHMACVerifier{
			Header:   header,
			Secret:   strings.TrimSpace(secret),
			Encoding: encoding,
		},
		Extractor: ChainDeliveryIDExtractors(
			HeaderDeliveryIDExtractor("X-Delivery-Id", "X-Message-Id"),
			DefaultDeliveryIDExtractor,
		),
		Parser: ParseJSONInbound,
		Ack:    PlainAck,
	}
}

func NewTokenGatewayTemplate(providerID, header, token string) ProviderWebhookTemplate {
	return ProviderWebhookTemplate{
		ProviderID: strings.TrimSpace(providerID),
		Verifier: HeaderTokenVerifier{
			Header: header,
			Token:  strings.TrimSpace(token),
		},
		Extractor: ChainDeliveryIDExtractors(
			HeaderDeliveryIDExtractor("X-Delivery-Id", "X-Message-Id"),
			DefaultDeliveryIDExtractor,
		),
		Parser: ParseJSONInbound,
		Ack:    PlainAck,
	}
}
