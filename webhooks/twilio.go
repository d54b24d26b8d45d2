package webhooks

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/MuhammadAslam635/referable-dev-sub000/core"
	twilioclient "github.com/twilio/twilio-go/client"
)

const (
	TwilioProviderID      = "twilio"
	TwilioSignatureHeader = "X-Twilio-Signature"

	// TwiMLContentType and EmptyTwiMLResponse form the minimal acknowledgment
	// Twilio expects from a message webhook. An empty <Response> tells Twilio
	// not to send an auto-reply; the relay sends its own messages through the
	// REST API instead.
	TwiMLContentType   = "text/xml"
	EmptyTwiMLResponse = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`
)

// TwilioVerifier checks the X-Twilio-Signature header against the request
// body using the account auth token. The signature covers the full public
// webhook URL, so deployments behind proxies must configure the URL Twilio
// actually calls, not the internal listener address.
type TwilioVerifier struct {
	Validator        twilioclient.RequestValidator
	PublicURL        string
	SkipVerification bool
	Logger           core.Logger
}

func NewTwilioVerifier(authToken, publicURL string) *TwilioVerifier {
	return &TwilioVerifier{
		Validator: twilioclient.NewRequestValidator(authToken),
		PublicURL: strings.TrimSpace(publicURL),
	}
}

func (v *TwilioVerifier) Verify(_ context.Context, req core.InboundRequest) error {
	if v == nil {
		return fmt.Errorf("webhooks: twilio verifier is not configured")
	}
	if v.SkipVerification {
		if v.Logger != nil {
			v.Logger.Warn("twilio signature verification skipped",
				"provider_id", TwilioProviderID,
			)
		}
		return nil
	}

	signature := headerValue(req.Headers, TwilioSignatureHeader)
	if signature == "" {
		return fmt.Errorf("webhooks: twilio signature verification failed: missing %s header", TwilioSignatureHeader)
	}

	params, err := parseTwilioForm(req.Body)
	if err != nil {
		return fmt.Errorf("webhooks: twilio signature verification failed: %w", err)
	}

	requestURL := v.requestURL(req)
	if requestURL == "" {
		return fmt.Errorf("webhooks: twilio signature verification failed: webhook public url is not configured")
	}
	if !v.Validator.Validate(requestURL, params, signature) {
		return fmt.Errorf("webhooks: twilio signature verification failed for %s", requestURL)
	}
	return nil
}

// requestURL prefers the URL recorded by the HTTP layer so path and query
// rewrites stay covered by the signature check.
func (v *TwilioVerifier) requestURL(req core.InboundRequest) string {
	if req.Metadata != nil {
		if value := strings.TrimSpace(fmt.Sprint(req.Metadata["request_url"])); value != "" && value != "<nil>" {
			return value
		}
	}
	return strings.TrimSpace(v.PublicURL)
}

// ParseTwilioInbound maps a Twilio message webhook form into the canonical
// inbound shape. MessageSid (SmsSid on older payloads) becomes the provider
// message id the dedup layers key on.
func ParseTwilioInbound(req core.InboundRequest) (core.InboundMessage, error) {
	form, err := parseTwilioForm(req.Body)
	if err != nil {
		return core.InboundMessage{}, fmt.Errorf("webhooks: parse twilio form: %w", err)
	}

	sid := firstFormValue(form, "MessageSid", "SmsSid")
	if sid == "" {
		return core.InboundMessage{}, fmt.Errorf("webhooks: twilio payload is missing MessageSid")
	}
	from := strings.TrimSpace(form["From"])
	to := strings.TrimSpace(form["To"])
	if from == "" || to == "" {
		return core.InboundMessage{}, fmt.Errorf("webhooks: twilio payload is missing From or To")
	}

	providerID := strings.TrimSpace(req.ProviderID)
	if providerID == "" {
		providerID = TwilioProviderID
	}

	msg := core.InboundMessage{
		ProviderID:        providerID,
		ProviderMessageID: sid,
		From:              from,
		To:                to,
		Body:              form["Body"],
		Metadata:          map[string]any{},
	}
	if accountSID := strings.TrimSpace(form["AccountSid"]); accountSID != "" {
		msg.Metadata["account_sid"] = accountSID
	}
	if numMedia := strings.TrimSpace(form["NumMedia"]); numMedia != "" && numMedia != "0" {
		msg.Metadata["num_media"] = numMedia
	}
	return msg, nil
}

// TwilioMessageSidExtractor keys dedup claims on the message sid from the
// form body. Chain it with DefaultDeliveryIDExtractor for payloads that
// carry the id in metadata instead.
func TwilioMessageSidExtractor(req core.InboundRequest) (string, error) {
	form, err := parseTwilioForm(req.Body)
	if err != nil {
		return "", fmt.Errorf("webhooks: parse twilio form: %w", err)
	}
	if sid := firstFormValue(form, "MessageSid", "SmsSid"); sid != "" {
		return sid, nil
	}
	return "", fmt.Errorf("webhooks: twilio payload is missing MessageSid")
}

// TwiMLAck is the success acknowledgment for a Twilio message webhook.
func TwiMLAck() core.InboundResult {
	return core.InboundResult{
		Accepted:    true,
		StatusCode:  http.StatusOK,
		Body:        []byte(EmptyTwiMLResponse),
		ContentType: TwiMLContentType,
	}
}

func parseTwilioForm(body []byte) (map[string]string, error) {
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, err
	}
	params := make(map[string]string, len(values))
	for key := range values {
		params[key] = values.Get(key)
	}
	return params, nil
}

func firstFormValue(form map[string]string, keys ...string) string {
	for _, key := range keys {
		if value := strings.TrimSpace(form[key]); value != "" {
			return value
		}
	}
	return ""
}
