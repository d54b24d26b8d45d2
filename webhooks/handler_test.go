package webhooks

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"testing"

	"github.com/MuhammadAslam635/referable-dev-sub000/core"
)

func TestRelayHandler_ForwardsParsedMessage(t *testing.T) {
	relay := &stubRelay{
		outcome: core.RelayOutcome{
			Route:     core.RouteClientToOwner,
			Forwarded: true,
			Message:   core.Message{ID: "msg_1"},
		},
	}
	handler := NewRelayHandler(relay, NewTwilioWebhookTemplate(TwilioGatewayConfig{
		AuthToken: "auth_token",
		PublicURL: "https://relay.example.com/webhooks/twilio",
	}))

	form := url.Values{}
	form.Set("MessageSid", "SM_handler_1")
	form.Set("From", "+15551230000")
	form.Set("To", "+15559990000")
	form.Set("Body", "need a quote")

	result, err := handler.Handle(context.Background(), core.InboundRequest{
		ProviderID: "twilio",
		Body:       []byte(form.Encode()),
	})
	if err != nil {
		t.Fatalf("handle delivery: %v", err)
	}
	if relay.calls != 1 {
		t.Fatalf("expected one relay run, got %d", relay.calls)
	}
	if relay.lastMsg.ProviderMessageID != "SM_handler_1" {
		t.Fatalf("expected parsed sid to reach the relay, got %q", relay.lastMsg.ProviderMessageID)
	}
	if string(result.Body) != EmptyTwiMLResponse || result.ContentType != TwiMLContentType {
		t.Fatalf("expected twiml acknowledgment, got body=%q type=%q", string(result.Body), result.ContentType)
	}
	if result.Metadata["route"] != string(core.RouteClientToOwner) {
		t.Fatalf("expected route metadata, got %v", result.Metadata["route"])
	}
	if result.Metadata["forwarded"] != true || result.Metadata["message_id"] != "msg_1" {
		t.Fatalf("expected outcome metadata, got %v", result.Metadata)
	}
}

func TestRelayHandler_ReportsRoutingReason(t *testing.T) {
	relay := &stubRelay{
		outcome: core.RelayOutcome{
			Route:  core.RouteUnroutable,
			Reason: core.ReasonUnknownSender,
		},
	}
	handler := NewRelayHandler(relay, NewTwilioWebhookTemplate(TwilioGatewayConfig{AuthToken: "auth_token"}))

	form := url.Values{}
	form.Set("MessageSid", "SM_handler_2")
	form.Set("From", "+15551230000")
	form.Set("To", "+15559990000")

	result, err := handler.Handle(context.Background(), core.InboundRequest{Body: []byte(form.Encode())})
	if err != nil {
		t.Fatalf("handle unroutable delivery: %v", err)
	}
	if result.Metadata["reason"] != core.ReasonUnknownSender {
		t.Fatalf("expected unknown-sender reason, got %v", result.Metadata["reason"])
	}
	if result.Metadata["forwarded"] != false {
		t.Fatalf("expected forwarded=false, got %v", result.Metadata["forwarded"])
	}
}

func TestRelayHandler_AcksDuplicateRace(t *testing.T) {
	relay := &stubRelay{
		err: fmt.Errorf("%w: SM_handler_3", core.ErrDuplicateMessage),
	}
	handler := NewRelayHandler(relay, NewTwilioWebhookTemplate(TwilioGatewayConfig{AuthToken: "auth_token"}))

	form := url.Values{}
	form.Set("MessageSid", "SM_handler_3")
	form.Set("From", "+15551230000")
	form.Set("To", "+15559990000")

	result, err := handler.Handle(context.Background(), core.InboundRequest{Body: []byte(form.Encode())})
	if err != nil {
		t.Fatalf("expected duplicate race to be acknowledged, got %v", err)
	}
	if result.Metadata["deduped"] != true {
		t.Fatalf("expected deduped marker, got %v", result.Metadata)
	}
}

func TestRelayHandler_SurfacesServiceError(t *testing.T) {
	relay := &stubRelay{err: errors.New("store offline")}
	handler := NewRelayHandler(relay, NewTwilioWebhookTemplate(TwilioGatewayConfig{AuthToken: "auth_token"}))

	form := url.Values{}
	form.Set("MessageSid", "SM_handler_4")
	form.Set("From", "+15551230000")
	form.Set("To", "+15559990000")

	if _, err := handler.Handle(context.Background(), core.InboundRequest{Body: []byte(form.Encode())}); err == nil {
		t.Fatalf("expected service failure to surface")
	}
}

func TestRelayHandler_SurfacesParseFailure(t *testing.T) {
	relay := &stubRelay{}
	handler := NewRelayHandler(relay, NewHMACGatewayTemplate("gateway-hex", "X-Gateway-Signature", "secret", "hex"))

	if _, err := handler.Handle(context.Background(), core.InboundRequest{Body: []byte("not json")}); err == nil {
		t.Fatalf("expected parse failure to surface")
	}
	if relay.calls != 0 {
		t.Fatalf("expected relay to stay untouched on parse failure")
	}
}

func TestNewRelayProcessor_EndToEnd(t *testing.T) {
	requestURL := "https://relay.example.com/webhooks/twilio"
	relay := &stubRelay{
		outcome: core.RelayOutcome{
			Route:     core.RouteClientToOwner,
			Forwarded: true,
			Message:   core.Message{ID: "msg_e2e"},
		},
	}
	ledger := NewMemoryDeliveryLedger()
	processor := NewRelayProcessor(relay, ledger, NewTwilioWebhookTemplate(TwilioGatewayConfig{
		AuthToken: "auth_token",
		PublicURL: requestURL,
	}), nil)

	form := url.Values{}
	form.Set("MessageSid", "SM_e2e_1")
	form.Set("AccountSid", "AC_test")
	form.Set("From", "+15551230000")
	form.Set("To", "+15559990000")
	form.Set("Body", "on my way")
	req := core.InboundRequest{
		ProviderID: "twilio",
		Body:       []byte(form.Encode()),
		Headers: map[string]string{
			"X-Twilio-Signature": signTwilioHMAC("auth_token", requestURL, form),
		},
	}

	result, err := processor.Process(context.Background(), req)
	if err != nil {
		t.Fatalf("process delivery: %v", err)
	}
	if !result.Accepted || result.StatusCode != http.StatusOK {
		t.Fatalf("expected acknowledgment, got accepted=%v status=%d", result.Accepted, result.StatusCode)
	}
	if string(result.Body) != EmptyTwiMLResponse {
		t.Fatalf("expected twiml body, got %q", string(result.Body))
	}
	if result.Metadata["provider_id"] != "twilio" || result.Metadata["delivery_id"] != "SM_e2e_1" {
		t.Fatalf("expected delivery metadata, got %v", result.Metadata)
	}
	if relay.lastMsg.From != "+15551230000" || relay.lastMsg.Body != "on my way" {
		t.Fatalf("expected parsed message to reach the relay, got %+v", relay.lastMsg)
	}

	record, err := ledger.Get(context.Background(), "twilio", "SM_e2e_1")
	if err != nil {
		t.Fatalf("load delivery record: %v", err)
	}
	if record.Status != DeliveryStatusProcessed {
		t.Fatalf("expected processed record, got %q", record.Status)
	}

	resendResult, err := processor.Process(context.Background(), req)
	if err != nil {
		t.Fatalf("process resend: %v", err)
	}
	if resendResult.Metadata["deduped"] != true {
		t.Fatalf("expected resend to dedupe, got %v", resendResult.Metadata)
	}
	if relay.calls != 1 {
		t.Fatalf("expected relay to run once, got %d", relay.calls)
	}
}

type stubRelay struct {
	outcome core.RelayOutcome
	err     error
	calls   int
	lastMsg core.InboundMessage
}

func (s *stubRelay) ProcessInbound(_ context.Context, msg core.InboundMessage) (core.RelayOutcome, error) {
	s.calls++
	s.lastMsg = msg
	if s.err != nil {
		return core.RelayOutcome{}, s.err
	}
	return s.outcome, nil
}
