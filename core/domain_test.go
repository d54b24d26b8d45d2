package core

import (
	"errors"
	"testing"
	"time"
)

func TestMessageTransitionTo_ValidAndInvalid(t *testing.T) {
	now := time.Now().UTC()
	message := Message{Status: MessageStatusReceived}

	if err := message.TransitionTo(MessageStatusRelayed, now); err != nil {
		t.Fatalf("expected received->relayed to work: %v", err)
	}
	if message.Status != MessageStatusRelayed {
		t.Fatalf("expected relayed status, got %q", message.Status)
	}

	err := message.TransitionTo(MessageStatusReceived, now)
	if !errors.Is(err, ErrInvalidMessageTransition) {
		t.Fatalf("expected invalid transition error, got: %v", err)
	}

	failed := Message{Status: MessageStatusReceived}
	if err := failed.TransitionTo(MessageStatusRelayFailed, now); err != nil {
		t.Fatalf("expected received->relay_failed to work: %v", err)
	}
	err = failed.TransitionTo(MessageStatusRelayed, now)
	if !errors.Is(err, ErrInvalidMessageTransition) {
		t.Fatalf("relay_failed is terminal, got: %v", err)
	}
}

func TestRelayEventTransitionTo_ValidAndInvalid(t *testing.T) {
	now := time.Now().UTC()
	event := RelayEvent{Route: RouteUnclassified}

	if err := event.TransitionTo(RouteOwnerToClient, "", now); err != nil {
		t.Fatalf("expected unclassified->owner_to_client to work: %v", err)
	}
	if err := event.TransitionTo(RouteUnroutable, ReasonWindowExpired, now); err != nil {
		t.Fatalf("expected owner_to_client->unroutable to work: %v", err)
	}
	if event.Reason != ReasonWindowExpired {
		t.Fatalf("expected reason to be recorded, got %q", event.Reason)
	}

	err := event.TransitionTo(RouteClientToOwner, "", now)
	if !errors.Is(err, ErrInvalidRelayRouteTransition) {
		t.Fatalf("expected invalid transition error, got: %v", err)
	}

	settled := RelayEvent{Route: RouteClientToOwner}
	err = settled.TransitionTo(RouteOwnerToClient, "", now)
	if !errors.Is(err, ErrInvalidRelayRouteTransition) {
		t.Fatalf("client_to_owner is terminal, got: %v", err)
	}
}

func TestBusinessValidateAndCanForward(t *testing.T) {
	business := Business{
		Name:              "Brightline Dental",
		TransportNumber:   "+15559990000",
		ForwardingNumber:  "+15557770000",
		ForwardingEnabled: true,
	}
	if err := business.Validate(); err != nil {
		t.Fatalf("expected valid business, got %v", err)
	}
	if !business.CanForward() {
		t.Fatalf("expected forwarding to be allowed")
	}

	business.ForwardingNumber = ""
	if err := business.Validate(); !errors.Is(err, ErrInvalidBusiness) {
		t.Fatalf("forwarding enabled without a number must be invalid, got %v", err)
	}
	if business.CanForward() {
		t.Fatalf("missing forwarding number must disable forwarding")
	}

	business.ForwardingEnabled = false
	if err := business.Validate(); err != nil {
		t.Fatalf("disabled forwarding without a number is fine, got %v", err)
	}

	if err := (Business{TransportNumber: "+15559990000"}).Validate(); !errors.Is(err, ErrInvalidBusiness) {
		t.Fatalf("expected name to be required")
	}
}

func TestClientValidate(t *testing.T) {
	if err := (Client{BusinessID: "biz_1", Phone: "+15551230000"}).Validate(); err != nil {
		t.Fatalf("expected valid client, got %v", err)
	}
	if err := (Client{Phone: "+15551230000"}).Validate(); !errors.Is(err, ErrInvalidClient) {
		t.Fatalf("expected business id to be required")
	}
	if err := (Client{BusinessID: "biz_1"}).Validate(); !errors.Is(err, ErrInvalidClient) {
		t.Fatalf("expected phone to be required")
	}
}

func TestReplyContextActive_BoundaryIsExclusive(t *testing.T) {
	expiry := time.Date(2026, time.March, 14, 10, 0, 0, 0, time.UTC)
	window := ReplyContext{ExpiresAt: expiry}

	if !window.Active(expiry.Add(-time.Nanosecond)) {
		t.Fatalf("window must be active just before expiry")
	}
	if window.Active(expiry) {
		t.Fatalf("window must be inactive exactly at expiry")
	}
	if window.Active(expiry.Add(time.Nanosecond)) {
		t.Fatalf("window must be inactive after expiry")
	}
}
