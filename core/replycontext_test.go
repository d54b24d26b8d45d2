package core

import (
	"context"
	"testing"
	"time"
)

func testReplyContextInput() UpsertReplyContextInput {
	return UpsertReplyContextInput{
		BusinessID:        "biz_1",
		ClientID:          "client_1",
		ClientPhone:       "+15551230000",
		ForwardingNumber:  "+15557770000",
		TransportNumber:   "+15559990000",
		ProviderMessageID: "SM_in_1",
	}
}

func TestMemoryReplyContextStore_ExpiryIsExclusiveAtBoundary(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2026, time.March, 14, 9, 0, 0, 0, time.UTC)
	store := NewMemoryReplyContextStore(time.Hour)
	store.Now = func() time.Time { return start }

	window, err := store.Upsert(ctx, testReplyContextInput())
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if !window.ExpiresAt.Equal(start.Add(time.Hour)) {
		t.Fatalf("expected expiry at start+ttl, got %v", window.ExpiresAt)
	}

	justBefore := start.Add(time.Hour - time.Nanosecond)
	if _, err := store.FindActiveByForwardingNumber(ctx, "+15557770000", justBefore); err != nil {
		t.Fatalf("window must be found just before expiry: %v", err)
	}

	justAfter := start.Add(time.Hour + time.Nanosecond)
	if _, err := store.FindActiveByForwardingNumber(ctx, "+15557770000", justAfter); !IsNotFound(err) {
		t.Fatalf("expired window must behave like a missing one, got %v", err)
	}
}

func TestMemoryReplyContextStore_RefreshExtendsAndTracksMessage(t *testing.T) {
	ctx := context.Background()
	current := time.Date(2026, time.March, 14, 9, 0, 0, 0, time.UTC)
	store := NewMemoryReplyContextStore(time.Hour)
	store.Now = func() time.Time { return current }

	window, err := store.Upsert(ctx, testReplyContextInput())
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	originalExpiry := window.ExpiresAt

	current = current.Add(40 * time.Minute)
	refreshed, err := store.Refresh(ctx, window.ID, "SM_in_2")
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if !refreshed.ExpiresAt.After(originalExpiry) {
		t.Fatalf("refresh must strictly extend expiry: %v -> %v", originalExpiry, refreshed.ExpiresAt)
	}
	if !refreshed.ExpiresAt.Equal(current.Add(time.Hour)) {
		t.Fatalf("expected expiry at refresh time + ttl, got %v", refreshed.ExpiresAt)
	}
	if refreshed.LastProviderMessageID != "SM_in_2" {
		t.Fatalf("expected tracked message id to update, got %q", refreshed.LastProviderMessageID)
	}

	if _, err := store.Refresh(ctx, "missing", "SM_in_3"); !IsNotFound(err) {
		t.Fatalf("expected not found for unknown context, got %v", err)
	}
}

func TestMemoryReplyContextStore_UpsertSupersedesSamePair(t *testing.T) {
	ctx := context.Background()
	current := time.Date(2026, time.March, 14, 9, 0, 0, 0, time.UTC)
	store := NewMemoryReplyContextStore(time.Hour)
	store.Now = func() time.Time { return current }

	first, err := store.Upsert(ctx, testReplyContextInput())
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	current = current.Add(10 * time.Minute)
	input := testReplyContextInput()
	input.ProviderMessageID = "SM_in_2"
	second, err := store.Upsert(ctx, input)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if second.ID == first.ID {
		t.Fatalf("upsert must mint a fresh context")
	}

	found, err := store.FindActiveByForwardingNumber(ctx, "+15557770000", current)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if found.ID != second.ID {
		t.Fatalf("expected the superseding context, got %q", found.ID)
	}
	if _, err := store.Refresh(ctx, first.ID, ""); !IsNotFound(err) {
		t.Fatalf("superseded context must be gone, got %v", err)
	}
}

func TestMemoryReplyContextStore_UpsertValidatesInput(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryReplyContextStore(time.Hour)

	missingClient := testReplyContextInput()
	missingClient.ClientID = ""
	if _, err := store.Upsert(ctx, missingClient); err == nil {
		t.Fatalf("expected client id to be required")
	}

	missingNumbers := testReplyContextInput()
	missingNumbers.ForwardingNumber = ""
	if _, err := store.Upsert(ctx, missingNumbers); err == nil {
		t.Fatalf("expected forwarding number to be required")
	}
}

func TestMemoryReplyContextStore_PurgeExpired(t *testing.T) {
	ctx := context.Background()
	current := time.Date(2026, time.March, 14, 9, 0, 0, 0, time.UTC)
	store := NewMemoryReplyContextStore(time.Hour)
	store.Now = func() time.Time { return current }

	if _, err := store.Upsert(ctx, testReplyContextInput()); err != nil {
		t.Fatalf("upsert stale: %v", err)
	}

	current = current.Add(30 * time.Minute)
	fresh := testReplyContextInput()
	fresh.ClientID = "client_2"
	fresh.ClientPhone = "+15554440000"
	fresh.ProviderMessageID = "SM_in_2"
	kept, err := store.Upsert(ctx, fresh)
	if err != nil {
		t.Fatalf("upsert fresh: %v", err)
	}

	purged, err := store.PurgeExpired(ctx, current.Add(31*time.Minute))
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if purged != 1 {
		t.Fatalf("expected one purged context, got %d", purged)
	}

	found, err := store.FindActiveByForwardingNumber(ctx, "+15557770000", current.Add(31*time.Minute))
	if err != nil {
		t.Fatalf("fresh context should survive: %v", err)
	}
	if found.ID != kept.ID {
		t.Fatalf("expected surviving context %q, got %q", kept.ID, found.ID)
	}
}
