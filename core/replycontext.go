package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryReplyContextStore keeps reply windows in process memory. It backs
// local development and tests; production uses the SQL store. Semantics
// match the durable store: one context per (business, client), expiry
// enforced when reading, recency winning when several contexts share a
// forwarding number.
type MemoryReplyContextStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]ReplyContext

	Now func() time.Time
}

func NewMemoryReplyContextStore(ttl time.Duration) *MemoryReplyContextStore {
	if ttl <= 0 {
		ttl = defaultContextTTL
	}
	return &MemoryReplyContextStore{
		ttl:     ttl,
		entries: map[string]ReplyContext{},
	}
}

func (s *MemoryReplyContextStore) Upsert(_ context.Context, in UpsertReplyContextInput) (ReplyContext, error) {
	if s == nil {
		return ReplyContext{}, fmt.Errorf("core: reply context store is not configured")
	}
	if strings.TrimSpace(in.BusinessID) == "" {
		return ReplyContext{}, fmt.Errorf("core: reply context business id is required")
	}
	if strings.TrimSpace(in.ClientID) == "" {
		return ReplyContext{}, fmt.Errorf("core: reply context client id is required")
	}
	if strings.TrimSpace(in.ClientPhone) == "" || strings.TrimSpace(in.ForwardingNumber) == "" || strings.TrimSpace(in.TransportNumber) == "" {
		return ReplyContext{}, fmt.Errorf("core: reply context numbers are required")
	}

	now := s.now()
	record := ReplyContext{
		ID:                    uuid.NewString(),
		BusinessID:            strings.TrimSpace(in.BusinessID),
		ClientID:              strings.TrimSpace(in.ClientID),
		ClientPhone:           strings.TrimSpace(in.ClientPhone),
		ForwardingNumber:      strings.TrimSpace(in.ForwardingNumber),
		TransportNumber:       strings.TrimSpace(in.TransportNumber),
		LastProviderMessageID: strings.TrimSpace(in.ProviderMessageID),
		ExpiresAt:             now.Add(s.ttl),
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	s.mu.Lock()
	for id, entry := range s.entries {
		if entry.BusinessID == record.BusinessID && entry.ClientID == record.ClientID {
			delete(s.entries, id)
		}
	}
	s.entries[record.ID] = record
	s.mu.Unlock()

	return record, nil
}

func (s *MemoryReplyContextStore) FindActiveByForwardingNumber(_ context.Context, forwardingNumber string, now time.Time) (ReplyContext, error) {
	if s == nil {
		return ReplyContext{}, fmt.Errorf("core: reply context store is not configured")
	}
	forwardingNumber = strings.TrimSpace(forwardingNumber)
	if forwardingNumber == "" {
		return ReplyContext{}, fmt.Errorf("core: forwarding number is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		found ReplyContext
		ok    bool
	)
	for _, entry := range s.entries {
		if entry.ForwardingNumber != forwardingNumber {
			continue
		}
		if !entry.Active(now) {
			continue
		}
		if !ok || entry.UpdatedAt.After(found.UpdatedAt) {
			found = entry
			ok = true
		}
	}
	if !ok {
		return ReplyContext{}, fmt.Errorf("%w: forwarding number %s", ErrReplyContextNotFound, forwardingNumber)
	}
	return found, nil
}

func (s *MemoryReplyContextStore) Refresh(_ context.Context, contextID, providerMessageID string) (ReplyContext, error) {
	if s == nil {
		return ReplyContext{}, fmt.Errorf("core: reply context store is not configured")
	}
	contextID = strings.TrimSpace(contextID)
	if contextID == "" {
		return ReplyContext{}, fmt.Errorf("core: reply context id is required")
	}

	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[contextID]
	if !ok {
		return ReplyContext{}, fmt.Errorf("%w: %s", ErrReplyContextNotFound, contextID)
	}
	entry.ExpiresAt = now.Add(s.ttl)
	entry.UpdatedAt = now
	if strings.TrimSpace(providerMessageID) != "" {
		entry.LastProviderMessageID = strings.TrimSpace(providerMessageID)
	}
	s.entries[contextID] = entry

	return entry, nil
}

func (s *MemoryReplyContextStore) PurgeExpired(_ context.Context, now time.Time) (int, error) {
	if s == nil {
		return 0, fmt.Errorf("core: reply context store is not configured")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	purged := 0
	for id, entry := range s.entries {
		if !entry.ExpiresAt.After(now) {
			delete(s.entries, id)
			purged++
		}
	}
	return purged, nil
}

func (s *MemoryReplyContextStore) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

var _ ReplyContextStore = (*MemoryReplyContextStore)(nil)
