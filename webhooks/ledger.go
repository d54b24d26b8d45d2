package webhooks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrDeliveryNotFound = errors.New("webhooks: delivery not found")

// MemoryDeliveryLedger keeps delivery claims in process memory. It backs
// local development and tests; production uses the SQL ledger. Semantics
// match the durable store: one record per (provider, delivery id), a
// processing lease that must expire before a claim can be retaken, and
// dead-lettering once attempts exhaust the cap.
type MemoryDeliveryLedger struct {
	mu      sync.Mutex
	entries map[string]*memoryDelivery

	Now func() time.Time
}

type memoryDelivery struct {
	record         DeliveryRecord
	payload        []byte
	leaseExpiresAt time.Time
}

func NewMemoryDeliveryLedger() *MemoryDeliveryLedger {
	return &MemoryDeliveryLedger{
		entries: map[string]*memoryDelivery{},
	}
}

func (l *MemoryDeliveryLedger) Claim(
	_ context.Context,
	providerID string,
	deliveryID string,
	payload []byte,
	lease time.Duration,
) (DeliveryRecord, bool, error) {
	if l == nil {
		return DeliveryRecord{}, false, fmt.Errorf("webhooks: delivery ledger is not configured")
	}
	providerID = strings.TrimSpace(providerID)
	deliveryID = strings.TrimSpace(deliveryID)
	if providerID == "" || deliveryID == "" {
		return DeliveryRecord{}, false, fmt.Errorf("webhooks: provider id and delivery id are required")
	}
	if lease <= 0 {
		lease = 30 * time.Second
	}

	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.entries == nil {
		l.entries = map[string]*memoryDelivery{}
	}

	key := deliveryKey(providerID, deliveryID)
	entry, ok := l.entries[key]
	if !ok {
		record := DeliveryRecord{
			ID:         uuid.NewString(),
			ClaimID:    uuid.NewString(),
			ProviderID: providerID,
			DeliveryID: deliveryID,
			Status:     DeliveryStatusProcessing,
			Attempts:   1,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		l.entries[key] = &memoryDelivery{
			record:         record,
			payload:        append([]byte(nil), payload...),
			leaseExpiresAt: now.Add(lease),
		}
		return record, true, nil
	}

	switch entry.record.Status {
	case DeliveryStatusProcessed, DeliveryStatusDead:
		return entry.record, false, nil
	case DeliveryStatusProcessing:
		if now.Before(entry.leaseExpiresAt) {
			return entry.record, false, nil
		}
	}

	entry.record.ClaimID = uuid.NewString()
	entry.record.Status = DeliveryStatusProcessing
	entry.record.Attempts++
	entry.record.NextAttemptAt = nil
	entry.record.UpdatedAt = now
	entry.leaseExpiresAt = now.Add(lease)
	return entry.record, true, nil
}

func (l *MemoryDeliveryLedger) Get(_ context.Context, providerID string, deliveryID string) (DeliveryRecord, error) {
	if l == nil {
		return DeliveryRecord{}, fmt.Errorf("webhooks: delivery ledger is not configured")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[deliveryKey(strings.TrimSpace(providerID), strings.TrimSpace(deliveryID))]
	if !ok {
		return DeliveryRecord{}, fmt.Errorf("%w: %s/%s", ErrDeliveryNotFound, providerID, deliveryID)
	}
	return entry.record, nil
}

func (l *MemoryDeliveryLedger) Complete(_ context.Context, claimID string) error {
	if l == nil {
		return fmt.Errorf("webhooks: delivery ledger is not configured")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	entry, err := l.findClaim(claimID)
	if err != nil {
		return err
	}

	entry.record.Status = DeliveryStatusProcessed
	entry.record.NextAttemptAt = nil
	entry.record.UpdatedAt = l.now()
	return nil
}

func (l *MemoryDeliveryLedger) Fail(_ context.Context, claimID string, cause error, nextAttemptAt time.Time, maxAttempts int) error {
	if l == nil {
		return fmt.Errorf("webhooks: delivery ledger is not configured")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	entry, err := l.findClaim(claimID)
	if err != nil {
		return err
	}

	if cause != nil {
		entry.record.LastError = cause.Error()
	}
	if maxAttempts > 0 && entry.record.Attempts >= maxAttempts {
		entry.record.Status = DeliveryStatusDead
		entry.record.NextAttemptAt = nil
	} else {
		at := nextAttemptAt
		entry.record.Status = DeliveryStatusRetryReady
		entry.record.NextAttemptAt = &at
	}
	entry.record.UpdatedAt = l.now()
	return nil
}

// findClaim resolves a claim id to its live entry. A reclaim rotates the
// claim id, so a stale claim from a lapsed lease holder cannot complete
// or fail a delivery someone else now owns.
func (l *MemoryDeliveryLedger) findClaim(claimID string) (*memoryDelivery, error) {
	claimID = strings.TrimSpace(claimID)
	if claimID == "" {
		return nil, fmt.Errorf("webhooks: claim id is required")
	}
	for _, entry := range l.entries {
		if entry.record.ClaimID == claimID && entry.record.Status == DeliveryStatusProcessing {
			return entry, nil
		}
	}
	return nil, fmt.Errorf("%w: claim %s", ErrDeliveryNotFound, claimID)
}

func (l *MemoryDeliveryLedger) now() time.Time {
	if l != nil && l.Now != nil {
		return l.Now().UTC()
	}
	return time.Now().UTC()
}

func deliveryKey(providerID, deliveryID string) string {
	return providerID + "/" + deliveryID
}

var _ DeliveryLedger = (*MemoryDeliveryLedger)(nil)
