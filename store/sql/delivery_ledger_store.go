package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/MuhammadAslam635/referable-dev-sub000/webhooks"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const defaultClaimLease = 30 * time.Second

// DeliveryLedgerStore is the durable webhook dedupe ledger. The unique
// index on (provider_id, delivery_id) makes the first insert win; later
// claims for the same delivery go through a guarded update that only
// succeeds when the row is pending, retry-ready, or holds a lapsed lease.
// Every successful claim rotates claim_id, so a holder whose lease expired
// cannot complete or fail a delivery someone else reclaimed.
type DeliveryLedgerStore struct {
	db   *bun.DB
	repo repository.Repository[*webhookDeliveryRecord]

	Now func() time.Time
}

func NewDeliveryLedgerStore(db *bun.DB) (*DeliveryLedgerStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*webhookDeliveryRecord](db, webhookDeliveryHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid webhook delivery repository wiring: %w", err)
		}
	}
	return &DeliveryLedgerStore{db: db, repo: repo}, nil
}

func (s *DeliveryLedgerStore) Claim(
	ctx context.Context,
	providerID string,
	deliveryID string,
	payload []byte,
	lease time.Duration,
) (webhooks.DeliveryRecord, bool, error) {
	if s == nil || s.db == nil {
		return webhooks.DeliveryRecord{}, false, fmt.Errorf("sqlstore: delivery ledger is not configured")
	}
	providerID = strings.TrimSpace(providerID)
	deliveryID = strings.TrimSpace(deliveryID)
	if providerID == "" || deliveryID == "" {
		return webhooks.DeliveryRecord{}, false, fmt.Errorf("sqlstore: provider id and delivery id are required")
	}
	if lease <= 0 {
		lease = defaultClaimLease
	}

	now := s.now()
	leaseExpiry := now.Add(lease)
	record := &webhookDeliveryRecord{
		ID:             uuid.NewString(),
		ClaimID:        uuid.NewString(),
		ProviderID:     providerID,
		DeliveryID:     deliveryID,
		Status:         webhooks.DeliveryStatusProcessing,
		Attempts:       1,
		Payload:        append([]byte(nil), payload...),
		LeaseExpiresAt: &leaseExpiry,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return s.reclaim(ctx, providerID, deliveryID, leaseExpiry, now)
		}
		return webhooks.DeliveryRecord{}, false, err
	}
	return record.toDomain(), true, nil
}

// reclaim rotates the claim on an existing row when it is claimable. A
// zero row count means the delivery is already settled or another holder
// still has a live lease; the current row is returned unclaimed either way.
func (s *DeliveryLedgerStore) reclaim(
	ctx context.Context,
	providerID string,
	deliveryID string,
	leaseExpiry time.Time,
	now time.Time,
) (webhooks.DeliveryRecord, bool, error) {
	claimID := uuid.NewString()
	res, err := s.db.NewUpdate().
		Model((*webhookDeliveryRecord)(nil)).
		Set("claim_id = ?", claimID).
		Set("status = ?", webhooks.DeliveryStatusProcessing).
		Set("attempts = attempts + 1").
		Set("next_attempt_at = NULL").
		Set("lease_expires_at = ?", leaseExpiry).
		Set("updated_at = ?", now).
		Where("provider_id = ?", providerID).
		Where("delivery_id = ?", deliveryID).
		Where(
			"status IN (?, ?) OR (status = ? AND lease_expires_at <= ?)",
			webhooks.DeliveryStatusPending,
			webhooks.DeliveryStatusRetryReady,
			webhooks.DeliveryStatusProcessing,
			now,
		).
		Exec(ctx)
	if err != nil {
		return webhooks.DeliveryRecord{}, false, err
	}
	affected, _ := res.RowsAffected()

	current, err := s.Get(ctx, providerID, deliveryID)
	if err != nil {
		return webhooks.DeliveryRecord{}, false, err
	}
	return current, affected > 0, nil
}

func (s *DeliveryLedgerStore) Get(
	ctx context.Context,
	providerID string,
	deliveryID string,
) (webhooks.DeliveryRecord, error) {
	if s == nil || s.db == nil {
		return webhooks.DeliveryRecord{}, fmt.Errorf("sqlstore: delivery ledger is not configured")
	}
	record := &webhookDeliveryRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.provider_id = ?", strings.TrimSpace(providerID)).
		Where("?TableAlias.delivery_id = ?", strings.TrimSpace(deliveryID)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return webhooks.DeliveryRecord{}, fmt.Errorf(
				"%w: %s/%s",
				webhooks.ErrDeliveryNotFound,
				strings.TrimSpace(providerID),
				strings.TrimSpace(deliveryID),
			)
		}
		return webhooks.DeliveryRecord{}, err
	}
	return record.toDomain(), nil
}

func (s *DeliveryLedgerStore) Complete(ctx context.Context, claimID string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: delivery ledger is not configured")
	}
	claimID = strings.TrimSpace(claimID)
	if claimID == "" {
		return fmt.Errorf("sqlstore: claim id is required")
	}
	now := s.now()
	res, err := s.db.NewUpdate().
		Model((*webhookDeliveryRecord)(nil)).
		Set("status = ?", webhooks.DeliveryStatusProcessed).
		Set("next_attempt_at = NULL").
		Set("lease_expires_at = NULL").
		Set("updated_at = ?", now).
		Where("claim_id = ?", claimID).
		Where("status = ?", webhooks.DeliveryStatusProcessing).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("%w: claim %s", webhooks.ErrDeliveryNotFound, claimID)
	}
	return nil
}

func (s *DeliveryLedgerStore) Fail(
	ctx context.Context,
	claimID string,
	cause error,
	nextAttemptAt time.Time,
	maxAttempts int,
) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: delivery ledger is not configured")
	}
	claimID = strings.TrimSpace(claimID)
	if claimID == "" {
		return fmt.Errorf("sqlstore: claim id is required")
	}

	now := s.now()
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record := &webhookDeliveryRecord{}
		selectErr := tx.NewSelect().
			Model(record).
			Where("?TableAlias.claim_id = ?", claimID).
			Where("?TableAlias.status = ?", webhooks.DeliveryStatusProcessing).
			Limit(1).
			Scan(ctx)
		if selectErr != nil {
			if selectErr == sql.ErrNoRows {
				return fmt.Errorf("%w: claim %s", webhooks.ErrDeliveryNotFound, claimID)
			}
			return selectErr
		}

		if cause != nil {
			record.LastError = cause.Error()
		}
		if maxAttempts > 0 && record.Attempts >= maxAttempts {
			record.Status = webhooks.DeliveryStatusDead
			record.NextAttemptAt = nil
		} else {
			at := nextAttemptAt.UTC()
			record.Status = webhooks.DeliveryStatusRetryReady
			record.NextAttemptAt = &at
		}
		record.LeaseExpiresAt = nil
		record.UpdatedAt = now

		_, updateErr := tx.NewUpdate().
			Model(record).
			Where("claim_id = ?", claimID).
			Exec(ctx)
		return updateErr
	})
}

func (s *DeliveryLedgerStore) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func isUniqueViolation(err error) bool {
	message := strings.ToLower(strings.TrimSpace(err.Error()))
	return strings.Contains(message, "unique constraint failed") ||
		strings.Contains(message, "duplicate key value violates unique constraint")
}

var _ webhooks.DeliveryLedger = (*DeliveryLedgerStore)(nil)
