package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/MuhammadAslam635/referable-dev-sub000/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

const defaultReplyContextTTL = 60 * time.Minute

// ReplyContextStore keeps the durable reply windows. Upsert replaces any
// existing (business, client) context inside one transaction, so at most
// one row per pair survives. Expiry is enforced by the read queries; the
// sweeper's PurgeExpired only reclaims storage.
type ReplyContextStore struct {
	db   *bun.DB
	repo repository.Repository[*replyContextRecord]
	ttl  time.Duration

	Now func() time.Time
}

func NewReplyContextStore(db *bun.DB, ttl time.Duration) (*ReplyContextStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	if ttl <= 0 {
		ttl = defaultReplyContextTTL
	}
	repo := repository.NewRepository[*replyContextRecord](db, replyContextHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid reply context repository wiring: %w", err)
		}
	}
	return &ReplyContextStore{db: db, repo: repo, ttl: ttl}, nil
}

func (s *ReplyContextStore) Upsert(ctx context.Context, in core.UpsertReplyContextInput) (core.ReplyContext, error) {
	if s == nil || s.db == nil {
		return core.ReplyContext{}, fmt.Errorf("sqlstore: reply context store is not configured")
	}
	if strings.TrimSpace(in.BusinessID) == "" {
		return core.ReplyContext{}, fmt.Errorf("sqlstore: reply context business id is required")
	}
	if strings.TrimSpace(in.ClientID) == "" {
		return core.ReplyContext{}, fmt.Errorf("sqlstore: reply context client id is required")
	}
	if strings.TrimSpace(in.ClientPhone) == "" || strings.TrimSpace(in.ForwardingNumber) == "" || strings.TrimSpace(in.TransportNumber) == "" {
		return core.ReplyContext{}, fmt.Errorf("sqlstore: reply context numbers are required")
	}

	now := s.now()
	record := newReplyContextRecord(in, now.Add(s.ttl), now)

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, deleteErr := tx.NewDelete().
			Model((*replyContextRecord)(nil)).
			Where("business_id = ?", record.BusinessID).
			Where("client_id = ?", record.ClientID).
			Exec(ctx); deleteErr != nil {
			return deleteErr
		}
		_, insertErr := tx.NewInsert().Model(record).Exec(ctx)
		return insertErr
	})
	if err != nil {
		return core.ReplyContext{}, err
	}
	return record.toDomain(), nil
}

func (s *ReplyContextStore) FindActiveByForwardingNumber(ctx context.Context, forwardingNumber string, now time.Time) (core.ReplyContext, error) {
	if s == nil || s.db == nil {
		return core.ReplyContext{}, fmt.Errorf("sqlstore: reply context store is not configured")
	}
	forwardingNumber = strings.TrimSpace(forwardingNumber)
	if forwardingNumber == "" {
		return core.ReplyContext{}, fmt.Errorf("sqlstore: forwarding number is required")
	}

	record := &replyContextRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.forwarding_number = ?", forwardingNumber).
		Where("?TableAlias.expires_at > ?", now.UTC()).
		OrderExpr("?TableAlias.updated_at DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return core.ReplyContext{}, fmt.Errorf("%w: forwarding number %s", core.ErrReplyContextNotFound, forwardingNumber)
		}
		return core.ReplyContext{}, err
	}
	return record.toDomain(), nil
}

func (s *ReplyContextStore) Refresh(ctx context.Context, contextID, providerMessageID string) (core.ReplyContext, error) {
	if s == nil || s.db == nil {
		return core.ReplyContext{}, fmt.Errorf("sqlstore: reply context store is not configured")
	}
	contextID = strings.TrimSpace(contextID)
	if contextID == "" {
		return core.ReplyContext{}, fmt.Errorf("sqlstore: reply context id is required")
	}

	now := s.now()
	var out core.ReplyContext
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record := &replyContextRecord{}
		selectErr := tx.NewSelect().
			Model(record).
			Where("?TableAlias.id = ?", contextID).
			Limit(1).
			Scan(ctx)
		if selectErr != nil {
			if selectErr == sql.ErrNoRows {
				return fmt.Errorf("%w: %s", core.ErrReplyContextNotFound, contextID)
			}
			return selectErr
		}
		record.ExpiresAt = now.Add(s.ttl)
		record.UpdatedAt = now
		if trimmed := strings.TrimSpace(providerMessageID); trimmed != "" {
			record.LastProviderMessageID = trimmed
		}
		if _, updateErr := tx.NewUpdate().
			Model(record).
			Where("id = ?", record.ID).
			Exec(ctx); updateErr != nil {
			return updateErr
		}
		out = record.toDomain()
		return nil
	})
	if err != nil {
		return core.ReplyContext{}, err
	}
	return out, nil
}

func (s *ReplyContextStore) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: reply context store is not configured")
	}
	res, err := s.db.NewDelete().
		Model((*replyContextRecord)(nil)).
		Where("expires_at <= ?", now.UTC()).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	affected, _ := res.RowsAffected()
	return int(affected), nil
}

func (s *ReplyContextStore) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

var _ core.ReplyContextStore = (*ReplyContextStore)(nil)
