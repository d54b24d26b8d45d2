package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MuhammadAslam635/referable-dev-sub000/core"
	"github.com/MuhammadAslam635/referable-dev-sub000/ratelimit"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RateLimitStateStore persists one send-budget row per gateway bucket,
// the (provider, scope, bucket) tuple behind a business's transport
// number. Budget, throttle window, and attempt bookkeeping live in
// dedicated columns; the metadata column carries only caller data.
type RateLimitStateStore struct {
	db   *bun.DB
	repo repository.Repository[*rateLimitStateRecord]
}

func NewRateLimitStateStore(db *bun.DB) (*RateLimitStateStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*rateLimitStateRecord](db, rateLimitStateHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid rate-limit state repository wiring: %w", err)
		}
	}
	return &RateLimitStateStore{
		db:   db,
		repo: repo,
	}, nil
}

func (s *RateLimitStateStore) Get(ctx context.Context, key core.RateLimitKey) (ratelimit.State, error) {
	if s == nil || s.db == nil {
		return ratelimit.State{}, fmt.Errorf("sqlstore: rate-limit state store is not configured")
	}
	key, err := canonicalBucketKey(key)
	if err != nil {
		return ratelimit.State{}, err
	}

	record := &rateLimitStateRecord{}
	err = s.db.NewSelect().
		Model(record).
		Where("?TableAlias.provider_id = ?", key.ProviderID).
		Where("?TableAlias.scope_type = ?", key.ScopeType).
		Where("?TableAlias.scope_id = ?", key.ScopeID).
		Where("?TableAlias.bucket_key = ?", key.BucketKey).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ratelimit.State{}, ratelimit.ErrStateNotFound
		}
		return ratelimit.State{}, err
	}
	return record.toDomain(), nil
}

// Upsert writes the full bucket snapshot. The bucket tuple is unique in
// the schema, so a conflict means the bucket already has a row and the
// snapshot replaces everything but the row identity.
func (s *RateLimitStateStore) Upsert(ctx context.Context, state ratelimit.State) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: rate-limit state store is not configured")
	}
	key, err := canonicalBucketKey(state.Key)
	if err != nil {
		return err
	}
	state.Key = key

	record := newRateLimitStateRecord(state)
	_, err = s.db.NewInsert().
		Model(record).
		On("CONFLICT (provider_id, scope_type, scope_id, bucket_key) DO UPDATE").
		Set("limit_value = EXCLUDED.limit_value").
		Set("remaining = EXCLUDED.remaining").
		Set("reset_at = EXCLUDED.reset_at").
		Set("retry_after_secs = EXCLUDED.retry_after_secs").
		Set("throttled_until = EXCLUDED.throttled_until").
		Set("last_status = EXCLUDED.last_status").
		Set("attempts = EXCLUDED.attempts").
		Set("metadata = EXCLUDED.metadata").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("sqlstore: upsert rate-limit state: %w", err)
	}
	return nil
}

func newRateLimitStateRecord(state ratelimit.State) *rateLimitStateRecord {
	updatedAt := state.UpdatedAt.UTC()
	if state.UpdatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	record := &rateLimitStateRecord{
		ID:         uuid.NewString(),
		ProviderID: state.Key.ProviderID,
		ScopeType:  state.Key.ScopeType,
		ScopeID:    state.Key.ScopeID,
		BucketKey:  state.Key.BucketKey,
		Limit:      state.Limit,
		Remaining:  state.Remaining,
		LastStatus: state.LastStatus,
		Attempts:   state.Attempts,
		Metadata:   copyAnyMap(state.Metadata),
		CreatedAt:  updatedAt,
		UpdatedAt:  updatedAt,
	}
	if state.ResetAt != nil {
		value := state.ResetAt.UTC()
		record.ResetAt = &value
	}
	if state.ThrottledUntil != nil {
		value := state.ThrottledUntil.UTC()
		record.ThrottledUntil = &value
	}
	if state.RetryAfter != nil && *state.RetryAfter > 0 {
		seconds := int(state.RetryAfter.Seconds())
		if seconds <= 0 {
			seconds = 1
		}
		record.RetryAfter = &seconds
	}
	return record
}

func (r *rateLimitStateRecord) toDomain() ratelimit.State {
	if r == nil {
		return ratelimit.State{}
	}
	state := ratelimit.State{
		Key: core.RateLimitKey{
			ProviderID: r.ProviderID,
			ScopeType:  r.ScopeType,
			ScopeID:    r.ScopeID,
			BucketKey:  r.BucketKey,
		},
		Limit:      r.Limit,
		Remaining:  r.Remaining,
		LastStatus: r.LastStatus,
		Attempts:   r.Attempts,
		UpdatedAt:  r.UpdatedAt,
		Metadata:   copyAnyMap(r.Metadata),
	}
	if r.ResetAt != nil {
		value := r.ResetAt.UTC()
		state.ResetAt = &value
	}
	if r.ThrottledUntil != nil {
		value := r.ThrottledUntil.UTC()
		state.ThrottledUntil = &value
	}
	if r.RetryAfter != nil && *r.RetryAfter > 0 {
		value := time.Duration(*r.RetryAfter) * time.Second
		state.RetryAfter = &value
	}
	return state
}

// canonicalBucketKey mirrors the normalization the adaptive policy
// applies so the policy and the store always address the same row.
func canonicalBucketKey(key core.RateLimitKey) (core.RateLimitKey, error) {
	normalized := core.RateLimitKey{
		ProviderID: strings.ToLower(strings.TrimSpace(key.ProviderID)),
		ScopeType:  strings.ToLower(strings.TrimSpace(key.ScopeType)),
		ScopeID:    strings.TrimSpace(key.ScopeID),
		BucketKey:  strings.ToLower(strings.TrimSpace(key.BucketKey)),
	}
	switch {
	case normalized.ProviderID == "":
		return normalized, fmt.Errorf("sqlstore: rate-limit provider id is required")
	case normalized.ScopeType == "":
		return normalized, fmt.Errorf("sqlstore: rate-limit scope type is required")
	case normalized.ScopeID == "":
		return normalized, fmt.Errorf("sqlstore: rate-limit scope id is required")
	case normalized.BucketKey == "":
		return normalized, fmt.Errorf("sqlstore: rate-limit bucket key is required")
	}
	return normalized, nil
}

var _ ratelimit.StateStore = (*RateLimitStateStore)(nil)
