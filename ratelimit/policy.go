package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/MuhammadAslam635/referable-dev-sub000/core"
	goerrors "github.com/goliatone/go-errors"
)

var ErrStateNotFound = errors.New("ratelimit: state not found")

// State is the last observed send budget for one bucket, usually a
// business's transport number at one SMS gateway. ThrottledUntil carries
// the active backoff window when the gateway pushed back.
type State struct {
	Key            core.RateLimitKey
	Limit          int
	Remaining      int
	ResetAt        *time.Time
	RetryAfter     *time.Duration
	ThrottledUntil *time.Time
	LastStatus     int
	Attempts       int
	UpdatedAt      time.Time
	Metadata       map[string]any
}

type StateStore interface {
	Get(ctx context.Context, key core.RateLimitKey) (State, error)
	Upsert(ctx context.Context, state State) error
}

type ThrottledError struct {
	ProviderID string
	BucketKey  string
	RetryAfter time.Duration
}

func (e ThrottledError) Error() string {
	return fmt.Sprintf(
		"ratelimit: provider %q bucket %q throttled for %s",
		strings.TrimSpace(e.ProviderID),
		strings.TrimSpace(e.BucketKey),
		e.RetryAfter,
	)
}

func (e ThrottledError) ToServiceError() *goerrors.Error {
	metadata := map[string]any{
		"provider_id": strings.TrimSpace(e.ProviderID),
		"bucket_key":  strings.TrimSpace(e.BucketKey),
	}
	if e.RetryAfter > 0 {
		metadata["retry_after_ms"] = e.RetryAfter.Milliseconds()
	}
	return goerrors.New(e.Error(), goerrors.CategoryRateLimit).
		WithCode(http.StatusTooManyRequests).
		WithTextCode(core.RelayErrorRateLimited).
		WithMetadata(metadata)
}

// AdaptivePolicy throttles outbound sends per bucket from what the gateway
// reported on earlier calls. A 429 opens a backoff window sized by the
// Retry-After hint when present, doubling from InitialBackoff when not.
// Successful calls close the window and reset the attempt counter.
type AdaptivePolicy struct {
	Store            StateStore
	Now              func() time.Time
	InitialBackoff   time.Duration
	MaxBackoff       time.Duration
	DefaultRetryHint time.Duration
}

func NewAdaptivePolicy(store StateStore) *AdaptivePolicy {
	return &AdaptivePolicy{
		Store:            store,
		Now:              func() time.Time { return time.Now().UTC() },
		InitialBackoff:   time.Second,
		MaxBackoff:       time.Minute,
		DefaultRetryHint: 5 * time.Second,
	}
}

func (p *AdaptivePolicy) BeforeCall(ctx context.Context, key core.RateLimitKey) error {
	if p == nil || p.Store == nil {
		return nil
	}
	state, err := p.Store.Get(ctx, normalizeKey(key))
	if err != nil {
		if errors.Is(err, ErrStateNotFound) {
			return nil
		}
		return err
	}

	if wait, blocked := throttleWindow(state, p.now()); blocked {
		return ThrottledError{
			ProviderID: state.Key.ProviderID,
			BucketKey:  state.Key.BucketKey,
			RetryAfter: wait,
		}
	}
	return nil
}

func (p *AdaptivePolicy) AfterCall(ctx context.Context, key core.RateLimitKey, res core.ProviderResponseMeta) error {
	if p == nil || p.Store == nil {
		return nil
	}
	key = normalizeKey(key)
	now := p.now()
	state, err := p.Store.Get(ctx, key)
	switch {
	case errors.Is(err, ErrStateNotFound):
		state = State{Key: key}
	case err != nil:
		return err
	}

	signals := readBudgetSignals(res, now)
	state.LastStatus = res.StatusCode
	state.UpdatedAt = now
	state.Metadata = copyMetadata(state.Metadata)
	for k, v := range res.Metadata {
		state.Metadata[k] = v
	}
	if signals.limit != nil {
		state.Limit = *signals.limit
	}
	if signals.remaining != nil {
		state.Remaining = *signals.remaining
	}
	if signals.resetAt != nil {
		state.ResetAt = signals.resetAt
	}
	state.RetryAfter = signals.retryAfter

	if signals.throttled(res.StatusCode, state.Remaining) {
		state.Attempts++
		window := p.backoffWindow(state.Attempts)
		if signals.retryAfter != nil {
			window = *signals.retryAfter
		}
		until := now.Add(window)
		state.ThrottledUntil = &until
	} else {
		state.Attempts = 0
		state.ThrottledUntil = nil
	}

	return p.Store.Upsert(ctx, state)
}

func (p *AdaptivePolicy) now() time.Time {
	if p != nil && p.Now != nil {
		return p.Now().UTC()
	}
	return time.Now().UTC()
}

// backoffWindow doubles from InitialBackoff per consecutive throttled
// attempt, capped at MaxBackoff. Attempt counts high enough to overflow
// the doubling fall back to the default retry hint.
func (p *AdaptivePolicy) backoffWindow(attempts int) time.Duration {
	initial := p.InitialBackoff
	if initial <= 0 {
		initial = time.Second
	}
	ceiling := p.MaxBackoff
	if ceiling <= 0 {
		ceiling = time.Minute
	}

	window := initial
	for doubled := 1; doubled < attempts; doubled++ {
		window *= 2
		if window >= ceiling {
			return ceiling
		}
	}
	switch {
	case window <= 0:
		return p.retryHint()
	case window > ceiling:
		return ceiling
	}
	return window
}

func (p *AdaptivePolicy) retryHint() time.Duration {
	if p != nil && p.DefaultRetryHint > 0 {
		return p.DefaultRetryHint
	}
	return 5 * time.Second
}

// throttleWindow reports how long a bucket stays blocked: an explicit
// backoff window first, then an exhausted budget waiting on its reset.
func throttleWindow(state State, now time.Time) (time.Duration, bool) {
	if until := state.ThrottledUntil; until != nil && now.Before(*until) {
		return until.Sub(now), true
	}
	if state.Remaining == 0 && state.ResetAt != nil && now.Before(*state.ResetAt) {
		return state.ResetAt.Sub(now), true
	}
	return 0, false
}

// budgetSignals is one response's worth of rate-limit evidence: the
// standard x-ratelimit headers plus a retry-after hint from either the
// structured response meta or the header.
type budgetSignals struct {
	limit      *int
	remaining  *int
	resetAt    *time.Time
	retryAfter *time.Duration
}

// throttled treats 429 as throttled; 5xx is a transport failure, not a
// budget signal. An exhausted budget only counts when at least one
// rate-limit header accompanied it.
func (b budgetSignals) throttled(statusCode int, remaining int) bool {
	if statusCode == http.StatusTooManyRequests {
		return true
	}
	if statusCode >= 500 {
		return false
	}
	if remaining != 0 {
		return false
	}
	return b.limit != nil || b.remaining != nil || b.resetAt != nil || b.retryAfter != nil
}

func readBudgetSignals(res core.ProviderResponseMeta, now time.Time) budgetSignals {
	var signals budgetSignals
	if value, ok := headerInt(res.Headers, "x-ratelimit-limit"); ok {
		signals.limit = &value
	}
	if value, ok := headerInt(res.Headers, "x-ratelimit-remaining"); ok {
		signals.remaining = &value
	}
	if unix, ok := headerInt64(res.Headers, "x-ratelimit-reset"); ok && unix > 0 {
		resetAt := time.Unix(unix, 0).UTC()
		signals.resetAt = &resetAt
	}
	if hint, ok := retryAfterHint(res, now); ok {
		signals.retryAfter = &hint
	}
	return signals
}

// retryAfterHint prefers the structured hint on the response meta and
// falls back to the retry-after header, which carries either seconds or
// an HTTP date.
func retryAfterHint(res core.ProviderResponseMeta, now time.Time) (time.Duration, bool) {
	if res.RetryAfter != nil && *res.RetryAfter > 0 {
		return *res.RetryAfter, true
	}
	raw := headerLookup(res.Headers, "retry-after")
	if raw == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(raw); err == nil {
		if seconds <= 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	for _, layout := range []string{time.RFC1123, time.RFC1123Z} {
		retryAt, err := time.Parse(layout, raw)
		if err != nil {
			continue
		}
		if retryAt.After(now) {
			return retryAt.Sub(now), true
		}
		return 0, false
	}
	return 0, false
}

func headerInt(headers map[string]string, key string) (int, bool) {
	value, err := strconv.Atoi(headerLookup(headers, key))
	if err != nil {
		return 0, false
	}
	return value, true
}

func headerInt64(headers map[string]string, key string) (int64, bool) {
	value, err := strconv.ParseInt(headerLookup(headers, key), 10, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

func headerLookup(headers map[string]string, key string) string {
	for name, value := range headers {
		if strings.EqualFold(strings.TrimSpace(name), key) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

func normalizeKey(key core.RateLimitKey) core.RateLimitKey {
	return core.RateLimitKey{
		ProviderID: strings.TrimSpace(strings.ToLower(key.ProviderID)),
		ScopeType:  strings.TrimSpace(strings.ToLower(key.ScopeType)),
		ScopeID:    strings.TrimSpace(key.ScopeID),
		BucketKey:  strings.TrimSpace(strings.ToLower(key.BucketKey)),
	}
}

func copyMetadata(input map[string]any) map[string]any {
	output := make(map[string]any, len(input))
	for key, value := range input {
		output[key] = value
	}
	return output
}

// MemoryStateStore backs local development and tests; production uses the
// SQL store.
type MemoryStateStore struct {
	mu    sync.RWMutex
	items map[string]State
}

func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{items: map[string]State{}}
}

func (s *MemoryStateStore) Get(_ context.Context, key core.RateLimitKey) (State, error) {
	if s == nil {
		return State{}, fmt.Errorf("ratelimit: state store is nil")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.items[compositeKey(normalizeKey(key))]
	if !ok {
		return State{}, ErrStateNotFound
	}
	state.Metadata = copyMetadata(state.Metadata)
	return state, nil
}

func (s *MemoryStateStore) Upsert(_ context.Context, state State) error {
	if s == nil {
		return fmt.Errorf("ratelimit: state store is nil")
	}
	state.Key = normalizeKey(state.Key)
	state.Metadata = copyMetadata(state.Metadata)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[compositeKey(state.Key)] = state
	return nil
}

func compositeKey(key core.RateLimitKey) string {
	return strings.Join([]string{key.ProviderID, key.ScopeType, key.ScopeID, key.BucketKey}, "|")
}

var _ core.RateLimitPolicy = (*AdaptivePolicy)(nil)
