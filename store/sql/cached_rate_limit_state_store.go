package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/MuhammadAslam635/referable-dev-sub000/core"
	"github.com/MuhammadAslam635/referable-dev-sub000/ratelimit"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const rateLimitStateCacheKeyPrefix = "sms-relay::ratelimit_state::v1"

// CachedRateLimitStateStore fronts the SQL state store with a read-through
// cache. The throttle check runs on every outbound send, so hot buckets
// stay out of the database; upserts invalidate so a fresh throttle window
// is visible on the next read.
type CachedRateLimitStateStore struct {
	base  ratelimit.StateStore
	cache repositorycache.CacheService
}

func NewCachedRateLimitStateStore(
	base ratelimit.StateStore,
	cacheService repositorycache.CacheService,
) (*CachedRateLimitStateStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base rate-limit state store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: rate-limit cache service is required")
	}
	return &CachedRateLimitStateStore{base: base, cache: cacheService}, nil
}

// RateLimitStateCacheKey returns the deterministic cache key contract for
// rate-limit state reads: sms-relay::ratelimit_state::v1::<provider>::<scope_type>::<scope_id>::<bucket_key>
// with each segment URL-path escaped after key normalization.
func RateLimitStateCacheKey(key core.RateLimitKey) (string, error) {
	normalized, err := canonicalBucketKey(key)
	if err != nil {
		return "", err
	}
	var builder strings.Builder
	builder.WriteString(rateLimitStateCacheKeyPrefix)
	for _, segment := range []string{
		normalized.ProviderID,
		normalized.ScopeType,
		normalized.ScopeID,
		normalized.BucketKey,
	} {
		builder.WriteString("::")
		builder.WriteString(url.PathEscape(segment))
	}
	return builder.String(), nil
}

func (s *CachedRateLimitStateStore) Get(ctx context.Context, key core.RateLimitKey) (ratelimit.State, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return ratelimit.State{}, fmt.Errorf("sqlstore: cached rate-limit state store is not configured")
	}
	normalized, err := canonicalBucketKey(key)
	if err != nil {
		return ratelimit.State{}, err
	}
	cacheKey, err := RateLimitStateCacheKey(normalized)
	if err != nil {
		return ratelimit.State{}, err
	}

	state, err := repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (ratelimit.State, error) {
		fetched, fetchErr := s.base.Get(ctx, normalized)
		if fetchErr != nil {
			return ratelimit.State{}, fetchErr
		}
		fetched.Key = normalized
		return detachState(fetched), nil
	})
	if err != nil {
		return ratelimit.State{}, err
	}
	return detachState(state), nil
}

func (s *CachedRateLimitStateStore) Upsert(ctx context.Context, state ratelimit.State) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached rate-limit state store is not configured")
	}
	key, err := canonicalBucketKey(state.Key)
	if err != nil {
		return err
	}
	state.Key = key
	state.Metadata = copyAnyMap(state.Metadata)

	if err := s.base.Upsert(ctx, state); err != nil {
		return err
	}

	cacheKey, err := RateLimitStateCacheKey(key)
	if err != nil {
		return err
	}
	return s.cache.Delete(ctx, cacheKey)
}

// detachState deep-copies the pointer fields so values handed out of the
// cache never share mutable state with callers.
func detachState(state ratelimit.State) ratelimit.State {
	out := state
	out.Metadata = copyAnyMap(state.Metadata)
	if state.ResetAt != nil {
		value := state.ResetAt.UTC()
		out.ResetAt = &value
	}
	if state.ThrottledUntil != nil {
		value := state.ThrottledUntil.UTC()
		out.ThrottledUntil = &value
	}
	if state.RetryAfter != nil {
		value := *state.RetryAfter
		out.RetryAfter = &value
	}
	return out
}

var _ ratelimit.StateStore = (*CachedRateLimitStateStore)(nil)
