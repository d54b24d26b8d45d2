package core

import (
	"context"
	"fmt"
	"time"
)

// Sweeper bulk-deletes expired reply contexts on a fixed interval. It is
// garbage collection only: the read-time expiry check on the context store
// is the correctness gate, so a late or missed sweep never changes routing
// behavior. When a retention policy is set and the activity sink can prune,
// each pass also bounds the audit trail.
type Sweeper struct {
	Contexts ReplyContextStore
	Activity ActivitySink
	Logger   Logger

	Interval  time.Duration
	Retention ActivityRetentionPolicy
	// Pruner overrides the default resolution, which asserts Activity for
	// ActivityRetentionPruner support.
	Pruner ActivityRetentionPruner
	Now    func() time.Time
}

func NewSweeper(contexts ReplyContextStore) *Sweeper {
	return &Sweeper{Contexts: contexts}
}

func (s *Sweeper) interval() time.Duration {
	if s != nil && s.Interval > 0 {
		return s.Interval
	}
	return defaultSweepInterval
}

func (s *Sweeper) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// RunOnce performs a single purge pass and reports how many contexts were
// removed.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	if s == nil || s.Contexts == nil {
		return 0, fmt.Errorf("core: sweeper is not configured")
	}
	now := s.now()
	purged, err := s.Contexts.PurgeExpired(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("core: purge expired contexts: %w", err)
	}
	if s.Logger != nil {
		s.Logger.Info("reply context sweep completed", "purged", purged)
	}
	if purged > 0 && s.Activity != nil {
		entry := ActivityEntry{
			Actor:   "system",
			Action:  ActionContextPurged,
			Channel: "sms",
			Status:  ActivityStatusOK,
			Metadata: map[string]any{
				"purged": purged,
			},
			CreatedAt: now,
		}
		if recordErr := s.Activity.Record(ctx, entry); recordErr != nil && s.Logger != nil {
			s.Logger.Error("sweep activity record failed", "error", recordErr)
		}
	}
	if pruned, pruneErr := s.enforceRetention(ctx); pruneErr != nil {
		if s.Logger != nil {
			s.Logger.Error("activity retention failed", "error", pruneErr)
		}
	} else if pruned > 0 && s.Logger != nil {
		s.Logger.Info("activity retention enforced", "pruned", pruned)
	}
	return purged, nil
}

// enforceRetention trims the audit trail when a policy is configured. A
// retention failure never fails the sweep: context purging is the primary
// job and keeps its result either way.
func (s *Sweeper) enforceRetention(ctx context.Context) (int, error) {
	if s.Retention.TTL <= 0 && s.Retention.RowCap <= 0 {
		return 0, nil
	}
	pruner := s.Pruner
	if pruner == nil {
		pruner, _ = s.Activity.(ActivityRetentionPruner)
	}
	if pruner == nil {
		return 0, nil
	}
	return pruner.Prune(ctx, s.Retention)
}

// Run sweeps on the configured interval until the context is cancelled.
// A failed pass is logged and the loop keeps going.
func (s *Sweeper) Run(ctx context.Context) error {
	if s == nil || s.Contexts == nil {
		return fmt.Errorf("core: sweeper is not configured")
	}
	for {
		if err := waitWithContext(ctx, s.interval()); err != nil {
			return err
		}
		if _, err := s.RunOnce(ctx); err != nil && s.Logger != nil {
			s.Logger.Error("reply context sweep failed", "error", err)
		}
	}
}

func waitWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
