package core

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const defaultActivityQueueDepth = 128

// ActivityRetentionPolicy bounds the audit trail. TTL drops entries older
// than the window, RowCap drops the oldest entries beyond the cap. Zero
// values disable the respective bound.
type ActivityRetentionPolicy struct {
	TTL    time.Duration
	RowCap int
}

type ActivityRetentionPruner interface {
	Prune(ctx context.Context, policy ActivityRetentionPolicy) (deleted int, err error)
}

// OperationalActivitySink decouples relay hot paths from audit writes. Record
// enqueues and returns; a forwarding goroutine moves entries into the primary
// sink. A saturated queue or a failed primary write diverts the entry to the
// fallback sink so message processing never waits on the audit trail.
type OperationalActivitySink struct {
	primary  ActivitySink
	fallback ActivitySink
	policy   ActivityRetentionPolicy
	pruner   ActivityRetentionPruner
	now      func() time.Time

	buffer    chan ActivityEntry
	quit      chan struct{}
	drained   chan struct{}
	closeOnce sync.Once
}

func NewOperationalActivitySink(
	primary ActivitySink,
	fallback ActivitySink,
	policy ActivityRetentionPolicy,
	bufferSize int,
) (*OperationalActivitySink, error) {
	if primary == nil {
		return nil, fmt.Errorf("core: primary activity sink is required")
	}
	if bufferSize <= 0 {
		bufferSize = defaultActivityQueueDepth
	}

	pruner, _ := primary.(ActivityRetentionPruner)
	sink := &OperationalActivitySink{
		primary:  primary,
		fallback: fallback,
		policy:   policy,
		pruner:   pruner,
		now:      func() time.Time { return time.Now().UTC() },
		buffer:   make(chan ActivityEntry, bufferSize),
		quit:     make(chan struct{}),
		drained:  make(chan struct{}),
	}
	go sink.forward()
	return sink, nil
}

func (s *OperationalActivitySink) Record(ctx context.Context, entry ActivityEntry) error {
	if s == nil || s.primary == nil {
		return fmt.Errorf("core: operational activity sink is not configured")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now()
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case s.buffer <- entry:
		return nil
	default:
	}
	if s.fallback == nil {
		return nil
	}
	return s.fallback.Record(ctx, entry)
}

func (s *OperationalActivitySink) List(ctx context.Context, filter ActivityFilter) (ActivityPage, error) {
	if s == nil || s.primary == nil {
		return ActivityPage{}, fmt.Errorf("core: operational activity sink is not configured")
	}
	return s.primary.List(ctx, filter)
}

// Prune applies a retention policy against the primary sink. A zero-valued
// policy falls back to the one the sink was constructed with. Primaries
// without pruning support make this a no-op.
func (s *OperationalActivitySink) Prune(ctx context.Context, policy ActivityRetentionPolicy) (int, error) {
	if s == nil {
		return 0, fmt.Errorf("core: operational activity sink is not configured")
	}
	if policy.TTL <= 0 && policy.RowCap <= 0 {
		policy = s.policy
	}
	if s.pruner == nil {
		return 0, nil
	}
	return s.pruner.Prune(ctx, policy)
}

// Close stops the forwarding goroutine after flushing entries already
// queued. Entries recorded concurrently with Close may be dropped.
func (s *OperationalActivitySink) Close() {
	if s == nil {
		return
	}
	s.closeOnce.Do(func() {
		close(s.quit)
		<-s.drained
	})
}

func (s *OperationalActivitySink) forward() {
	defer close(s.drained)
	for {
		select {
		case entry := <-s.buffer:
			s.deliver(entry)
		case <-s.quit:
			s.flush()
			return
		}
	}
}

// flush empties whatever the buffer holds at shutdown so accepted entries
// still reach a sink.
func (s *OperationalActivitySink) flush() {
	for {
		select {
		case entry := <-s.buffer:
			s.deliver(entry)
		default:
			return
		}
	}
}

func (s *OperationalActivitySink) deliver(entry ActivityEntry) {
	ctx := context.Background()
	if err := s.primary.Record(ctx, entry); err != nil && s.fallback != nil {
		_ = s.fallback.Record(ctx, entry)
	}
}

var (
	_ ActivitySink            = (*OperationalActivitySink)(nil)
	_ ActivityRetentionPruner = (*OperationalActivitySink)(nil)
)
