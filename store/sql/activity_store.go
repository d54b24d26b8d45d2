package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/MuhammadAslam635/referable-dev-sub000/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ActivityStore is the durable audit trail behind the relay. Metadata is
// redacted before it touches the database; traceability keys such as
// business_id and client_id pass through untouched.
type ActivityStore struct {
	db   *bun.DB
	repo repository.Repository[*activityEntryRecord]
}

func NewActivityStore(db *bun.DB) (*ActivityStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*activityEntryRecord](db, activityHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid activity repository wiring: %w", err)
		}
	}
	return &ActivityStore{db: db, repo: repo}, nil
}

func (s *ActivityStore) Record(ctx context.Context, entry core.ActivityEntry) error {
	if s == nil || s.repo == nil {
		return fmt.Errorf("sqlstore: activity store is not configured")
	}
	if strings.TrimSpace(entry.Action) == "" {
		return fmt.Errorf("sqlstore: activity action is required")
	}

	metadata := RedactMetadata(entry.Metadata)
	id := strings.TrimSpace(entry.ID)
	if id == "" {
		id = uuid.NewString()
	}
	createdAt := entry.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	record := &activityEntryRecord{
		ID:        id,
		Actor:     strings.TrimSpace(entry.Actor),
		Action:    strings.TrimSpace(entry.Action),
		Object:    strings.TrimSpace(entry.Object),
		Channel:   strings.TrimSpace(entry.Channel),
		Status:    strings.TrimSpace(string(entry.Status)),
		Metadata:  metadata,
		CreatedAt: createdAt,
	}
	if record.Actor == "" {
		record.Actor = "system"
	}
	if record.Channel == "" {
		record.Channel = "sms"
	}
	if record.Status == "" {
		record.Status = string(core.ActivityStatusOK)
	}
	record.ActorType = metadataString(metadata, "actor_type")
	if record.ActorType == "" {
		record.ActorType = inferActorType(record.Actor)
	}

	_, err := s.repo.Create(ctx, record)
	return err
}

func (s *ActivityStore) List(ctx context.Context, filter core.ActivityFilter) (core.ActivityPage, error) {
	if s == nil || s.repo == nil {
		return core.ActivityPage{}, fmt.Errorf("sqlstore: activity store is not configured")
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	perPage := filter.PerPage
	if perPage <= 0 {
		perPage = 25
	}
	offset := (page - 1) * perPage

	selectors := []repository.SelectCriteria{
		repository.OrderBy("created_at DESC"),
		repository.SelectPaginate(perPage, offset),
	}
	if actor := strings.TrimSpace(filter.Actor); actor != "" {
		selectors = append(selectors, repository.SelectBy("actor", "=", actor))
	}
	if action := strings.TrimSpace(filter.Action); action != "" {
		selectors = append(selectors, repository.SelectBy("action", "=", action))
	}
	if object := strings.TrimSpace(filter.Object); object != "" {
		selectors = append(selectors, repository.SelectBy("object", "=", object))
	}
	if status := strings.TrimSpace(string(filter.Status)); status != "" {
		selectors = append(selectors, repository.SelectBy("status", "=", status))
	}
	if filter.From != nil {
		selectors = append(selectors, repository.SelectByTimetz("created_at", ">=", filter.From.UTC()))
	}
	if filter.To != nil {
		selectors = append(selectors, repository.SelectByTimetz("created_at", "<=", filter.To.UTC()))
	}

	records, total, err := s.repo.List(ctx, selectors...)
	if err != nil {
		return core.ActivityPage{}, err
	}
	items := make([]core.ActivityEntry, 0, len(records))
	for _, record := range records {
		items = append(items, activityRecordToDomain(record))
	}
	return core.ActivityPage{
		Items:   items,
		Page:    page,
		PerPage: perPage,
		Total:   total,
		HasNext: offset+len(items) < total,
	}, nil
}

// Prune applies the retention policy: entries older than the TTL go first,
// then the oldest entries beyond the row cap.
func (s *ActivityStore) Prune(ctx context.Context, policy core.ActivityRetentionPolicy) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: activity store is not configured")
	}
	deleted := 0
	now := time.Now().UTC()

	if policy.TTL > 0 {
		cutoff := now.Add(-policy.TTL)
		res, err := s.db.NewDelete().
			Model((*activityEntryRecord)(nil)).
			Where("created_at < ?", cutoff).
			Exec(ctx)
		if err != nil {
			return deleted, err
		}
		affected, _ := res.RowsAffected()
		deleted += int(affected)
	}

	if policy.RowCap > 0 {
		total, err := s.db.NewSelect().Model((*activityEntryRecord)(nil)).Count(ctx)
		if err != nil {
			return deleted, err
		}
		excess := total - policy.RowCap
		if excess > 0 {
			res, err := s.db.NewRaw(
				"DELETE FROM relay_activity_entries WHERE id IN (SELECT id FROM relay_activity_entries ORDER BY created_at ASC LIMIT ?)",
				excess,
			).Exec(ctx)
			if err != nil {
				return deleted, err
			}
			affected, _ := res.RowsAffected()
			deleted += int(affected)
		}
	}

	return deleted, nil
}

func activityRecordToDomain(record *activityEntryRecord) core.ActivityEntry {
	if record == nil {
		return core.ActivityEntry{}
	}
	return core.ActivityEntry{
		ID:        record.ID,
		Actor:     record.Actor,
		Action:    record.Action,
		Object:    record.Object,
		Channel:   record.Channel,
		Status:    core.ActivityStatus(record.Status),
		Metadata:  copyAnyMap(record.Metadata),
		CreatedAt: record.CreatedAt,
	}
}

// inferActorType classifies the audit actor. Relay actors that are not a
// known internal identity are end-user phone numbers.
func inferActorType(actor string) string {
	normalized := strings.ToLower(strings.TrimSpace(actor))
	switch normalized {
	case "system", "job", "webhook":
		return normalized
	default:
		return "user"
	}
}

func metadataString(metadata map[string]any, key string) string {
	if len(metadata) == 0 {
		return ""
	}
	value, ok := metadata[key]
	if !ok || value == nil {
		return ""
	}
	text := strings.TrimSpace(fmt.Sprint(value))
	if text == "" || text == "<nil>" {
		return ""
	}
	return text
}

var (
	_ core.ActivitySink            = (*ActivityStore)(nil)
	_ core.ActivityRetentionPruner = (*ActivityStore)(nil)
)
