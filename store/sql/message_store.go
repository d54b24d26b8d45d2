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

// MessageStore is the append-only relay transcript. The unique index on
// provider_message_id turns a racing duplicate insert into a fetch of the
// row the winner wrote, so redelivered webhooks never produce two rows.
type MessageStore struct {
	db   *bun.DB
	repo repository.Repository[*messageRecord]
}

func NewMessageStore(db *bun.DB) (*MessageStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*messageRecord](db, messageHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid message repository wiring: %w", err)
		}
	}
	return &MessageStore{db: db, repo: repo}, nil
}

func (s *MessageStore) Append(ctx context.Context, in core.AppendMessageInput) (core.Message, bool, error) {
	if s == nil || s.db == nil {
		return core.Message{}, false, fmt.Errorf("sqlstore: message store is not configured")
	}
	if strings.TrimSpace(in.BusinessID) == "" {
		return core.Message{}, false, fmt.Errorf("sqlstore: message business id is required")
	}
	if strings.TrimSpace(string(in.Direction)) == "" {
		return core.Message{}, false, fmt.Errorf("sqlstore: message direction is required")
	}
	if strings.TrimSpace(in.FromNumber) == "" || strings.TrimSpace(in.ToNumber) == "" {
		return core.Message{}, false, fmt.Errorf("sqlstore: message numbers are required")
	}

	record := newMessageRecord(in, time.Now().UTC())
	if record.Status == "" {
		record.Status = string(core.MessageStatusReceived)
	}
	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		if isUniqueViolation(err) && record.ProviderMessageID != "" {
			existing, getErr := s.GetByProviderMessageID(ctx, record.ProviderMessageID)
			if getErr != nil {
				return core.Message{}, false, getErr
			}
			return existing, true, nil
		}
		return core.Message{}, false, err
	}
	return record.toDomain(), false, nil
}

func (s *MessageStore) Get(ctx context.Context, id string) (core.Message, error) {
	if s == nil || s.db == nil {
		return core.Message{}, fmt.Errorf("sqlstore: message store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return core.Message{}, fmt.Errorf("sqlstore: message id is required")
	}
	record := &messageRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return core.Message{}, fmt.Errorf("%w: %s", core.ErrMessageNotFound, id)
		}
		return core.Message{}, err
	}
	return record.toDomain(), nil
}

func (s *MessageStore) GetByProviderMessageID(ctx context.Context, providerMessageID string) (core.Message, error) {
	if s == nil || s.db == nil {
		return core.Message{}, fmt.Errorf("sqlstore: message store is not configured")
	}
	providerMessageID = strings.TrimSpace(providerMessageID)
	if providerMessageID == "" {
		return core.Message{}, fmt.Errorf("sqlstore: provider message id is required")
	}
	record := &messageRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.provider_message_id = ?", providerMessageID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return core.Message{}, fmt.Errorf("%w: provider message id %s", core.ErrMessageNotFound, providerMessageID)
		}
		return core.Message{}, err
	}
	return record.toDomain(), nil
}

func (s *MessageStore) ListConversation(ctx context.Context, filter core.ConversationFilter) (core.MessagePage, error) {
	if s == nil || s.repo == nil {
		return core.MessagePage{}, fmt.Errorf("sqlstore: message store is not configured")
	}
	if strings.TrimSpace(filter.BusinessID) == "" {
		return core.MessagePage{}, fmt.Errorf("sqlstore: business id is required")
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	perPage := filter.PerPage
	if perPage <= 0 {
		perPage = 50
	}
	offset := (page - 1) * perPage

	selectors := []repository.SelectCriteria{
		repository.SelectBy("business_id", "=", strings.TrimSpace(filter.BusinessID)),
		repository.OrderBy("created_at ASC"),
		repository.SelectPaginate(perPage, offset),
	}
	if clientID := strings.TrimSpace(filter.ClientID); clientID != "" {
		selectors = append(selectors, repository.SelectBy("client_id", "=", clientID))
	}
	if direction := strings.TrimSpace(string(filter.Direction)); direction != "" {
		selectors = append(selectors, repository.SelectBy("direction", "=", direction))
	}
	if filter.From != nil {
		selectors = append(selectors, repository.SelectByTimetz("created_at", ">=", filter.From.UTC()))
	}
	if filter.To != nil {
		selectors = append(selectors, repository.SelectByTimetz("created_at", "<=", filter.To.UTC()))
	}

	records, total, err := s.repo.List(ctx, selectors...)
	if err != nil {
		return core.MessagePage{}, err
	}
	items := make([]core.Message, 0, len(records))
	for _, record := range records {
		items = append(items, record.toDomain())
	}
	return core.MessagePage{
		Items:   items,
		Page:    page,
		PerPage: perPage,
		Total:   total,
		HasNext: offset+len(items) < total,
	}, nil
}
