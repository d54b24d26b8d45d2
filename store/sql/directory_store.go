package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/MuhammadAslam635/referable-dev-sub000/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// DirectoryStore persists businesses and their known clients. Upserts match
// by id when the caller provides one, otherwise by the natural key: the
// transport number for businesses, the (business, phone) pair for clients.
type DirectoryStore struct {
	db         *bun.DB
	businesses repository.Repository[*businessRecord]
	clients    repository.Repository[*clientRecord]
}

func NewDirectoryStore(db *bun.DB) (*DirectoryStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	businesses := repository.NewRepository[*businessRecord](db, businessHandlers())
	if validator, ok := businesses.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid business repository wiring: %w", err)
		}
	}
	clients := repository.NewRepository[*clientRecord](db, clientHandlers())
	if validator, ok := clients.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid client repository wiring: %w", err)
		}
	}
	return &DirectoryStore{
		db:         db,
		businesses: businesses,
		clients:    clients,
	}, nil
}

func (s *DirectoryStore) UpsertBusiness(ctx context.Context, in core.UpsertBusinessInput) (core.Business, error) {
	if s == nil || s.db == nil {
		return core.Business{}, fmt.Errorf("sqlstore: directory store is not configured")
	}
	if strings.TrimSpace(in.Name) == "" {
		return core.Business{}, fmt.Errorf("sqlstore: business name is required")
	}
	if strings.TrimSpace(in.TransportNumber) == "" {
		return core.Business{}, fmt.Errorf("sqlstore: business transport number is required")
	}
	if in.ForwardingEnabled && strings.TrimSpace(in.ForwardingNumber) == "" {
		return core.Business{}, fmt.Errorf("sqlstore: forwarding enabled without forwarding number")
	}

	now := time.Now().UTC()
	var out core.Business
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record, err := findBusinessTx(ctx, tx, in)
		if err != nil {
			return err
		}
		created := false
		if record == nil {
			created = true
			record = &businessRecord{
				ID:        strings.TrimSpace(in.ID),
				CreatedAt: now,
			}
			if record.ID == "" {
				record.ID = uuid.NewString()
			}
		}
		record.Name = strings.TrimSpace(in.Name)
		record.TransportNumber = strings.TrimSpace(in.TransportNumber)
		record.ForwardingNumber = strings.TrimSpace(in.ForwardingNumber)
		record.ForwardingEnabled = in.ForwardingEnabled
		record.Metadata = copyAnyMap(in.Metadata)
		record.UpdatedAt = now

		if created {
			if _, insertErr := tx.NewInsert().Model(record).Exec(ctx); insertErr != nil {
				return insertErr
			}
		} else if _, updateErr := tx.NewUpdate().
			Model(record).
			Where("id = ?", record.ID).
			Exec(ctx); updateErr != nil {
			return updateErr
		}
		out = record.toDomain()
		return nil
	})
	if err != nil {
		return core.Business{}, err
	}
	return out, nil
}

func (s *DirectoryStore) UpsertClient(ctx context.Context, in core.UpsertClientInput) (core.Client, error) {
	if s == nil || s.db == nil {
		return core.Client{}, fmt.Errorf("sqlstore: directory store is not configured")
	}
	if strings.TrimSpace(in.BusinessID) == "" {
		return core.Client{}, fmt.Errorf("sqlstore: client business id is required")
	}
	if strings.TrimSpace(in.Phone) == "" {
		return core.Client{}, fmt.Errorf("sqlstore: client phone is required")
	}

	now := time.Now().UTC()
	var out core.Client
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record, err := findClientTx(ctx, tx, in)
		if err != nil {
			return err
		}
		created := false
		if record == nil {
			created = true
			record = &clientRecord{
				ID:        strings.TrimSpace(in.ID),
				CreatedAt: now,
			}
			if record.ID == "" {
				record.ID = uuid.NewString()
			}
		}
		record.BusinessID = strings.TrimSpace(in.BusinessID)
		record.Name = strings.TrimSpace(in.Name)
		record.Phone = strings.TrimSpace(in.Phone)
		record.Metadata = copyAnyMap(in.Metadata)
		record.UpdatedAt = now

		if created {
			if _, insertErr := tx.NewInsert().Model(record).Exec(ctx); insertErr != nil {
				return insertErr
			}
		} else if _, updateErr := tx.NewUpdate().
			Model(record).
			Where("id = ?", record.ID).
			Exec(ctx); updateErr != nil {
			return updateErr
		}
		out = record.toDomain()
		return nil
	})
	if err != nil {
		return core.Client{}, err
	}
	return out, nil
}

func (s *DirectoryStore) GetBusiness(ctx context.Context, id string) (core.Business, error) {
	if s == nil || s.db == nil {
		return core.Business{}, fmt.Errorf("sqlstore: directory store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return core.Business{}, fmt.Errorf("sqlstore: business id is required")
	}
	record := &businessRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return core.Business{}, fmt.Errorf("%w: %s", core.ErrBusinessNotFound, id)
		}
		return core.Business{}, err
	}
	return record.toDomain(), nil
}

func (s *DirectoryStore) BusinessByTransportNumber(ctx context.Context, number string) (core.Business, error) {
	return s.businessByNumber(ctx, "transport_number", number)
}

func (s *DirectoryStore) BusinessByForwardingNumber(ctx context.Context, number string) (core.Business, error) {
	return s.businessByNumber(ctx, "forwarding_number", number)
}

func (s *DirectoryStore) businessByNumber(ctx context.Context, column, number string) (core.Business, error) {
	if s == nil || s.db == nil {
		return core.Business{}, fmt.Errorf("sqlstore: directory store is not configured")
	}
	number = strings.TrimSpace(number)
	if number == "" {
		return core.Business{}, fmt.Errorf("sqlstore: business number is required")
	}
	record := &businessRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias."+column+" = ?", number).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return core.Business{}, fmt.Errorf("%w: %s %s", core.ErrBusinessNotFound, column, number)
		}
		return core.Business{}, err
	}
	return record.toDomain(), nil
}

func (s *DirectoryStore) ClientByPhone(ctx context.Context, businessID, phone string) (core.Client, error) {
	if s == nil || s.db == nil {
		return core.Client{}, fmt.Errorf("sqlstore: directory store is not configured")
	}
	businessID = strings.TrimSpace(businessID)
	phone = strings.TrimSpace(phone)
	if businessID == "" || phone == "" {
		return core.Client{}, fmt.Errorf("sqlstore: business id and phone are required")
	}
	record := &clientRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.business_id = ?", businessID).
		Where("?TableAlias.phone = ?", phone).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return core.Client{}, fmt.Errorf("%w: %s", core.ErrClientNotFound, phone)
		}
		return core.Client{}, err
	}
	return record.toDomain(), nil
}

func (s *DirectoryStore) ListClients(ctx context.Context, businessID string) ([]core.Client, error) {
	if s == nil || s.clients == nil {
		return nil, fmt.Errorf("sqlstore: directory store is not configured")
	}
	businessID = strings.TrimSpace(businessID)
	if businessID == "" {
		return nil, fmt.Errorf("sqlstore: business id is required")
	}
	records, _, err := s.clients.List(ctx,
		repository.SelectBy("business_id", "=", businessID),
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.deleted_at IS NULL")
		}),
		repository.OrderBy("created_at ASC"),
	)
	if err != nil {
		return nil, err
	}
	out := make([]core.Client, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

func findBusinessTx(ctx context.Context, tx bun.Tx, in core.UpsertBusinessInput) (*businessRecord, error) {
	record := &businessRecord{}
	query := tx.NewSelect().Model(record).Limit(1)
	if id := strings.TrimSpace(in.ID); id != "" {
		query = query.Where("?TableAlias.id = ?", id)
	} else {
		query = query.Where("?TableAlias.transport_number = ?", strings.TrimSpace(in.TransportNumber))
	}
	if err := query.Scan(ctx); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return record, nil
}

func findClientTx(ctx context.Context, tx bun.Tx, in core.UpsertClientInput) (*clientRecord, error) {
	record := &clientRecord{}
	query := tx.NewSelect().Model(record).Limit(1)
	if id := strings.TrimSpace(in.ID); id != "" {
		query = query.Where("?TableAlias.id = ?", id)
	} else {
		query = query.
			Where("?TableAlias.business_id = ?", strings.TrimSpace(in.BusinessID)).
			Where("?TableAlias.phone = ?", strings.TrimSpace(in.Phone))
	}
	if err := query.Scan(ctx); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return record, nil
}
