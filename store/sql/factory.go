package sqlstore

import (
	"fmt"
	"time"

	"github.com/MuhammadAslam635/referable-dev-sub000/core"
	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/uptrace/bun"
)

// RepositoryFactory builds the SQL-backed store set behind one bun.DB
// handle. It satisfies core.RepositoryStoreFactory so the relay service
// can be handed a persistence client and wire its own stores.
type RepositoryFactory struct {
	db *bun.DB

	// ReplyContextTTL overrides the reply-context window when set before
	// BuildStores runs.
	ReplyContextTTL time.Duration

	directoryStore    *DirectoryStore
	messageStore      *MessageStore
	replyContextStore *ReplyContextStore
	activityStore     *ActivityStore
	deliveryLedger    *DeliveryLedgerStore
	rateLimitStore    *RateLimitStateStore
}

func NewRepositoryFactory() *RepositoryFactory {
	return &RepositoryFactory{}
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if _, err := factory.BuildStores(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if _, err := factory.BuildStores(db); err != nil {
		return nil, err
	}
	return factory, nil
}

func (f *RepositoryFactory) BuildStores(persistenceClient any) (core.StoreProvider, error) {
	if f == nil {
		return nil, fmt.Errorf("sqlstore: repository factory is nil")
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return nil, err
		}
		f.db = db
	}
	if f.directoryStore != nil && f.messageStore != nil {
		return f, nil
	}
	if err := f.initStores(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *RepositoryFactory) DirectoryStore() core.DirectoryStore {
	if f == nil {
		return nil
	}
	return f.directoryStore
}

func (f *RepositoryFactory) MessageStore() core.MessageStore {
	if f == nil {
		return nil
	}
	return f.messageStore
}

func (f *RepositoryFactory) ReplyContextStore() core.ReplyContextStore {
	if f == nil {
		return nil
	}
	return f.replyContextStore
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func (f *RepositoryFactory) ActivityStore() *ActivityStore {
	if f == nil {
		return nil
	}
	return f.activityStore
}

// ActivitySink exposes the audit store under the interface the relay
// service probes for when wiring stores from a factory.
func (f *RepositoryFactory) ActivitySink() core.ActivitySink {
	if f == nil || f.activityStore == nil {
		return nil
	}
	return f.activityStore
}

func (f *RepositoryFactory) DeliveryLedger() *DeliveryLedgerStore {
	if f == nil {
		return nil
	}
	return f.deliveryLedger
}

func (f *RepositoryFactory) RateLimitStateStore() *RateLimitStateStore {
	if f == nil {
		return nil
	}
	return f.rateLimitStore
}

func (f *RepositoryFactory) initStores() error {
	directoryStore, err := NewDirectoryStore(f.db)
	if err != nil {
		return err
	}
	f.directoryStore = directoryStore
	messageStore, err := NewMessageStore(f.db)
	if err != nil {
		return err
	}
	f.messageStore = messageStore
	replyContextStore, err := NewReplyContextStore(f.db, f.ReplyContextTTL)
	if err != nil {
		return err
	}
	f.replyContextStore = replyContextStore
	activityStore, err := NewActivityStore(f.db)
	if err != nil {
		return err
	}
	f.activityStore = activityStore
	deliveryLedger, err := NewDeliveryLedgerStore(f.db)
	if err != nil {
		return err
	}
	f.deliveryLedger = deliveryLedger
	rateLimitStore, err := NewRateLimitStateStore(f.db)
	if err != nil {
		return err
	}
	f.rateLimitStore = rateLimitStore

	return nil
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}
