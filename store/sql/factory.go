package sqlstore

import (
	"fmt"

	persistence "github.com/goliatone/go-persistence-bun"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// RepositoryFactory builds all durable relay stores from one bun handle.
type RepositoryFactory struct {
	db *bun.DB

	handoffStore      *HandoffStore
	messageCountStore *MessageCountStore
	messageStore      *MessageStore
}

func NewRepositoryFactory() *RepositoryFactory {
	return &RepositoryFactory{}
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if err := factory.BuildStores(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if err := factory.BuildStores(db); err != nil {
		return nil, err
	}
	return factory, nil
}

func (f *RepositoryFactory) BuildStores(persistenceClient any) error {
	if f == nil {
		return fmt.Errorf("sqlstore: repository factory is nil")
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return err
		}
		f.db = db
	}
	if f.handoffStore != nil {
		return nil
	}
	return f.initStores()
}

func (f *RepositoryFactory) HandoffStore() *HandoffStore {
	if f == nil {
		return nil
	}
	return f.handoffStore
}

func (f *RepositoryFactory) MessageCountStore() *MessageCountStore {
	if f == nil {
		return nil
	}
	return f.messageCountStore
}

func (f *RepositoryFactory) MessageStore() *MessageStore {
	if f == nil {
		return nil
	}
	return f.messageStore
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func (f *RepositoryFactory) initStores() error {
	handoffRepo := repository.NewRepository[*handoffRecord](f.db, handoffHandlers())
	if validator, ok := handoffRepo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return fmt.Errorf("sqlstore: invalid handoff repository wiring: %w", err)
		}
	}

	messageCountRepo := repository.NewRepository[*messageCountRecord](f.db, messageCountHandlers())
	if validator, ok := messageCountRepo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return fmt.Errorf("sqlstore: invalid message count repository wiring: %w", err)
		}
	}

	messageRepo := repository.NewRepository[*messageRecord](f.db, messageHandlers())
	if validator, ok := messageRepo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return fmt.Errorf("sqlstore: invalid message repository wiring: %w", err)
		}
	}

	f.handoffStore = &HandoffStore{
		db:   f.db,
		repo: handoffRepo,
	}
	f.messageCountStore = &MessageCountStore{
		db:   f.db,
		repo: messageCountRepo,
	}
	f.messageStore = &MessageStore{
		db:   f.db,
		repo: messageRepo,
	}
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
