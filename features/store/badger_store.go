package store

import (
	"context"
	"errors"
	"sync"

	"eksiblock/internal/config"
	"eksiblock/internal/logger"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog/log"
)

var (
	ErrStoreNotInitialized = errors.New("store not initialized")
	ErrEmptyKey            = errors.New("empty key")
	ErrOpenStore           = errors.New("failed to open badger store")
)

// BadgerStore is the durable key/value area holding the current operation
// record, preference blobs and the known-users index.
type BadgerStore struct {
	db *badger.DB
	mu sync.RWMutex
}

// Open opens a badger database according to cfg.
func Open(cfg config.StoreConfig) (*BadgerStore, error) {
	path := cfg.BadgerPath
	if cfg.InMemory {
		path = ""
	}

	opts := badger.DefaultOptions(path).
		WithInMemory(cfg.InMemory).
		WithLogger(logger.NewBadgerLogger(log.Logger))

	db, err := badger.Open(opts)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("Failed to open badger database")
		return nil, errors.Join(ErrOpenStore, err)
	}

	log.Info().
		Str("path", path).
		Bool("in_memory", cfg.InMemory).
		Msg("Badger store opened")

	return &BadgerStore{db: db}, nil
}

// OpenInMemory is a shortcut used by tests and one-shot commands.
func OpenInMemory() (*BadgerStore, error) {
	return Open(config.StoreConfig{InMemory: true})
}

// Close releases badger resources.
func (s *BadgerStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// GetItem returns the value stored under key. found is false when the key is absent.
func (s *BadgerStore) GetItem(ctx context.Context, key string) (data []byte, found bool, err error) {
	if key == "" {
		return nil, false, ErrEmptyKey
	}
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, false, ErrStoreNotInitialized
	}

	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	return data, true, nil
}

// SetItem stores value under key, replacing any previous value.
func (s *BadgerStore) SetItem(ctx context.Context, key string, value []byte) error {
	if key == "" {
		return ErrEmptyKey
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return ErrStoreNotInitialized
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
}

// RemoveItem deletes key. Removing a missing key is not an error.
func (s *BadgerStore) RemoveItem(ctx context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return ErrStoreNotInitialized
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

// Iterate walks every key that starts with prefix, stopping on the first
// error returned by fn or on context cancellation.
func (s *BadgerStore) Iterate(ctx context.Context, prefix string, fn func(key string, value []byte) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return ErrStoreNotInitialized
	}

	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchSize = 100
		opts.Prefix = []byte(prefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			item := it.Item()
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := fn(string(item.Key()), value); err != nil {
				return err
			}
		}
		return nil
	})
}

// Count returns the number of keys under prefix.
func (s *BadgerStore) Count(ctx context.Context, prefix string) (int, error) {
	count := 0
	err := s.Iterate(ctx, prefix, func(string, []byte) error {
		count++
		return nil
	})
	return count, err
}
