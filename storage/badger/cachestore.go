package badger

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/kaiteki-lab/kotae/cache"
)

// CacheStore implements cache.Store over a BadgerDB keyspace. The shared
// tier applies badger entry TTLs so expiry is native; the durable tier
// stores raw bytes until deleted and leaves expiry to the cache layer.
type CacheStore struct {
	backend   *Backend
	keyPrefix string
	nativeTTL bool
}

var _ cache.Store = (*CacheStore)(nil)

// NewSharedCacheStore creates the shared-tier store.
func NewSharedCacheStore(backend *Backend) *CacheStore {
	return &CacheStore{backend: backend, keyPrefix: sharedCachePrefix + ":", nativeTTL: true}
}

// NewDurableCacheStore creates the durable-tier store.
func NewDurableCacheStore(backend *Backend) *CacheStore {
	return &CacheStore{backend: backend, keyPrefix: durableCachePrefix + ":"}
}

// Get returns the value for key, or found=false if absent or expired.
func (s *CacheStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	found := false
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get([]byte(s.keyPrefix + key))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return nil
			}
			return err
		}
		value, err = item.ValueCopy(nil)
		if err != nil {
			return err
		}
		found = true
		return nil
	}, false)
	if err != nil {
		return nil, false, err
	}
	return value, found, nil
}

// Set stores value under key. A zero ttl means no expiry.
func (s *CacheStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.backend.WithTx(func(tx *badger.Txn) error {
		entry := badger.NewEntry([]byte(s.keyPrefix+key), value)
		if s.nativeTTL && ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		if err := tx.SetEntry(entry); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// Delete removes key. Deleting an absent key is not an error.
func (s *CacheStore) Delete(ctx context.Context, key string) error {
	return s.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Delete([]byte(s.keyPrefix + key)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// DeletePrefix removes every key beginning with prefix.
func (s *CacheStore) DeletePrefix(ctx context.Context, prefix string) error {
	return s.backend.WithTx(func(tx *badger.Txn) error {
		scan := []byte(s.keyPrefix + prefix)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = scan
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		var keys [][]byte
		for iter.Rewind(); iter.Valid(); iter.Next() {
			keys = append(keys, iter.Item().KeyCopy(nil))
		}
		iter.Close()

		for _, key := range keys {
			if err := tx.Delete(key); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}
