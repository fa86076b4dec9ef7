package store

import (
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// ErrCacheMiss is returned when a key is absent or has expired.
var ErrCacheMiss = errors.New("cache miss")

const cachePrefix = "cache:"

// SetCache stores value under key until ttl elapses.
func (s *Store) SetCache(key string, value []byte, ttl time.Duration) error {
	if s.badger == nil {
		return ErrCacheMiss
	}
	return s.badger.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(cachePrefix+key), value).WithTTL(ttl)
		return txn.SetEntry(e)
	})
}

// GetCache returns the value and its expiry time.
func (s *Store) GetCache(key string) ([]byte, time.Time, error) {
	if s.badger == nil {
		return nil, time.Time{}, ErrCacheMiss
	}

	var (
		val     []byte
		expires time.Time
	)
	err := s.badger.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(cachePrefix + key))
		if err != nil {
			return err
		}
		if at := item.ExpiresAt(); at > 0 {
			expires = time.Unix(int64(at), 0)
		}
		return item.Value(func(v []byte) error {
			val = append([]byte{}, v...)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, time.Time{}, ErrCacheMiss
	}
	return val, expires, err
}

// DeleteCache removes a cached value.
func (s *Store) DeleteCache(key string) error {
	if s.badger == nil {
		return nil
	}
	return s.badger.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(cachePrefix + key))
	})
}
