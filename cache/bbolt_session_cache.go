package cache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"go.etcd.io/bbolt"
)

const sessionBucket = "session"

// BBoltSessionCache persists the session tuple in a single-file bbolt
// database. This is the durable backend, surviving process restarts the
// way localStorage survives page reloads.
type BBoltSessionCache struct {
	db *bbolt.DB
}

// NewBBoltSessionCache opens (or creates) the database at dbPath and
// ensures the session bucket exists.
func NewBBoltSessionCache(dbPath string) (*BBoltSessionCache, error) {
	dir := filepath.Dir(dbPath)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create cache directory %s: %w", dir, err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to check cache directory %s: %w", dir, err)
	}

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bbolt db at %s: %w", dbPath, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(sessionBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create session bucket: %w", err)
	}

	log.Debug().Str("path", dbPath).Msg("Session cache opened")
	return &BBoltSessionCache{db: db}, nil
}

// Read implements SessionCache.Read.
func (c *BBoltSessionCache) Read(_ context.Context) (*RawSession, error) {
	var record, loginTime, autoLogin string
	err := c.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(sessionBucket))
		record = string(b.Get([]byte(KeyUser)))
		loginTime = string(b.Get([]byte(KeyLoginTime)))
		autoLogin = string(b.Get([]byte(KeyAutoLogin)))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read session cache: %w", err)
	}
	raw, ok := decodeRaw(record, loginTime, autoLogin)
	if !ok {
		return nil, nil
	}
	return raw, nil
}

// Write implements SessionCache.Write.
func (c *BBoltSessionCache) Write(_ context.Context, raw *RawSession) error {
	err := c.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(sessionBucket))
		if err := b.Put([]byte(KeyUser), raw.Record); err != nil {
			return err
		}
		if err := b.Put([]byte(KeyLoginTime), []byte(encodeLoginTime(raw.LoginTime))); err != nil {
			return err
		}
		return b.Put([]byte(KeyAutoLogin), []byte(encodeAutoLogin(raw.AutoLogin)))
	})
	if err != nil {
		return fmt.Errorf("failed to write session cache: %w", err)
	}
	return nil
}

// Clear implements SessionCache.Clear. Any pending auto-action marker is
// removed along with the session keys.
func (c *BBoltSessionCache) Clear(_ context.Context) error {
	err := c.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(sessionBucket))
		for _, key := range []string{KeyUser, KeyLoginTime, KeyAutoLogin, KeyPendingAction} {
			if err := b.Delete([]byte(key)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to clear session cache: %w", err)
	}
	return nil
}

// Close closes the underlying database file.
func (c *BBoltSessionCache) Close() error {
	return c.db.Close()
}

var _ SessionCache = (*BBoltSessionCache)(nil)
