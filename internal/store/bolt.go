package store

import (
	"context"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

// BoltStore persists the counter in a bbolt bucket named after the namespace.
type BoltStore struct {
	db     *bbolt.DB
	bucket []byte
}

// OpenBolt opens (or creates) the database at path.
func OpenBolt(path, namespace string) (*BoltStore, error) {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if err := EnsureDir(path); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	s := &BoltStore{db: db, bucket: []byte(namespace)}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(s.bucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create bucket %s: %w", namespace, err)
	}
	return s, nil
}

// Load reads both keys in a single read transaction.
func (s *BoltStore) Load(ctx context.Context) (Counter, error) {
	var c Counter
	err := s.db.View(func(tx *bbolt.Tx) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		b := tx.Bucket(s.bucket)
		if b == nil {
			return nil
		}
		ms, err := parseInt(b.Get([]byte(KeyAccumulatedMs)))
		if err != nil {
			return err
		}
		activated, err := parseBool(b.Get([]byte(KeyActivated)))
		if err != nil {
			return err
		}
		c = Counter{AccumulatedMs: ms, Activated: activated}
		return nil
	})
	if err != nil {
		return Counter{}, fmt.Errorf("load counter: %w", err)
	}
	return c, nil
}

// SaveAccumulated writes ms unless the stored value is already higher.
func (s *BoltStore) SaveAccumulated(ctx context.Context, ms int64) error {
	return s.update(ctx, func(b *bbolt.Bucket) error {
		current, err := parseInt(b.Get([]byte(KeyAccumulatedMs)))
		if err != nil {
			return err
		}
		if ms < current {
			return nil
		}
		return b.Put([]byte(KeyAccumulatedMs), formatInt(ms))
	})
}

// SaveActivated writes the activated flag.
func (s *BoltStore) SaveActivated(ctx context.Context, activated bool) error {
	return s.update(ctx, func(b *bbolt.Bucket) error {
		return b.Put([]byte(KeyActivated), formatBool(activated))
	})
}

func (s *BoltStore) update(ctx context.Context, fn func(b *bbolt.Bucket) error) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		b := tx.Bucket(s.bucket)
		if b == nil {
			return fmt.Errorf("bucket %s missing", s.bucket)
		}
		return fn(b)
	})
}

// Close closes the database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}
