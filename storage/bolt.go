package storage

import (
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var ledgerBucket = []byte("ledger")

// BoltDB stores ledger keys in a single bbolt bucket. It suits single-process
// deployments that prefer one file over a LevelDB directory.
type BoltDB struct {
	db *bolt.DB
}

// NewBoltDB opens (or creates) the bbolt file at path.
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(ledgerBucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("storage: create bucket: %w", err)
	}
	return &BoltDB{db: db}, nil
}

func (b *BoltDB) Put(key []byte, value []byte) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(ledgerBucket).Put(key, value)
	})
}

func (b *BoltDB) Get(key []byte) ([]byte, error) {
	var out []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		value := tx.Bucket(ledgerBucket).Get(key)
		if value == nil {
			return ErrNotFound
		}
		// bbolt values are only valid for the life of the transaction.
		out = append([]byte(nil), value...)
		return nil
	})
	return out, err
}

func (b *BoltDB) Has(key []byte) (bool, error) {
	found := false
	err := b.db.View(func(tx *bolt.Tx) error {
		found = tx.Bucket(ledgerBucket).Get(key) != nil
		return nil
	})
	return found, err
}

func (b *BoltDB) Delete(key []byte) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(ledgerBucket).Delete(key)
	})
}

// Write applies the batch inside one bbolt read-write transaction.
func (b *BoltDB) Write(batch *Batch) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(ledgerBucket)
		return batch.Replay(bucket.Put, bucket.Delete)
	})
}

func (b *BoltDB) Close() {
	_ = b.db.Close()
}

// Open returns the backend named by kind rooted at path. Supported kinds are
// "memory", "leveldb" and "bolt".
func Open(kind, path string) (Database, error) {
	switch kind {
	case "", "leveldb":
		return NewLevelDB(path)
	case "bolt":
		return NewBoltDB(path)
	case "memory":
		return NewMemDB(), nil
	default:
		return nil, fmt.Errorf("storage: unknown backend %q", kind)
	}
}
