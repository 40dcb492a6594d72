package metadata

import (
	"crypto/sha1"
	"fmt"
	"os"
	"path/filepath"

	"go.etcd.io/bbolt"
)

var bucketReasons = []byte("reasons")

// BoltRepository persists metadata strings in a bbolt database keyed by
// their SHA-1 digest, matching the digest written into exchange markers.
type BoltRepository struct {
	db *bbolt.DB
}

// OpenBoltRepository opens or creates the database at dbPath. The parent
// directory is created if it does not exist.
func OpenBoltRepository(dbPath string) (*BoltRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("metadata: create directory: %w", err)
	}
	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("metadata: open bolt db: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketReasons)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("metadata: create bucket: %w", err)
	}
	return &BoltRepository{db: db}, nil
}

// Close closes the underlying database.
func (r *BoltRepository) Close() error { return r.db.Close() }

// Add stores s under its SHA-1 digest. Re-adding the same string rewrites
// the same key, so Add is idempotent.
func (r *BoltRepository) Add(s string) error {
	key := sha1.Sum([]byte(s))
	err := r.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketReasons).Put(key[:], []byte(s))
	})
	if err != nil {
		return fmt.Errorf("metadata: add: %w", err)
	}
	return nil
}

// Lookup returns the string previously stored under the given 20-byte
// digest, or "" and false.
func (r *BoltRepository) Lookup(digest []byte) (string, bool) {
	var out []byte
	_ = r.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketReasons).Get(digest)
		if v != nil {
			out = append([]byte(nil), v...)
		}
		return nil
	})
	if out == nil {
		return "", false
	}
	return string(out), true
}
