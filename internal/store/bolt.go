package store

import (
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/shazow/autojoin/wifi"
)

var (
	wifiBucket     = []byte("wifi")
	credentialsKey = []byte(DefaultFilename)
)

// Bolt stores the credential payload as one record in a bbolt database, for
// devices that keep all their settings in a single keyed store.
type Bolt struct {
	db *bbolt.DB
}

// OpenBolt opens (or creates) the database at path.
func OpenBolt(path string) (*Bolt, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("could not open %s: %w", path, err)
	}
	return &Bolt{db: db}, nil
}

// Load returns the stored payload, or nothing if it was never saved.
func (b *Bolt) Load() ([]byte, error) {
	var data []byte
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(wifiBucket)
		if bucket == nil {
			return nil
		}
		v := bucket.Get(credentialsKey)
		if len(v) > wifi.MaxStorageSize {
			return fmt.Errorf("stored record is %d bytes: %w", len(v), wifi.ErrTooLarge)
		}
		// v is only valid for the life of the transaction.
		data = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (b *Bolt) Save(data []byte) error {
	if len(data) > wifi.MaxStorageSize {
		return fmt.Errorf("refusing to write %d bytes: %w", len(data), wifi.ErrTooLarge)
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(wifiBucket)
		if err != nil {
			return err
		}
		return bucket.Put(credentialsKey, data)
	})
}

// Close releases the database.
func (b *Bolt) Close() error {
	return b.db.Close()
}
