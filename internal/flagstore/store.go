// Package flagstore persists the local actor's owned decorations in a bbolt
// file so flags placed in earlier sessions survive process restarts and get
// re-announced on the next connect.
package flagstore

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/SamppaFIN/Klitoritari-sub004/internal/state"
)

var bucketFlags = []byte("flags")

// Store is a durable map from derived decoration identity to decoration.
type Store struct {
	db *bolt.DB
}

// Open creates or opens the store at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("flagstore: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketFlags)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("flagstore: init bucket: %w", err)
	}
	return &Store{db: db}, nil
}

// Put writes one decoration keyed by its derived identity. Re-writing the
// same decoration is idempotent.
func (s *Store) Put(d state.Decoration) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("flagstore: encode decoration: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketFlags).Put([]byte(d.Key()), data)
	})
}

// Delete removes one decoration by derived identity.
func (s *Store) Delete(key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketFlags).Delete([]byte(key))
	})
}

// All loads every stored decoration.
func (s *Store) All() ([]state.Decoration, error) {
	var decorations []state.Decoration
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketFlags).ForEach(func(_, v []byte) error {
			var d state.Decoration
			if err := json.Unmarshal(v, &d); err != nil {
				return fmt.Errorf("flagstore: decode decoration: %w", err)
			}
			decorations = append(decorations, d)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return decorations, nil
}

// Close releases the underlying database file.
func (s *Store) Close() error {
	return s.db.Close()
}
