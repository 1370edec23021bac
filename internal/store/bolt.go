package store

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/dokzlo13/lampd/internal/timer"
)

var (
	timersBucket = []byte("timers")
	listKey      = []byte("list")
)

// BoltStore keeps the rule list as one JSON array in a bbolt file.
type BoltStore struct {
	db *bolt.DB
}

// OpenBolt opens (or creates) the bbolt file at path.
func OpenBolt(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(timersBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// Close closes the underlying file.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Load returns the stored rules, or an empty list if none were saved.
func (s *BoltStore) Load() ([]timer.Timer, error) {
	timers := []timer.Timer{}
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(timersBucket).Get(listKey)
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &timers)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load timers: %w", err)
	}
	return timers, nil
}

// Save replaces the stored list.
func (s *BoltStore) Save(timers []timer.Timer) error {
	if timers == nil {
		timers = []timer.Timer{}
	}
	data, err := json.Marshal(timers)
	if err != nil {
		return fmt.Errorf("failed to encode timers: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(timersBucket).Put(listKey, data)
	})
}

// Clear removes the stored list.
func (s *BoltStore) Clear() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(timersBucket).Delete(listKey)
	})
}
