package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dokzlo13/lampd/internal/timer"
)

// SQLiteStore keeps one row per rule in the timers table.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a store on an opened database (see db.Open).
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Load returns the rules in saved order. A row that fails to decode fails
// the whole load.
func (s *SQLiteStore) Load() ([]timer.Timer, error) {
	rows, err := s.db.Query(`SELECT position, payload FROM timers ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to query timers: %w", err)
	}
	defer rows.Close()

	timers := []timer.Timer{}
	for rows.Next() {
		var pos int
		var payload string
		if err := rows.Scan(&pos, &payload); err != nil {
			return nil, err
		}
		var t timer.Timer
		if err := json.Unmarshal([]byte(payload), &t); err != nil {
			return nil, fmt.Errorf("failed to decode timer at position %d: %w", pos, err)
		}
		timers = append(timers, t)
	}
	return timers, rows.Err()
}

// Save replaces the stored list in one transaction.
func (s *SQLiteStore) Save(timers []timer.Timer) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM timers`); err != nil {
		return fmt.Errorf("failed to clear timers: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO timers (position, payload, updated_at) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC().Unix()
	for i, t := range timers {
		payload, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("failed to encode timer %d: %w", i, err)
		}
		if _, err := stmt.Exec(i, string(payload), now); err != nil {
			return fmt.Errorf("failed to insert timer %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// Clear removes every stored rule.
func (s *SQLiteStore) Clear() error {
	_, err := s.db.Exec(`DELETE FROM timers`)
	return err
}
