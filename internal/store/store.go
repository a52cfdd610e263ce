// Package store keeps the latest calendar record snapshot and refreshes it
// from the configured ICS feeds.
package store

import (
	"sync"
	"time"

	"calgrid/internal/calendar"
	"calgrid/internal/model"
)

// Store holds one immutable snapshot of records. Refreshes replace the
// snapshot wholesale; readers never see a partially updated set.
type Store struct {
	mu        sync.RWMutex
	records   []calendar.Record
	entities  []model.Entity
	updatedAt time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{
		records:  []calendar.Record{},
		entities: []model.Entity{},
	}
}

// Replace swaps in a new snapshot. The slices must not be modified afterwards.
func (s *Store) Replace(records []calendar.Record, entities []model.Entity, at time.Time) {
	if records == nil {
		records = []calendar.Record{}
	}
	if entities == nil {
		entities = []model.Entity{}
	}
	s.mu.Lock()
	s.records = records
	s.entities = entities
	s.updatedAt = at
	s.mu.Unlock()
}

// Records returns the current snapshot. Callers must treat it as read-only.
func (s *Store) Records() []calendar.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records
}

// Entities returns the filterable entities of the current snapshot.
func (s *Store) Entities() []model.Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entities
}

// UpdatedAt returns when the snapshot was last replaced, zero if never.
func (s *Store) UpdatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updatedAt
}
