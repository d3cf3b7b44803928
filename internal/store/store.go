package store

import (
	"sync"

	"filedrop/internal/models"
)

// Store is the in-memory ordered collection of file records. The pipeline
// writes through Update, observers read snapshots through Get/List. Records
// live until Clear wipes the whole store; there is no per-record deletion.
type Store struct {
	mu      sync.RWMutex
	records []*models.FileRecord
	index   map[string]*models.FileRecord
}

func New() *Store {
	return &Store{
		index: make(map[string]*models.FileRecord),
	}
}

// Prepend inserts a batch in front of all existing records in one atomic
// step, keeping the batch's own order. The store keeps its own copies, so
// the caller's records stay an admission-time snapshot.
func (s *Store) Prepend(batch []*models.FileRecord) {
	if len(batch) == 0 {
		return
	}
	owned := make([]*models.FileRecord, 0, len(batch))
	for _, rec := range batch {
		if rec == nil || rec.ID == "" {
			continue
		}
		owned = append(owned, rec.Clone())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(owned, s.records...)
	for _, rec := range owned {
		s.index[rec.ID] = rec
	}
}

// Update applies fn to the record with the given id under the store lock.
// Unknown ids are a no-op: a capability settling after Clear must not error
// or resurrect the record. Returns whether a record was updated.
func (s *Store) Update(id string, fn func(*models.FileRecord)) bool {
	if fn == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.index[id]
	if !ok {
		return false
	}
	fn(rec)
	return true
}

// Get returns a snapshot of one record, or nil when absent.
func (s *Store) Get(id string) *models.FileRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index[id].Clone()
}

// List returns snapshots of all records, most recent batch first.
func (s *Store) List() []*models.FileRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.FileRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec.Clone())
	}
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Clear empties the store. In-flight pipeline work is not cancelled; its
// late updates fall into the Update no-op path.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
	s.index = make(map[string]*models.FileRecord)
}
