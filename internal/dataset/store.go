// Package dataset owns the in-memory citation graph shared by all resolution tasks.
//
// The Store is the single serialization point of the pipeline: every read and
// write goes through one mutex, and callers compute new field values before
// calling so that critical sections only copy or assign.
package dataset

import (
	"sort"
	"sync"
	"time"

	"github.com/helixir/citation-graph-service/internal/domain"
)

// Stats is a point-in-time view of the run counters.
type Stats struct {
	Papers             int   `json:"papers"`
	PapersResolved     int64 `json:"papers_resolved"`
	ReferencesResolved int64 `json:"references_resolved"`
	UnknownPublishers  int   `json:"unknown_publishers"`
}

// Snapshot is an immutable deep copy of the dataset.
type Snapshot struct {
	Papers             map[string]*domain.PaperRecord `json:"papers"`
	PapersResolved     int64                          `json:"papers_resolved"`
	ReferencesResolved int64                          `json:"references_resolved"`
	UnknownPublishers  map[string]int                 `json:"unknown_publishers"`

	// LastPage is the last catalog page whose cohort completed.
	LastPage  int       `json:"last_page"`
	WrittenAt time.Time `json:"written_at"`
}

// IDs returns the snapshot's identifiers in sorted order.
func (s *Snapshot) IDs() []string {
	ids := make([]string, 0, len(s.Papers))
	for id := range s.Papers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Stats returns the counters recorded in the snapshot.
func (s *Snapshot) Stats() Stats {
	return Stats{
		Papers:             len(s.Papers),
		PapersResolved:     s.PapersResolved,
		ReferencesResolved: s.ReferencesResolved,
		UnknownPublishers:  len(s.UnknownPublishers),
	}
}

// Store is a concurrency-safe mapping from canonical identifier to PaperRecord.
// It is safe for concurrent use.
type Store struct {
	mu                 sync.Mutex
	papers             map[string]*domain.PaperRecord
	papersResolved     int64
	referencesResolved int64
	unknownPublishers  map[string]int
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		papers:            make(map[string]*domain.PaperRecord),
		unknownPublishers: make(map[string]int),
	}
}

// Exists reports whether a record with the identifier is present.
func (s *Store) Exists(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.papers[id]
	return ok
}

// Get returns a copy of the record, if present.
func (s *Store) Get(id string) (*domain.PaperRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.papers[id]
	if !ok {
		return nil, false
	}
	return rec.Clone(), true
}

// InsertIfAbsent stores rec if no record with its identifier exists.
// It returns false, leaving the existing record untouched, otherwise.
// The store keeps its own copy of rec.
func (s *Store) InsertIfAbsent(rec *domain.PaperRecord) bool {
	if rec == nil || rec.ID == "" {
		return false
	}
	c := rec.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.papers[c.ID]; ok {
		return false
	}
	s.papers[c.ID] = c
	s.papersResolved++
	return true
}

// Enrich applies fn to a copy of the stored record and stores the copy.
// Identifier and title are restored after fn returns. It returns false if
// the identifier is absent.
func (s *Store) Enrich(id string, fn func(*domain.PaperRecord)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.papers[id]
	if !ok {
		return false
	}
	c := rec.Clone()
	fn(c)
	c.ID = rec.ID
	c.Title = rec.Title
	s.papers[id] = c
	return true
}

// SetReferences writes the resolved reference list and marks the record as
// processed. The references counter grows by len(refs) in the same critical
// section. A nil refs is stored as an empty list.
func (s *Store) SetReferences(id string, refs []string) bool {
	list := make([]string, len(refs))
	copy(list, refs)

	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.papers[id]
	if !ok {
		return false
	}
	rec.References = list
	rec.ReferencesProcessed = true
	s.referencesResolved += int64(len(list))
	return true
}

// RecordUnknownPublisher increments the tally for a publisher without extractor.
func (s *Store) RecordUnknownPublisher(name string) {
	s.mu.Lock()
	s.unknownPublishers[name]++
	s.mu.Unlock()
}

// UnknownPublishers returns a copy of the unknown-publisher tally.
func (s *Store) UnknownPublishers() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int, len(s.unknownPublishers))
	for k, v := range s.unknownPublishers {
		out[k] = v
	}
	return out
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.papers)
}

// Stats returns the current counters.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Papers:             len(s.papers),
		PapersResolved:     s.papersResolved,
		ReferencesResolved: s.referencesResolved,
		UnknownPublishers:  len(s.unknownPublishers),
	}
}

// Snapshot returns a deep copy of the dataset. It reflects exactly the
// mutations that returned before the call.
func (s *Store) Snapshot() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := &Snapshot{
		Papers:             make(map[string]*domain.PaperRecord, len(s.papers)),
		PapersResolved:     s.papersResolved,
		ReferencesResolved: s.referencesResolved,
		UnknownPublishers:  make(map[string]int, len(s.unknownPublishers)),
	}
	for id, rec := range s.papers {
		snap.Papers[id] = rec.Clone()
	}
	for k, v := range s.unknownPublishers {
		snap.UnknownPublishers[k] = v
	}
	return snap
}

// Restore loads a previous snapshot into an empty store so that a resumed
// run keeps the records it already has. It is a no-op on a non-empty store
// and returns false in that case.
func (s *Store) Restore(snap *Snapshot) bool {
	if snap == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.papers) > 0 {
		return false
	}
	for id, rec := range snap.Papers {
		if rec == nil {
			continue
		}
		c := rec.Clone()
		c.ID = id
		s.papers[id] = c
	}
	s.papersResolved = snap.PapersResolved
	s.referencesResolved = snap.ReferencesResolved
	for k, v := range snap.UnknownPublishers {
		s.unknownPublishers[k] = v
	}
	return true
}
