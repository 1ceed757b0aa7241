// Package history keeps the recognition results of the running process.
// Nothing is persisted; a restart starts with an empty history.
package history

import (
	"fmt"
	"sync"
	"time"

	"github.com/Caia-Tech/caia-scribe/pkg/recognition"
	"github.com/google/uuid"
)

// Entry is one past recognition result
type Entry struct {
	ID         string                 `json:"id"`
	RequestID  string                 `json:"request_id"`
	Text       string                 `json:"text"`
	Provenance recognition.Provenance `json:"provenance"`
	Confidence float64                `json:"confidence"`
	Filename   string                 `json:"filename,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
}

// Preview returns the first n characters of the text, the way the history
// list shows entries.
func (e Entry) Preview(n int) string {
	runes := []rune(e.Text)
	if len(runes) <= n {
		return e.Text
	}
	return string(runes[:n]) + "..."
}

// Store is an in-memory, newest first list of entries. Adding an entry
// never removes or reorders existing ones.
type Store struct {
	mu      sync.RWMutex
	entries []Entry // oldest first, reversed on read
	index   map[string]int
	now     func() time.Time
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		index: make(map[string]int),
		now:   time.Now,
	}
}

// Add records a successful result and returns the new entry
func (s *Store) Add(result recognition.Result, filename string) Entry {
	entry := Entry{
		ID:         uuid.New().String(),
		RequestID:  result.RequestID,
		Text:       result.Text,
		Provenance: result.Provenance,
		Confidence: result.Confidence,
		Filename:   filename,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry.CreatedAt = s.now().UTC()
	s.index[entry.ID] = len(s.entries)
	s.entries = append(s.entries, entry)
	return entry
}

// List returns a copy of all entries, most recent first
func (s *Store) List() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Entry, len(s.entries))
	for i, entry := range s.entries {
		out[len(s.entries)-1-i] = entry
	}
	return out
}

// Get returns the entry with the given ID
func (s *Store) Get(id string) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[id]
	if !ok {
		return Entry{}, fmt.Errorf("history entry not found: %s", id)
	}
	return s.entries[i], nil
}

// Len returns the number of entries
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
