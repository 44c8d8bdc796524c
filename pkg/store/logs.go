package store

import (
	"sync"

	"github.com/paystream-hq/paystreamer/pkg/models"
)

// LogStore is the append-only execution log. Entries are kept in insertion
// order per intent; insertion order is the tiebreak for equal timestamps.
type LogStore struct {
	mu   sync.RWMutex
	logs map[string][]models.ExecutionLog
}

// NewLogStore creates an empty log store.
func NewLogStore() *LogStore {
	return &LogStore{
		logs: make(map[string][]models.ExecutionLog),
	}
}

// Append records an entry for its intent. Entries are never mutated or deleted.
func (s *LogStore) Append(entry models.ExecutionLog) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logs[entry.IntentID] = append(s.logs[entry.IntentID], entry)
}

// ForIntent returns a copy of all entries recorded for the given intent,
// in insertion order.
func (s *LogStore) ForIntent(intentID string) []models.ExecutionLog {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.logs[intentID]
	out := make([]models.ExecutionLog, len(entries))
	copy(out, entries)
	return out
}
