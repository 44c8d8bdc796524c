// Package store holds the authoritative in-memory records for intents,
// subscriptions and execution logs. All stores are safe for concurrent use
// from the HTTP handlers and both background loops; mutations happen under
// the store lock so read-modify-write sequences on one record are serialized.
package store

import (
	"strings"
	"sync"

	"github.com/paystream-hq/paystreamer/pkg/errs"
	"github.com/paystream-hq/paystreamer/pkg/models"
)

// IntentStore owns all intent records.
type IntentStore struct {
	mu      sync.RWMutex
	intents map[string]models.Intent
}

// NewIntentStore creates an empty intent store.
func NewIntentStore() *IntentStore {
	return &IntentStore{
		intents: make(map[string]models.Intent),
	}
}

// Insert adds a new intent record.
func (s *IntentStore) Insert(intent models.Intent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.intents[intent.ID]; exists {
		return errs.Validationf("intent %s already exists", intent.ID)
	}
	s.intents[intent.ID] = intent
	return nil
}

// Get returns a copy of the intent with the given id.
func (s *IntentStore) Get(id string) (models.Intent, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	intent, ok := s.intents[id]
	return intent, ok
}

// List returns a snapshot of all intents.
func (s *IntentStore) List() []models.Intent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Intent, 0, len(s.intents))
	for _, intent := range s.intents {
		out = append(out, intent)
	}
	return out
}

// ListByStatus returns a snapshot of all intents in the given status.
func (s *IntentStore) ListByStatus(status models.IntentStatus) []models.Intent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Intent
	for _, intent := range s.intents {
		if intent.Status == status {
			out = append(out, intent)
		}
	}
	return out
}

// ListByOwner returns a snapshot of all intents owned by the given address.
// Addresses are case-insensitive identifiers.
func (s *IntentStore) ListByOwner(owner string) []models.Intent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Intent
	for _, intent := range s.intents {
		if strings.EqualFold(intent.Owner, owner) {
			out = append(out, intent)
		}
	}
	return out
}

// Update applies fn to the stored record under the store lock. The update is
// atomic with respect to any other mutation of the same intent.
func (s *IntentStore) Update(id string, fn func(*models.Intent)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	intent, ok := s.intents[id]
	if !ok {
		return errs.NotFoundf("intent %s", id)
	}
	fn(&intent)
	s.intents[id] = intent
	return nil
}

// CompareAndSetStatus atomically moves the intent from one status to another.
// It reports false, without mutation, when the stored status is not `from`,
// meaning the caller lost the race to a concurrent attempt.
func (s *IntentStore) CompareAndSetStatus(id string, from, to models.IntentStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	intent, ok := s.intents[id]
	if !ok {
		return false, errs.NotFoundf("intent %s", id)
	}
	if intent.Status != from {
		return false, nil
	}
	intent.Status = to
	s.intents[id] = intent
	return true, nil
}
