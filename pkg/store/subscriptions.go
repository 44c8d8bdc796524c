package store

import (
	"strings"
	"sync"

	"github.com/paystream-hq/paystreamer/pkg/errs"
	"github.com/paystream-hq/paystreamer/pkg/models"
)

// SubscriptionStore owns all subscription records.
type SubscriptionStore struct {
	mu   sync.RWMutex
	subs map[string]models.Subscription
}

// NewSubscriptionStore creates an empty subscription store.
func NewSubscriptionStore() *SubscriptionStore {
	return &SubscriptionStore{
		subs: make(map[string]models.Subscription),
	}
}

// Insert adds a new subscription record.
func (s *SubscriptionStore) Insert(sub models.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.subs[sub.ID]; exists {
		return errs.Validationf("subscription %s already exists", sub.ID)
	}
	s.subs[sub.ID] = sub
	return nil
}

// Get returns a copy of the subscription with the given id.
func (s *SubscriptionStore) Get(id string) (models.Subscription, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.subs[id]
	return sub, ok
}

// List returns a snapshot of all subscriptions.
func (s *SubscriptionStore) List() []models.Subscription {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Subscription, 0, len(s.subs))
	for _, sub := range s.subs {
		out = append(out, sub)
	}
	return out
}

// ListActive returns a snapshot of all active subscriptions.
func (s *SubscriptionStore) ListActive() []models.Subscription {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Subscription
	for _, sub := range s.subs {
		if sub.Status == models.SubscriptionActive {
			out = append(out, sub)
		}
	}
	return out
}

// ListByCustomer returns a snapshot of all subscriptions for the given
// customer address, matched case-insensitively.
func (s *SubscriptionStore) ListByCustomer(customer string) []models.Subscription {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Subscription
	for _, sub := range s.subs {
		if strings.EqualFold(sub.CustomerAddress, customer) {
			out = append(out, sub)
		}
	}
	return out
}

// Update applies fn to the stored record under the store lock, serializing
// schedule advancement against cancellation.
func (s *SubscriptionStore) Update(id string, fn func(*models.Subscription)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subs[id]
	if !ok {
		return errs.NotFoundf("subscription %s", id)
	}
	fn(&sub)
	s.subs[id] = sub
	return nil
}
