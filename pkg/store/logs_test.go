package store

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/paystream-hq/paystreamer/pkg/models"
)

func TestLogStoreAppendOrder(t *testing.T) {
	s := NewLogStore()
	now := time.Now()

	// Equal timestamps keep insertion order.
	for i := 0; i < 5; i++ {
		s.Append(models.ExecutionLog{
			IntentID:  "a",
			Timestamp: now,
			Level:     models.LogInfo,
			Message:   fmt.Sprintf("entry %d", i),
		})
	}

	entries := s.ForIntent("a")
	assert.Len(t, entries, 5)
	for i, entry := range entries {
		assert.Equal(t, fmt.Sprintf("entry %d", i), entry.Message)
	}

	assert.Empty(t, s.ForIntent("missing"))
}

func TestLogStorePerIntentIsolation(t *testing.T) {
	s := NewLogStore()

	s.Append(models.ExecutionLog{IntentID: "a", Message: "for a"})
	s.Append(models.ExecutionLog{IntentID: "b", Message: "for b"})

	assert.Len(t, s.ForIntent("a"), 1)
	assert.Len(t, s.ForIntent("b"), 1)
	assert.Equal(t, "for a", s.ForIntent("a")[0].Message)
}

func TestLogStoreReturnsCopy(t *testing.T) {
	s := NewLogStore()
	s.Append(models.ExecutionLog{IntentID: "a", Message: "original"})

	entries := s.ForIntent("a")
	entries[0].Message = "mutated"

	assert.Equal(t, "original", s.ForIntent("a")[0].Message)
}

func TestLogStoreConcurrentAppend(t *testing.T) {
	s := NewLogStore()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Append(models.ExecutionLog{IntentID: "a", Message: "entry"})
		}()
	}
	wg.Wait()

	assert.Len(t, s.ForIntent("a"), 50)
}
