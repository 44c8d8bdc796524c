package circuitbreaker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/paystream-hq/paystreamer/pkg/logger"
)

func TestBreakerTripsAtThreshold(t *testing.T) {
	cb := New(true, 3, time.Minute, time.Minute, &logger.EmptyLogger{})

	assert.False(t, cb.RecordFailure())
	assert.False(t, cb.RecordFailure())
	assert.False(t, cb.IsOpen())

	assert.True(t, cb.RecordFailure())
	assert.True(t, cb.IsOpen())
}

func TestBreakerSuccessResetsCount(t *testing.T) {
	cb := New(true, 3, time.Minute, time.Minute, &logger.EmptyLogger{})

	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordSuccess()

	assert.False(t, cb.RecordFailure())
	assert.False(t, cb.IsOpen())
}

func TestBreakerClosesAfterResetTimeout(t *testing.T) {
	cb := New(true, 1, time.Minute, 10*time.Millisecond, &logger.EmptyLogger{})

	assert.True(t, cb.RecordFailure())
	assert.True(t, cb.IsOpen())

	time.Sleep(20 * time.Millisecond)
	assert.False(t, cb.IsOpen())
}

func TestBreakerDisabled(t *testing.T) {
	cb := New(false, 1, time.Minute, time.Minute, &logger.EmptyLogger{})

	assert.False(t, cb.RecordFailure())
	assert.False(t, cb.RecordFailure())
	assert.False(t, cb.IsOpen())
	assert.False(t, cb.IsEnabled())
}

func TestBreakerManualReset(t *testing.T) {
	cb := New(true, 1, time.Minute, time.Hour, &logger.EmptyLogger{})

	cb.RecordFailure()
	assert.True(t, cb.IsOpen())

	cb.Reset()
	assert.False(t, cb.IsOpen())

	count, tripped := cb.State()
	assert.Zero(t, count)
	assert.False(t, tripped)
}
