package cooldown

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestLimiter_FirstRequestAdmitted(t *testing.T) {
	l := New(time.Minute)
	d := l.Admit("u1", t0)
	assert.True(t, d.Admitted)
	assert.False(t, d.InFlight)
	assert.Zero(t, d.Remaining)
}

func TestLimiter_DeniedWithinWindow(t *testing.T) {
	tests := []struct {
		name    string
		elapsed time.Duration
		want    int64
	}{
		{"ten seconds", 10 * time.Second, 50},
		{"fractional rounds down", 10*time.Second + 300*time.Millisecond, 49},
		{"just after", time.Millisecond, 59},
		{"almost over", 59*time.Second + 500*time.Millisecond, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New(time.Minute)
			require.True(t, l.Admit("u1", t0).Admitted)
			l.RecordUse("u1", t0)

			d := l.Admit("u1", t0.Add(tt.elapsed))
			assert.False(t, d.Admitted)
			assert.False(t, d.InFlight)
			assert.Equal(t, time.Minute-tt.elapsed, d.Remaining)
			assert.Equal(t, tt.want, d.RemainingSeconds())
		})
	}
}

func TestLimiter_AdmittedAfterWindow(t *testing.T) {
	for _, elapsed := range []time.Duration{time.Minute, time.Minute + time.Nanosecond, time.Hour} {
		l := New(time.Minute)
		require.True(t, l.Admit("u1", t0).Admitted)
		l.RecordUse("u1", t0)

		assert.True(t, l.Admit("u1", t0.Add(elapsed)).Admitted, "elapsed %s", elapsed)
	}
}

func TestLimiter_ReleaseDoesNotConsumeWindow(t *testing.T) {
	l := New(time.Minute)
	require.True(t, l.Admit("u1", t0).Admitted)
	l.Release("u1")

	d := l.Admit("u1", t0.Add(time.Second))
	assert.True(t, d.Admitted)
	assert.Zero(t, l.Len())
}

func TestLimiter_InFlightDeniesSameUser(t *testing.T) {
	l := New(time.Minute)
	require.True(t, l.Admit("u1", t0).Admitted)

	d := l.Admit("u1", t0)
	assert.False(t, d.Admitted)
	assert.True(t, d.InFlight)

	// Other users are unaffected
	assert.True(t, l.Admit("u2", t0).Admitted)
}

func TestLimiter_RecordUseNeverRewinds(t *testing.T) {
	l := New(time.Minute)
	l.RecordUse("u1", t0.Add(30*time.Second))
	l.RecordUse("u1", t0)

	assert.Equal(t, 50*time.Second, l.Remaining("u1", t0.Add(40*time.Second)))
}

func TestLimiter_DefaultWindow(t *testing.T) {
	assert.Equal(t, DefaultWindow, New(0).Window())
}

func TestLimiter_ConcurrentDistinctUsers(t *testing.T) {
	l := New(time.Minute)
	const n = 64

	var wg sync.WaitGroup
	var admitted atomic.Int32
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user := fmt.Sprintf("user-%d", i)
			if l.Admit(user, t0).Admitted {
				admitted.Add(1)
				l.RecordUse(user, t0)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(n), admitted.Load())
	assert.Equal(t, n, l.Len())
}

func TestLimiter_ConcurrentSameUserAdmitsOnce(t *testing.T) {
	l := New(time.Minute)
	const n = 32

	var wg sync.WaitGroup
	var admitted atomic.Int32
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if l.Admit("same", t0).Admitted {
				admitted.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), admitted.Load())
}
