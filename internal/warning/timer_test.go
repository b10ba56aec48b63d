package warning

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	labels []string
	fired  []int
}

func (r *recorder) label(l string) {
	r.mu.Lock()
	r.labels = append(r.labels, l)
	r.mu.Unlock()
}

func (r *recorder) fire(m int) {
	r.mu.Lock()
	r.fired = append(r.fired, m)
	r.mu.Unlock()
}

func (r *recorder) snapshot() ([]string, []int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.labels...), append([]int(nil), r.fired...)
}

func newTimer(r *recorder) *Timer {
	return New(Options{Unit: 10 * time.Millisecond, OnLabel: r.label, OnFire: r.fire})
}

func TestTimer_CountsDownAndFires(t *testing.T) {
	r := &recorder{}
	tm := newTimer(r)
	defer tm.Close()

	tm.Set(3)
	require.Eventually(t, func() bool {
		_, fired := r.snapshot()
		return len(fired) == 1
	}, 2*time.Second, 5*time.Millisecond)

	labels, fired := r.snapshot()
	assert.Equal(t, []string{"3m", "2m", "1m", "X"}, labels)
	assert.Equal(t, []int{3}, fired)

	_, running := tm.Remaining()
	assert.False(t, running)
}

func TestTimer_Disable(t *testing.T) {
	r := &recorder{}
	tm := New(Options{Unit: time.Hour, OnLabel: r.label, OnFire: r.fire})

	tm.Set(10)
	left, running := tm.Remaining()
	assert.Equal(t, 10, left)
	assert.True(t, running)

	tm.Disable()
	_, running = tm.Remaining()
	assert.False(t, running)

	labels, fired := r.snapshot()
	assert.Equal(t, []string{"10m", "X"}, labels)
	assert.Empty(t, fired)
}

func TestTimer_SetReplacesRunning(t *testing.T) {
	r := &recorder{}
	tm := New(Options{Unit: time.Hour, OnLabel: r.label})
	defer tm.Close()

	tm.Set(30)
	tm.Set(5)

	left, running := tm.Remaining()
	assert.True(t, running)
	assert.Equal(t, 5, left)
}

func TestTimer_NonPositiveDisables(t *testing.T) {
	r := &recorder{}
	tm := New(Options{Unit: time.Hour, OnLabel: r.label, IdleLabel: "Off"})

	tm.Set(0)
	labels, _ := r.snapshot()
	assert.Equal(t, []string{"Off"}, labels)
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "15m", Label(15))
}
