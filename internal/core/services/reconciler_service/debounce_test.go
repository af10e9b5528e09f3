package reconciler_service

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDebouncer_CoalescesTriggers(t *testing.T) {
	debouncer := NewDebouncer(50 * time.Millisecond)
	defer debouncer.Stop()

	var calls int32
	for i := 0; i < 5; i++ {
		debouncer.Trigger("key", func() {
			atomic.AddInt32(&calls, 1)
		})
	}

	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&calls) == 1
	}, time.Second, 10*time.Millisecond)

	// Повторных срабатываний нет
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestDebouncer_IndependentKeys(t *testing.T) {
	debouncer := NewDebouncer(50 * time.Millisecond)
	defer debouncer.Stop()

	var calls int32
	debouncer.Trigger("a", func() { atomic.AddInt32(&calls, 1) })
	debouncer.Trigger("b", func() { atomic.AddInt32(&calls, 1) })

	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&calls) == 2
	}, time.Second, 10*time.Millisecond)
}

func TestDebouncer_Cancel(t *testing.T) {
	debouncer := NewDebouncer(50 * time.Millisecond)
	defer debouncer.Stop()

	var calls int32
	cancel := debouncer.Trigger("key", func() {
		atomic.AddInt32(&calls, 1)
	})
	cancel()

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
	assert.Equal(t, 0, debouncer.Pending())
}

func TestDebouncer_StopDropsPending(t *testing.T) {
	debouncer := NewDebouncer(50 * time.Millisecond)

	var calls int32
	debouncer.Trigger("key", func() {
		atomic.AddInt32(&calls, 1)
	})
	debouncer.Stop()

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}
