package reconciler_service

import (
	"sync"
	"time"
)

// Debouncer откладывает вызов на окно по ключу: повторный Trigger
// по тому же ключу сбрасывает таймер, срабатывает только последний
type Debouncer struct {
	mu     sync.Mutex
	window time.Duration
	timers map[string]*time.Timer
	closed bool
}

func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{
		window: window,
		timers: make(map[string]*time.Timer),
	}
}

// Trigger планирует fn через окно. Возвращает отмену запланированного вызова
func (d *Debouncer) Trigger(key string, fn func()) func() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return func() {}
	}

	if existing, ok := d.timers[key]; ok {
		existing.Stop()
	}

	var timer *time.Timer
	timer = time.AfterFunc(d.window, func() {
		d.mu.Lock()
		// Таймер мог быть замещен новым Trigger по ключу
		if d.closed || d.timers[key] != timer {
			d.mu.Unlock()
			return
		}
		delete(d.timers, key)
		d.mu.Unlock()

		fn()
	})
	d.timers[key] = timer

	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		if d.timers[key] == timer {
			timer.Stop()
			delete(d.timers, key)
		}
	}
}

// Stop отменяет все запланированные вызовы
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.closed = true
	for key, timer := range d.timers {
		timer.Stop()
		delete(d.timers, key)
	}
}

// Pending возвращает число запланированных вызовов
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.timers)
}
