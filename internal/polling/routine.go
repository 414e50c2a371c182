package polling

import (
	"sync"
	"time"
)

// Routine calls a function on a fixed interval from a single background goroutine.
type Routine struct {
	ticker   *time.Ticker
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	mu       sync.Mutex
	interval time.Duration
}

func Start(interval time.Duration, fn func()) *Routine {
	r := &Routine{
		ticker:   time.NewTicker(interval),
		stopChan: make(chan struct{}),
		interval: interval,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.ticker.Stop()
		for {
			select {
			case <-r.ticker.C:
				fn()
			case <-r.stopChan:
				return
			}
		}
	}()

	return r
}

// Stop halts the routine and waits for an in-flight call to return.
// Calling Stop more than once is a no-op.
func (r *Routine) Stop() {
	r.stopOnce.Do(func() { close(r.stopChan) })
	r.wg.Wait()
}

func (r *Routine) Reset(interval time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.interval = interval
	r.ticker.Reset(interval)
}

func (r *Routine) Interval() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.interval
}
