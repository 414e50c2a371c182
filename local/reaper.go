package local

import (
	"log/slog"
	"time"

	"github.com/Charnelx/thread-local/internal/log"
	"github.com/Charnelx/thread-local/internal/polling"
)

// Sweep unregisters the bags of execution contexts that no longer exist and
// returns how many were removed. It does nothing when the Registry has no
// liveness source, which is the case for custom identities.
func (r *Registry) Sweep() int {
	if r.live == nil {
		return 0
	}

	r.mu.Lock()
	// Liveness is sampled under the lock: a context that registered before
	// the sample is either in it or gone.
	live := make(map[ThreadKey]struct{})
	for _, k := range r.live() {
		live[k] = struct{}{}
	}
	removed := 0
	for k := range r.bags {
		if _, ok := live[k]; !ok {
			delete(r.bags, k)
			removed++
		}
	}
	r.mu.Unlock()

	if removed > 0 {
		log.Debug("swept bags of finished goroutines",
			slog.Uint64("registry", r.id),
			slog.Int("removed", removed))
	}
	return removed
}

// Reaper periodically sweeps a Registry.
type Reaper struct {
	routine *polling.Routine
}

// StartReaper sweeps r every interval until Stop is called. A zero interval
// uses the configured sweep interval.
func (r *Registry) StartReaper(interval time.Duration) *Reaper {
	if interval <= 0 {
		interval = SweepInterval()
	}
	log.Debug("reaper started",
		slog.Uint64("registry", r.id),
		slog.Duration("interval", interval))

	return &Reaper{routine: polling.Start(interval, func() { r.Sweep() })}
}

func (rp *Reaper) Stop() {
	rp.routine.Stop()
}

func (rp *Reaper) Reset(interval time.Duration) {
	rp.routine.Reset(interval)
}
