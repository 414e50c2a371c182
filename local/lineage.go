package local

import (
	"sync/atomic"

	"github.com/jtolds/gls"
)

type lineageKey struct{}

// Lineage hands out goroutine-local tokens that follow the call tree instead
// of a single goroutine. A token is bound for the extent of Run and is
// inherited by goroutines started with Go, so the whole group shares one bag
// in a Registry built with WithIdentity(l.Identity()).
type Lineage struct {
	mgr  *gls.ContextManager
	next atomic.Uint64
}

func NewLineage() *Lineage {
	return &Lineage{mgr: gls.NewContextManager()}
}

// Run calls fn with a fresh token bound to it and returns that token.
func (l *Lineage) Run(fn func()) ThreadKey {
	key := ThreadKey(l.next.Add(1))
	l.mgr.SetValues(gls.Values{lineageKey{}: key}, fn)
	return key
}

// Go starts fn on a new goroutine that keeps the caller's token.
func (l *Lineage) Go(fn func()) {
	gls.Go(fn)
}

// Current returns the token bound to the calling goroutine.
func (l *Lineage) Current() (ThreadKey, bool) {
	if v, ok := l.mgr.GetValue(lineageKey{}); ok && v != nil {
		return v.(ThreadKey), true
	}
	return 0, false
}

// Identity reports the current token; outside Run it yields nil, which
// registries reject with InvalidIdentityError.
func (l *Lineage) Identity() IdentityFunc {
	return func() any {
		if key, ok := l.Current(); ok {
			return key
		}
		return nil
	}
}
