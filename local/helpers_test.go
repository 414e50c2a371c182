package local

import "sync/atomic"

// fakeThreads lets a single test goroutine pretend to be any execution context.
type fakeThreads struct {
	key atomic.Uint64
}

func (f *fakeThreads) identity() any { return ThreadKey(f.key.Load()) }

func (f *fakeThreads) switchTo(k ThreadKey) { f.key.Store(uint64(k)) }

func newFakeRegistry(opts ...RegistryOption) (*Registry, *fakeThreads) {
	threads := &fakeThreads{}
	threads.switchTo(1)
	opts = append([]RegistryOption{WithIdentity(threads.identity)}, opts...)
	return NewRegistry(opts...), threads
}
