package local

import (
	"log/slog"
	"maps"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/Charnelx/thread-local/internal/goid"
	"github.com/Charnelx/thread-local/internal/log"
)

var registryIDs atomic.Uint64

// Registry owns the mapping from ThreadKey to attribute bag.
//
// Structural changes and bag writes are serialized by one lock; reads share it.
// Initializers and policies run outside the lock; policies may read the
// Registry. The liveness source runs under it, see WithLiveness.
type Registry struct {
	id       uint64
	identity IdentityFunc
	policy   Policy
	live     func() []ThreadKey

	mu   sync.RWMutex
	bags map[ThreadKey]*Bag
}

type RegistryOption func(*Registry)

// WithIdentity replaces the native goroutine identity. Sweep is disabled for
// custom identities unless WithLiveness is supplied as well.
func WithIdentity(fn IdentityFunc) RegistryOption {
	return func(r *Registry) {
		if fn != nil {
			r.identity = fn
			r.live = nil
		}
	}
}

func WithPolicy(p Policy) RegistryOption {
	return func(r *Registry) {
		if p != nil {
			r.policy = p
		}
	}
}

// WithLiveness tells Sweep which keys still belong to running execution contexts.
// fn is called with the Registry locked and must not call back into it.
func WithLiveness(fn func() []ThreadKey) RegistryOption {
	return func(r *Registry) {
		r.live = fn
	}
}

func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		id:       registryIDs.Add(1),
		identity: NativeIdentity,
		policy:   DefaultPolicy{},
		live:     liveGoroutines,
		bags:     make(map[ThreadKey]*Bag),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func liveGoroutines() []ThreadKey {
	ids := goid.Live()
	keys := make([]ThreadKey, len(ids))
	for i, id := range ids {
		keys[i] = ThreadKey(id)
	}
	return keys
}

// ID is unique per Registry within the process.
func (r *Registry) ID() uint64 { return r.id }

// CurrentKey resolves the calling execution context through the identity function.
func (r *Registry) CurrentKey() (ThreadKey, error) {
	return NormalizeKey(r.identity())
}

// Register installs a copy of attrs as the calling goroutine's bag, replacing
// any bag it already had.
func (r *Registry) Register(attrs Attrs) error {
	key, err := r.CurrentKey()
	if err != nil {
		return err
	}
	return r.RegisterKey(key, attrs)
}

// RegisterKey installs a copy of attrs as the bag for key, replacing any
// existing bag.
func (r *Registry) RegisterKey(key ThreadKey, attrs Attrs) error {
	if err := checkAttrs(attrs); err != nil {
		return err
	}
	b := newBag(defaultName)
	maps.Copy(b.attrs, attrs)
	r.publish(key, b)
	return nil
}

func (r *Registry) publish(key ThreadKey, b *Bag) {
	r.mu.Lock()
	r.bags[key] = b
	r.mu.Unlock()

	log.Debug("bag registered",
		slog.Uint64("registry", r.id),
		slog.Uint64("key", uint64(key)),
		slog.String("name", b.name))
}

// publishIfAbsent installs b for key unless a bag is already registered.
func (r *Registry) publishIfAbsent(key ThreadKey, b *Bag) bool {
	r.mu.Lock()
	_, exists := r.bags[key]
	if !exists {
		r.bags[key] = b
	}
	r.mu.Unlock()

	if !exists {
		log.Debug("bag materialized",
			slog.Uint64("registry", r.id),
			slog.Uint64("key", uint64(key)),
			slog.String("name", b.name))
	}
	return !exists
}

// Unregister removes the calling goroutine's bag.
func (r *Registry) Unregister() error {
	key, err := r.CurrentKey()
	if err != nil {
		return err
	}
	return r.UnregisterKey(key)
}

// UnregisterKey removes the bag registered for key. Integers and decimal
// strings are accepted as well as ThreadKey values.
func (r *Registry) UnregisterKey(key any) error {
	k, err := NormalizeKey(key)
	if err != nil {
		return err
	}

	r.mu.Lock()
	_, ok := r.bags[k]
	delete(r.bags, k)
	r.mu.Unlock()

	if !ok {
		return &NotFoundError{Key: k}
	}
	log.Debug("bag unregistered",
		slog.Uint64("registry", r.id),
		slog.Uint64("key", uint64(k)))
	return nil
}

// Contains reports whether a bag is registered for item. A *Handle stands for
// the calling goroutine; keys that cannot be normalized are never contained.
func (r *Registry) Contains(item any) bool {
	var (
		key ThreadKey
		err error
	)
	if _, ok := item.(*Handle); ok {
		key, err = r.CurrentKey()
	} else {
		key, err = NormalizeKey(item)
	}
	if err != nil {
		return false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.bags[key]
	return ok
}

// Get returns the calling goroutine's value for name, or Absent when the
// attribute is not set. A goroutine without a bag gets NotFoundError.
func (r *Registry) Get(name string) (any, error) {
	if IsReserved(name) {
		return nil, &ReservedNameError{Op: opRead, Name: name}
	}
	key, err := r.CurrentKey()
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.bags[key]
	if !ok {
		return nil, &NotFoundError{Key: key}
	}
	if v, ok := b.attrs[name]; ok {
		return v, nil
	}
	return Absent, nil
}

// Set writes name in the calling goroutine's bag. A goroutine without a bag
// gets a new one holding name -> value, over which h's template is replayed
// before the bag is published, so the template has the last word.
//
// The Policy is consulted without holding the lock. If the goroutine's bag was
// replaced or removed by a forced RegisterKey or UnregisterKey meanwhile, the
// write is checked again against the current state.
func (r *Registry) Set(h *Handle, name string, value any) error {
	if IsReserved(name) {
		return &ReservedNameError{Op: opWrite, Name: name}
	}
	key, err := r.CurrentKey()
	if err != nil {
		return err
	}

	for {
		r.mu.RLock()
		b, ok := r.bags[key]
		exists := false
		if ok {
			_, exists = b.attrs[name]
		}
		r.mu.RUnlock()

		if err := r.policy.CheckSet(key, name, value, exists); err != nil {
			return err
		}

		var fresh *Bag
		if !ok {
			if fresh, err = h.newBag(Attrs{name: value}); err != nil {
				return err
			}
		}

		r.mu.Lock()
		if r.bags[key] != b {
			r.mu.Unlock()
			continue
		}
		if ok {
			b.attrs[name] = value
		} else {
			r.bags[key] = fresh
		}
		r.mu.Unlock()

		if !ok {
			log.Debug("bag materialized",
				slog.Uint64("registry", r.id),
				slog.Uint64("key", uint64(key)),
				slog.String("name", fresh.name))
		}
		return nil
	}
}

// Delete removes name from the calling goroutine's bag.
func (r *Registry) Delete(name string) error {
	if IsReserved(name) {
		return &ReservedNameError{Op: opDelete, Name: name}
	}
	key, err := r.CurrentKey()
	if err != nil {
		return err
	}

	for {
		r.mu.RLock()
		b, ok := r.bags[key]
		exists := false
		if ok {
			_, exists = b.attrs[name]
		}
		r.mu.RUnlock()

		if !ok {
			return &NotFoundError{Key: key}
		}
		if !exists {
			return &NotFoundError{Key: key, Name: name}
		}
		if err := r.policy.CheckDelete(key, name); err != nil {
			return err
		}

		r.mu.Lock()
		if r.bags[key] != b {
			r.mu.Unlock()
			continue
		}
		delete(b.attrs, name)
		r.mu.Unlock()
		return nil
	}
}

// Snapshot copies the calling goroutine's attributes.
func (r *Registry) Snapshot() (Attrs, error) {
	key, err := r.CurrentKey()
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.bags[key]
	if !ok {
		return nil, &NotFoundError{Key: key}
	}
	return b.Snapshot(), nil
}

// Len returns the number of registered bags.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bags)
}

// Keys returns the registered keys in ascending order.
func (r *Registry) Keys() []ThreadKey {
	r.mu.RLock()
	keys := make([]ThreadKey, 0, len(r.bags))
	for k := range r.bags {
		keys = append(keys, k)
	}
	r.mu.RUnlock()

	slices.Sort(keys)
	return keys
}

// Scope registers seed as the calling goroutine's bag, runs fn and puts back
// whatever was registered before, even if fn panics.
func (r *Registry) Scope(seed Attrs, fn func() error) error {
	key, err := r.CurrentKey()
	if err != nil {
		return err
	}
	if err := checkAttrs(seed); err != nil {
		return err
	}

	b := newBag(defaultName)
	maps.Copy(b.attrs, seed)

	r.mu.Lock()
	prev, hadPrev := r.bags[key]
	r.bags[key] = b
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		if hadPrev {
			r.bags[key] = prev
		} else {
			delete(r.bags, key)
		}
		r.mu.Unlock()
	}()

	return fn()
}

// release drops the bag for key if there is one.
func (r *Registry) release(key ThreadKey) bool {
	r.mu.Lock()
	_, ok := r.bags[key]
	delete(r.bags, key)
	r.mu.Unlock()

	if ok {
		log.Debug("bag released",
			slog.Uint64("registry", r.id),
			slog.Uint64("key", uint64(key)))
	}
	return ok
}
