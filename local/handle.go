package local

import (
	"errors"
	"maps"
	"runtime"

	"google.golang.org/protobuf/types/known/structpb"
)

// Handle is the calling goroutine's view of one set of goroutine-local
// variables. It stores only its template (name, creation-time arguments and
// Initializer) and the Registry it is bound to; values live in the Registry.
type Handle struct {
	reg  *Registry
	name string
	args Attrs
	init Initializer
}

type HandleOption func(*Handle)

// WithName sets the name recorded in the __name__ meta-key of new bags.
func WithName(name string) HandleOption {
	return func(h *Handle) {
		if name != "" {
			h.name = name
		}
	}
}

// WithArgs stores creation-time arguments replayed by the Initializer each
// time a goroutine's bag materializes.
func WithArgs(args Attrs) HandleOption {
	return func(h *Handle) {
		h.args = args
	}
}

func WithInitializer(init Initializer) HandleOption {
	return func(h *Handle) {
		h.init = init
	}
}

// WithDefaults installs Defaults(defaults) as the Initializer.
func WithDefaults(defaults Attrs) HandleOption {
	return WithInitializer(Defaults(defaults))
}

// NewHandle binds a new Handle to reg. No bag is created until the first write.
func NewHandle(reg *Registry, opts ...HandleOption) (*Handle, error) {
	if reg == nil {
		return nil, ErrNoRegistry
	}

	h := &Handle{reg: reg, name: defaultName}
	for _, opt := range opts {
		opt(h)
	}
	if len(h.args) > 0 && h.init == nil {
		return nil, &UnsupportedConstructionError{Handle: h.name, Args: len(h.args)}
	}
	if err := checkAttrs(h.args); err != nil {
		return nil, err
	}

	// Best effort: the cleanup runs on the runtime's cleanup goroutine, which
	// only owns a bag if something registered one for it.
	runtime.AddCleanup(h, releaseCurrent, reg)
	return h, nil
}

func releaseCurrent(reg *Registry) {
	if key, err := reg.CurrentKey(); err == nil {
		reg.release(key)
	}
}

func (h *Handle) Name() string { return h.name }

func (h *Handle) Registry() *Registry { return h.reg }

// newBag builds an unpublished bag holding seed, then replays the Handle's
// template over it.
func (h *Handle) newBag(seed Attrs) (*Bag, error) {
	if h == nil {
		b := newBag(defaultName)
		maps.Copy(b.attrs, seed)
		return b, nil
	}
	b := newBag(h.name)
	maps.Copy(b.attrs, seed)
	if h.init != nil {
		if err := h.init.Init(b, h.args); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// Get returns the calling goroutine's value for name. Goroutines that never
// wrote through the Handle see Absent rather than an error.
func (h *Handle) Get(name string) (any, error) {
	v, err := h.reg.Get(name)
	var nf *NotFoundError
	if errors.As(err, &nf) {
		return Absent, nil
	}
	return v, err
}

func (h *Handle) Set(name string, value any) error {
	return h.reg.Set(h, name, value)
}

func (h *Handle) Delete(name string) error {
	return h.reg.Delete(name)
}

// Snapshot returns a point-in-time copy of the calling goroutine's attributes,
// without meta-keys. It is empty for goroutines that have no bag.
func (h *Handle) Snapshot() (Attrs, error) {
	attrs, err := h.reg.Snapshot()
	var nf *NotFoundError
	if errors.As(err, &nf) {
		return Attrs{}, nil
	}
	return attrs, err
}

// SnapshotStruct returns Snapshot as a protobuf Struct. Values must be
// representable by structpb.NewValue.
func (h *Handle) SnapshotStruct() (*structpb.Struct, error) {
	attrs, err := h.Snapshot()
	if err != nil {
		return nil, err
	}
	return structpb.NewStruct(attrs)
}

// Materialize registers the calling goroutine's bag from the Handle's template
// if it does not have one yet.
func (h *Handle) Materialize() error {
	key, err := h.reg.CurrentKey()
	if err != nil {
		return err
	}
	_, err = h.materialize(key)
	return err
}

// materialize reports whether it published a new bag for key.
func (h *Handle) materialize(key ThreadKey) (bool, error) {
	if h.reg.Contains(key) {
		return false, nil
	}

	b, err := h.newBag(nil)
	if err != nil {
		return false, err
	}
	return h.reg.publishIfAbsent(key, b), nil
}

// Release tears down the calling goroutine's bag if it has one.
func (h *Handle) Release() error {
	key, err := h.reg.CurrentKey()
	if err != nil {
		return err
	}
	h.reg.release(key)
	return nil
}

// Scope materializes the calling goroutine's bag, runs fn and releases the
// bag afterwards, even if fn panics. A bag that existed before Scope was
// called is left in place.
func (h *Handle) Scope(fn func() error) error {
	key, err := h.reg.CurrentKey()
	if err != nil {
		return err
	}
	created, err := h.materialize(key)
	if err != nil {
		return err
	}
	if created {
		defer h.reg.release(key)
	}

	return fn()
}
