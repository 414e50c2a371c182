package local

import "fmt"

// Proxy builds Handles bound to one Registry, all sharing the same options.
type Proxy struct {
	reg  *Registry
	opts []HandleOption
}

func NewProxy(reg *Registry, opts ...HandleOption) *Proxy {
	return &Proxy{reg: reg, opts: opts}
}

// New returns a Handle carrying args as its creation-time arguments.
func (p *Proxy) New(args Attrs) (*Handle, error) {
	if p == nil || p.reg == nil {
		return nil, ErrNoRegistry
	}
	opts := append([]HandleOption(nil), p.opts...)
	if len(args) > 0 {
		opts = append(opts, WithArgs(args))
	}
	return NewHandle(p.reg, opts...)
}

// Field is a typed accessor for one attribute of a Handle.
type Field[T any] struct {
	h    *Handle
	name string
}

func NewField[T any](h *Handle, name string) Field[T] {
	return Field[T]{h: h, name: name}
}

func (f Field[T]) Name() string { return f.name }

// Get returns the calling goroutine's value; ok is false when it is absent.
func (f Field[T]) Get() (value T, ok bool, err error) {
	v, err := f.h.Get(f.name)
	if err != nil || IsAbsent(v) {
		return value, false, err
	}
	typed, ok := v.(T)
	if !ok {
		return value, false, &FieldTypeError{
			Name: f.name,
			Want: fmt.Sprintf("%T", value),
			Got:  fmt.Sprintf("%T", v),
		}
	}
	return typed, true, nil
}

func (f Field[T]) Set(value T) error {
	return f.h.Set(f.name, value)
}

func (f Field[T]) Delete() error {
	return f.h.Delete(f.name)
}
