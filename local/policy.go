package local

// Policy vets every write and delete a Registry applies to a bag. Reserved
// names are rejected before a Policy is consulted. Policies are called without
// the Registry lock held, so they may read the Registry.
type Policy interface {
	// CheckSet is called before name is written; exists reports whether the
	// attribute is already present in the goroutine's bag. The first write of
	// a goroutine without a bag is checked with exists false.
	CheckSet(key ThreadKey, name string, value any, exists bool) error
	// CheckDelete is called before name is removed from an existing bag.
	CheckDelete(key ThreadKey, name string) error
}

// DefaultPolicy admits every write and delete.
type DefaultPolicy struct{}

func (DefaultPolicy) CheckSet(ThreadKey, string, any, bool) error { return nil }

func (DefaultPolicy) CheckDelete(ThreadKey, string) error { return nil }

type readOnly struct {
	DefaultPolicy
	names map[string]struct{}
}

// ReadOnly turns names into per-goroutine constants: the first write in each
// bag succeeds, later writes and any delete fail with ReadOnlyError.
func ReadOnly(names ...string) Policy {
	p := readOnly{names: make(map[string]struct{}, len(names))}
	for _, name := range names {
		p.names[name] = struct{}{}
	}
	return p
}

func (p readOnly) CheckSet(_ ThreadKey, name string, _ any, exists bool) error {
	if _, ok := p.names[name]; ok && exists {
		return &ReadOnlyError{Name: name}
	}
	return nil
}

func (p readOnly) CheckDelete(_ ThreadKey, name string) error {
	if _, ok := p.names[name]; ok {
		return &ReadOnlyError{Name: name}
	}
	return nil
}

type chain []Policy

// Policies combines several policies; the first error wins.
func Policies(ps ...Policy) Policy {
	return chain(ps)
}

func (c chain) CheckSet(key ThreadKey, name string, value any, exists bool) error {
	for _, p := range c {
		if err := p.CheckSet(key, name, value, exists); err != nil {
			return err
		}
	}
	return nil
}

func (c chain) CheckDelete(key ThreadKey, name string) error {
	for _, p := range c {
		if err := p.CheckDelete(key, name); err != nil {
			return err
		}
	}
	return nil
}
