package local

import "maps"

const (
	// NameKey is the meta-key holding the name of the Handle that created a bag.
	NameKey = "__name__"
	// DictKey is the meta-key standing for the bag's attribute mapping itself.
	DictKey = "__dict__"

	defaultName = "Local"

	opRead   = "read"
	opWrite  = "write"
	opDelete = "delete"
)

// Attrs maps attribute names to caller-supplied values.
type Attrs map[string]any

type absentValue struct{}

func (absentValue) String() string { return "<absent>" }

// Absent is returned for attributes that are not set in the calling goroutine's bag.
var Absent any = absentValue{}

// IsAbsent reports whether v is the Absent sentinel.
func IsAbsent(v any) bool {
	_, ok := v.(absentValue)
	return ok
}

// IsReserved reports whether name is one of the bag's meta-keys.
func IsReserved(name string) bool {
	return name == NameKey || name == DictKey
}

// Bag is the attribute set of one goroutine. A Registry hands bags to
// Initializers before they are published; a Bag is not safe for concurrent use.
type Bag struct {
	name  string
	attrs Attrs
}

func newBag(name string) *Bag {
	if name == "" {
		name = defaultName
	}
	return &Bag{name: name, attrs: Attrs{}}
}

// Name returns the name of the Handle kind that materialized the bag.
func (b *Bag) Name() string { return b.name }

func (b *Bag) Get(name string) (any, bool) {
	v, ok := b.attrs[name]
	return v, ok
}

func (b *Bag) Set(name string, value any) error {
	if IsReserved(name) {
		return &ReservedNameError{Op: opWrite, Name: name}
	}
	b.attrs[name] = value
	return nil
}

// Delete removes name and reports whether it was present.
func (b *Bag) Delete(name string) bool {
	if _, ok := b.attrs[name]; !ok {
		return false
	}
	delete(b.attrs, name)
	return true
}

func (b *Bag) Len() int { return len(b.attrs) }

// Snapshot returns a copy of the user-visible attributes.
func (b *Bag) Snapshot() Attrs {
	return maps.Clone(b.attrs)
}

// checkAttrs rejects mappings that try to smuggle in a meta-key.
func checkAttrs(attrs Attrs) error {
	for name := range attrs {
		if IsReserved(name) {
			return &ReservedNameError{Op: opWrite, Name: name}
		}
	}
	return nil
}
