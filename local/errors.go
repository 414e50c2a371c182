package local

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is matched by NotFoundError.
	ErrNotFound = errors.New("local: not found")
	// ErrReservedName is matched by ReservedNameError.
	ErrReservedName = errors.New("local: reserved attribute name")
	// ErrInvalidIdentity is matched by InvalidIdentityError.
	ErrInvalidIdentity = errors.New("local: invalid identity")
	// ErrUnsupportedConstruction is matched by UnsupportedConstructionError.
	ErrUnsupportedConstruction = errors.New("local: initialization arguments are not supported")
	// ErrReadOnly is matched by ReadOnlyError.
	ErrReadOnly = errors.New("local: attribute is read-only")
	// ErrNoRegistry is returned when a Handle or Proxy is built without a Registry.
	ErrNoRegistry = errors.New("local: no registry provided to manage local object")
)

// NotFoundError reports a missing bag, or a missing attribute inside a bag.
// Name is empty when the goroutine has no bag at all.
type NotFoundError struct {
	Key  ThreadKey
	Name string
}

func (e *NotFoundError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("local: no bag registered for key %d", e.Key)
	}
	return fmt.Sprintf("local: attribute %q not found for key %d", e.Name, e.Key)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ReservedNameError reports an attempt to touch one of the bag's meta-keys.
// A rejected delete also matches ErrNotFound: the meta-keys are never visible
// as attributes, so from the caller's side there is nothing to delete.
type ReservedNameError struct {
	Op   string
	Name string
}

func (e *ReservedNameError) Error() string {
	return fmt.Sprintf("local: cannot %s reserved attribute %q", e.Op, e.Name)
}

func (e *ReservedNameError) Is(target error) bool {
	return target == ErrReservedName || (target == ErrNotFound && e.Op == opDelete)
}

// InvalidIdentityError reports an identity that cannot be turned into a ThreadKey.
type InvalidIdentityError struct {
	Value any
}

func (e *InvalidIdentityError) Error() string {
	return fmt.Sprintf("local: identity %v (%T) cannot be used as a thread key", e.Value, e.Value)
}

func (e *InvalidIdentityError) Is(target error) bool { return target == ErrInvalidIdentity }

// UnsupportedConstructionError reports creation-time arguments given to a Handle
// that has no Initializer to consume them.
type UnsupportedConstructionError struct {
	Handle string
	Args   int
}

func (e *UnsupportedConstructionError) Error() string {
	return fmt.Sprintf("local: %s got %d initialization arguments but defines no initializer", e.Handle, e.Args)
}

func (e *UnsupportedConstructionError) Is(target error) bool {
	return target == ErrUnsupportedConstruction
}

// ReadOnlyError is returned by the ReadOnly policy.
type ReadOnlyError struct {
	Name string
}

func (e *ReadOnlyError) Error() string {
	return fmt.Sprintf("local: attribute %q is read-only", e.Name)
}

func (e *ReadOnlyError) Is(target error) bool { return target == ErrReadOnly }

// FieldTypeError reports a stored value whose type does not match a Field.
type FieldTypeError struct {
	Name string
	Want string
	Got  string
}

func (e *FieldTypeError) Error() string {
	return fmt.Sprintf("local: attribute %q holds %s, not %s", e.Name, e.Got, e.Want)
}
