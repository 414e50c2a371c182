package local

// Initializer prepares a goroutine's bag the first time it materializes,
// using the creation-time arguments stored in the Handle. When a write
// triggered the materialization, the bag already holds that write and the
// Initializer may overwrite it. It runs before the bag is published and must
// not write through the Registry.
type Initializer interface {
	Init(b *Bag, args Attrs) error
}

type InitializerFunc func(b *Bag, args Attrs) error

func (f InitializerFunc) Init(b *Bag, args Attrs) error { return f(b, args) }

// Defaults seeds every new bag with defaults, then with the Handle's
// creation-time arguments, so arguments override defaults.
func Defaults(defaults Attrs) Initializer {
	return InitializerFunc(func(b *Bag, args Attrs) error {
		for name, v := range defaults {
			if err := b.Set(name, v); err != nil {
				return err
			}
		}
		for name, v := range args {
			if err := b.Set(name, v); err != nil {
				return err
			}
		}
		return nil
	})
}
