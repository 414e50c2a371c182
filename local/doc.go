// Package local provides goroutine-local variable storage: a shared Handle whose
// attributes resolve to values private to the calling goroutine.
//
// A Registry maps goroutine identities to attribute bags. A Handle is a view of
// the calling goroutine's bag; the bag is created lazily on the first write and
// torn down explicitly with Release, Unregister, a Scope ending, or a sweep of
// goroutines that no longer exist.
//
//	reg := local.NewRegistry()
//	data, _ := local.NewHandle(reg)
//
//	_ = data.Set("results", 99)
//	v, _ := data.Get("results") // 99
//
//	go func() {
//		v, _ := data.Get("results") // local.Absent, this goroutine never wrote
//		_ = data.Set("results", 0)  // does not touch the value above
//	}()
//
// Values are never shared between goroutines through a Handle. Goroutines started
// from a goroutine that owns a bag do not inherit it; use a Lineage identity when
// a group of goroutines should share one bag.
package local
