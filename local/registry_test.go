package local

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_LazyMaterialization(t *testing.T) {
	reg, _ := newFakeRegistry()
	h, err := NewHandle(reg)
	require.NoError(t, err)

	assert.False(t, reg.Contains(ThreadKey(1)), "a new handle must not register anything")
	assert.Equal(t, 0, reg.Len())

	require.NoError(t, h.Set("x", 1))

	assert.True(t, reg.Contains(ThreadKey(1)))
	assert.True(t, reg.Contains(h), "a handle stands for the calling context")
	assert.Equal(t, 1, reg.Len())
}

func TestRegistry_GetWithoutBag(t *testing.T) {
	reg, _ := newFakeRegistry()

	_, err := reg.Get("x")
	require.ErrorIs(t, err, ErrNotFound)

	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, ThreadKey(1), nf.Key)
	assert.Empty(t, nf.Name)
}

func TestRegistry_SetGetDelete(t *testing.T) {
	reg, _ := newFakeRegistry()

	require.NoError(t, reg.Set(nil, "results", 99))

	v, err := reg.Get("results")
	require.NoError(t, err)
	assert.Equal(t, 99, v)

	v, err = reg.Get("missing")
	require.NoError(t, err)
	assert.True(t, IsAbsent(v))

	require.NoError(t, reg.Set(nil, "results", 0))
	v, err = reg.Get("results")
	require.NoError(t, err)
	assert.Equal(t, 0, v)

	require.NoError(t, reg.Delete("results"))
	v, err = reg.Get("results")
	require.NoError(t, err)
	assert.True(t, IsAbsent(v))
}

func TestRegistry_Delete(t *testing.T) {
	t.Run("without bag", func(t *testing.T) {
		reg, _ := newFakeRegistry()
		err := reg.Delete("x")
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("missing name", func(t *testing.T) {
		reg, _ := newFakeRegistry()
		require.NoError(t, reg.Set(nil, "a", 1))

		err := reg.Delete("x")
		var nf *NotFoundError
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, "x", nf.Name)
	})

	t.Run("reserved name", func(t *testing.T) {
		reg, _ := newFakeRegistry()
		require.NoError(t, reg.Set(nil, "a", 1))

		for _, name := range []string{NameKey, DictKey} {
			err := reg.Delete(name)
			assert.ErrorIs(t, err, ErrReservedName)
			assert.ErrorIs(t, err, ErrNotFound)
		}
	})
}

func TestRegistry_ReservedNames(t *testing.T) {
	reg, _ := newFakeRegistry()
	require.NoError(t, reg.Set(nil, "a", 1))

	for _, name := range []string{NameKey, DictKey} {
		t.Run(name, func(t *testing.T) {
			err := reg.Set(nil, name, "anything")
			require.ErrorIs(t, err, ErrReservedName)
			assert.NotErrorIs(t, err, ErrNotFound)

			_, err = reg.Get(name)
			require.ErrorIs(t, err, ErrReservedName)
		})
	}

	attrs, err := reg.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, Attrs{"a": 1}, attrs, "bag must be unchanged")
}

func TestRegistry_Register(t *testing.T) {
	reg, threads := newFakeRegistry()

	require.NoError(t, reg.Register(Attrs{"a": 1}))
	require.NoError(t, reg.Register(Attrs{"b": 2}))

	attrs, err := reg.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, Attrs{"b": 2}, attrs, "re-registration replaces the bag")

	require.NoError(t, reg.RegisterKey(5, nil))
	assert.True(t, reg.Contains(5))

	threads.switchTo(5)
	attrs, err = reg.Snapshot()
	require.NoError(t, err)
	assert.Empty(t, attrs)

	err = reg.Register(Attrs{DictKey: 1})
	require.ErrorIs(t, err, ErrReservedName)
}

func TestRegistry_RegisterCopiesAttrs(t *testing.T) {
	reg, _ := newFakeRegistry()
	seed := Attrs{"a": 1}
	require.NoError(t, reg.Register(seed))

	seed["a"] = 2
	v, err := reg.Get("a")
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestRegistry_Unregister(t *testing.T) {
	reg, _ := newFakeRegistry()
	require.NoError(t, reg.Set(nil, "x", 1))

	require.NoError(t, reg.Unregister())
	assert.False(t, reg.Contains(ThreadKey(1)))

	_, err := reg.Get("x")
	require.ErrorIs(t, err, ErrNotFound)

	err = reg.Unregister()
	require.ErrorIs(t, err, ErrNotFound)

	t.Run("normalizes keys", func(t *testing.T) {
		require.NoError(t, reg.RegisterKey(12, nil))
		require.NoError(t, reg.UnregisterKey("12"))
		assert.False(t, reg.Contains(12))

		require.NoError(t, reg.RegisterKey(13, nil))
		require.NoError(t, reg.UnregisterKey(13))
	})

	t.Run("rejects invalid keys", func(t *testing.T) {
		err := reg.UnregisterKey("abc")
		require.ErrorIs(t, err, ErrInvalidIdentity)
	})
}

func TestRegistry_ForcedUnregister(t *testing.T) {
	reg, threads := newFakeRegistry()
	require.NoError(t, reg.Set(nil, "x", 1))

	// A supervisor tears down context 1 from context 2.
	threads.switchTo(2)
	require.NoError(t, reg.UnregisterKey(ThreadKey(1)))

	threads.switchTo(1)
	_, err := reg.Get("x")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRegistry_InvalidIdentity(t *testing.T) {
	reg := NewRegistry(WithIdentity(func() any { return "worker" }))
	h, err := NewHandle(reg)
	require.NoError(t, err)

	require.ErrorIs(t, reg.Set(h, "x", 1), ErrInvalidIdentity)
	_, err = reg.Get("x")
	require.ErrorIs(t, err, ErrInvalidIdentity)
	require.ErrorIs(t, reg.Delete("x"), ErrInvalidIdentity)
	require.ErrorIs(t, reg.Register(nil), ErrInvalidIdentity)
	require.ErrorIs(t, reg.Unregister(), ErrInvalidIdentity)
	assert.False(t, reg.Contains(h))

	_, err = h.Get("x")
	require.ErrorIs(t, err, ErrInvalidIdentity, "handle only hides missing bags")
}

func TestRegistry_Keys(t *testing.T) {
	reg, _ := newFakeRegistry()
	for _, k := range []ThreadKey{30, 10, 20} {
		require.NoError(t, reg.RegisterKey(k, nil))
	}

	assert.Equal(t, []ThreadKey{10, 20, 30}, reg.Keys())
	assert.Equal(t, 3, reg.Len())
}

func TestRegistry_IDs(t *testing.T) {
	a := NewRegistry()
	b := NewRegistry()
	assert.NotEqual(t, a.ID(), b.ID())
}

func TestRegistry_IndependentRegistries(t *testing.T) {
	threads := &fakeThreads{}
	threads.switchTo(1)
	a := NewRegistry(WithIdentity(threads.identity))
	b := NewRegistry(WithIdentity(threads.identity))

	require.NoError(t, a.Set(nil, "x", "a"))
	assert.False(t, b.Contains(ThreadKey(1)))

	_, err := b.Get("x")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRegistry_Scope(t *testing.T) {
	reg, _ := newFakeRegistry()

	err := reg.Scope(Attrs{"request_id": "abc"}, func() error {
		v, err := reg.Get("request_id")
		require.NoError(t, err)
		assert.Equal(t, "abc", v)
		return nil
	})
	require.NoError(t, err)
	assert.False(t, reg.Contains(ThreadKey(1)))

	boom := errors.New("boom")
	err = reg.Scope(nil, func() error { return boom })
	require.ErrorIs(t, err, boom)
	assert.False(t, reg.Contains(ThreadKey(1)))

	assert.Panics(t, func() {
		_ = reg.Scope(nil, func() error { panic("handler failed") })
	})
	assert.False(t, reg.Contains(ThreadKey(1)), "bag must be released on panic")
}

func TestRegistry_ScopeRestoresPreviousBag(t *testing.T) {
	reg, _ := newFakeRegistry()
	h, err := NewHandle(reg)
	require.NoError(t, err)
	require.NoError(t, h.Set("user", "alice"))

	err = reg.Scope(Attrs{"a": 1}, func() error {
		v, err := reg.Get("user")
		require.NoError(t, err)
		assert.True(t, IsAbsent(v), "the scope starts from its seed only")

		return reg.Scope(Attrs{"b": 2}, func() error {
			snap, err := reg.Snapshot()
			require.NoError(t, err)
			assert.Equal(t, Attrs{"b": 2}, snap)
			return nil
		})
	})
	require.NoError(t, err)

	require.True(t, reg.Contains(h))
	snap, err := reg.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, Attrs{"user": "alice"}, snap)

	require.ErrorIs(t, reg.Scope(Attrs{NameKey: "x"}, func() error { return nil }), ErrReservedName)
	assert.True(t, reg.Contains(h))
}

func TestRegistry_Sweep(t *testing.T) {
	t.Run("custom liveness", func(t *testing.T) {
		live := []ThreadKey{2}
		reg, _ := newFakeRegistry(WithLiveness(func() []ThreadKey { return live }))
		for _, k := range []ThreadKey{1, 2, 3} {
			require.NoError(t, reg.RegisterKey(k, nil))
		}

		assert.Equal(t, 2, reg.Sweep())
		assert.Equal(t, []ThreadKey{2}, reg.Keys())
	})

	t.Run("custom identity without liveness", func(t *testing.T) {
		reg, _ := newFakeRegistry()
		require.NoError(t, reg.RegisterKey(1, nil))

		assert.Equal(t, 0, reg.Sweep())
		assert.Equal(t, 1, reg.Len())
	})

	t.Run("native goroutines", func(t *testing.T) {
		reg := NewRegistry()
		h, err := NewHandle(reg)
		require.NoError(t, err)

		require.NoError(t, h.Set("main", true))

		done := make(chan struct{})
		go func() {
			defer close(done)
			_ = h.Set("worker", true)
		}()
		<-done

		require.Eventually(t, func() bool {
			reg.Sweep()
			return reg.Len() == 1
		}, time.Second, 5*time.Millisecond)

		v, err := h.Get("main")
		require.NoError(t, err)
		assert.Equal(t, true, v, "live goroutines keep their bags")
	})
}

func TestRegistry_StartReaper(t *testing.T) {
	reg, _ := newFakeRegistry(WithLiveness(func() []ThreadKey { return nil }))
	require.NoError(t, reg.RegisterKey(1, nil))

	reaper := reg.StartReaper(time.Hour)
	defer reaper.Stop()

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, reg.Len(), "no sweep before the first tick")

	reaper.Reset(5 * time.Millisecond)
	require.Eventually(t, func() bool {
		return reg.Len() == 0
	}, time.Second, 5*time.Millisecond)
}

func TestRegistry_ConcurrentForcedUnregister(t *testing.T) {
	reg := NewRegistry()
	h, err := NewHandle(reg)
	require.NoError(t, err)

	var wg sync.WaitGroup
	keys := make(chan ThreadKey, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if err := h.Set("i", i); err != nil {
					t.Error(err)
					return
				}
				v, err := h.Get("i")
				if err != nil {
					t.Error(err)
					return
				}
				if !IsAbsent(v) && v != i {
					t.Errorf("goroutine %d observed %v", i, v)
				}
			}
			key, _ := reg.CurrentKey()
			keys <- key
		}(i)
	}

	// Supervisor tears bags down while workers are still running.
	go func() {
		for key := range keys {
			_ = reg.UnregisterKey(key)
		}
	}()

	wg.Wait()
	close(keys)
}
