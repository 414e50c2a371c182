package local

import (
	"strconv"
	"strings"

	"github.com/Charnelx/thread-local/internal/goid"
)

// ThreadKey identifies one execution context inside a Registry.
type ThreadKey uint64

// IdentityFunc reports the raw identity of the calling execution context.
// The result is normalized to a ThreadKey: ThreadKey values, non-negative
// integers and decimal strings are accepted, anything else is rejected with
// InvalidIdentityError.
type IdentityFunc func() any

// NativeIdentity returns the runtime id of the calling goroutine.
func NativeIdentity() any {
	if id := goid.Current(); id != 0 {
		return ThreadKey(id)
	}
	return nil
}

// NormalizeKey converts a raw identity into a ThreadKey.
func NormalizeKey(raw any) (ThreadKey, error) {
	switch v := raw.(type) {
	case ThreadKey:
		return v, nil
	case uint:
		return ThreadKey(v), nil
	case uint8:
		return ThreadKey(v), nil
	case uint16:
		return ThreadKey(v), nil
	case uint32:
		return ThreadKey(v), nil
	case uint64:
		return ThreadKey(v), nil
	case uintptr:
		return ThreadKey(v), nil
	case int:
		return signedKey(int64(v), raw)
	case int8:
		return signedKey(int64(v), raw)
	case int16:
		return signedKey(int64(v), raw)
	case int32:
		return signedKey(int64(v), raw)
	case int64:
		return signedKey(v, raw)
	case string:
		n, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, &InvalidIdentityError{Value: raw}
		}
		return ThreadKey(n), nil
	}
	return 0, &InvalidIdentityError{Value: raw}
}

func signedKey(v int64, raw any) (ThreadKey, error) {
	if v < 0 {
		return 0, &InvalidIdentityError{Value: raw}
	}
	return ThreadKey(v), nil
}
