// Package goid reads goroutine ids out of runtime stack traces.
//
// The runtime assigns ids from a monotonic counter, so an id is never handed
// to a second goroutine during the lifetime of a process.
package goid

import (
	"bytes"
	"runtime"
)

const prefix = "goroutine "

// Current returns the id of the calling goroutine, or 0 if the stack header
// could not be parsed.
func Current() uint64 {
	// Only the header line is needed: "goroutine 123 [running]:".
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	return Parse(buf[:n])
}

// Live returns the ids of every goroutine that exists at the time of the call.
func Live() []uint64 {
	size := 64 << 10
	for {
		buf := make([]byte, size)
		n := runtime.Stack(buf, true)
		if n < len(buf) {
			return ParseAll(buf[:n])
		}
		// Truncated dump would silently drop goroutines and make them look dead.
		size *= 2
	}
}

// Parse extracts the id from a stack header of the form "goroutine N [state]:".
func Parse(buf []byte) uint64 {
	if !bytes.HasPrefix(buf, []byte(prefix)) {
		return 0
	}

	var id uint64
	for _, c := range buf[len(prefix):] {
		if c < '0' || c > '9' {
			break
		}
		id = id*10 + uint64(c-'0')
	}
	return id
}

// ParseAll extracts every goroutine id from a runtime.Stack(all=true) dump.
func ParseAll(buf []byte) []uint64 {
	var ids []uint64
	for len(buf) > 0 {
		line := buf
		if i := bytes.IndexByte(buf, '\n'); i >= 0 {
			line, buf = buf[:i], buf[i+1:]
		} else {
			buf = nil
		}

		if id := Parse(line); id != 0 {
			ids = append(ids, id)
		}
	}
	return ids
}
