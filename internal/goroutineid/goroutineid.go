// Package goroutineid identifies the calling goroutine. The plan engine and
// the motion statechart use it to recognise re-entrant control calls made
// from inside their own tick.
package goroutineid

import (
	"bytes"
	"runtime"
	"sync"
)

var stackBufPool = sync.Pool{
	New: func() any {
		b := make([]byte, 64)
		return &b
	},
}

var header = []byte("goroutine ")

// Get returns the ID of the calling goroutine, or 0 if it cannot be read.
func Get() int64 {
	bp := stackBufPool.Get().(*[]byte)
	defer stackBufPool.Put(bp)
	n := runtime.Stack(*bp, false)
	return parse((*bp)[:n])
}

// parse reads the ID from the "goroutine N [status]:" header of a stack
// trace without allocating.
func parse(stack []byte) int64 {
	rest, ok := bytes.CutPrefix(stack, header)
	if !ok {
		return 0
	}
	var id int64
	for _, b := range rest {
		if b < '0' || b > '9' {
			break
		}
		id = id*10 + int64(b-'0')
	}
	return id
}
