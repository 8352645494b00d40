package goroutineid

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	for stack, want := range map[string]int64{
		"goroutine 123 [running]:\n": 123,
		"goroutine 7":                7,
		"something else\n":           0,
		"goroutine [running]":        0,
		"":                           0,
	} {
		assert.Equal(t, want, parse([]byte(stack)), "%q", stack)
	}
}

func TestGet(t *testing.T) {
	id := Get()
	require.Greater(t, id, int64(0))
	assert.Equal(t, id, Get(), "stable within a goroutine")

	var other int64
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		other = Get()
	}()
	wg.Wait()
	assert.NotEqual(t, id, other)
}

func TestParse_NoAllocs(t *testing.T) {
	stack := []byte("goroutine 42 [running]:\n")
	assert.Zero(t, testing.AllocsPerRun(100, func() { _ = parse(stack) }))
}
