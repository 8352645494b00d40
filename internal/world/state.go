// Package world is the engine's accessor for shared world and robot state.
//
// Conditions and auxiliary-variable providers read from it. Side-effecting
// statechart nodes write to it. The store serializes individual reads and
// writes but does not arbitrate between concurrent writers: at most one
// write-capable node may be active per key region at a time.
package world

import (
	"log/slog"
	"slices"
	"sync"
)

// State is a thread-safe key-value store for world state such as joint
// positions, base pose and gripper attachments.
//
// The zero value is ready to use. The map is allocated on first write.
type State struct {
	mu      sync.RWMutex
	data    map[string]any
	version uint64
}

func (s *State) init() {
	if s.data == nil {
		s.data = make(map[string]any)
	}
}

// Get returns the value under key, or nil.
func (s *State) Get(key string) any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data[key]
}

// Set stores value under key.
func (s *State) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.init()
	s.data[key] = value
	s.version++
	slog.Debug("world state write", "key", key, "value", value)
}

// Has reports whether key is present.
func (s *State) Has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.data[key]
	return ok
}

// Delete removes key.
func (s *State) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[key]; !ok {
		return
	}
	delete(s.data, key)
	s.version++
}

// Float returns the value under key as a float64. Integer values are
// converted.
func (s *State) Float(key string) (float64, bool) {
	switch v := s.Get(key).(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// Keys returns every key in sorted order.
func (s *State) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Len returns the number of keys.
func (s *State) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Version increases on every mutation.
func (s *State) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Snapshot returns a shallow copy of the store.
func (s *State) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.data))
	for k, v := range s.data {
		out[k] = v
	}
	return out
}
