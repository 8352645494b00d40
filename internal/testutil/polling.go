// Package testutil holds waiting helpers for tests of asynchronous plan
// execution.
package testutil

import (
	"context"
	"fmt"
	"time"
)

// Default timings for Eventually.
const (
	DefaultTimeout  = 5 * time.Second
	DefaultInterval = 5 * time.Millisecond
)

// Poll calls condition every interval until it returns true. It fails once
// timeout has passed or ctx is done.
func Poll(ctx context.Context, condition func() bool, timeout, interval time.Duration) error {
	deadline := time.Now().Add(timeout)
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
		if condition() {
			return nil
		}
		if !time.Now().Before(deadline) {
			return fmt.Errorf("condition not met within %v", timeout)
		}
		timer.Reset(interval)
	}
}

// WaitForState polls getter until predicate accepts its value, and returns
// that value.
func WaitForState[T any](ctx context.Context, getter func() T, predicate func(T) bool, timeout, interval time.Duration) (T, error) {
	var last T
	err := Poll(ctx, func() bool {
		last = getter()
		return predicate(last)
	}, timeout, interval)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("waiting for %T: %w", last, err)
	}
	return last, nil
}

// Eventually is Poll with the default timings and a background context.
func Eventually(condition func() bool) error {
	return Poll(context.Background(), condition, DefaultTimeout, DefaultInterval)
}
