// Package testutil provides testing utilities for pilotdeck packages.
package testutil

import (
	"context"
	"testing"
	"time"
)

// NewTestContext creates a test context with a 30-second timeout.
func NewTestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

// Context returns a context bound to the test's lifetime.
func Context(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := NewTestContext()
	t.Cleanup(cancel)
	return ctx
}
