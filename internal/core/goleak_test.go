package core

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain fails the package if any test leaves a goroutine behind, which
// covers the concurrent split and status tests.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
