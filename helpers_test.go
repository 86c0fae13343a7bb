package uexec

import (
	"testing"
	"time"
)

// newTestCluster builds a ready-to-use cluster with n processors for tests,
// shut down automatically at the end of the test.
func newTestCluster(t *testing.T, n int) *Cluster {
	t.Helper()
	c := NewCluster()
	for i := 0; i < n; i++ {
		c.AddProcessor()
	}
	t.Cleanup(c.Shutdown)
	return c
}

const testTimeout = 5 * time.Second
