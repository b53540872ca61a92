// Package testutil holds helpers shared by the package tests: metric
// isolation, polling, free ports and telemetry fixtures.
package testutil

import (
	"sync"
	"testing"
)

var metricsTestMutex sync.Mutex

// LockMetrics serializes tests that read or reset the global Prometheus
// collectors in util/metrics. The lock is released by t.Cleanup.
//
//	func TestRedrawMetrics(t *testing.T) {
//	    testutil.LockMetrics(t)
//	    metrics.RedrawsTotal.Reset()
//	    ...
//	}
func LockMetrics(t *testing.T) {
	t.Helper()
	metricsTestMutex.Lock()
	t.Cleanup(metricsTestMutex.Unlock)
}
