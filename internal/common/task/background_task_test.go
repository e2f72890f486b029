package task

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
)

func TestBackgroundTaskManager_RunsUntilStopped(t *testing.T) {
	manager := NewBackgroundTaskManagerWithRegisterer("test_", prometheus.NewRegistry())
	var calls int32
	manager.Register(func() { atomic.AddInt32(&calls, 1) }, time.Millisecond, "counter")

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&calls) >= 3 }, 5*time.Second, time.Millisecond)
	timedOut := manager.StopAll(5 * time.Second)
	assert.False(t, timedOut)

	stoppedAt := atomic.LoadInt32(&calls)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, stoppedAt, atomic.LoadInt32(&calls))
}

func TestBackgroundTaskManager_SharesHistogramAcrossManagers(t *testing.T) {
	registry := prometheus.NewRegistry()
	first := NewBackgroundTaskManagerWithRegisterer("test_", registry)
	second := NewBackgroundTaskManagerWithRegisterer("test_", registry)
	first.Register(func() {}, time.Hour, "shared")
	second.Register(func() {}, time.Hour, "shared")
	assert.False(t, first.StopAll(5*time.Second))
	assert.False(t, second.StopAll(5*time.Second))

	families, err := registry.Gather()
	assert.NoError(t, err)
	assert.Len(t, families, 1)
}
