package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/armadaproject/largestproduct/internal/cluster"
	"github.com/armadaproject/largestproduct/internal/cluster/fake"
	"github.com/armadaproject/largestproduct/internal/common/logging"
	"github.com/armadaproject/largestproduct/internal/common/runcontext"
	"github.com/armadaproject/largestproduct/internal/product"
)

type recordingPublisher struct {
	mu        sync.Mutex
	published map[string]product.Result
	err       error
}

func newRecordingPublisher() *recordingPublisher {
	return &recordingPublisher{published: map[string]product.Result{}}
}

func (p *recordingPublisher) Publish(_ *runcontext.Context, runId string, result product.Result) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published[runId] = result
	return p.err
}

func quietContext() *runcontext.Context {
	return runcontext.New(context.Background(), logrus.NewEntry(logging.NullLogger))
}

func TestRun_PublishesBestResult(t *testing.T) {
	publisher := newRecordingPublisher()
	s := newTestScheduler(t, true, publisher)
	driver := fake.NewDriver()
	driver.Send(
		cluster.Registered{FrameworkId: "f"},
		offer("a"), offer("b"), offer("c"), offer("d"),
		finished(t, "0", 5), finished(t, "1", 40), finished(t, "2", 12),
	)

	result, err := s.Run(quietContext(), driver)
	require.NoError(t, err)
	assert.Equal(t, uint64(40), result.Product)
	assert.Equal(t, map[string]product.Result{"run-1": result}, publisher.published)
	assert.True(t, driver.Stopped)
	assert.False(t, driver.Aborted)
	assert.Len(t, driver.Launched, 3)
	require.Len(t, driver.Declined, 1)
	assert.Equal(t, cluster.OfferId("d"), driver.Declined[0].OfferId)
	assert.Empty(t, driver.Acknowledged)
}

func TestRun_PublishErrorStillStops(t *testing.T) {
	publisher := newRecordingPublisher()
	publisher.err = errors.New("redis down")
	s := newTestScheduler(t, true, publisher)
	driver := fake.NewDriver()
	driver.Send(
		cluster.Registered{}, offer("a"), offer("b"), offer("c"),
		finished(t, "0", 5), finished(t, "1", 40), finished(t, "2", 12),
	)

	result, err := s.Run(quietContext(), driver)
	require.NoError(t, err)
	assert.Equal(t, uint64(40), result.Product)
	assert.True(t, driver.Stopped)
}

func TestRun_LostTaskAborts(t *testing.T) {
	publisher := newRecordingPublisher()
	s := newTestScheduler(t, true, publisher)
	driver := fake.NewDriver()
	driver.Send(
		cluster.Registered{}, offer("a"), offer("b"), offer("c"),
		finished(t, "0", 5), finished(t, "1", 12), lost("2"),
	)

	_, err := s.Run(quietContext(), driver)
	assert.True(t, errors.Is(err, ErrAborted))
	assert.Contains(t, err.Error(), "TASK_LOST")
	assert.True(t, driver.Aborted)
	assert.False(t, driver.Stopped)
	assert.Empty(t, publisher.published)
}

func TestRun_ExplicitAcksBeforeStop(t *testing.T) {
	s := newTestScheduler(t, false, newRecordingPublisher())
	driver := fake.NewDriver()
	driver.Send(
		cluster.Registered{}, offer("a"), offer("b"), offer("c"),
		finished(t, "0", 5), finished(t, "0", 5), finished(t, "1", 40), finished(t, "2", 12),
	)

	_, err := s.Run(quietContext(), driver)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"LaunchTasks", "LaunchTasks", "LaunchTasks",
		"AcknowledgeStatusUpdate", "AcknowledgeStatusUpdate", "AcknowledgeStatusUpdate", "AcknowledgeStatusUpdate",
		"Stop",
	}, driver.Calls)
}

func TestRun_LaunchFailureAborts(t *testing.T) {
	s := newTestScheduler(t, true, newRecordingPublisher())
	driver := fake.NewDriver()
	driver.LaunchErr = errors.New("offer gone")
	driver.Send(cluster.Registered{}, offer("a"))

	_, err := s.Run(quietContext(), driver)
	assert.True(t, errors.Is(err, ErrAborted))
	assert.True(t, driver.Aborted)
}

func TestRun_Cancelled(t *testing.T) {
	s := newTestScheduler(t, true, newRecordingPublisher())
	driver := fake.NewDriver()
	driver.Send(cluster.Registered{})

	ctx, cancel := runcontext.WithTimeout(quietContext(), 50*time.Millisecond)
	defer cancel()
	_, err := s.Run(ctx, driver)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.True(t, driver.Aborted)
}
