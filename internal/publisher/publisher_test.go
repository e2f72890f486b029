package publisher

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis"
	"github.com/go-redis/redis"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/armadaproject/largestproduct/internal/common/apperrors"
	"github.com/armadaproject/largestproduct/internal/common/runcontext"
	"github.com/armadaproject/largestproduct/internal/product"
)

func withRedisPublisher(t *testing.T, action func(p *RedisPublisher, db *miniredis.Miniredis)) {
	db, err := miniredis.Run()
	require.NoError(t, err)
	defer db.Close()

	client := redis.NewClient(&redis.Options{Addr: db.Addr()})
	defer client.Close()

	p := NewRedisPublisher(client)
	p.clock = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }
	action(p, db)
}

func TestRedisPublisher_Publish(t *testing.T) {
	withRedisPublisher(t, func(p *RedisPublisher, db *miniredis.Miniredis) {
		ctx := runcontext.Background()
		require.NoError(t, p.Publish(ctx, "run-1", product.Result{Product: 23514624000, Digits: "5576689664895"}))
		require.NoError(t, p.Publish(ctx, "run-2", product.Result{Product: 72, Digits: "89"}))

		assert.Equal(t, "23514624000", db.HGet("largestproduct:run:run-1", "product"))
		assert.Equal(t, "5576689664895", db.HGet("largestproduct:run:run-1", "digits"))
		assert.Equal(t, "2024-01-02T03:04:05Z", db.HGet("largestproduct:run:run-1", "completedAt"))

		runs, err := db.List("largestproduct:runs")
		require.NoError(t, err)
		assert.Equal(t, []string{"run-2", "run-1"}, runs)

		latest, err := db.Get("largestproduct:latest")
		require.NoError(t, err)
		assert.Equal(t, "run-2", latest)

		result, err := p.Lookup("run-1")
		require.NoError(t, err)
		assert.Equal(t, product.Result{Product: 23514624000, Digits: "5576689664895"}, result)
	})
}

func TestRedisPublisher_LookupMissing(t *testing.T) {
	withRedisPublisher(t, func(p *RedisPublisher, _ *miniredis.Miniredis) {
		_, err := p.Lookup("missing")
		var notFound *apperrors.ErrNotFound
		assert.True(t, errors.As(err, &notFound), "expected ErrNotFound, got %v", err)
	})
}

func TestRedisPublisher_PublishIsIdempotent(t *testing.T) {
	withRedisPublisher(t, func(p *RedisPublisher, db *miniredis.Miniredis) {
		logger, hook := test.NewNullLogger()
		ctx := runcontext.New(runcontext.Background(), logrus.NewEntry(logger))
		require.NoError(t, p.Publish(ctx, "run-1", product.Result{Product: 72, Digits: "89"}))
		require.NoError(t, p.Publish(ctx, "run-1", product.Result{Product: 72, Digits: "89"}))

		runs, err := db.List("largestproduct:runs")
		require.NoError(t, err)
		assert.Equal(t, []string{"run-1"}, runs)

		hook.Reset()
		require.NoError(t, p.Publish(ctx, "run-1", product.Result{Product: 5, Digits: "15"}))
		assert.Equal(t, "72", db.HGet("largestproduct:run:run-1", "product"))
		require.Len(t, hook.Entries, 1)
		assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	})
}

func TestRedisPublisher_Unreachable(t *testing.T) {
	db, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: db.Addr()})
	defer client.Close()
	db.Close()

	err = NewRedisPublisher(client).Publish(runcontext.Background(), "run-1", product.Result{Product: 1})
	assert.Error(t, err)
}

func TestLogPublisher(t *testing.T) {
	logger, hook := test.NewNullLogger()
	ctx := runcontext.New(runcontext.Background(), logrus.NewEntry(logger))

	require.NoError(t, LogPublisher{}.Publish(ctx, "run-1", product.Result{Product: 27, Digits: "93"}))
	require.Len(t, hook.Entries, 1)
	assert.Equal(t, "DONE. Highest result total received: 27 (93)", hook.LastEntry().Message)
}

type failingPublisher struct {
	calls int
}

func (p *failingPublisher) Publish(*runcontext.Context, string, product.Result) error {
	p.calls++
	return errors.New("unavailable")
}

func TestMulti_PublishesToAllAndAggregatesErrors(t *testing.T) {
	first := &failingPublisher{}
	second := &failingPublisher{}
	logger, hook := test.NewNullLogger()
	ctx := runcontext.New(runcontext.Background(), logrus.NewEntry(logger))

	err := Multi{first, LogPublisher{}, second}.Publish(ctx, "run-1", product.Result{Product: 1})
	assert.Error(t, err)
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 1, second.calls)
	assert.Len(t, hook.Entries, 1)

	assert.NoError(t, Multi{LogPublisher{}}.Publish(ctx, "run-1", product.Result{Product: 1}))
}
