package publisher

import (
	"strconv"
	"time"

	"github.com/go-redis/redis"
	"github.com/pkg/errors"

	"github.com/armadaproject/largestproduct/internal/common/apperrors"
	"github.com/armadaproject/largestproduct/internal/common/runcontext"
	"github.com/armadaproject/largestproduct/internal/product"
)

const (
	runKeyPrefix = "largestproduct:run:"
	runsKey      = "largestproduct:runs"
	latestKey    = "largestproduct:latest"
)

// RedisPublisher stores each finished run as a hash, keeps a list of run ids, newest first, and points
// largestproduct:latest at the most recent run.
type RedisPublisher struct {
	db    redis.UniversalClient
	clock func() time.Time
}

func NewRedisPublisher(db redis.UniversalClient) *RedisPublisher {
	return &RedisPublisher{db: db, clock: time.Now}
}

// Publish stores result under runId. Publishing a run that is already stored leaves redis untouched, so runs are
// listed once however often their result is delivered.
func (p *RedisPublisher) Publish(ctx *runcontext.Context, runId string, result product.Result) error {
	stored, err := p.Lookup(runId)
	var notFound *apperrors.ErrNotFound
	switch {
	case err == nil:
		if stored != result {
			ctx.Log.Warnf("run %s already stored %d (%s) in redis; keeping it over %d (%s)",
				runId, stored.Product, stored.Digits, result.Product, result.Digits)
		}
		return nil
	case !errors.As(err, &notFound):
		return errors.WithMessagef(err, "error checking redis for run %s", runId)
	}

	pipe := p.db.TxPipeline()
	pipe.HMSet(runKeyPrefix+runId, map[string]interface{}{
		"product":     strconv.FormatUint(result.Product, 10),
		"digits":      result.Digits,
		"completedAt": p.clock().UTC().Format(time.RFC3339),
	})
	pipe.LPush(runsKey, runId)
	pipe.Set(latestKey, runId, 0)
	if _, err = pipe.Exec(); err != nil {
		return errors.Wrapf(err, "error publishing result of run %s to redis", runId)
	}
	ctx.Log.Infof("published result of run %s to redis", runId)
	return nil
}

// Lookup returns the result stored for runId, or an ErrNotFound if there is none.
func (p *RedisPublisher) Lookup(runId string) (product.Result, error) {
	values, err := p.db.HGetAll(runKeyPrefix + runId).Result()
	if err != nil {
		return product.Result{}, errors.WithStack(err)
	}
	if len(values) == 0 {
		return product.Result{}, errors.WithStack(&apperrors.ErrNotFound{Type: "run", Value: runId})
	}
	value, err := strconv.ParseUint(values["product"], 10, 64)
	if err != nil {
		return product.Result{}, errors.Wrapf(err, "invalid product stored for run %s", runId)
	}
	return product.Result{Product: value, Digits: values["digits"]}, nil
}
