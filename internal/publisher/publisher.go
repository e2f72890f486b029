// Package publisher records the answer of a completed run.
package publisher

import (
	"github.com/hashicorp/go-multierror"

	"github.com/armadaproject/largestproduct/internal/common/runcontext"
	"github.com/armadaproject/largestproduct/internal/product"
)

type Publisher interface {
	Publish(ctx *runcontext.Context, runId string, result product.Result) error
}

// LogPublisher writes the result to the run's log.
type LogPublisher struct{}

func (LogPublisher) Publish(ctx *runcontext.Context, _ string, result product.Result) error {
	ctx.Log.Infof("DONE. Highest result total received: %d (%s)", result.Product, result.Digits)
	return nil
}

// Multi publishes to every publisher, even when an earlier one fails.
type Multi []Publisher

func (m Multi) Publish(ctx *runcontext.Context, runId string, result product.Result) error {
	var errs *multierror.Error
	for _, p := range m {
		if err := p.Publish(ctx, runId, result); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs.ErrorOrNil()
}
