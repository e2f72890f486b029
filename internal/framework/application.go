// Package framework wires the coordinator process: the master agents connect to, the scheduler driving the run and
// the publishers receiving its answer.
package framework

import (
	"os"
	"strings"

	"github.com/go-redis/redis"
	"github.com/pkg/errors"

	"github.com/armadaproject/largestproduct/internal/cluster"
	"github.com/armadaproject/largestproduct/internal/common/metrics"
	"github.com/armadaproject/largestproduct/internal/common/resource"
	"github.com/armadaproject/largestproduct/internal/common/runcontext"
	"github.com/armadaproject/largestproduct/internal/coordinator"
	"github.com/armadaproject/largestproduct/internal/framework/configuration"
	"github.com/armadaproject/largestproduct/internal/product"
	"github.com/armadaproject/largestproduct/internal/publisher"
	"github.com/armadaproject/largestproduct/internal/scheduler"
)

// ExplicitAcknowledgementsEnv selects explicit status acknowledgement when present in the environment.
const ExplicitAcknowledgementsEnv = "EXPLICIT_ACKNOWLEDGEMENTS"

type Options struct {
	// Address the master listens on for agents.
	MasterAddress string
	// Number of units to run; zero runs the whole partition.
	TaskCount                int
	ExplicitAcknowledgements bool
}

// ExplicitAcknowledgementsFromEnv reports whether ExplicitAcknowledgementsEnv is set, whatever its value.
func ExplicitAcknowledgementsFromEnv() bool {
	_, ok := os.LookupEnv(ExplicitAcknowledgementsEnv)
	return ok
}

type App struct {
	config      configuration.Configuration
	options     Options
	coordinator *coordinator.Coordinator
	scheduler   *scheduler.Scheduler
	redisClient *redis.Client
}

// New validates the input and builds everything a run needs without touching the network.
func New(config configuration.Configuration, options Options) (*App, error) {
	digits, err := LoadDigits(config)
	if err != nil {
		return nil, err
	}
	coord, err := coordinator.New(digits, coordinator.Config{
		WindowLength:    config.WindowLength,
		UnitLength:      config.UnitLength,
		TruncateTail:    config.TruncateTail,
		AllowShortUnits: config.AllowShortUnits,
	})
	if err != nil {
		return nil, err
	}

	app := &App{config: config, options: options, coordinator: coord}
	publishers := publisher.Multi{publisher.LogPublisher{}}
	if config.Publisher.Redis.Enabled {
		app.redisClient = redis.NewClient(config.Publisher.Redis.Redis.AsOptions())
		publishers = append(publishers, publisher.NewRedisPublisher(app.redisClient))
	}

	app.scheduler, err = scheduler.New(coord, scheduler.Config{
		TaskResources:            resource.New(config.Task.Cpus, config.Task.Memory),
		RefuseDuration:           config.Master.RefuseDuration,
		ImplicitAcknowledgements: !options.ExplicitAcknowledgements,
		TotalUnits:               options.TaskCount,
	}, publishers)
	if err != nil {
		app.close()
		return nil, err
	}
	return app, nil
}

func (a *App) PartitionCount() int {
	return a.coordinator.PartitionCount()
}

// Run hosts the master and the metrics endpoint while the scheduler drives the run to completion.
func (a *App) Run(ctx *runcontext.Context) (product.Result, error) {
	defer a.close()
	ctx = runcontext.WithLogField(ctx, "runId", a.scheduler.RunId())
	ctx.Log.Infof(
		"window length %d, unit length %d, %d digits, running %d of %d units",
		a.coordinator.WindowLength(), a.coordinator.UnitLength(), a.coordinator.SequenceLength(),
		a.scheduler.TotalUnits(), a.coordinator.PartitionCount(),
	)

	master := cluster.NewMaster(cluster.MasterConfig{
		ListenAddress:            a.options.MasterAddress,
		OfferInterval:            a.config.Master.OfferInterval,
		ImplicitAcknowledgements: !a.options.ExplicitAcknowledgements,
		FrameworkId:              a.scheduler.RunId(),
		WriteTimeout:             a.config.Master.WriteTimeout,
		HandshakeTimeout:         a.config.Master.HandshakeTimeout,
	})
	if err := master.Start(ctx); err != nil {
		return product.Result{}, err
	}

	runCtx, cancel := runcontext.WithCancel(ctx)
	defer cancel()
	g, gctx := runcontext.ErrGroup(runCtx)
	var result product.Result
	g.Go(func() error {
		defer cancel()
		var err error
		result, err = a.scheduler.Run(gctx, master)
		return err
	})
	if a.config.MetricsPort != 0 {
		g.Go(func() error {
			shutdown := metrics.ServeMetrics(a.config.MetricsPort)
			<-gctx.Done()
			shutdown()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return product.Result{}, err
	}
	return result, nil
}

func (a *App) close() {
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			runcontext.Background().Log.WithError(err).Warn("error closing redis client")
		}
	}
}

// LoadDigits reads the digit sequence from InputFile if set, otherwise from Input. Whitespace is ignored so the
// input can be wrapped over several lines.
func LoadDigits(config configuration.Configuration) (product.Digits, error) {
	input := config.Input
	if config.InputFile != "" {
		data, err := os.ReadFile(config.InputFile)
		if err != nil {
			return nil, errors.Wrapf(err, "error reading input file %s", config.InputFile)
		}
		input = string(data)
	}
	return product.ParseDigits(strings.Join(strings.Fields(input), ""))
}
