package scheduler

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/armadaproject/largestproduct/internal/cluster"
	"github.com/armadaproject/largestproduct/internal/common/logging"
	"github.com/armadaproject/largestproduct/internal/common/runcontext"
	"github.com/armadaproject/largestproduct/internal/coordinator"
	"github.com/armadaproject/largestproduct/internal/product"
)

// ErrAborted is returned by Run when the run was torn down before every unit finished.
var ErrAborted = errors.New("run aborted")

// ResultPublisher receives the answer of a completed run.
type ResultPublisher interface {
	Publish(ctx *runcontext.Context, runId string, result product.Result) error
}

// Run consumes driver events one at a time until the run completes, aborts or ctx is cancelled. On completion the
// result is published and the driver stopped; otherwise the driver is aborted.
func (s *Scheduler) Run(ctx *runcontext.Context, driver cluster.Driver) (product.Result, error) {
	ctx = runcontext.WithLogField(ctx, "runId", s.runId)
	ctx.Log.Infof("starting run over %d units", s.config.TotalUnits)
	state := s.InitialState()
	recordTransition(state, nil)

	for {
		select {
		case <-ctx.Done():
			if err := driver.Abort(); err != nil {
				logging.WithStacktrace(ctx.Log, err).Warn("error aborting driver")
			}
			return product.Result{}, errors.WithStack(ctx.Err())
		case event, ok := <-driver.Events():
			if !ok {
				return product.Result{}, errors.Errorf("cluster events ended with %d of %d units finished", state.Finished, state.TotalUnits)
			}
			next, actions := s.HandleEvent(state, event)
			s.logEvent(ctx.Log, next, event)
			recordStatus(state, next, event)
			recordTransition(next, actions)
			if next.Phase != state.Phase {
				ctx.Log.Infof("run moved from %s to %s", state.Phase, next.Phase)
			}
			state = next

			result, done, err := s.perform(ctx, driver, actions)
			if done {
				return result, err
			}
		}
	}
}

// perform executes actions in order. It reports done once a Stop or Abort has been carried out.
func (s *Scheduler) perform(ctx *runcontext.Context, driver cluster.Driver, actions []Action) (product.Result, bool, error) {
	for _, action := range actions {
		switch a := action.(type) {
		case LaunchTask:
			log := runcontext.WithLogFields(ctx, logrus.Fields{"taskId": a.Task.Id, "offerId": a.OfferId}).Log
			log.Infof("launching unit %d [%d, %d) on agent %s", a.Unit.Index, a.Unit.Start, a.Unit.End, a.Task.AgentId)
			if err := driver.LaunchTasks(a.OfferId, []cluster.TaskInfo{a.Task}, a.Filters); err != nil {
				logging.WithStacktrace(log, err).Error("error launching task")
				return s.abort(ctx, driver, "could not launch task "+string(a.Task.Id)+": "+err.Error())
			}
		case DeclineOffer:
			if err := driver.DeclineOffer(a.OfferId, a.Filters); err != nil {
				logging.WithStacktrace(ctx.Log.WithField("offerId", a.OfferId), err).Warn("error declining offer")
			}
		case AcknowledgeStatus:
			if err := driver.AcknowledgeStatusUpdate(a.Status); err != nil {
				logging.WithStacktrace(ctx.Log.WithField("taskId", a.Status.TaskId), err).Warn("error acknowledging status update")
			}
		case Abort:
			return s.abort(ctx, driver, a.Reason)
		case Stop:
			if err := s.publisher.Publish(ctx, s.runId, a.Result); err != nil {
				logging.WithStacktrace(ctx.Log, err).Error("error publishing result")
			}
			if err := driver.Stop(); err != nil {
				logging.WithStacktrace(ctx.Log, err).Warn("error stopping driver")
			}
			return a.Result, true, nil
		}
	}
	return product.Result{}, false, nil
}

func (s *Scheduler) abort(ctx *runcontext.Context, driver cluster.Driver, reason string) (product.Result, bool, error) {
	ctx.Log.Errorf("aborting run: %s", reason)
	runPhase.Set(float64(coordinator.Aborted))
	if err := driver.Abort(); err != nil {
		logging.WithStacktrace(ctx.Log, err).Warn("error aborting driver")
	}
	return product.Result{}, true, errors.Wrap(ErrAborted, reason)
}

func recordStatus(before, after coordinator.RunState, event cluster.Event) {
	update, ok := event.(cluster.StatusUpdate)
	if !ok {
		return
	}
	if after.Finished > before.Finished {
		tasksFinished.Inc()
	}
	if cluster.IsFailure(update.Status.State) && after.IsLaunched(string(update.Status.TaskId)) {
		tasksFailed.WithLabelValues(update.Status.State.String()).Inc()
	}
}
