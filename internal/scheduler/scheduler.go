// Package scheduler drives one run: it turns resource offers into work unit launches and task statuses into
// results until every unit has reported or a task fails.
package scheduler

import (
	"fmt"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/armadaproject/largestproduct/internal/cluster"
	"github.com/armadaproject/largestproduct/internal/common/apperrors"
	"github.com/armadaproject/largestproduct/internal/common/resource"
	"github.com/armadaproject/largestproduct/internal/common/util"
	"github.com/armadaproject/largestproduct/internal/coordinator"
	"github.com/armadaproject/largestproduct/internal/transport"
)

type Config struct {
	// Resources requested by every task. Offers that cannot hold them are declined.
	TaskResources resource.ComputeResources
	// How long an agent is withheld from offers after one of its offers is accepted or declined.
	RefuseDuration time.Duration
	// When false, every consumed status is acknowledged with an AcknowledgeStatus action.
	ImplicitAcknowledgements bool
	// Number of units to run. Zero means every partition.
	TotalUnits int
	// Identifies the run in logs and published results. Generated if empty.
	RunId string
}

type Scheduler struct {
	coordinator *coordinator.Coordinator
	config      Config
	publisher   ResultPublisher
	runId       string
}

func New(coord *coordinator.Coordinator, config Config, publisher ResultPublisher) (*Scheduler, error) {
	if config.TotalUnits == 0 {
		config.TotalUnits = coord.PartitionCount()
	}
	if config.TotalUnits < 1 || config.TotalUnits > coord.PartitionCount() {
		return nil, errors.WithStack(&apperrors.ErrInvalidArgument{
			Name:    "totalUnits",
			Value:   config.TotalUnits,
			Message: fmt.Sprintf("must be between 1 and %d", coord.PartitionCount()),
		})
	}
	if !config.TaskResources.IsValid() || config.TaskResources.IsZero() {
		return nil, errors.WithStack(&apperrors.ErrInvalidArgument{
			Name:    "taskResources",
			Value:   config.TaskResources.String(),
			Message: "must be positive",
		})
	}
	runId := config.RunId
	if runId == "" {
		runId = util.NewULID()
	}
	return &Scheduler{
		coordinator: coord,
		config:      config,
		publisher:   publisher,
		runId:       runId,
	}, nil
}

func (s *Scheduler) RunId() string {
	return s.runId
}

func (s *Scheduler) TotalUnits() int {
	return s.config.TotalUnits
}

// InitialState returns the state a run starts from.
func (s *Scheduler) InitialState() coordinator.RunState {
	return coordinator.NewRunState(s.config.TotalUnits)
}

// HandleEvent returns the state following event and the actions the control loop must perform, in order.
// It performs no I/O.
func (s *Scheduler) HandleEvent(state coordinator.RunState, event cluster.Event) (coordinator.RunState, []Action) {
	switch e := event.(type) {
	case cluster.Registered:
		if state.Phase == coordinator.Idle {
			return state.WithPhase(coordinator.Dispatching), nil
		}
		return state, nil
	case cluster.OfferReceived:
		return s.handleOffer(state, e.Offer)
	case cluster.StatusUpdate:
		return s.handleStatus(state, e.Status)
	case cluster.ErrorReceived:
		if state.Phase.Terminal() {
			return state, nil
		}
		reason := fmt.Sprintf("cluster reported an error: %s", e.Message)
		return state.WithAbort(reason), []Action{Abort{Reason: reason}}
	default:
		// Rescinded offers and lost agents need no action: lost tasks arrive as their own statuses.
		return state, nil
	}
}

func (s *Scheduler) handleOffer(state coordinator.RunState, offer cluster.Offer) (coordinator.RunState, []Action) {
	decline := []Action{DeclineOffer{OfferId: offer.Id, Filters: s.filters()}}
	if state.Phase != coordinator.Dispatching || !state.HasPendingUnits() {
		return state, decline
	}
	if !offer.Resources.Fits(s.config.TaskResources) {
		return state, decline
	}
	unit, err := s.coordinator.UnitFor(state.Launched)
	if err != nil {
		reason := fmt.Sprintf("could not build unit %d: %s", state.Launched, err)
		return state.WithAbort(reason), append(decline, Abort{Reason: reason})
	}
	data, err := transport.EncodeRequest(unit)
	if err != nil {
		reason := fmt.Sprintf("could not encode unit %d: %s", unit.Index, err)
		return state.WithAbort(reason), append(decline, Abort{Reason: reason})
	}
	taskId := cluster.TaskId(strconv.Itoa(unit.Index))
	launch := LaunchTask{
		OfferId: offer.Id,
		Task: cluster.TaskInfo{
			Id:        taskId,
			Name:      "task " + string(taskId),
			AgentId:   offer.AgentId,
			Resources: s.config.TaskResources.DeepCopy(),
			Data:      data,
		},
		Filters: s.filters(),
		Unit:    unit,
	}
	state = state.WithLaunch(string(taskId))
	if !state.HasPendingUnits() {
		state = state.WithPhase(coordinator.AwaitingResults)
	}
	return state, []Action{launch}
}

func (s *Scheduler) handleStatus(state coordinator.RunState, status cluster.TaskStatus) (coordinator.RunState, []Action) {
	var actions []Action
	var final Action
	switch {
	case state.Phase.Terminal():
	case !state.IsLaunched(string(status.TaskId)):
		// Not a task of this run; it can neither complete nor fail the run.
	case status.State == cluster.TaskFinished:
		if state.IsFinished(string(status.TaskId)) {
			break
		}
		result, err := transport.DecodeResult(status.Data)
		if err != nil {
			reason := fmt.Sprintf("task %s returned a result that could not be decoded: %s", status.TaskId, err)
			state = state.WithAbort(reason)
			final = Abort{Reason: reason}
			break
		}
		state = state.WithFinished(string(status.TaskId), result)
		if state.Complete() {
			best, err := state.FinalResult()
			if err != nil {
				reason := err.Error()
				state = state.WithAbort(reason)
				final = Abort{Reason: reason}
				break
			}
			state = state.WithPhase(coordinator.Done)
			final = Stop{Result: best}
		}
	case cluster.IsFailure(status.State):
		reason := fmt.Sprintf(
			"task %s is in unexpected state %s with reason '%s' from source '%s' with message '%s'",
			status.TaskId, status.State, status.Reason, status.Source, status.Message,
		)
		state = state.WithAbort(reason)
		final = Abort{Reason: reason}
	}
	if !s.config.ImplicitAcknowledgements {
		actions = append(actions, AcknowledgeStatus{Status: status})
	}
	if final != nil {
		actions = append(actions, final)
	}
	return state, actions
}

func (s *Scheduler) filters() cluster.Filters {
	return cluster.Filters{RefuseDuration: s.config.RefuseDuration}
}

func (s *Scheduler) logEvent(log *logrus.Entry, state coordinator.RunState, event cluster.Event) {
	switch e := event.(type) {
	case cluster.Registered:
		log.Infof("registered with framework id %s", e.FrameworkId)
	case cluster.OfferReceived:
		log.WithField("offerId", e.Offer.Id).Debugf("received offer from agent %s: %s", e.Offer.AgentId, e.Offer.Resources)
	case cluster.OfferRescinded:
		log.WithField("offerId", e.OfferId).Info("offer rescinded")
	case cluster.StatusUpdate:
		if !state.IsLaunched(string(e.Status.TaskId)) {
			log.WithField("taskId", e.Status.TaskId).Warnf("ignoring %s status for a task this run never launched", e.Status.State)
			return
		}
		log.WithField("taskId", e.Status.TaskId).Infof(
			"status update: task %s is in state %s (%d of %d finished)",
			e.Status.TaskId, e.Status.State, state.Finished, state.TotalUnits,
		)
	case cluster.AgentLost:
		log.WithField("agentId", e.AgentId).Warn("agent lost")
	case cluster.ErrorReceived:
		log.Errorf("error from cluster: %s", e.Message)
	}
}
