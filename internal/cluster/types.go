// Package cluster is the resource-offer boundary between the scheduler and the compute agents: offers of spare
// capacity flow in, task launches flow out, and task status updates flow back in.
package cluster

import (
	"time"

	"github.com/armadaproject/largestproduct/internal/common/resource"
	"github.com/armadaproject/largestproduct/pkg/agentapi"
)

type (
	AgentId string
	OfferId string
	TaskId  string
)

type TaskState = agentapi.TaskState

const (
	TaskStaging  = agentapi.TaskState_TASK_STAGING
	TaskStarting = agentapi.TaskState_TASK_STARTING
	TaskRunning  = agentapi.TaskState_TASK_RUNNING
	TaskFinished = agentapi.TaskState_TASK_FINISHED
	TaskFailed   = agentapi.TaskState_TASK_FAILED
	TaskKilled   = agentapi.TaskState_TASK_KILLED
	TaskLost     = agentapi.TaskState_TASK_LOST
	TaskError    = agentapi.TaskState_TASK_ERROR
)

const (
	SourceMaster            = "SOURCE_MASTER"
	ReasonAgentDisconnected = "REASON_AGENT_DISCONNECTED"
)

// IsTerminal reports whether a task in this state will not change state again.
func IsTerminal(state TaskState) bool {
	switch state {
	case TaskFinished, TaskFailed, TaskKilled, TaskLost, TaskError:
		return true
	default:
		return false
	}
}

// IsFailure reports whether state is terminal but not a success.
func IsFailure(state TaskState) bool {
	return IsTerminal(state) && state != TaskFinished
}

// Offer advertises spare capacity on one agent. It stays valid until accepted, declined or rescinded.
type Offer struct {
	Id        OfferId
	AgentId   AgentId
	Hostname  string
	Resources resource.ComputeResources
}

type TaskInfo struct {
	Id        TaskId
	Name      string
	AgentId   AgentId
	Resources resource.ComputeResources
	// Opaque payload handed to the agent.
	Data []byte
}

type TaskStatus struct {
	TaskId  TaskId
	AgentId AgentId
	State   TaskState
	Reason  string
	Source  string
	Message string
	// Opaque payload returned by the agent.
	Data []byte
	// Identifies this update for acknowledgement.
	Uuid string
}

// Filters apply to the agent behind an accepted or declined offer.
type Filters struct {
	// How long the agent's resources are withheld from further offers.
	RefuseDuration time.Duration
}

type DriverStatus int

const (
	DriverNotStarted DriverStatus = iota
	DriverRunning
	DriverStopped
	DriverAborted
)

func (s DriverStatus) String() string {
	switch s {
	case DriverNotStarted:
		return "DRIVER_NOT_STARTED"
	case DriverRunning:
		return "DRIVER_RUNNING"
	case DriverStopped:
		return "DRIVER_STOPPED"
	case DriverAborted:
		return "DRIVER_ABORTED"
	default:
		return "DRIVER_UNKNOWN"
	}
}

// Driver is what a scheduler needs from the cluster.
type Driver interface {
	// Events delivers offers and status updates one at a time, in the order they happened.
	Events() <-chan Event
	LaunchTasks(offerId OfferId, tasks []TaskInfo, filters Filters) error
	DeclineOffer(offerId OfferId, filters Filters) error
	// AcknowledgeStatusUpdate is only valid when the driver runs with explicit acknowledgements.
	AcknowledgeStatusUpdate(status TaskStatus) error
	// Abort tears the run down. Aborting or stopping twice is a no-op.
	Abort() error
	Stop() error
}
