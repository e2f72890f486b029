package scheduler

import (
	"github.com/armadaproject/largestproduct/internal/cluster"
	"github.com/armadaproject/largestproduct/internal/product"
)

// Action is an effect HandleEvent asks the control loop to perform on the driver.
type Action interface {
	isAction()
}

type LaunchTask struct {
	OfferId cluster.OfferId
	Task    cluster.TaskInfo
	Filters cluster.Filters
	Unit    product.WorkUnit
}

type DeclineOffer struct {
	OfferId cluster.OfferId
	Filters cluster.Filters
}

type AcknowledgeStatus struct {
	Status cluster.TaskStatus
}

// Abort tears the run down without a result.
type Abort struct {
	Reason string
}

// Stop ends a completed run. Result is published before the driver is stopped.
type Stop struct {
	Result product.Result
}

func (LaunchTask) isAction()        {}
func (DeclineOffer) isAction()      {}
func (AcknowledgeStatus) isAction() {}
func (Abort) isAction()             {}
func (Stop) isAction()              {}
