package coordinator

import (
	"fmt"

	"github.com/armadaproject/largestproduct/internal/common/apperrors"
	"github.com/armadaproject/largestproduct/internal/product"
)

type Phase int

const (
	Idle Phase = iota
	Dispatching
	AwaitingResults
	Done
	Aborted
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "Idle"
	case Dispatching:
		return "Dispatching"
	case AwaitingResults:
		return "AwaitingResults"
	case Done:
		return "Done"
	case Aborted:
		return "Aborted"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// Terminal reports whether no further transition out of p is possible.
func (p Phase) Terminal() bool {
	return p == Done || p == Aborted
}

// RunState is the single mutable aggregate of one run. Its methods never modify the receiver; each returns the next
// state, so the control loop owns the only live copy.
//
// Invariants: Launched <= TotalUnits, Finished <= Launched, only launched tasks are counted as finished,
// Best.Product never decreases.
type RunState struct {
	Phase      Phase
	TotalUnits int
	Launched   int
	Finished   int
	Best       *product.Result
	// Why the run aborted, empty otherwise.
	AbortReason string
	// Launched task ids, mapped to whether their success has been counted.
	tasks map[string]bool
}

func NewRunState(totalUnits int) RunState {
	return RunState{
		Phase:      Idle,
		TotalUnits: totalUnits,
		tasks:      map[string]bool{},
	}
}

// HasPendingUnits reports whether some unit has not yet been launched.
func (s RunState) HasPendingUnits() bool {
	return s.Launched < s.TotalUnits
}

// Complete reports whether every unit has been accounted for.
func (s RunState) Complete() bool {
	return s.Finished == s.TotalUnits
}

// IsLaunched reports whether taskId belongs to this run.
func (s RunState) IsLaunched(taskId string) bool {
	_, ok := s.tasks[taskId]
	return ok
}

// IsFinished reports whether the success of taskId has already been counted.
func (s RunState) IsFinished(taskId string) bool {
	return s.tasks[taskId]
}

// WithLaunch records that taskId has been launched for the next pending unit.
func (s RunState) WithLaunch(taskId string) RunState {
	if !s.HasPendingUnits() || s.IsLaunched(taskId) {
		return s
	}
	s.tasks = s.withTask(taskId, false)
	s.Launched++
	return s
}

// Ingest folds result into the running best. The first result is always accepted; afterwards a result replaces
// the best only if its product is strictly greater, so ties keep the earliest ingested result.
func (s RunState) Ingest(result product.Result) RunState {
	if s.Best == nil || result.Product > s.Best.Product {
		best := result
		s.Best = &best
	}
	return s
}

// WithFinished counts the success of taskId and ingests its result. A task never launched, or already counted,
// leaves the state as is.
func (s RunState) WithFinished(taskId string, result product.Result) RunState {
	counted, launched := s.tasks[taskId]
	if !launched || counted {
		return s
	}
	s.tasks = s.withTask(taskId, true)
	s.Finished++
	return s.Ingest(result)
}

// withTask returns a copy of tasks with taskId set, leaving the receiver's map untouched.
func (s RunState) withTask(taskId string, finished bool) map[string]bool {
	tasks := make(map[string]bool, len(s.tasks)+1)
	for id, done := range s.tasks {
		tasks[id] = done
	}
	tasks[taskId] = finished
	return tasks
}

func (s RunState) WithPhase(phase Phase) RunState {
	s.Phase = phase
	return s
}

func (s RunState) WithAbort(reason string) RunState {
	s.Phase = Aborted
	s.AbortReason = reason
	return s
}

// FinalResult returns the best result once every unit has finished.
func (s RunState) FinalResult() (product.Result, error) {
	if !s.Complete() || s.Best == nil {
		return product.Result{}, &apperrors.ErrNotReady{
			Message: fmt.Sprintf("%d of %d units finished", s.Finished, s.TotalUnits),
		}
	}
	return *s.Best, nil
}
