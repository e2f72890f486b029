package transport

import (
	"fmt"

	"github.com/armadaproject/largestproduct/internal/common/apperrors"
	"github.com/armadaproject/largestproduct/internal/product"
	"github.com/armadaproject/largestproduct/pkg/agentapi"
)

const SourceExecutor = "SOURCE_EXECUTOR"

// Outcome is what an agent reports back for one task.
type Outcome struct {
	State   agentapi.TaskState
	Reason  string
	Message string
	// Marshalled result, set only when State is TASK_FINISHED.
	Data []byte
	// The underlying failure, for agent-side logging. Never sent.
	Err error
}

// Execute runs the evaluator over a marshalled work unit. Decoding, evaluation and encoding failures all become a
// TASK_FAILED outcome carrying a diagnostic message; Execute itself never fails.
func Execute(data []byte) Outcome {
	unit, err := DecodeRequest(data)
	if err != nil {
		return failed("decoding work unit", err)
	}
	result, err := product.Evaluate(unit)
	if err != nil {
		return failed(fmt.Sprintf("evaluating unit %d [%d,%d)", unit.Index, unit.Start, unit.End), err)
	}
	encoded, err := EncodeResult(result)
	if err != nil {
		return failed("encoding result", err)
	}
	return Outcome{
		State: agentapi.TaskState_TASK_FINISHED,
		Data:  encoded,
	}
}

func failed(stage string, err error) Outcome {
	return Outcome{
		State:   agentapi.TaskState_TASK_FAILED,
		Reason:  apperrors.ReasonFromError(err),
		Message: fmt.Sprintf("%s: %s", stage, err),
		Err:     err,
	}
}
