package transport

import (
	"testing"

	"github.com/gogo/protobuf/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/armadaproject/largestproduct/internal/common/apperrors"
	"github.com/armadaproject/largestproduct/internal/product"
	"github.com/armadaproject/largestproduct/pkg/agentapi"
)

func TestRequestRoundTrip(t *testing.T) {
	unit := product.WorkUnit{Index: 3, Start: 39, End: 44, WindowLength: 3, Digits: product.Digits{0, 1, 9, 3, 7}}
	data, err := EncodeRequest(unit)
	require.NoError(t, err)
	decoded, err := DecodeRequest(data)
	require.NoError(t, err)
	assert.Equal(t, unit, decoded)
}

func TestResultRoundTrip(t *testing.T) {
	result := product.Result{Product: 23514624000, Digits: "5576689664895"}
	data, err := EncodeResult(result)
	require.NoError(t, err)
	decoded, err := DecodeResult(data)
	require.NoError(t, err)
	assert.Equal(t, result, decoded)
}

func TestDecodeRequest_Invalid(t *testing.T) {
	tests := map[string][]byte{
		"garbage": {0xff, 0xff, 0xff},
		"bounds do not match digits": mustMarshal(t, &agentapi.WorkUnit{
			Start: 0, End: 5, WindowLength: 2, Digits: []byte{1, 2},
		}),
		"digit out of range": mustMarshal(t, &agentapi.WorkUnit{
			Start: 0, End: 2, WindowLength: 2, Digits: []byte{1, 12},
		}),
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeRequest(data)
			assert.Error(t, err)
		})
	}
}

func TestDecodeResult_Invalid(t *testing.T) {
	_, err := DecodeResult([]byte{0x09, 1, 2})
	assert.Error(t, err)

	_, err = DecodeResult(mustMarshal(t, &agentapi.Result{Product: 1, Digits: "1x"}))
	assert.Error(t, err)
}

func TestExecute(t *testing.T) {
	data, err := EncodeRequest(product.WorkUnit{Start: 0, End: 4, WindowLength: 2, Digits: product.Digits{0, 1, 9, 3}})
	require.NoError(t, err)

	outcome := Execute(data)
	require.Equal(t, agentapi.TaskState_TASK_FINISHED, outcome.State)
	assert.NoError(t, outcome.Err)
	result, err := DecodeResult(outcome.Data)
	require.NoError(t, err)
	assert.Equal(t, product.Result{Product: 27, Digits: "93"}, result)
}

func TestExecute_Failures(t *testing.T) {
	short, err := EncodeRequest(product.WorkUnit{Start: 0, End: 2, WindowLength: 3, Digits: product.Digits{9, 9}})
	require.NoError(t, err)

	tests := map[string]struct {
		data   []byte
		reason string
	}{
		"cannot decode":            {data: []byte{0xff, 0xff}, reason: apperrors.ReasonUnknown},
		"unit shorter than window": {data: short, reason: apperrors.ReasonInvalidArgument},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			outcome := Execute(tc.data)
			assert.Equal(t, agentapi.TaskState_TASK_FAILED, outcome.State)
			assert.Equal(t, tc.reason, outcome.Reason)
			assert.NotEmpty(t, outcome.Message)
			assert.Error(t, outcome.Err)
			assert.Nil(t, outcome.Data)
		})
	}
}

func mustMarshal(t *testing.T, msg proto.Message) []byte {
	t.Helper()
	data, err := proto.Marshal(msg)
	require.NoError(t, err)
	return data
}
