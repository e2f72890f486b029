// Package transport converts work units and results to and from their wire form and wraps the evaluator for agents.
package transport

import (
	"github.com/gogo/protobuf/proto"
	"github.com/pkg/errors"

	"github.com/armadaproject/largestproduct/internal/common/apperrors"
	"github.com/armadaproject/largestproduct/internal/product"
	"github.com/armadaproject/largestproduct/pkg/agentapi"
)

func EncodeRequest(unit product.WorkUnit) ([]byte, error) {
	if unit.Index < 0 || unit.Start < 0 || unit.End < unit.Start || unit.WindowLength < 0 {
		return nil, &apperrors.ErrInvalidArgument{Name: "unit", Value: unit.Index, Message: "negative bounds"}
	}
	msg := &agentapi.WorkUnit{
		Index:        uint32(unit.Index),
		Start:        uint32(unit.Start),
		End:          uint32(unit.End),
		WindowLength: uint32(unit.WindowLength),
		Digits:       []byte(unit.Digits),
	}
	data, err := proto.Marshal(msg)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return data, nil
}

// DecodeRequest unmarshals a work unit and checks that it is self-consistent.
func DecodeRequest(data []byte) (product.WorkUnit, error) {
	msg := &agentapi.WorkUnit{}
	if err := proto.Unmarshal(data, msg); err != nil {
		return product.WorkUnit{}, errors.Wrap(err, "decoding work unit")
	}
	unit := product.WorkUnit{
		Index:        int(msg.Index),
		Start:        int(msg.Start),
		End:          int(msg.End),
		WindowLength: int(msg.WindowLength),
		Digits:       product.Digits(msg.Digits),
	}
	if unit.End-unit.Start != len(unit.Digits) {
		return product.WorkUnit{}, &apperrors.ErrInvalidArgument{
			Name:    "digits",
			Value:   len(unit.Digits),
			Message: "length does not match unit bounds",
		}
	}
	if err := unit.Digits.Validate(); err != nil {
		return product.WorkUnit{}, err
	}
	return unit, nil
}

func EncodeResult(result product.Result) ([]byte, error) {
	data, err := proto.Marshal(&agentapi.Result{
		Product: result.Product,
		Digits:  result.Digits,
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return data, nil
}

func DecodeResult(data []byte) (product.Result, error) {
	msg := &agentapi.Result{}
	if err := proto.Unmarshal(data, msg); err != nil {
		return product.Result{}, errors.Wrap(err, "decoding result")
	}
	if _, err := product.ParseDigits(msg.Digits); err != nil {
		return product.Result{}, err
	}
	return product.Result{Product: msg.Product, Digits: msg.Digits}, nil
}
