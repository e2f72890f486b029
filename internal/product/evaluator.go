package product

import (
	"strconv"

	"github.com/armadaproject/largestproduct/internal/common/apperrors"
)

// Evaluate returns the window of unit.WindowLength adjacent digits with the greatest product.
// Every start offset from 0 to len-w is considered and the first maximal window wins.
// An empty unit yields Identity(). A unit that is non-empty but shorter than one window,
// a window length outside [1, MaxWindowLength], or a digit outside [0,9] is an invalid argument.
func Evaluate(unit WorkUnit) (Result, error) {
	w := unit.WindowLength
	if w <= 0 || w > MaxWindowLength {
		return Result{}, &apperrors.ErrInvalidArgument{
			Name:    "windowLength",
			Value:   w,
			Message: "must be between 1 and " + itoa(MaxWindowLength),
		}
	}
	if err := unit.Digits.Validate(); err != nil {
		return Result{}, err
	}
	n := len(unit.Digits)
	if n == 0 {
		return Identity(), nil
	}
	if n < w {
		return Result{}, &apperrors.ErrInvalidArgument{
			Name:    "digits",
			Value:   unit.Digits.String(),
			Message: "unit holds " + itoa(n) + " digits, shorter than window length " + itoa(w),
		}
	}

	bestOffset := 0
	bestProduct := windowProduct(unit.Digits[:w])
	for offset := 1; offset <= n-w; offset++ {
		p := windowProduct(unit.Digits[offset : offset+w])
		if p > bestProduct {
			bestProduct = p
			bestOffset = offset
		}
	}
	return Result{
		Product: bestProduct,
		Digits:  unit.Digits[bestOffset : bestOffset+w].String(),
	}, nil
}

// EvaluateAll evaluates every window of the full sequence directly, without partitioning.
func EvaluateAll(digits Digits, windowLength int) (Result, error) {
	return Evaluate(WorkUnit{End: len(digits), WindowLength: windowLength, Digits: digits})
}

func windowProduct(window Digits) uint64 {
	p := uint64(1)
	for _, v := range window {
		if v == 0 {
			return 0
		}
		p *= uint64(v)
	}
	return p
}

func itoa(i int) string {
	return strconv.Itoa(i)
}
