package product

import (
	"strings"

	"github.com/armadaproject/largestproduct/internal/common/apperrors"
)

// MaxWindowLength is the longest window whose product always fits in a uint64: 9^20 < 2^64 < 9^21.
const MaxWindowLength = 20

// Digits is a sequence of single decimal digits, one value in [0,9] per element.
type Digits []uint8

// ParseDigits converts a string of ASCII decimal digits into Digits.
func ParseDigits(s string) (Digits, error) {
	digits := make(Digits, 0, len(s))
	for i, r := range s {
		if r < '0' || r > '9' {
			return nil, &apperrors.ErrInvalidArgument{
				Name:    "digits",
				Value:   string(r),
				Message: "not a decimal digit at position " + itoa(i),
			}
		}
		digits = append(digits, uint8(r-'0'))
	}
	return digits, nil
}

// Validate checks that every element is a single decimal digit.
func (d Digits) Validate() error {
	for i, v := range d {
		if v > 9 {
			return &apperrors.ErrInvalidArgument{
				Name:    "digits",
				Value:   v,
				Message: "not a decimal digit at position " + itoa(i),
			}
		}
	}
	return nil
}

func (d Digits) String() string {
	var sb strings.Builder
	sb.Grow(len(d))
	for _, v := range d {
		sb.WriteByte('0' + v)
	}
	return sb.String()
}

// WorkUnit is the slice [Start, End) of the full digit sequence that one task evaluates.
type WorkUnit struct {
	// Position of the unit in the partition; also used as the task id.
	Index        int
	Start        int
	End          int
	WindowLength int
	Digits       Digits
}

// Result is the best window found in some set of windows.
// The zero-window identity is Result{Product: 1}, see Identity.
type Result struct {
	Product uint64
	Digits  string
}

// Identity returns the product of zero digits.
func Identity() Result {
	return Result{Product: 1}
}
