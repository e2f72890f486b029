// Package coordinator slices the digit sequence into overlapping work units and reduces the results that come
// back from the agents into the run-wide best. It only knows unit indices, never which agent runs what.
package coordinator

import (
	"fmt"

	"github.com/armadaproject/largestproduct/internal/common/apperrors"
	"github.com/armadaproject/largestproduct/internal/product"
)

type Config struct {
	// Number of adjacent digits in a window.
	WindowLength int
	// Number of digits handed to each unit. Zero means the smallest span that still covers every window, 2w-1.
	UnitLength int
	// Caps every unit at len-1 instead of len. The window ending at the last digit is then never evaluated.
	TruncateTail bool
	// Accepts a UnitLength between w and 2w-2. Each unit then misses the windows starting in
	// [start+UnitLength-w+1, start+w-1].
	AllowShortUnits bool
}

// Coordinator owns the digit sequence and the partitioning scheme. Unit start offsets stride by the window length
// while each unit spans UnitLength digits, so neighbouring units overlap and every window lies inside some unit.
type Coordinator struct {
	digits       product.Digits
	windowLength int
	unitLength   int
	truncateTail bool
}

func New(digits product.Digits, config Config) (*Coordinator, error) {
	w := config.WindowLength
	if w <= 0 || w > product.MaxWindowLength {
		return nil, &apperrors.ErrInvalidArgument{
			Name:    "windowLength",
			Value:   w,
			Message: fmt.Sprintf("must be between 1 and %d", product.MaxWindowLength),
		}
	}
	if err := digits.Validate(); err != nil {
		return nil, err
	}
	usable := len(digits)
	if config.TruncateTail {
		usable--
	}
	if usable < w {
		return nil, &apperrors.ErrInvalidArgument{
			Name:    "digits",
			Value:   len(digits),
			Message: fmt.Sprintf("sequence must hold at least one window of %d digits", w),
		}
	}
	unitLength := config.UnitLength
	if unitLength == 0 {
		unitLength = minimumUnitLength(w)
	}
	if unitLength < w {
		return nil, &apperrors.ErrInvalidArgument{
			Name:    "unitLength",
			Value:   unitLength,
			Message: fmt.Sprintf("units must hold at least one window of %d digits", w),
		}
	}
	if unitLength < minimumUnitLength(w) && !config.AllowShortUnits {
		return nil, &apperrors.ErrInvalidArgument{
			Name:    "unitLength",
			Value:   unitLength,
			Message: fmt.Sprintf("units striding by %d need at least %d digits to cover every window", w, minimumUnitLength(w)),
		}
	}
	return &Coordinator{
		digits:       digits,
		windowLength: w,
		unitLength:   unitLength,
		truncateTail: config.TruncateTail,
	}, nil
}

func minimumUnitLength(windowLength int) int {
	return 2*windowLength - 1
}

func (c *Coordinator) WindowLength() int {
	return c.windowLength
}

func (c *Coordinator) UnitLength() int {
	return c.unitLength
}

func (c *Coordinator) SequenceLength() int {
	return len(c.digits)
}

// PartitionCount returns ceil(len(digits) / windowLength).
func (c *Coordinator) PartitionCount() int {
	return (len(c.digits) + c.windowLength - 1) / c.windowLength
}

// UnitFor returns the work unit at the given index of the partition.
// A unit near the tail that would hold less than one window is shifted left so it ends on the same digit
// but holds exactly one window; the unit before it already covers the windows it gives up.
func (c *Coordinator) UnitFor(index int) (product.WorkUnit, error) {
	if index < 0 || index >= c.PartitionCount() {
		return product.WorkUnit{}, &apperrors.ErrInvalidArgument{
			Name:    "index",
			Value:   index,
			Message: fmt.Sprintf("partition has %d units", c.PartitionCount()),
		}
	}
	limit := len(c.digits)
	if c.truncateTail {
		limit--
	}
	start := index * c.windowLength
	end := start + c.unitLength
	if end > limit {
		end = limit
	}
	if end-start < c.windowLength {
		start = end - c.windowLength
	}
	digits := make(product.Digits, end-start)
	copy(digits, c.digits[start:end])
	return product.WorkUnit{
		Index:        index,
		Start:        start,
		End:          end,
		WindowLength: c.windowLength,
		Digits:       digits,
	}, nil
}
