package apperrors

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestReasonFromError(t *testing.T) {
	tests := map[string]struct {
		err  error
		want string
	}{
		"ErrInvalidArgument":              {&ErrInvalidArgument{}, ReasonInvalidArgument},
		"ErrNotReady":                     {&ErrNotReady{}, ReasonNotReady},
		"ErrNotFound":                     {&ErrNotFound{}, ReasonNotFound},
		"pkg.Error => ErrInvalidArgument": {errors.WithMessage(&ErrInvalidArgument{}, "foo"), ReasonInvalidArgument},
		"pkg.Error => ErrNotReady":        {errors.Wrap(&ErrNotReady{}, "foo"), ReasonNotReady},
		"pkg.Error":                       {errors.New("foo"), ReasonUnknown},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, ReasonFromError(tc.err))
		})
	}
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t,
		`value "21" is invalid for field "windowLength"; product would overflow 64 bits`,
		(&ErrInvalidArgument{Name: "windowLength", Value: 21, Message: "product would overflow 64 bits"}).Error())
	assert.Equal(t, `value "x" is invalid for field "digits"`, (&ErrInvalidArgument{Name: "digits", Value: "x"}).Error())
	assert.Equal(t, "not ready; 2 of 3 units finished", (&ErrNotReady{Message: "2 of 3 units finished"}).Error())
	assert.Equal(t, `resource "o-1" of type "offer" does not exist`, (&ErrNotFound{Type: "offer", Value: "o-1"}).Error())
}
