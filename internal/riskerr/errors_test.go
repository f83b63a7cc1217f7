package riskerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_WrapsCategory(t *testing.T) {
	errBadAlpha := New(ErrConfiguration, "alpha must be in (0,1)")

	assert.True(t, errors.Is(errBadAlpha, ErrConfiguration))
	assert.False(t, errors.Is(errBadAlpha, ErrNumerical))
	assert.Equal(t, "configuration error: alpha must be in (0,1)", errBadAlpha.Error())
}

func TestCategory(t *testing.T) {
	errNotPD := New(ErrNumerical, "not positive definite")
	wrapped := fmt.Errorf("window 12: %w", errNotPD)

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"numerical through wrap", wrapped, ErrNumerical},
		{"data", New(ErrData, "empty"), ErrData},
		{"configuration", ErrConfiguration, ErrConfiguration},
		{"unrelated", errors.New("boom"), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Category(tt.err))
		})
	}
}
