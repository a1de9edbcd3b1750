package errors

import (
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStandardErrorIs(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
	}{
		{"parse", ParseFailure("x * y > 0"), ErrNotLinear},
		{"decidability", DecidabilityMismatch("Byte", "x <= 255"), ErrDecidabilityMismatch},
		{"unavailable", SolverUnavailable("z3", io.EOF), ErrSolverUnavailable},
		{"timeout", SolverTimeout("z3", time.Second), ErrSolverTimeout},
		{"failure", SolverFailure("z3", io.ErrUnexpectedEOF), ErrSolverFailure},
		{"config", InvalidConfig("solver.kind", "unknown"), ErrInvalidConfig},
		{"incompatible", IncompatiblePack("sizes", ">= 2.0.0", "0.1.0"), ErrIncompatiblePack},
		{"invalid pack", InvalidPack("pack.yaml", io.EOF), ErrInvalidPack},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, errors.Is(tt.err, tt.target))
			assert.True(t, errors.Is(fmt.Errorf("wrapped: %w", tt.err), tt.target))
			assert.False(t, errors.Is(tt.err, ErrSolverFailure) && tt.target != ErrSolverFailure)
		})
	}
}

func TestStandardErrorCause(t *testing.T) {
	err := SolverFailure("z3", io.ErrUnexpectedEOF)
	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))
	assert.Contains(t, err.Error(), "[SOLVER:SOLVER_FAILURE]")
	assert.Contains(t, err.Error(), "unexpected EOF")
	assert.NotEmpty(t, err.Caller)

	plain := InvalidConfig("log.level", "unknown level")
	assert.Nil(t, plain.Unwrap())
	assert.Equal(t, "log.level", plain.Context["field"])
	assert.NotContains(t, plain.Error(), "<nil>")
}

func TestSummary(t *testing.T) {
	assert.Equal(t, `[PARSE:NOT_LINEAR] Predicate "x * y > 0" is not a recognized linear shape`,
		Summary(fmt.Errorf("goal: %w", ParseFailure("x * y > 0"))))
	assert.Equal(t, "EOF", Summary(io.EOF))
}
