// Package errors provides standardized error values for the refinement prover.
package errors

import (
	"errors"
	"fmt"
	"runtime"
	"time"
)

// ErrorCategory represents different categories of errors
type ErrorCategory string

const (
	CategoryParse        ErrorCategory = "PARSE"
	CategoryDecidability ErrorCategory = "DECIDABILITY"
	CategorySolver       ErrorCategory = "SOLVER"
	CategoryConfig       ErrorCategory = "CONFIG"
	CategoryRegistry     ErrorCategory = "REGISTRY"
)

// StandardError provides a consistent error format
type StandardError struct {
	Category ErrorCategory
	Code     string
	Message  string
	Context  map[string]interface{}
	Caller   string
	Cause    error
}

// Error implements the error interface
func (e *StandardError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v (caller: %s)", e.Category, e.Code, e.Message, e.Cause, e.Caller)
	}
	return fmt.Sprintf("[%s:%s] %s (caller: %s)", e.Category, e.Code, e.Message, e.Caller)
}

// Summary renders err without its caller, for user-facing reasons.
// Errors that are not StandardErrors render as err.Error().
func Summary(err error) string {
	var se *StandardError
	if !errors.As(err, &se) {
		return err.Error()
	}
	return fmt.Sprintf("[%s:%s] %s", se.Category, se.Code, se.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *StandardError) Unwrap() error {
	return e.Cause
}

// Is matches another StandardError with the same category and code.
func (e *StandardError) Is(target error) bool {
	var se *StandardError
	if !errors.As(target, &se) {
		return false
	}
	return se.Category == e.Category && se.Code == e.Code
}

// NewStandardError creates a new standardized error
func NewStandardError(category ErrorCategory, code, message string, context map[string]interface{}) *StandardError {
	pc, _, _, ok := runtime.Caller(1)
	caller := "unknown"
	if ok {
		if fn := runtime.FuncForPC(pc); fn != nil {
			caller = fn.Name()
		}
	}

	return &StandardError{
		Category: category,
		Code:     code,
		Message:  message,
		Context:  context,
		Caller:   caller,
	}
}

func (e *StandardError) wrap(cause error) *StandardError {
	e.Cause = cause
	return e
}

// Sentinels for errors.Is comparisons.
var (
	ErrNotLinear            = &StandardError{Category: CategoryParse, Code: "NOT_LINEAR"}
	ErrDecidabilityMismatch = &StandardError{Category: CategoryDecidability, Code: "DECIDABILITY_MISMATCH"}
	ErrSolverUnavailable    = &StandardError{Category: CategorySolver, Code: "SOLVER_UNAVAILABLE"}
	ErrSolverTimeout        = &StandardError{Category: CategorySolver, Code: "SOLVER_TIMEOUT"}
	ErrSolverFailure        = &StandardError{Category: CategorySolver, Code: "SOLVER_FAILURE"}
	ErrInvalidConfig        = &StandardError{Category: CategoryConfig, Code: "INVALID_CONFIG"}
	ErrIncompatiblePack     = &StandardError{Category: CategoryRegistry, Code: "INCOMPATIBLE_PACK"}
	ErrInvalidPack          = &StandardError{Category: CategoryRegistry, Code: "INVALID_PACK"}
)

// Common error constructors
func ParseFailure(text string) *StandardError {
	return NewStandardError(CategoryParse, "NOT_LINEAR",
		fmt.Sprintf("Predicate %q is not a recognized linear shape", text),
		map[string]interface{}{"text": text})
}

func DecidabilityMismatch(brand, goal string) *StandardError {
	return NewStandardError(CategoryDecidability, "DECIDABILITY_MISMATCH",
		fmt.Sprintf("Brand %s is declared compile-time decidable but %q fell back to a runtime check", brand, goal),
		map[string]interface{}{"brand": brand, "goal": goal})
}

func SolverUnavailable(name string, cause error) *StandardError {
	return NewStandardError(CategorySolver, "SOLVER_UNAVAILABLE",
		fmt.Sprintf("Decision procedure %s is unavailable", name),
		map[string]interface{}{"solver": name}).wrap(cause)
}

func SolverTimeout(name string, timeout time.Duration) *StandardError {
	return NewStandardError(CategorySolver, "SOLVER_TIMEOUT",
		fmt.Sprintf("Decision procedure %s timed out after %s", name, timeout),
		map[string]interface{}{"solver": name, "timeout": timeout.String()})
}

func SolverFailure(name string, cause error) *StandardError {
	return NewStandardError(CategorySolver, "SOLVER_FAILURE",
		fmt.Sprintf("Decision procedure %s failed", name),
		map[string]interface{}{"solver": name}).wrap(cause)
}

func InvalidConfig(field, reason string) *StandardError {
	return NewStandardError(CategoryConfig, "INVALID_CONFIG",
		fmt.Sprintf("Invalid configuration field %s: %s", field, reason),
		map[string]interface{}{"field": field, "reason": reason})
}

func IncompatiblePack(pack, requires, version string) *StandardError {
	return NewStandardError(CategoryRegistry, "INCOMPATIBLE_PACK",
		fmt.Sprintf("Seed pack %s requires prover %s, running %s", pack, requires, version),
		map[string]interface{}{"pack": pack, "requires": requires, "version": version})
}

func InvalidPack(path string, cause error) *StandardError {
	return NewStandardError(CategoryRegistry, "INVALID_PACK",
		fmt.Sprintf("Seed pack %s is invalid", path),
		map[string]interface{}{"path": path}).wrap(cause)
}
