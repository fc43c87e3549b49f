package diffshape

import (
	"errors"
	"fmt"

	"github.com/meysamhadeli/gitshape/diffshape/models"
)

// ErrorKind categorises shaping failures.
type ErrorKind int

const (
	// KindMalformedDiff means the input could not be split into files and hunks.
	KindMalformedDiff ErrorKind = iota + 1
	// KindBudgetExceeded means even the minimal document does not fit.
	KindBudgetExceeded
	// KindInvalidOptions means the shaping options are out of range.
	KindInvalidOptions
)

func (k ErrorKind) String() string {
	switch k {
	case KindMalformedDiff:
		return "MALFORMED_DIFF"
	case KindBudgetExceeded:
		return "BUDGET_EXCEEDED"
	case KindInvalidOptions:
		return "INVALID_OPTIONS"
	default:
		return "UNKNOWN"
	}
}

// Sentinels for errors.Is.
var (
	ErrMalformedDiff  = errors.New("malformed diff")
	ErrBudgetExceeded = errors.New("budget exceeded")
	ErrInvalidOptions = errors.New("invalid options")
)

// ShapeError is returned by every failing engine operation.
type ShapeError struct {
	Kind    ErrorKind
	Message string
	// Line is the 1-based input line for MalformedDiff, 0 otherwise.
	Line  int
	Cause error
	// Partial carries the minimal payload for BudgetExceeded.
	Partial *models.Result
}

func (e *ShapeError) Error() string {
	msg := e.Message
	if e.Line > 0 {
		msg = fmt.Sprintf("line %d: %s", e.Line, msg)
	}
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, msg, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, msg)
}

func (e *ShapeError) Unwrap() error {
	return e.Cause
}

// Is matches the kind sentinels.
func (e *ShapeError) Is(target error) bool {
	switch target {
	case ErrMalformedDiff:
		return e.Kind == KindMalformedDiff
	case ErrBudgetExceeded:
		return e.Kind == KindBudgetExceeded
	case ErrInvalidOptions:
		return e.Kind == KindInvalidOptions
	}
	return false
}

// IsKind reports whether err is a ShapeError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var shapeErr *ShapeError
	if errors.As(err, &shapeErr) {
		return shapeErr.Kind == kind
	}
	return false
}

// PartialResult extracts the minimal payload attached to a BudgetExceeded error.
func PartialResult(err error) (*models.Result, bool) {
	var shapeErr *ShapeError
	if errors.As(err, &shapeErr) && shapeErr.Partial != nil {
		return shapeErr.Partial, true
	}
	return nil, false
}

func malformed(line int, format string, args ...any) *ShapeError {
	return &ShapeError{Kind: KindMalformedDiff, Line: line, Message: fmt.Sprintf(format, args...)}
}

func budgetExceeded(budget, size int, partial *models.Result) *ShapeError {
	return &ShapeError{
		Kind:    KindBudgetExceeded,
		Message: fmt.Sprintf("file summaries alone need %d chars, budget is %d", size, budget),
		Partial: partial,
	}
}

func invalidOptions(cause error) *ShapeError {
	return &ShapeError{Kind: KindInvalidOptions, Message: "invalid shaping options", Cause: cause}
}
