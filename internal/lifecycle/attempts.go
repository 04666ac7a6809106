package lifecycle

import (
	"context"
	"strings"
)

// Attempt is one labeled way of performing an operation.
type Attempt[T any] struct {
	Label string
	Run   func(ctx context.Context) (T, error)
}

// AttemptFailure records why one attempt did not succeed.
type AttemptFailure struct {
	Label string
	Err   error
}

// AttemptsError aggregates every failed attempt in the order they ran.
type AttemptsError struct {
	Failures []AttemptFailure
}

func (e *AttemptsError) Error() string {
	sections := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		detail := "(нет текста)"
		if f.Err != nil && f.Err.Error() != "" {
			detail = f.Err.Error()
		}
		sections = append(sections, "["+f.Label+"]\n"+detail)
	}
	return strings.Join(sections, "\n\n")
}

// FirstSuccess runs attempts in order and stops at the first success,
// returning its value and label. When all fail the error is *AttemptsError.
// A cancelled context stops the chain early.
func FirstSuccess[T any](ctx context.Context, attempts []Attempt[T]) (T, string, error) {
	var zero T
	failed := &AttemptsError{}
	for _, a := range attempts {
		if err := ctx.Err(); err != nil {
			failed.Failures = append(failed.Failures, AttemptFailure{Label: a.Label, Err: err})
			return zero, "", failed
		}
		v, err := a.Run(ctx)
		if err == nil {
			return v, a.Label, nil
		}
		failed.Failures = append(failed.Failures, AttemptFailure{Label: a.Label, Err: err})
	}
	return zero, "", failed
}
