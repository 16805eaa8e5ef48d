package core

// OutcomeState classifies the result of a best-effort external call
type OutcomeState int

const (
	OutcomeOK OutcomeState = iota
	OutcomeDegraded
	OutcomeFailed
)

func (s OutcomeState) String() string {
	switch s {
	case OutcomeOK:
		return "ok"
	case OutcomeDegraded:
		return "degraded"
	default:
		return "failed"
	}
}

// Outcome is the result of a best-effort call. Callers always have a fallback,
// so a failed outcome is never propagated as an error across entry processing.
type Outcome[T any] struct {
	Value T
	State OutcomeState
	Err   error
}

// Succeeded wraps a value obtained from the remote side
func Succeeded[T any](v T) Outcome[T] {
	return Outcome[T]{Value: v, State: OutcomeOK}
}

// Degraded carries a fallback value together with the reason it was used
func Degraded[T any](fallback T, err error) Outcome[T] {
	return Outcome[T]{Value: fallback, State: OutcomeDegraded, Err: err}
}

// Failed carries only the error; Value is the zero value
func Failed[T any](err error) Outcome[T] {
	return Outcome[T]{State: OutcomeFailed, Err: err}
}

// OK reports whether the value came from the remote side
func (o Outcome[T]) OK() bool {
	return o.State == OutcomeOK
}

// ValueOr returns the outcome value unless the call failed outright
func (o Outcome[T]) ValueOr(fallback T) T {
	if o.State == OutcomeFailed {
		return fallback
	}
	return o.Value
}
