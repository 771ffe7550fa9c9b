package loss

import "errors"

// The four error kinds the core surfaces. Concrete errors returned by this
// package wrap one of these with fmt.Errorf("...: %w", ...) so callers can
// classify a failure with errors.Is even after it has picked up a specific
// message.
var (
	// ErrConfiguration marks a task/loss mismatch or an invalid label
	// column shape — a caller wiring error, not a data problem.
	ErrConfiguration = errors.New("loss: configuration error")
	// ErrData marks a problem with the data itself: non-positive total
	// weight, an OOV or out-of-range label, a missing required value. An
	// oversized ranking group is reported by the ranking package as
	// ranking.ErrGroupTooLarge instead.
	ErrData = errors.New("loss: data error")
	// ErrInternal marks a violated internal invariant: wrong tree count,
	// wrong gradient vector shape. These should never happen if the
	// trainer respects the per-iteration contract.
	ErrInternal = errors.New("loss: internal error")
	// ErrUnimplemented marks a loss kind outside the five supported ones.
	ErrUnimplemented = errors.New("loss: unimplemented loss kind")
)
