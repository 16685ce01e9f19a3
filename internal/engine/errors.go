package engine

import "errors"

// Error kinds raised by engine operations. Every error returned by the engine
// wraps exactly one of these sentinels, so callers can classify failures with
// errors.Is instead of inspecting messages.
var (
	// ErrInvalidInput marks malformed arguments, detected before any store
	// access (non-positive quantities, NaN amounts).
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound marks a missing user, medication, prescription item, or
	// the financials singleton.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized marks an actor lacking the required role for an action.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRuleViolation marks a domain invariant that would be broken:
	// insufficient remaining periods, stock, or budget. It is an expected
	// business outcome, never retried by the engine.
	ErrRuleViolation = errors.New("rule violation")

	// ErrStore marks an infrastructural storage failure. Callers may retry;
	// every operation re-checks state, so retries are safe.
	ErrStore = errors.New("store failure")
)
