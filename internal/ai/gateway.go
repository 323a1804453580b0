// Package ai wraps the text-completion backend behind a non-throwing gateway:
// every call yields a Result, never an error.
package ai

import "context"

// Sentinel strings rendered into answer text when a completion could not be
// produced. Callers branch on Result.State; the strings exist only for the
// caller-facing answer surface.
const (
	SentinelUnavailable = "[Chat unavailable]"
	sentinelErrorPrefix = "[Chat error"
)

type State int

const (
	StateSuccess State = iota
	// StateUnavailable means no backend credential is configured; no network
	// call was attempted.
	StateUnavailable
	// StateFailure covers transport, quota and malformed-response errors.
	StateFailure
)

// Result is the outcome of one completion call.
type Result struct {
	State  State
	Text   string
	Detail string
}

func Success(text string) Result {
	return Result{State: StateSuccess, Text: text}
}

func Unavailable() Result {
	return Result{State: StateUnavailable}
}

func Failure(detail string) Result {
	return Result{State: StateFailure, Detail: detail}
}

func (r Result) OK() bool {
	return r.State == StateSuccess
}

// Sentinel renders the legacy text form of the result: the completion text on
// success, a fixed marker otherwise.
func (r Result) Sentinel() string {
	switch r.State {
	case StateUnavailable:
		return SentinelUnavailable
	case StateFailure:
		return sentinelErrorPrefix + ": " + r.Detail + "]"
	default:
		return r.Text
	}
}

// Client executes one completion request. Implementations must not return
// errors; degradations are carried in the Result.
type Client interface {
	Complete(ctx context.Context, system, prompt string) Result
}
