package model

import "time"

// Outcome represents the terminal state of an execution. The four outcomes
// are mutually exclusive and exhaustive: every execution ends in exactly one.
type Outcome string

const (
	// OutcomeCompleted indicates the command ran to completion, regardless of
	// its exit code. A nonzero exit code is not a failure at this level.
	OutcomeCompleted Outcome = "completed"
	// OutcomeTimedOut indicates the command started but exceeded its
	// wall-clock bound and was forcibly terminated.
	OutcomeTimedOut Outcome = "timed-out"
	// OutcomeFailed indicates the execution never started or crashed
	// abnormally (missing binary, I/O setup error, runtime unreachable).
	OutcomeFailed Outcome = "failed"
	// OutcomeDenied indicates the request was rejected by policy or
	// validation before anything was spawned.
	OutcomeDenied Outcome = "denied"
)

// ExecutionResult captures the outcome of a sandboxed execution. Only the
// fields of the active outcome are meaningful; use the constructors so the
// invariant holds.
type ExecutionResult struct {
	Outcome Outcome

	// Completed fields.
	ExitCode  int
	Stdout    string
	Artifacts []Artifact

	// Completed and TimedOut: Stderr holds full (Completed) or partial
	// (TimedOut) standard error output. Duration is the elapsed wall-clock
	// time; for TimedOut it is roughly the configured timeout.
	Stderr   string
	Duration time.Duration

	// Failed and Denied fields.
	Reason string
	// Cause is the underlying error for Failed results, when there is one.
	Cause error
}

// NewCompleted returns a result for a command that ran to completion.
func NewCompleted(exitCode int, stdout, stderr string, duration time.Duration, artifacts []Artifact) *ExecutionResult {
	return &ExecutionResult{
		Outcome:   OutcomeCompleted,
		ExitCode:  exitCode,
		Stdout:    stdout,
		Stderr:    stderr,
		Duration:  duration,
		Artifacts: artifacts,
	}
}

// NewTimedOut returns a result for a command that exceeded its timeout,
// with whatever stderr had been captured before termination.
func NewTimedOut(duration time.Duration, partialStderr string) *ExecutionResult {
	return &ExecutionResult{
		Outcome:  OutcomeTimedOut,
		Duration: duration,
		Stderr:   partialStderr,
	}
}

// NewFailed returns a result for an execution that never started or crashed
// abnormally. cause may be nil.
func NewFailed(reason string, cause error) *ExecutionResult {
	return &ExecutionResult{
		Outcome: OutcomeFailed,
		Reason:  reason,
		Cause:   cause,
	}
}

// NewDenied returns a result for a request rejected before execution.
func NewDenied(reason string) *ExecutionResult {
	return &ExecutionResult{
		Outcome: OutcomeDenied,
		Reason:  reason,
	}
}

// Success is true iff the command completed with exit code zero.
func (r *ExecutionResult) Success() bool {
	return r.Outcome == OutcomeCompleted && r.ExitCode == 0
}
