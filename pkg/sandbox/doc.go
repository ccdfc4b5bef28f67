// Package sandbox provides a Go SDK for executing commands and skill scripts
// inside sandboxes programmatically.
//
// This package allows applications to run untrusted commands without shelling
// out to the sandrun CLI binary. It re-exports the execution contract and the
// executor constructors.
//
// # Quick Start
//
// Create an executor and run a command:
//
//	exec, err := sandbox.NewProcessExecutor(sandbox.ProcessConfig{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := exec.Execute(ctx, sandbox.ExecutionRequest{
//	    Command:       []string{"echo", "hello"},
//	    Timeout:       30 * time.Second,
//	    CaptureOutput: true,
//	})
//
// Every execution yields exactly one of four outcomes: [OutcomeCompleted],
// [OutcomeTimedOut], [OutcomeFailed] or [OutcomeDenied]. Expected sandbox
// conditions (nonzero exits, timeouts, policy denials) are outcomes, never
// errors.
//
// # Executors
//
//   - [NewProcessExecutor]: commands run as host child processes with a
//     watchdog timeout and a sanitized environment.
//   - [NewDockerExecutor]: commands run in ephemeral resource-limited
//     containers. Requires a reachable Docker daemon.
//   - [NewDenyExecutor]: denies everything. The safe default when no sandbox
//     has been configured.
//
// # Scripts
//
// Skill scripts are dispatched through a [Runner], which picks the
// interpreter from the script language and enforces a language allow-list:
//
//	runner, err := sandbox.NewScriptRunner(sandbox.ScriptRunnerConfig{Executor: exec})
//	script := sandbox.NewScript("analyzer", "summarize.py", "/skills/analyzer")
//	result, err := runner.Execute(ctx, script, sandbox.ScriptOpts{Args: []string{"input.csv"}})
package sandbox
