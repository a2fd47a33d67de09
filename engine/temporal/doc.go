// Package temporal implements the workflow engine adapter backed by Temporal
// (https://temporal.io). It satisfies the generic engine.Engine interface,
// letting the workflow executor orchestrate durable executions without
// importing the Temporal SDK directly.
//
// # Why Temporal?
//
// Temporal provides durable execution for long-running workflow graphs. When
// an execution dispatches many nodes, awaits human input at a checkpoint, or
// runs for hours across a fork/join/loop structure, Temporal ensures the
// execution state survives process restarts, network failures, and crashes
// by replaying from event history.
//
// # Constructing an Engine
//
//	eng, err := temporal.New(temporal.Options{
//	    ClientOptions: &client.Options{HostPort: "temporal:7233", Namespace: "default"},
//	    WorkerOptions: temporal.WorkerOptions{TaskQueue: "workflow-engine.default"},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer eng.Close()
//
// # Workflow determinism
//
// Temporal workflows must be deterministic: given the same inputs and event
// history, they must produce the same outputs. WorkflowContext exposes only
// deterministic operations — Now(), ExecuteActivity/ExecuteActivityAsync, and
// SignalChannel. Node executors that perform actual I/O (agent provider
// calls, tool invocations over MCP) run inside activities, which are not
// constrained by determinism; the workflow handler coordinates activities and
// processes their results deterministically.
//
// # OpenTelemetry integration
//
// The engine installs OTEL interceptors on the Temporal client and worker by
// default, propagating trace context through workflow and activity
// boundaries.
package temporal
