package inmem

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/agentforge/workflow-engine/engine"
)

type dispatchInput struct {
	Kind string
}

type dispatchOutput struct {
	Echo string
}

func TestExecuteActivitySynchronous(t *testing.T) {
	eng := New()
	ctx := context.Background()

	require.NoError(t, eng.RegisterActivity(ctx, engine.ActivityDefinition{
		Name: "dispatch_node",
		Handler: func(_ context.Context, input any) (any, error) {
			in := input.(*dispatchInput)
			return &dispatchOutput{Echo: in.Kind}, nil
		},
	}))

	require.NoError(t, eng.RegisterWorkflow(ctx, engine.WorkflowDefinition{
		Name: "execution_workflow",
		Handler: func(wfCtx engine.WorkflowContext, input any) (any, error) {
			var out dispatchOutput
			err := wfCtx.ExecuteActivity(wfCtx.Context(), engine.ActivityRequest{
				Name:  "dispatch_node",
				Input: &dispatchInput{Kind: "standard-agent"},
			}, &out)
			return &out, err
		},
	}))

	handle, err := eng.StartWorkflow(ctx, engine.WorkflowStartRequest{
		ID:       "exec-1",
		Workflow: "execution_workflow",
	})
	require.NoError(t, err)

	var result dispatchOutput
	require.NoError(t, handle.Wait(ctx, &result))
	require.Equal(t, "standard-agent", result.Echo)
}

func TestExecuteActivityAsyncFuture(t *testing.T) {
	eng := New()
	ctx := context.Background()

	require.NoError(t, eng.RegisterActivity(ctx, engine.ActivityDefinition{
		Name: "dispatch_node",
		Handler: func(_ context.Context, input any) (any, error) {
			return &dispatchOutput{Echo: input.(*dispatchInput).Kind}, nil
		},
	}))

	require.NoError(t, eng.RegisterWorkflow(ctx, engine.WorkflowDefinition{
		Name: "fork_workflow",
		Handler: func(wfCtx engine.WorkflowContext, input any) (any, error) {
			fut, err := wfCtx.ExecuteActivityAsync(wfCtx.Context(), engine.ActivityRequest{
				Name:  "dispatch_node",
				Input: &dispatchInput{Kind: "fork-branch"},
			})
			if err != nil {
				return nil, err
			}
			var out dispatchOutput
			if err := fut.Get(wfCtx.Context(), &out); err != nil {
				return nil, err
			}
			return &out, nil
		},
	}))

	handle, err := eng.StartWorkflow(ctx, engine.WorkflowStartRequest{ID: "exec-2", Workflow: "fork_workflow"})
	require.NoError(t, err)

	var result dispatchOutput
	require.NoError(t, handle.Wait(ctx, &result))
	require.Equal(t, "fork-branch", result.Echo)
}

func TestSignalDelivery(t *testing.T) {
	eng := New()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	type pauseRequest struct {
		Reason string
	}

	require.NoError(t, eng.RegisterWorkflow(ctx, engine.WorkflowDefinition{
		Name: "pausable_workflow",
		Handler: func(wfCtx engine.WorkflowContext, input any) (any, error) {
			var req pauseRequest
			if err := wfCtx.SignalChannel("pause").Receive(wfCtx.Context(), &req); err != nil {
				return nil, err
			}
			return &req, nil
		},
	}))

	handle, err := eng.StartWorkflow(ctx, engine.WorkflowStartRequest{ID: "exec-3", Workflow: "pausable_workflow"})
	require.NoError(t, err)

	require.NoError(t, handle.Signal(ctx, "pause", &pauseRequest{Reason: "human-review"}))

	var result pauseRequest
	require.NoError(t, handle.Wait(ctx, &result))
	require.Equal(t, "human-review", result.Reason)
}

func TestSignalAfterCompletionReturnsWorkflowCompleted(t *testing.T) {
	eng := New()
	ctx := context.Background()

	require.NoError(t, eng.RegisterWorkflow(ctx, engine.WorkflowDefinition{
		Name:    "fast_workflow",
		Handler: func(wfCtx engine.WorkflowContext, input any) (any, error) { return "done", nil },
	}))

	handle, err := eng.StartWorkflow(ctx, engine.WorkflowStartRequest{ID: "exec-4", Workflow: "fast_workflow"})
	require.NoError(t, err)

	var result string
	require.NoError(t, handle.Wait(ctx, &result))

	err = handle.Signal(ctx, "pause", struct{}{})
	require.ErrorIs(t, err, engine.ErrWorkflowCompleted)
}
