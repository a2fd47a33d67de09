// Package workflow defines the workflow-definition and execution-state data
// model and the graph interpreter (Executor) that drives an execution across
// nodes to completion.
package workflow

import (
	"encoding/json"
	"fmt"
	"time"
)

// Reserved context keys threaded through every execution.
const (
	CtxTenantID            = "_tenant_id"
	CtxExecutionID          = "_execution_id"
	CtxPlanReviewRequired   = "_plan_review_required"
	CtxPlanFailureTarget    = "_plan_failure_target"
	CtxLoopBreakTarget      = "_loop_break_target"
)

// Workflow is an immutable, versioned graph of nodes. It is built by an
// external compiler and is read-only at runtime; the zero value is never
// valid, use NewWorkflow.
type Workflow struct {
	ID        string
	Version   int
	StartNode string
	Nodes     map[string]*Node
	Agents    map[string]*AgentConfig
	Rubrics   map[string]string
}

// NewWorkflow validates and constructs a Workflow. It enforces the
// definition-time invariants from the data model: the start node must exist,
// and every transition target must reference a node that exists in the
// graph.
func NewWorkflow(id string, version int, startNode string, nodes map[string]*Node, agents map[string]*AgentConfig, rubrics map[string]string) (*Workflow, error) {
	if id == "" {
		return nil, fmt.Errorf("workflow: id is required")
	}
	if _, ok := nodes[startNode]; !ok {
		return nil, fmt.Errorf("workflow: start node %q not found", startNode)
	}
	wf := &Workflow{
		ID:        id,
		Version:   version,
		StartNode: startNode,
		Nodes:     nodes,
		Agents:    agents,
		Rubrics:   rubrics,
	}
	if err := wf.validateTransitions(); err != nil {
		return nil, err
	}
	return wf, nil
}

func (w *Workflow) validateTransitions() error {
	for id, n := range w.Nodes {
		for _, r := range n.TransitionRules {
			for _, target := range r.Targets() {
				if target == "" {
					continue
				}
				if _, ok := w.Nodes[target]; !ok {
					return fmt.Errorf("workflow: node %q references unknown transition target %q", id, target)
				}
			}
		}
	}
	return nil
}

// Node is the tagged-variant node type: Kind selects which payload field is
// meaningful. This mirrors the source's class hierarchy re-architected as a
// sum type with explicit dispatch (see design notes).
type Node struct {
	ID              string
	Kind            NodeKind
	TransitionRules []TransitionRule

	Standard     *StandardPayload
	Parallel     *ParallelPayload
	Fork         *ForkPayload
	Join         *JoinPayload
	Loop         *LoopPayload
	SubWorkflow  *SubWorkflowPayload
	Action       *ActionPayload
	Generic      *GenericPayload
	End          *EndPayload
}

// NodeKind is the closed set of node kinds supported by dispatch.
type NodeKind string

const (
	KindStandard    NodeKind = "standard"
	KindParallel    NodeKind = "parallel_consensus"
	KindFork        NodeKind = "fork"
	KindJoin        NodeKind = "join"
	KindLoop        NodeKind = "loop"
	KindSubWorkflow NodeKind = "sub_workflow"
	KindAction      NodeKind = "action"
	KindGeneric     NodeKind = "generic"
	KindEnd         NodeKind = "end"
)

// ReviewTrigger controls when the human-review post-processor stage fires.
type ReviewTrigger string

const (
	ReviewNever            ReviewTrigger = "never"
	ReviewAlways           ReviewTrigger = "always"
	ReviewOnFailure        ReviewTrigger = "on_failure"
	ReviewBelowRubricScore ReviewTrigger = "below_rubric_score"
)

// ReviewConfig declares whether and when the human-review stage fires.
type ReviewConfig struct {
	Trigger        ReviewTrigger
	ScoreThreshold float64
}

// StandardPayload is the standard (agent) node's kind-specific data.
type StandardPayload struct {
	AgentID         string
	PromptTemplate  string
	OutputParams    []string
	RubricID        string
	ReviewConfig    *ReviewConfig
	SnapshotOnStep  bool
	Planning        *PlanningConfig
}

// PlanningConfig enables the plan subsystem for a standard node.
type PlanningConfig struct {
	Enabled            bool
	Mode               PlanMode
	StaticPlan         []PlannedStep
	RequireReview      bool
	Constraints        map[string]any
	MaxRevisions       int
}

// PlanMode selects static vs. dynamic plan construction.
type PlanMode string

const (
	PlanStatic  PlanMode = "static"
	PlanDynamic PlanMode = "dynamic"
)

// Branch is one arm of a parallel-with-consensus node.
type Branch struct {
	ID             string
	AgentID        string
	PromptTemplate string
	RubricID       string
	Weight         float64
}

// ConsensusStrategy selects how branch votes combine into a decision.
type ConsensusStrategy string

const (
	MajorityVote  ConsensusStrategy = "majority_vote"
	Unanimous     ConsensusStrategy = "unanimous"
	WeightedVote  ConsensusStrategy = "weighted_vote"
	JudgeDecides  ConsensusStrategy = "judge_decides"
)

// ParallelPayload is the parallel-with-consensus node's kind-specific data.
type ParallelPayload struct {
	Branches      []Branch
	Strategy      ConsensusStrategy
	Threshold     float64
	JudgeAgentID  string
	OnConsensus   string
	OnNoConsensus string
}

// ForkPayload is the fork node's kind-specific data.
type ForkPayload struct {
	Targets    []string
	WaitForAll bool
}

// MergeStrategy controls how a join node combines awaited results.
type MergeStrategy string

const (
	MergeCollectAll MergeStrategy = "collect_all"
)

// JoinPayload is the join node's kind-specific data.
type JoinPayload struct {
	AwaitTargets   []string
	TimeoutMs      int64
	Merge          MergeStrategy
	OutputField    string
	FailOnAnyError bool
}

// BreakRule allows a loop node to exit early to a named node when a
// condition (evaluated against context) is truthy.
type BreakRule struct {
	Condition string
	NextNode  string
}

// LoopPayload is the loop node's kind-specific data.
type LoopPayload struct {
	BodyStart     string
	Condition     string
	BreakRules    []BreakRule
	MaxIterations int
}

// SubWorkflowPayload is the sub-workflow node's kind-specific data.
type SubWorkflowPayload struct {
	WorkflowID   string
	InputMapping map[string]string
	OutputMapping map[string]string
}

// ActionKind distinguishes a Send (handler dispatch) from an Execute (local
// command reference, rejected by the server executor).
type ActionKind string

const (
	ActionSend    ActionKind = "send"
	ActionExecute ActionKind = "execute"
)

// Action is one step in an action node's ordered list.
type Action struct {
	Kind      ActionKind
	HandlerID string
	Payload   map[string]any
	CommandID string
}

// ActionPayload is the action node's kind-specific data.
type ActionPayload struct {
	Actions []Action
}

// GenericPayload is the generic (custom-handler) node's kind-specific data.
type GenericPayload struct {
	ExecutorType string
	Config       map[string]any
}

// ExitStatus is the terminal status carried by an end node.
type ExitStatus string

const (
	ExitSuccess   ExitStatus = "SUCCESS"
	ExitFailure   ExitStatus = "FAILURE"
	ExitCancelled ExitStatus = "CANCELLED"
)

// EndPayload is the end node's kind-specific data.
type EndPayload struct {
	Status ExitStatus
}

// AgentConfig is an immutable per-definition agent configuration.
type AgentConfig struct {
	ID              string
	Model           string
	Temperature     float64
	SystemRole      string
	MaintainContext bool
}

// ResultStatus is the closed set of NodeResult statuses.
type ResultStatus string

const (
	StatusSuccess ResultStatus = "SUCCESS"
	StatusFailure ResultStatus = "FAILURE"
	StatusPending ResultStatus = "PENDING"
	StatusEnd     ResultStatus = "END"
)

// NodeResult is the immutable outcome of dispatching a node. Err is
// transient and is never persisted to a snapshot or history step.
type NodeResult struct {
	Status   ResultStatus
	Output   string
	Metadata map[string]any
	Err      error `json:"-"`
}

func SuccessResult(output string, metadata map[string]any) NodeResult {
	return NodeResult{Status: StatusSuccess, Output: output, Metadata: metadata}
}

func FailureResult(message string, err error) NodeResult {
	md := map[string]any{}
	if message != "" {
		md["message"] = message
	}
	return NodeResult{Status: StatusFailure, Output: message, Metadata: md, Err: err}
}

func PendingResult(metadata map[string]any) NodeResult {
	return NodeResult{Status: StatusPending, Metadata: metadata}
}

func EndResult(status ExitStatus) NodeResult {
	return NodeResult{Status: StatusEnd, Output: string(status), Metadata: map[string]any{"exitStatus": string(status)}}
}

// BacktrackType distinguishes engine-initiated retries from human and
// rubric-driven transitions.
type BacktrackType string

const (
	BacktrackAutomatic BacktrackType = "AUTOMATIC"
	BacktrackManual    BacktrackType = "MANUAL"
	BacktrackJump      BacktrackType = "JUMP"
)

// BacktrackEvent records a transition that moved currentNode to a node other
// than the linear successor.
type BacktrackEvent struct {
	From        string
	To          string
	Reason      string
	Type        BacktrackType
	RubricScore *float64
	Timestamp   time.Time
}

// ExecutionStep is an immutable, append-only history entry.
type ExecutionStep struct {
	NodeID         string
	StateBefore    ContextSnapshot
	Result         NodeResult
	Timestamp      time.Time
}

// ContextSnapshot is a copy of the context map at a point in time.
type ContextSnapshot map[string]any

// Clone returns a deep-enough copy for snapshot purposes (shallow per key,
// which is sufficient since context values are JSON-shaped).
func (c ContextSnapshot) Clone() ContextSnapshot {
	out := make(ContextSnapshot, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// ExecutionHistory is the ordered record of steps and backtracks for one
// execution. Steps are append-only during forward progress. The history is
// not copied at backtrack time; ToSnapshot and FromSnapshot each take a copy,
// so a resumed execution keeps appending to its own history.
type ExecutionHistory struct {
	Steps      []ExecutionStep
	Backtracks []BacktrackEvent
}

func (h *ExecutionHistory) AppendStep(step ExecutionStep) {
	h.Steps = append(h.Steps, step)
}

func (h *ExecutionHistory) AppendBacktrack(ev BacktrackEvent) {
	h.Backtracks = append(h.Backtracks, ev)
}

// Clone returns a copy of the history suitable for branching on backtrack or
// snapshotting.
func (h *ExecutionHistory) Clone() *ExecutionHistory {
	out := &ExecutionHistory{
		Steps:      make([]ExecutionStep, len(h.Steps)),
		Backtracks: make([]BacktrackEvent, len(h.Backtracks)),
	}
	copy(out.Steps, h.Steps)
	copy(out.Backtracks, h.Backtracks)
	return out
}

// RubricEvaluation is the latest rubric outcome attached to an execution
// state.
type RubricEvaluation struct {
	RubricID string
	Score    float64
	Passed   bool
	Criteria map[string]float64
}

// ExecutionState is exclusively owned by its running execution; once
// suspended, ownership passes to the WorkflowStateRepository.
type ExecutionState struct {
	ExecutionID string
	WorkflowID  string
	CurrentNode string
	Context     map[string]any
	History     *ExecutionHistory
	RetryCount  map[string]int
	Rubric      *RubricEvaluation
}

// NewExecutionState constructs a fresh state for a new execution, seeding
// the reserved tenant/execution context keys.
func NewExecutionState(executionID, workflowID, tenantID, startNode string, seed map[string]any) *ExecutionState {
	ctx := make(map[string]any, len(seed)+2)
	for k, v := range seed {
		ctx[k] = v
	}
	ctx[CtxTenantID] = tenantID
	ctx[CtxExecutionID] = executionID
	return &ExecutionState{
		ExecutionID: executionID,
		WorkflowID:  workflowID,
		CurrentNode: startNode,
		Context:     ctx,
		History:     &ExecutionHistory{},
		RetryCount:  map[string]int{},
	}
}

// TenantID returns the reserved tenant identity stashed in context.
func (s *ExecutionState) TenantID() string {
	v, _ := s.Context[CtxTenantID].(string)
	return v
}

// CheckpointReason is the closed set of reasons a snapshot was written.
type CheckpointReason string

const (
	ReasonCheckpoint CheckpointReason = "checkpoint"
	ReasonPaused     CheckpointReason = "paused"
	ReasonCompleted  CheckpointReason = "completed"
	ReasonRejected   CheckpointReason = "rejected"
	ReasonFailed     CheckpointReason = "failed"
)

// Terminal reports whether the reason denotes a terminal snapshot.
func (r CheckpointReason) Terminal() bool {
	switch r {
	case ReasonCompleted, ReasonRejected, ReasonFailed:
		return true
	default:
		return false
	}
}

// ExecutionSnapshot is an immutable, serializable record of execution state
// at a point in time. At most one snapshot exists per executionId in the
// store; each save replaces the prior one.
type ExecutionSnapshot struct {
	ExecutionID      string
	WorkflowID       string
	TenantID         string
	CurrentNode      string
	Context          ContextSnapshot
	History          *ExecutionHistory
	Rubric           *RubricEvaluation
	CheckpointReason CheckpointReason
	Timestamp        time.Time
}

// ToSnapshot captures the current state into an immutable snapshot.
func (s *ExecutionState) ToSnapshot(reason CheckpointReason, at time.Time) *ExecutionSnapshot {
	return &ExecutionSnapshot{
		ExecutionID:      s.ExecutionID,
		WorkflowID:       s.WorkflowID,
		TenantID:         s.TenantID(),
		CurrentNode:      s.CurrentNode,
		Context:          ContextSnapshot(s.Context).Clone(),
		History:          s.History.Clone(),
		Rubric:           s.Rubric,
		CheckpointReason: reason,
		Timestamp:        at,
	}
}

// FromSnapshot rehydrates a mutable ExecutionState from a snapshot so a
// suspended execution can resume and keep appending history.
func FromSnapshot(snap *ExecutionSnapshot) *ExecutionState {
	ctx := make(map[string]any, len(snap.Context))
	for k, v := range snap.Context {
		ctx[k] = v
	}
	retry := map[string]int{}
	for _, step := range snap.History.Steps {
		if step.Result.Status == StatusFailure {
			retry[step.NodeID]++
		}
	}
	return &ExecutionState{
		ExecutionID: snap.ExecutionID,
		WorkflowID:  snap.WorkflowID,
		CurrentNode: snap.CurrentNode,
		Context:     ctx,
		History:     snap.History.Clone(),
		RetryCount:  retry,
		Rubric:      snap.Rubric,
	}
}

// marshalForEquality renders a snapshot to canonical JSON for the round-trip
// equality property (snapshot -> state -> snapshot).
func marshalForEquality(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Equal reports semantic equality between two snapshots via canonical JSON
// comparison, used by round-trip tests.
func (s *ExecutionSnapshot) Equal(other *ExecutionSnapshot) bool {
	a, err1 := marshalForEquality(s)
	b, err2 := marshalForEquality(other)
	if err1 != nil || err2 != nil {
		return false
	}
	return a == b
}
