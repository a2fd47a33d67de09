package workflow

import (
	"strconv"
)

// TransitionRule is the sum type evaluated, in declared order, by the
// transition-resolution post-processor stage. Targets reports every node id
// a rule might route to, used by NewWorkflow to validate the graph.
type TransitionRule interface {
	Targets() []string
	kind() string
}

// SuccessTransition matches iff the result status is SUCCESS.
type SuccessTransition struct {
	Target string
}

func (r SuccessTransition) Targets() []string { return []string{r.Target} }
func (SuccessTransition) kind() string        { return "success" }

// FailureTransition matches on FAILURE. If the per-node retry counter is
// below RetryCount it routes back to the same node (a retry); otherwise to
// Target.
type FailureTransition struct {
	RetryCount int
	Target     string
}

func (r FailureTransition) Targets() []string { return []string{r.Target} }
func (FailureTransition) kind() string        { return "failure" }

// ScoreOperator is the comparison applied by a ScoreCondition.
type ScoreOperator string

const (
	OpLT      ScoreOperator = "LT"
	OpLTE     ScoreOperator = "LTE"
	OpEQ      ScoreOperator = "EQ"
	OpGTE     ScoreOperator = "GTE"
	OpGT      ScoreOperator = "GT"
	OpInRange ScoreOperator = "IN_RANGE"
)

// ScoreCondition is one clause of a ScoreTransition, evaluated against the
// rubric score (or a fallback `score` context key).
type ScoreCondition struct {
	Operator ScoreOperator
	Value    float64
	Upper    float64 // only meaningful for IN_RANGE
	Target   string
}

func (c ScoreCondition) matches(score float64) bool {
	switch c.Operator {
	case OpLT:
		return score < c.Value
	case OpLTE:
		return score <= c.Value
	case OpEQ:
		return score == c.Value
	case OpGTE:
		return score >= c.Value
	case OpGT:
		return score > c.Value
	case OpInRange:
		return score >= c.Value && score <= c.Upper
	default:
		return false
	}
}

// ScoreTransition evaluates Conditions in declared order against the rubric
// score, or a `score` context key if no rubric evaluation is present.
type ScoreTransition struct {
	Conditions []ScoreCondition
}

func (r ScoreTransition) Targets() []string {
	out := make([]string, 0, len(r.Conditions))
	for _, c := range r.Conditions {
		out = append(out, c.Target)
	}
	return out
}
func (ScoreTransition) kind() string { return "score" }

// AlwaysTransition is the unconditional sentinel that matches anything.
type AlwaysTransition struct {
	Target string
}

func (r AlwaysTransition) Targets() []string { return []string{r.Target} }
func (AlwaysTransition) kind() string        { return "always" }

// resolveScore extracts the rubric score (or a string-tolerant `score`
// context key fallback) used by ScoreTransition evaluation.
func resolveScore(state *ExecutionState) (float64, bool) {
	if state.Rubric != nil {
		return state.Rubric.Score, true
	}
	raw, ok := state.Context["score"]
	if !ok {
		return 0, false
	}
	switch v := raw.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// resolveTransition evaluates a node's transition rules in order and
// returns the first matching target. retry reports a FailureTransition
// retry of nodeID, counted in state.RetryCount. ok is false when no rule
// matched.
func resolveTransition(rules []TransitionRule, result NodeResult, state *ExecutionState, nodeID string) (target string, retry bool, ok bool) {
	// A loop node's break rule can route to a node that depends on a
	// condition evaluated dynamically inside the loop body, which the
	// declarative transitionRules list cannot express; the loop executor
	// communicates that choice via this reserved metadata key.
	if v, present := result.Metadata[CtxLoopBreakTarget]; present {
		if s, isStr := v.(string); isStr && s != "" {
			return s, false, true
		}
	}
	for _, rule := range rules {
		switch r := rule.(type) {
		case SuccessTransition:
			if result.Status == StatusSuccess {
				return r.Target, false, true
			}
		case FailureTransition:
			if result.Status == StatusFailure {
				if state.RetryCount[nodeID] < r.RetryCount {
					return nodeID, true, true
				}
				return r.Target, false, true
			}
		case ScoreTransition:
			score, has := resolveScore(state)
			if !has {
				continue
			}
			for _, cond := range r.Conditions {
				if cond.matches(score) {
					return cond.Target, false, true
				}
			}
		case AlwaysTransition:
			return r.Target, false, true
		default:
			continue
		}
	}
	return "", false, false
}
