package consensus

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/agentforge/workflow-engine/node"
	"github.com/agentforge/workflow-engine/workflow"
)

// JudgeInvoker invokes the designated judge agent for JUDGE_DECIDES,
// returning its raw JSON response. Implemented by agentprovider.Registry,
// kept as a narrow interface so consensus does not depend on the provider
// package.
type JudgeInvoker interface {
	Invoke(ctx context.Context, agent *workflow.AgentConfig, prompt string) (string, map[string]any, error)
}

// Evaluator implements node.ConsensusEvaluator over the four strategies.
type Evaluator struct {
	Judge JudgeInvoker
	// AgentLookup resolves the judge agent id declared on a parallel
	// node's payload; required only for the JUDGE_DECIDES strategy.
	AgentLookup func(id string) (*workflow.AgentConfig, bool)
}

var _ node.ConsensusEvaluator = (*Evaluator)(nil)

func (e *Evaluator) Evaluate(ctx context.Context, branches []workflow.Branch, results []node.BranchResult, payload *workflow.ParallelPayload) (node.ConsensusOutcome, error) {
	votes := make([]BranchVote, len(results))
	for i, r := range results {
		output := r.Result.Output
		votes[i] = extractVote(output, r.Result.Metadata)
	}

	threshold := payload.Threshold
	if threshold == 0 {
		threshold = 0.5
	}

	switch payload.Strategy {
	case workflow.MajorityVote:
		return e.majorityVote(results, votes, threshold), nil
	case workflow.Unanimous:
		return e.unanimous(results, votes), nil
	case workflow.WeightedVote:
		return e.weightedVote(branches, results, votes, threshold), nil
	case workflow.JudgeDecides:
		return e.judgeDecides(ctx, branches, results, payload)
	default:
		return node.ConsensusOutcome{}, fmt.Errorf("consensus: unknown strategy %q", payload.Strategy)
	}
}

func voteCounts(votes []BranchVote) (approve, reject, abstain int) {
	for _, v := range votes {
		switch v.Vote {
		case VoteApprove:
			approve++
		case VoteReject:
			reject++
		default:
			abstain++
		}
	}
	return
}

func firstApproveOutput(results []node.BranchResult, votes []BranchVote) (string, int) {
	for i, v := range votes {
		if v.Vote == VoteApprove {
			return results[i].Result.Output, i
		}
	}
	if len(results) > 0 {
		return results[0].Result.Output, 0
	}
	return "", -1
}

func (e *Evaluator) majorityVote(results []node.BranchResult, votes []BranchVote, threshold float64) node.ConsensusOutcome {
	approve, reject, abstain := voteCounts(votes)
	needed := int(math.Ceil(float64(len(votes)) * threshold))
	reached := approve >= needed
	output, idx := "", -1
	if reached {
		output, idx = firstApproveOutput(results, votes)
	}
	return node.ConsensusOutcome{
		Reached:      reached,
		WinningIndex: idx,
		Output:       output,
		Metadata: map[string]any{
			"approveCount": approve, "rejectCount": reject, "abstainCount": abstain,
		},
	}
}

func (e *Evaluator) unanimous(results []node.BranchResult, votes []BranchVote) node.ConsensusOutcome {
	approve, reject, abstain := voteCounts(votes)
	reached := reject == 0 && abstain == 0 && approve == len(votes)
	output, idx := "", -1
	if reached {
		output, idx = firstApproveOutput(results, votes)
	}
	return node.ConsensusOutcome{
		Reached:      reached,
		WinningIndex: idx,
		Output:       output,
		Metadata: map[string]any{
			"approveCount": approve, "rejectCount": reject, "abstainCount": abstain,
		},
	}
}

func (e *Evaluator) weightedVote(branches []workflow.Branch, results []node.BranchResult, votes []BranchVote, threshold float64) node.ConsensusOutcome {
	var approveWeighted, decidedWeighted float64
	bestScore := -1.0
	bestIdx := -1
	for i, v := range votes {
		if v.Vote == VoteAbstain {
			continue
		}
		weight := 1.0
		if i < len(branches) && branches[i].Weight != 0 {
			weight = branches[i].Weight
		}
		weighted := v.Score * weight
		decidedWeighted += weighted
		if v.Vote == VoteApprove {
			approveWeighted += weighted
			if weighted > bestScore {
				bestScore = weighted
				bestIdx = i
			}
		}
	}
	reached := decidedWeighted > 0 && approveWeighted/decidedWeighted > threshold
	output := ""
	if reached && bestIdx >= 0 {
		output = results[bestIdx].Result.Output
	}
	return node.ConsensusOutcome{
		Reached:      reached,
		WinningIndex: bestIdx,
		Output:       output,
		Metadata: map[string]any{
			"approveWeighted": approveWeighted, "decidedWeighted": decidedWeighted,
		},
	}
}

// judgeResponse is the expected JSON shape of a JUDGE_DECIDES judge reply.
type judgeResponse struct {
	Decision      string `json:"decision"`
	WinningBranch string `json:"winning_branch"`
	Reasoning     string `json:"reasoning"`
	FinalOutput   string `json:"final_output"`
}

func (e *Evaluator) judgeDecides(ctx context.Context, branches []workflow.Branch, results []node.BranchResult, payload *workflow.ParallelPayload) (node.ConsensusOutcome, error) {
	if e.Judge == nil {
		return node.ConsensusOutcome{}, fmt.Errorf("consensus: judge_decides strategy requires a judge invoker")
	}
	var judgeAgent *workflow.AgentConfig
	if e.AgentLookup != nil {
		judgeAgent, _ = e.AgentLookup(payload.JudgeAgentID)
	}

	var b strings.Builder
	b.WriteString("Branch outputs:\n")
	for i, r := range results {
		id := fmt.Sprintf("branch-%d", i)
		if i < len(branches) {
			id = branches[i].ID
		}
		fmt.Fprintf(&b, "- %s: %s\n", id, r.Result.Output)
	}
	b.WriteString("\nRespond with JSON: {\"decision\":\"approve\"|\"reject\", \"winning_branch\":\"...\", \"reasoning\":\"...\", \"final_output\":\"...\"}")

	raw, _, err := e.Judge.Invoke(ctx, judgeAgent, b.String())
	if err != nil {
		return node.ConsensusOutcome{}, fmt.Errorf("consensus: judge invocation failed: %w", err)
	}

	var resp judgeResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return node.ConsensusOutcome{}, fmt.Errorf("consensus: judge response not valid JSON: %w", err)
	}

	reached := strings.EqualFold(resp.Decision, "approve")
	idx := -1
	for i, br := range branches {
		if br.ID == resp.WinningBranch {
			idx = i
			break
		}
	}
	return node.ConsensusOutcome{
		Reached:      reached,
		WinningIndex: idx,
		Output:       resp.FinalOutput,
		Metadata: map[string]any{
			"judgeDecision":  resp.Decision,
			"judgeReasoning": resp.Reasoning,
			"winningBranch":  resp.WinningBranch,
		},
	}, nil
}
