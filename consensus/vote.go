// Package consensus implements the parallel-node consensus evaluator: vote
// extraction per branch and the four consensus strategies (majority,
// unanimous, weighted, judge-decides).
package consensus

import (
	"regexp"
	"strconv"
	"strings"
)

// Vote is the closed set of per-branch vote outcomes.
type Vote string

const (
	VoteApprove Vote = "APPROVE"
	VoteReject  Vote = "REJECT"
	VoteAbstain Vote = "ABSTAIN"
)

var scorePattern = regexp.MustCompile(`(?i)score:\s*(\d+(\.\d+)?)`)

// BranchVote is the extracted vote and score for one branch.
type BranchVote struct {
	Vote  Vote
	Score float64
}

// extractVote runs the vote-extraction cascade from §4.2.2:
//  1. rubric metadata (rubric_passed / rubric_score), if present
//  2. an explicit `score` key in branch metadata
//  3. a `Score: <n>` pattern in the branch output
//  4. keyword heuristics (approve/accept/pass vs reject/fail/deny)
//
// Falls back to score 50.0 / ABSTAIN when nothing matches.
func extractVote(output string, metadata map[string]any) BranchVote {
	if metadata != nil {
		if passed, ok := metadata["rubric_passed"].(bool); ok {
			score := 0.0
			if s, ok := metadata["rubric_score"].(float64); ok {
				score = s
			}
			if passed {
				return BranchVote{Vote: VoteApprove, Score: score}
			}
			return BranchVote{Vote: VoteReject, Score: score}
		}
		if score, ok := asFloat(metadata["score"]); ok {
			return BranchVote{Vote: voteFromScore(score), Score: score}
		}
	}

	if m := scorePattern.FindStringSubmatch(output); m != nil {
		if score, ok := asFloat(m[1]); ok {
			return BranchVote{Vote: voteFromScore(score), Score: score}
		}
	}

	lower := strings.ToLower(output)
	switch {
	case containsAny(lower, "approve", "accept", "pass"):
		return BranchVote{Vote: VoteApprove, Score: 100}
	case containsAny(lower, "reject", "fail", "deny"):
		return BranchVote{Vote: VoteReject, Score: 0}
	default:
		return BranchVote{Vote: VoteAbstain, Score: 50.0}
	}
}

func voteFromScore(score float64) Vote {
	if score >= 50 {
		return VoteApprove
	}
	return VoteReject
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
