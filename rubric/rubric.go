// Package rubric implements the weighted-criteria scoring engine used by the
// post-processor pipeline's rubric-evaluation stage (spec §4.3 item 4).
package rubric

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/agentforge/workflow-engine/workflow"
)

// Criterion is one weighted scoring dimension of a rubric.
type Criterion struct {
	Name   string  `yaml:"name"`
	Weight float64 `yaml:"weight"`
}

// Definition is the parsed form of a rubric source string: the rubric
// compiler (out of scope) emits these as YAML, which Engine parses lazily
// on first use and caches.
type Definition struct {
	Criteria      []Criterion `yaml:"criteria"`
	PassThreshold float64     `yaml:"passThreshold"`
}

// Engine implements workflow.RubricEngine. Rubric sources are read from the
// owning Workflow's Rubrics map (data model: "mapping rubric-id→rubric-
// definition-string"); Lookup resolves a rubric id to its raw source.
type Engine struct {
	Lookup func(rubricID string) (source string, ok bool)

	cache map[string]*Definition
}

var _ workflow.RubricEngine = (*Engine)(nil)

// NewEngine constructs a rubric Engine bound to a rubric-id lookup function,
// typically a lookup over the owning Workflow's Rubrics map (the same lookup
// (*workflow.ExecutionContext).RubricSource performs).
func NewEngine(lookup func(rubricID string) (string, bool)) *Engine {
	return &Engine{Lookup: lookup, cache: make(map[string]*Definition)}
}

func (e *Engine) definition(rubricID string) (*Definition, error) {
	if d, ok := e.cache[rubricID]; ok {
		return d, nil
	}
	source, ok := e.Lookup(rubricID)
	if !ok {
		return nil, fmt.Errorf("rubric: unknown rubric id %q", rubricID)
	}
	var def Definition
	if err := yaml.Unmarshal([]byte(source), &def); err != nil {
		return nil, fmt.Errorf("rubric: failed to parse rubric %q: %w", rubricID, err)
	}
	if def.PassThreshold == 0 {
		def.PassThreshold = 70
	}
	e.cache[rubricID] = &def
	return &def, nil
}

func (e *Engine) PassThreshold(rubricID string) float64 {
	def, err := e.definition(rubricID)
	if err != nil {
		return 70
	}
	return def.PassThreshold
}

var scorePattern = regexp.MustCompile(`(?i)score:\s*(\d+(\.\d+)?)`)

// Evaluate extracts a self-reported score (a metadata["score"] key preferred,
// then a JSON body score field, then a Score: N pattern in the output),
// normalizes it to 0-100, and applies the rubric's weighted criteria.
func (e *Engine) Evaluate(_ context.Context, rubricID string, output string, metadata map[string]any) (*workflow.RubricEvaluation, error) {
	def, err := e.definition(rubricID)
	if err != nil {
		return nil, err
	}

	raw, ok := extractScore(output, metadata)
	if !ok {
		raw = 0
	}
	normalized := normalizeScore(raw)

	criteria := make(map[string]float64, len(def.Criteria))
	total := 0.0
	for _, c := range def.Criteria {
		criteria[c.Name] = normalized
		total += c.Weight
	}
	weighted := normalized
	if total > 0 {
		sum := 0.0
		for _, c := range def.Criteria {
			sum += normalized * c.Weight
		}
		weighted = sum / total
	}

	return &workflow.RubricEvaluation{
		RubricID: rubricID,
		Score:    weighted,
		Passed:   weighted >= def.PassThreshold,
		Criteria: criteria,
	}, nil
}

// extractScore mirrors the consensus vote-extraction cascade's score
// sources, restricted to what the rubric stage needs: a JSON `score` field,
// an explicit metadata `score` key, or an inline `Score: N` pattern.
func extractScore(output string, metadata map[string]any) (float64, bool) {
	if metadata != nil {
		if v, ok := asFloat(metadata["score"]); ok {
			return v, true
		}
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(output), &obj); err == nil {
		if v, ok := asFloat(obj["score"]); ok {
			return v, true
		}
	}
	if m := scorePattern.FindStringSubmatch(output); m != nil {
		if v, ok := asFloat(m[1]); ok {
			return v, true
		}
	}
	return 0, false
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

// normalizeScore maps a raw self-reported score to the 0-100 scale: values
// already above 1 are assumed to be on a 0-100 scale, values in [0,1] are
// assumed fractional and scaled up.
func normalizeScore(raw float64) float64 {
	if raw > 0 && raw <= 1 {
		return raw * 100
	}
	if raw < 0 {
		return 0
	}
	if raw > 100 {
		return 100
	}
	return raw
}
