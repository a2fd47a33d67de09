package workflow

// extraction.go implements the output-extraction post-processor stage:
// raw output is always stored under the node id; declared outputParams are
// additionally parsed out of JSON embedded in the output text.

import "encoding/json"

// extractOutput writes result.Output under context[node.ID] and, if the
// node declares outputParams, copies named top-level primitive/string keys
// from JSON embedded in the output. Malformed JSON yields no extraction but
// is never an error; nested object values are skipped.
func extractOutput(state *ExecutionState, node *Node, result NodeResult) {
	state.Context[node.ID] = result.Output

	params := outputParamsFor(node)
	if len(params) == 0 || result.Output == "" {
		return
	}

	obj, ok := extractJSONObject(result.Output)
	if !ok {
		return
	}

	for _, key := range params {
		v, present := obj[key]
		if !present {
			continue
		}
		switch v.(type) {
		case map[string]any, []any:
			continue // nested values are not flattened
		default:
			state.Context[key] = v
		}
	}
}

func outputParamsFor(node *Node) []string {
	if node.Standard != nil {
		return node.Standard.OutputParams
	}
	return nil
}

// extractJSONObject finds the first balanced {...} substring in text and
// parses it as a JSON object. It tolerates surrounding prose and markdown
// code fences.
func extractJSONObject(text string) (map[string]any, bool) {
	start := -1
	depth := 0
	inString := false
	escaped := false
	for i, r := range text {
		if inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			}
			continue
		}
		switch r {
		case '"':
			inString = true
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 && start >= 0 {
					candidate := text[start : i+1]
					var obj map[string]any
					if err := json.Unmarshal([]byte(candidate), &obj); err == nil {
						return obj, true
					}
					start = -1
				}
			}
		}
	}
	return nil, false
}
