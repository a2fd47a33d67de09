package workflow

import (
	"fmt"
	"regexp"
)

var templateVarPattern = regexp.MustCompile(`\{([a-zA-Z0-9_.]+)\}`)

// SimpleResolver implements TemplateResolver with plain `{variable}`
// substitution against the execution context, per the data model's
// ancillary TemplateResolver singleton. Unresolved variables are left
// verbatim rather than erroring, since a prompt referencing a
// not-yet-populated key is common early in an execution.
type SimpleResolver struct{}

func (SimpleResolver) Resolve(template string, ctx map[string]any) string {
	return templateVarPattern.ReplaceAllStringFunc(template, func(match string) string {
		key := templateVarPattern.FindStringSubmatch(match)[1]
		v, ok := ctx[key]
		if !ok {
			return match
		}
		return fmt.Sprintf("%v", v)
	})
}
