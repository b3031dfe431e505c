package feature

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

// expander resolves ${name} placeholders from environment variables defined
// in configuration, falling back to the process environment.
type expander struct {
	vars map[string]string
}

func newExpander(vars map[string]string) *expander {
	return &expander{vars: vars}
}

func (e *expander) lookup(name string) (string, bool) {
	if v, ok := e.vars[name]; ok {
		return v, true
	}
	return os.LookupEnv(name)
}

// expand replaces placeholders in s. Unknown names are an error so a typo in
// a variable never turns into a request against an empty host.
func (e *expander) expand(s string) (string, error) {
	if !strings.Contains(s, "$") {
		return s, nil
	}

	var missing []string
	out := os.Expand(s, func(name string) string {
		v, ok := e.lookup(name)
		if !ok {
			missing = append(missing, name)
		}
		return v
	})
	if len(missing) > 0 {
		sort.Strings(missing)
		return "", fmt.Errorf("undefined variable(s): %s", strings.Join(missing, ", "))
	}
	return out, nil
}

func (e *expander) expandAll(in []string) ([]string, error) {
	out := make([]string, len(in))
	for i, s := range in {
		v, err := e.expand(s)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (e *expander) expandMap(in map[string]string) (map[string]string, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(in))
	for k, s := range in {
		v, err := e.expand(s)
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}
