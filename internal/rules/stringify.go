package rules

import (
	"strings"

	"github.com/elysiawen/SubLinks-sub001/internal/model"
)

// Stringify renders one rule in its canonical line form. Parsing the result
// yields the same rule back.
func Stringify(r model.Rule) string {
	if r.Type == "MATCH" {
		return "MATCH,," + r.Policy
	}
	var b strings.Builder
	b.WriteString(r.Type)
	b.WriteByte(',')
	b.WriteString(r.Value)
	b.WriteByte(',')
	b.WriteString(r.Policy)
	if r.NoResolve {
		b.WriteString(",no-resolve")
	}
	return b.String()
}

// StringifyList renders rules one per line with a trailing newline. An empty
// list renders to the empty string.
func StringifyList(rs []model.Rule) string {
	if len(rs) == 0 {
		return ""
	}
	lines := make([]string, 0, len(rs))
	for _, r := range rs {
		lines = append(lines, Stringify(r))
	}
	return strings.Join(lines, "\n") + "\n"
}
