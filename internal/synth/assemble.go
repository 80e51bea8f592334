package synth

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/elysiawen/SubLinks-sub001/internal/model"
	"github.com/elysiawen/SubLinks-sub001/internal/rules"
	"gopkg.in/yaml.v3"
)

// Document is one assembled subscription output, ready to serve.
type Document struct {
	Token string
	Body  []byte

	ProxyCount int
	GroupCount int
	RuleCount  int
}

// Assemble renders the final client configuration document. It is pure and
// deterministic: the same inventory/groups/rules always produce a
// byte-identical body. Proxy bodies re-emit from their parsed YAML nodes so
// upstream fields survive untouched.
func Assemble(token string, inv *model.Inventory, groups []model.Group, ruleList []model.Rule) (*Document, error) {
	var b strings.Builder

	b.WriteString("mixed-port: 7890\n")
	b.WriteString("allow-lan: false\n")
	b.WriteString("mode: rule\n")
	b.WriteString("log-level: info\n")
	b.WriteString("\n")

	proxies := inv.Proxies()
	if len(proxies) == 0 {
		b.WriteString("proxies: []\n")
	} else {
		b.WriteString("proxies:\n")
		for _, p := range proxies {
			block, err := marshalProxy(p)
			if err != nil {
				return nil, fmt.Errorf("render proxy %q: %w", p.Name, err)
			}
			b.WriteString(block)
		}
	}

	b.WriteString("proxy-groups:\n")
	for _, g := range groups {
		b.WriteString("  - name: " + yamlDQ(g.Name) + "\n")
		b.WriteString("    type: " + yamlDQ(g.Type) + "\n")
		if len(g.Members) == 0 {
			b.WriteString("    proxies: []\n")
		} else {
			b.WriteString("    proxies:\n")
			for _, m := range g.Members {
				b.WriteString("      - " + yamlDQ(m) + "\n")
			}
		}
		if g.Type != model.GroupSelect {
			b.WriteString("    url: " + yamlDQ(g.TestURL) + "\n")
			b.WriteString("    interval: " + strconv.Itoa(g.IntervalSec) + "\n")
		}
	}

	b.WriteString("rules:\n")
	for _, r := range ruleList {
		b.WriteString("  - " + yamlDQ(rules.Stringify(r)) + "\n")
	}

	return &Document{
		Token:      token,
		Body:       []byte(b.String()),
		ProxyCount: len(proxies),
		GroupCount: len(groups),
		RuleCount:  len(ruleList),
	}, nil
}

// marshalProxy renders one preserved upstream proxy node as a sequence item
// indented under the top-level proxies key.
func marshalProxy(p model.Proxy) (string, error) {
	raw, err := yaml.Marshal(p.Body)
	if err != nil {
		return "", err
	}
	lines := strings.Split(strings.TrimRight(string(raw), "\n"), "\n")
	var b strings.Builder
	for i, line := range lines {
		if i == 0 {
			b.WriteString("  - ")
		} else {
			b.WriteString("    ")
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String(), nil
}

// yamlDQ is minimal YAML double-quoted scalar escaping.
func yamlDQ(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\"", "\\\"")
	s = strings.ReplaceAll(s, "\r", "\\r")
	s = strings.ReplaceAll(s, "\n", "\\n")
	s = strings.ReplaceAll(s, "\t", "\\t")
	return "\"" + s + "\""
}
