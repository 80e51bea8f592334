// Package synth builds the final policy groups, routing rules and output
// document for one subscription. Everything here is pure: same inputs, same
// output, byte for byte.
package synth

import (
	"fmt"

	"github.com/elysiawen/SubLinks-sub001/internal/model"
	"github.com/elysiawen/SubLinks-sub001/internal/selector"
)

const (
	defaultTestURL     = "http://www.gstatic.com/generate_204"
	defaultIntervalSec = 300
)

// Groups synthesizes the final policy-group list: built-in groups first,
// then upstream-declared groups in declared order, then the custom group
// set. Later groups never replace earlier ones; a name collision drops the
// later group with a warning. Member entries are expanded through the
// selector resolver and deduplicated keeping first occurrence.
func Groups(upstream, custom []model.Group, inv *model.Inventory) ([]model.Group, []string) {
	var warnings []string

	out := builtinGroups(inv)
	names := make(map[string]struct{}, len(out))
	for _, g := range out {
		names[g.Name] = struct{}{}
	}

	appendDeclared := func(declared []model.Group, layer string) {
		for _, g := range declared {
			if _, ok := names[g.Name]; ok {
				warnings = append(warnings, fmt.Sprintf("%s group %q collides with an existing group, dropped", layer, g.Name))
				continue
			}
			members, bad := selector.ResolveAll(g.Members, inv)
			for _, sel := range bad {
				warnings = append(warnings, fmt.Sprintf("group %q selector %q: %v", g.Name, sel.Raw, sel.Err))
			}

			g.Members = members
			if g.Type != model.GroupSelect {
				if g.TestURL == "" {
					g.TestURL = defaultTestURL
				}
				if g.IntervalSec <= 0 {
					g.IntervalSec = defaultIntervalSec
				}
			}
			names[g.Name] = struct{}{}
			out = append(out, g)
		}
	}

	appendDeclared(upstream, "upstream")
	appendDeclared(custom, "custom")

	return out, warnings
}

// builtinGroups are always present and always first. DIRECT/REJECT are
// client built-ins and are referenced, never declared.
func builtinGroups(inv *model.Inventory) []model.Group {
	names := dedup(inv.Names())

	proxyMembers := make([]string, 0, len(names)+2)
	proxyMembers = append(proxyMembers, model.PolicyAuto)
	proxyMembers = append(proxyMembers, names...)
	proxyMembers = append(proxyMembers, model.PolicyDirect)

	autoMembers := names
	if len(autoMembers) == 0 {
		// url-test with no candidates is rejected by clients.
		autoMembers = []string{model.PolicyDirect}
	}

	return []model.Group{
		{Name: model.PolicyProxy, Type: model.GroupSelect, Members: proxyMembers},
		{Name: model.PolicyAuto, Type: model.GroupURLTest, Members: autoMembers, TestURL: defaultTestURL, IntervalSec: defaultIntervalSec},
		{Name: model.PolicyGlobal, Type: model.GroupSelect, Members: []string{model.PolicyProxy, model.PolicyDirect}},
	}
}

func dedup(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
