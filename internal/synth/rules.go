package synth

import (
	"fmt"

	"github.com/elysiawen/SubLinks-sub001/internal/model"
)

// Rules synthesizes the final ordered rule list from the three layers:
// upstream-declared rules, the custom rule set and per-subscription
// appended rules. MATCH rules are stripped from every layer and exactly one
// trailing MATCH is emitted, taken from the most specific layer that
// declared one (appended, then custom, then upstream), defaulting to
// MATCH,,Proxy.
//
// policies, when non-nil, is the set of valid targets (built-ins plus
// synthesized group names). Rules whose policy is not in the set are passed
// through unchanged with a warning; upstream-declared policies are trusted.
func Rules(upstream, custom, appended []model.Rule, policies map[string]struct{}) ([]model.Rule, []string) {
	var warnings []string

	final := model.Rule{Type: "MATCH", Policy: model.PolicyProxy}

	// Least specific first, so the most specific declaration wins.
	layers := [][]model.Rule{upstream, custom, appended}
	out := make([]model.Rule, 0, len(upstream)+len(custom)+len(appended)+1)
	for _, layer := range layers {
		for _, r := range layer {
			if r.Type == "MATCH" {
				final = r
				continue
			}
			out = append(out, r)
		}
	}

	out = append(out, final)

	if policies != nil {
		for _, r := range out {
			if _, ok := policies[r.Policy]; !ok {
				warnings = append(warnings, fmt.Sprintf("rule %s,%s references unknown policy %q", r.Type, r.Value, r.Policy))
			}
		}
	}

	return out, warnings
}
