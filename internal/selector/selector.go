// Package selector resolves dynamic member selectors against a proxy
// inventory. A selector is parsed once into a typed value; Resolve is a pure
// function over that value and the current inventory.
package selector

import (
	"regexp"
	"strings"

	"github.com/elysiawen/SubLinks-sub001/internal/model"
)

type Kind int

const (
	// KindLiteral keeps the member verbatim, whether or not it currently
	// exists in the inventory (it may name a group or a built-in policy).
	KindLiteral Kind = iota
	KindSource
	KindKeyword
	KindRegex
)

type Selector struct {
	Kind  Kind
	Raw   string
	Value string

	// re is nil for non-regex selectors and for uncompilable patterns;
	// Err records why.
	re  *regexp.Regexp
	Err error
}

const (
	prefixSource  = "SOURCE:"
	prefixKeyword = "KEYWORD:"
	prefixRegex   = "REGEX:"
)

// Parse classifies one member entry by prefix. An uncompilable REGEX pattern
// still yields a Selector (with Err set); it resolves to nothing rather than
// failing the surrounding synthesis.
func Parse(s string) Selector {
	switch {
	case strings.HasPrefix(s, prefixSource):
		return Selector{Kind: KindSource, Raw: s, Value: s[len(prefixSource):]}
	case strings.HasPrefix(s, prefixKeyword):
		return Selector{Kind: KindKeyword, Raw: s, Value: s[len(prefixKeyword):]}
	case strings.HasPrefix(s, prefixRegex):
		pattern := s[len(prefixRegex):]
		re, err := regexp.Compile(pattern)
		return Selector{Kind: KindRegex, Raw: s, Value: pattern, re: re, Err: err}
	default:
		return Selector{Kind: KindLiteral, Raw: s, Value: s}
	}
}

// Resolve expands the selector to concrete proxy names in inventory order.
func (s Selector) Resolve(inv *model.Inventory) []string {
	switch s.Kind {
	case KindLiteral:
		return []string{s.Value}
	case KindSource:
		var out []string
		for _, p := range inv.Proxies() {
			if p.Source == s.Value {
				out = append(out, p.Name)
			}
		}
		return out
	case KindKeyword:
		want := strings.ToLower(s.Value)
		var out []string
		for _, p := range inv.Proxies() {
			if strings.Contains(strings.ToLower(p.Name), want) {
				out = append(out, p.Name)
			}
		}
		return out
	case KindRegex:
		if s.re == nil {
			return nil
		}
		var out []string
		for _, p := range inv.Proxies() {
			if s.re.MatchString(p.Name) {
				out = append(out, p.Name)
			}
		}
		return out
	default:
		return nil
	}
}

// ResolveAll expands every member entry in declared order, concatenates the
// expansions and deduplicates keeping the first occurrence. Uncompilable
// regex selectors expand to nothing; they are returned in bad so the caller
// can log them.
func ResolveAll(members []string, inv *model.Inventory) (out []string, bad []Selector) {
	seen := make(map[string]struct{})
	for _, m := range members {
		sel := Parse(m)
		if sel.Err != nil {
			bad = append(bad, sel)
			continue
		}
		for _, name := range sel.Resolve(inv) {
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			out = append(out, name)
		}
	}
	return out, bad
}
