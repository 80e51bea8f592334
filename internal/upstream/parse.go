// Package upstream fetches and normalizes external proxy subscriptions.
package upstream

import (
	"fmt"
	"strings"

	"github.com/elysiawen/SubLinks-sub001/internal/model"
	"github.com/elysiawen/SubLinks-sub001/internal/rules"
	"gopkg.in/yaml.v3"
)

// Document is the canonical view of one upstream subscription: its proxies
// (tagged with the source name), declared policy groups and declared rules.
type Document struct {
	Source  string
	Proxies []model.Proxy
	Groups  []model.Group
	Rules   []model.Rule

	// Warnings records upstream content that was skipped instead of
	// failing the whole document (unparseable rule lines, group types the
	// engine does not model, proxies without a name).
	Warnings []string
}

type ParseError struct {
	AppError model.AppError
	Cause    error
}

func (e *ParseError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.AppError.Code, e.AppError.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.AppError.Code, e.AppError.Message, e.Cause)
}

func (e *ParseError) Unwrap() error { return e.Cause }

type rawGroup struct {
	Name     string   `yaml:"name"`
	Type     string   `yaml:"type"`
	Proxies  []string `yaml:"proxies"`
	URL      string   `yaml:"url"`
	Interval int      `yaml:"interval"`
}

// Parse parses a Clash-style upstream subscription document. Proxy bodies
// are kept as raw YAML nodes so the assembler re-emits them untouched.
//
// Declared rules and groups the engine cannot model are skipped with a
// warning; an upstream without a single usable proxy is an error, because a
// source that contributes nothing is indistinguishable from a broken one.
func Parse(sourceName, text string) (*Document, error) {
	var root yaml.Node
	if err := yaml.Unmarshal([]byte(text), &root); err != nil {
		return nil, &ParseError{
			AppError: model.AppError{
				Code:    "UPSTREAM_PARSE_ERROR",
				Message: "上游订阅 YAML 解析失败",
				Stage:   "parse_upstream",
				Snippet: truncateSnippet(text, 200),
			},
			Cause: err,
		}
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 || root.Content[0].Kind != yaml.MappingNode {
		return nil, &ParseError{
			AppError: model.AppError{
				Code:    "UPSTREAM_PARSE_ERROR",
				Message: "上游订阅必须是 YAML 映射",
				Stage:   "parse_upstream",
			},
		}
	}
	top := root.Content[0]

	doc := &Document{Source: sourceName}

	if n := mappingValue(top, "proxies"); n != nil && n.Kind == yaml.SequenceNode {
		for _, item := range n.Content {
			if item.Kind != yaml.MappingNode {
				doc.Warnings = append(doc.Warnings, "skipped non-mapping proxy entry")
				continue
			}
			name := scalarValue(item, "name")
			if name == "" {
				doc.Warnings = append(doc.Warnings, "skipped proxy without name")
				continue
			}
			doc.Proxies = append(doc.Proxies, model.Proxy{
				Name:   name,
				Type:   scalarValue(item, "type"),
				Source: sourceName,
				Body:   item,
			})
		}
	}
	if len(doc.Proxies) == 0 {
		return nil, &ParseError{
			AppError: model.AppError{
				Code:    "UPSTREAM_EMPTY",
				Message: "上游订阅不包含任何节点",
				Stage:   "parse_upstream",
			},
		}
	}

	if n := mappingValue(top, "proxy-groups"); n != nil && n.Kind == yaml.SequenceNode {
		for _, item := range n.Content {
			var rg rawGroup
			if err := item.Decode(&rg); err != nil || rg.Name == "" {
				doc.Warnings = append(doc.Warnings, "skipped malformed proxy-group entry")
				continue
			}
			if !model.ValidGroupType(rg.Type) {
				doc.Warnings = append(doc.Warnings, fmt.Sprintf("skipped group %q: unsupported type %q", rg.Name, rg.Type))
				continue
			}
			doc.Groups = append(doc.Groups, model.Group{
				Name:        rg.Name,
				Type:        rg.Type,
				Members:     rg.Proxies,
				TestURL:     rg.URL,
				IntervalSec: rg.Interval,
			})
		}
	}

	if n := mappingValue(top, "rules"); n != nil && n.Kind == yaml.SequenceNode {
		for _, item := range n.Content {
			if item.Kind != yaml.ScalarNode {
				doc.Warnings = append(doc.Warnings, "skipped non-scalar rule entry")
				continue
			}
			r, err := rules.ParseLine(item.Value)
			if err != nil {
				doc.Warnings = append(doc.Warnings, fmt.Sprintf("skipped rule %q: %v", item.Value, err))
				continue
			}
			doc.Rules = append(doc.Rules, r)
		}
	}

	return doc, nil
}

// mappingValue returns the value node for key in a YAML mapping, or nil.
func mappingValue(m *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

func scalarValue(m *yaml.Node, key string) string {
	n := mappingValue(m, key)
	if n == nil || n.Kind != yaml.ScalarNode {
		return ""
	}
	return strings.TrimSpace(n.Value)
}

func truncateSnippet(s string, max int) string {
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= max {
		return s
	}
	return s[:max]
}
