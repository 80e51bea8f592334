package rules

import (
	"errors"
	"fmt"
	"strings"

	"github.com/elysiawen/SubLinks-sub001/internal/model"
)

// ParseGroupText parses a group config-set: one group per line in the form
//
//	<NAME>`<TYPE>`<MEMBER>`<MEMBER>...
//
// TYPE is select/url-test/fallback/load-balance; members are literal names
// or selector strings (SOURCE:/KEYWORD:/REGEX:), resolved at synthesis time.
// Blank lines and lines starting with "#" are ignored.
func ParseGroupText(text string) ([]model.Group, error) {
	lines := strings.Split(text, "\n")
	out := make([]model.Group, 0, len(lines))
	names := make(map[string]struct{}, len(lines))

	for i, raw := range lines {
		line := strings.TrimSpace(strings.TrimSuffix(raw, "\r"))
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		g, err := parseGroupLine(line)
		if err != nil {
			var rerr *RuleError
			if errors.As(err, &rerr) {
				return nil, &ParseError{
					AppError: model.AppError{
						Code:    rerr.Code,
						Message: rerr.Message,
						Stage:   "parse_groups",
						Line:    i + 1,
						Snippet: truncateSnippet(raw, 200),
						Hint:    rerr.Hint,
					},
					Cause: rerr.Cause,
				}
			}
			return nil, &ParseError{
				AppError: model.AppError{
					Code:    "GROUP_PARSE_ERROR",
					Message: "策略组行不合法",
					Stage:   "parse_groups",
					Line:    i + 1,
					Snippet: truncateSnippet(raw, 200),
				},
				Cause: err,
			}
		}

		if _, ok := names[g.Name]; ok {
			return nil, &ParseError{
				AppError: model.AppError{
					Code:    "GROUP_PARSE_ERROR",
					Message: fmt.Sprintf("重复的策略组名：%s", g.Name),
					Stage:   "parse_groups",
					Line:    i + 1,
					Snippet: truncateSnippet(raw, 200),
				},
			}
		}
		names[g.Name] = struct{}{}
		out = append(out, g)
	}
	return out, nil
}

func parseGroupLine(line string) (model.Group, error) {
	parts := strings.Split(line, "`")
	if len(parts) < 3 {
		return model.Group{}, &RuleError{
			Code:    "GROUP_PARSE_ERROR",
			Message: "策略组指令格式不合法",
			Hint:    "expected: <NAME>`<TYPE>`<MEMBER>`<MEMBER>...",
		}
	}

	name := strings.TrimSpace(parts[0])
	typ := strings.TrimSpace(parts[1])
	if name == "" || typ == "" {
		return model.Group{}, &RuleError{Code: "GROUP_PARSE_ERROR", Message: "策略组名/类型不能为空"}
	}
	if strings.ContainsAny(name, "\r\n\x00") {
		return model.Group{}, &RuleError{Code: "GROUP_PARSE_ERROR", Message: "策略组名含有非法控制字符"}
	}
	if name == model.PolicyDirect || name == model.PolicyReject {
		return model.Group{}, &RuleError{Code: "GROUP_PARSE_ERROR", Message: "策略组名不能使用保留名 DIRECT/REJECT"}
	}
	if !model.ValidGroupType(typ) {
		return model.Group{}, &RuleError{
			Code:    "GROUP_UNSUPPORTED_TYPE",
			Message: fmt.Sprintf("不支持的策略组类型：%s", typ),
		}
	}

	members := make([]string, 0, len(parts)-2)
	for _, m := range parts[2:] {
		m = strings.TrimSpace(m)
		if m == "" {
			return model.Group{}, &RuleError{Code: "GROUP_PARSE_ERROR", Message: "策略组成员不能为空"}
		}
		members = append(members, m)
	}

	return model.Group{Name: name, Type: typ, Members: members}, nil
}
