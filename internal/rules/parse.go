package rules

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/elysiawen/SubLinks-sub001/internal/model"
)

type RuleError struct {
	Code    string
	Message string
	Hint    string
	Cause   error
}

func (e *RuleError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
}

func (e *RuleError) Unwrap() error { return e.Cause }

// ParseError carries position information for one bad line in a rule text.
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

// ParseText parses free-form rule text: one TYPE,VALUE,POLICY per line,
// blank lines and lines starting with "#" ignored.
func ParseText(text string) ([]model.Rule, error) {
	lines := strings.Split(text, "\n")
	out := make([]model.Rule, 0, len(lines))
	for i, raw := range lines {
		line := strings.TrimSpace(strings.TrimSuffix(raw, "\r"))
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		r, err := ParseLine(line)
		if err != nil {
			var rerr *RuleError
			if errors.As(err, &rerr) {
				return nil, &ParseError{
					AppError: model.AppError{
						Code:    rerr.Code,
						Message: rerr.Message,
						Stage:   "parse_rules",
						Line:    i + 1,
						Snippet: truncateSnippet(raw, 200),
						Hint:    rerr.Hint,
					},
					Cause: rerr.Cause,
				}
			}
			return nil, &ParseError{
				AppError: model.AppError{
					Code:    "RULE_PARSE_ERROR",
					Message: "规则行不合法",
					Stage:   "parse_rules",
					Line:    i + 1,
					Snippet: truncateSnippet(raw, 200),
				},
				Cause: err,
			}
		}
		out = append(out, r)
	}
	return out, nil
}

// ParseLine parses a single rule line. POLICY is always required.
func ParseLine(line string) (model.Rule, error) {
	line = strings.TrimSpace(strings.TrimSuffix(line, "\r"))
	if line == "" {
		return model.Rule{}, &RuleError{Code: "RULE_PARSE_ERROR", Message: "规则行不能为空"}
	}

	parts := strings.Split(line, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	typ := strings.ToUpper(parts[0])
	switch typ {
	case "DOMAIN", "DOMAIN-SUFFIX", "DOMAIN-KEYWORD", "GEOIP":
		return parseSimple3(typ, parts)
	case "IP-CIDR", "IP-CIDR6":
		return parseIPCidr(typ, parts)
	case "MATCH":
		// Both MATCH,<POLICY> and the canonical MATCH,,<POLICY> are accepted.
		switch len(parts) {
		case 2:
			if parts[1] == "" {
				return model.Rule{}, errMatchForm()
			}
			return model.Rule{Type: "MATCH", Policy: parts[1]}, nil
		case 3:
			if parts[1] != "" || parts[2] == "" {
				return model.Rule{}, errMatchForm()
			}
			return model.Rule{Type: "MATCH", Policy: parts[2]}, nil
		default:
			return model.Rule{}, errMatchForm()
		}
	default:
		return model.Rule{}, &RuleError{
			Code:    "UNSUPPORTED_RULE_TYPE",
			Message: fmt.Sprintf("不支持的规则类型：%s", typ),
		}
	}
}

func errMatchForm() *RuleError {
	return &RuleError{
		Code:    "RULE_PARSE_ERROR",
		Message: "MATCH 规则必须是 MATCH,,<POLICY>",
	}
}

func parseSimple3(typ string, parts []string) (model.Rule, error) {
	if len(parts) != 3 {
		return model.Rule{}, &RuleError{
			Code:    "RULE_PARSE_ERROR",
			Message: "规则字段数量不合法",
			Hint:    "expected: TYPE,VALUE,POLICY",
		}
	}
	if parts[1] == "" || parts[2] == "" {
		return model.Rule{}, &RuleError{Code: "RULE_PARSE_ERROR", Message: "规则 VALUE/POLICY 不能为空"}
	}
	return model.Rule{Type: typ, Value: parts[1], Policy: parts[2]}, nil
}

func parseIPCidr(typ string, parts []string) (model.Rule, error) {
	switch len(parts) {
	case 3:
		if parts[2] == "" {
			return model.Rule{}, &RuleError{Code: "RULE_PARSE_ERROR", Message: fmt.Sprintf("%s 的 POLICY 不能为空", typ)}
		}
		if strings.EqualFold(parts[2], "no-resolve") {
			return model.Rule{}, &RuleError{
				Code:    "RULE_PARSE_ERROR",
				Message: fmt.Sprintf("%s 缺少 POLICY（不允许仅写 no-resolve）", typ),
				Hint:    "expected: " + typ + ",CIDR,POLICY[,no-resolve]",
			}
		}
		if err := validateCIDR(typ, parts[1]); err != nil {
			return model.Rule{}, cidrError(typ, err)
		}
		return model.Rule{Type: typ, Value: parts[1], Policy: parts[2]}, nil
	case 4:
		if parts[2] == "" {
			return model.Rule{}, &RuleError{Code: "RULE_PARSE_ERROR", Message: fmt.Sprintf("%s 的 POLICY 不能为空", typ)}
		}
		if !strings.EqualFold(parts[3], "no-resolve") {
			return model.Rule{}, &RuleError{
				Code:    "RULE_PARSE_ERROR",
				Message: fmt.Sprintf("%s 的可选项仅支持 no-resolve", typ),
				Hint:    "expected: " + typ + ",CIDR,POLICY[,no-resolve]",
			}
		}
		if err := validateCIDR(typ, parts[1]); err != nil {
			return model.Rule{}, cidrError(typ, err)
		}
		return model.Rule{Type: typ, Value: parts[1], Policy: parts[2], NoResolve: true}, nil
	default:
		return model.Rule{}, &RuleError{
			Code:    "RULE_PARSE_ERROR",
			Message: fmt.Sprintf("%s 规则字段数量不合法", typ),
			Hint:    "expected: " + typ + ",CIDR,POLICY[,no-resolve]",
		}
	}
}

func cidrError(typ string, cause error) *RuleError {
	return &RuleError{
		Code:    "RULE_PARSE_ERROR",
		Message: fmt.Sprintf("%s 的 CIDR 不合法", typ),
		Cause:   cause,
	}
}

func validateCIDR(typ, s string) error {
	ip, _, err := net.ParseCIDR(strings.TrimSpace(s))
	if err != nil {
		return err
	}
	if typ == "IP-CIDR" && ip.To4() == nil {
		return errors.New("not an ipv4 cidr")
	}
	if typ == "IP-CIDR6" && ip.To4() != nil {
		return errors.New("not an ipv6 cidr")
	}
	return nil
}

func truncateSnippet(s string, max int) string {
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\n", "")
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	return s[:max]
}
