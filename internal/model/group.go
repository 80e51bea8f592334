package model

// Built-in policy names. They always exist in an assembled document and are
// never removed or shadowed by merging. Proxy/Auto/Global are synthesized as
// groups; DIRECT/REJECT are client built-ins referenced by name only.
const (
	PolicyProxy  = "Proxy"
	PolicyDirect = "DIRECT"
	PolicyReject = "REJECT"
	PolicyAuto   = "Auto"
	PolicyGlobal = "Global"
)

func BuiltinPolicies() []string {
	return []string{PolicyProxy, PolicyDirect, PolicyReject, PolicyAuto, PolicyGlobal}
}

// Group policy-group types.
const (
	GroupSelect      = "select"
	GroupURLTest     = "url-test"
	GroupFallback    = "fallback"
	GroupLoadBalance = "load-balance"
)

func ValidGroupType(t string) bool {
	switch t {
	case GroupSelect, GroupURLTest, GroupFallback, GroupLoadBalance:
		return true
	}
	return false
}

type Group struct {
	Name string
	Type string // select | url-test | fallback | load-balance

	// Members holds selector strings at authoring time and literal
	// proxy/group names after synthesis.
	Members []string

	// url-test / fallback / load-balance only.
	TestURL     string
	IntervalSec int
}
