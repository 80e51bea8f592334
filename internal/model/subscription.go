package model

// ConfigRef selects either the default group/rule layout or a named config
// set. The zero value and the literal "default" both mean default; it is
// resolved once at the start of synthesis, never compared at call sites.
type ConfigRef string

const RefDefault ConfigRef = "default"

func (r ConfigRef) IsDefault() bool { return r == "" || r == RefDefault }

// ID returns the config-set id; valid only when !IsDefault().
func (r ConfigRef) ID() string { return string(r) }

// Subscription is one user-facing subscription link. Token is the cache key
// and the external identity; everything else describes how its document is
// synthesized.
type Subscription struct {
	Token   string `json:"token"`
	Owner   string `json:"owner"`
	Remark  string `json:"remark"`
	Enabled bool   `json:"enabled"`

	GroupRef ConfigRef `json:"groupId"`
	RuleRef  ConfigRef `json:"ruleId"`

	// CustomRules is free-form appended rule text (TYPE,VALUE,POLICY lines,
	// # comments and blank lines ignored).
	CustomRules string `json:"customRules"`

	SelectedSources []string `json:"selectedSources"`
}

// ConfigSet kinds.
const (
	SetGroups = "groups"
	SetRules  = "rules"
)

// ConfigSet is a reusable, ownable definition of either a group list or a
// rule list. Content is line-oriented text in the corresponding grammar.
type ConfigSet struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Kind     string `json:"kind"` // groups | rules
	Content  string `json:"content"`
	IsGlobal bool   `json:"isGlobal"`
	UserID   string `json:"userId"`
}
