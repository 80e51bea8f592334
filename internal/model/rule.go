package model

type Rule struct {
	Type      string // DOMAIN / DOMAIN-SUFFIX / DOMAIN-KEYWORD / IP-CIDR / IP-CIDR6 / GEOIP / MATCH
	Value     string // empty only for MATCH
	Policy    string // built-in policy or group name
	NoResolve bool   // only meaningful for IP-CIDR/IP-CIDR6
}
