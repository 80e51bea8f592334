package model

import "gopkg.in/yaml.v3"

// Proxy is one node pulled from an upstream subscription.
//
// Only Name/Type are modeled; Body keeps the upstream YAML mapping verbatim
// so the assembled document re-emits fields this engine does not understand
// (ciphers, transport options, fingerprints, ...).
type Proxy struct {
	// Name comes from the upstream document. It is unique within one source
	// after inventory dedup, but two sources may expose the same name.
	Name string

	Type string

	// Source is the name of the upstream the proxy came from. Inventory
	// entries always carry a non-empty Source.
	Source string

	Body *yaml.Node
}
