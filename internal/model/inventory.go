package model

// Inventory is the canonical in-memory view of all proxies known to one
// synthesis pass, in upstream fetch order. Entries are deduplicated by name
// within each source; the same display name under two different sources is
// kept as two distinct entries.
type Inventory struct {
	proxies []Proxy
	seen    map[invKey]struct{}
}

type invKey struct {
	source string
	name   string
}

func NewInventory() *Inventory {
	return &Inventory{seen: make(map[invKey]struct{})}
}

// Add appends p to the inventory. It reports false when p was dropped:
// either its Source is empty (invariant violation by the caller) or the
// (source, name) pair is already present.
func (v *Inventory) Add(p Proxy) bool {
	if p.Source == "" {
		return false
	}
	k := invKey{source: p.Source, name: p.Name}
	if _, ok := v.seen[k]; ok {
		return false
	}
	v.seen[k] = struct{}{}
	v.proxies = append(v.proxies, p)
	return true
}

func (v *Inventory) Len() int { return len(v.proxies) }

// Proxies returns the entries in insertion order. The returned slice is
// shared; callers must not mutate it.
func (v *Inventory) Proxies() []Proxy { return v.proxies }

// Names returns every proxy name in insertion order, including duplicates
// across sources.
func (v *Inventory) Names() []string {
	out := make([]string, 0, len(v.proxies))
	for _, p := range v.proxies {
		out = append(out, p.Name)
	}
	return out
}
