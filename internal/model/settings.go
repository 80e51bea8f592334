package model

import "time"

// UpstreamSource is one admin-managed external proxy list.
type UpstreamSource struct {
	Name      string `json:"name"`
	URL       string `json:"url"`
	IsDefault bool   `json:"isDefault"`
}

// Settings is the global configuration consulted on every build.
type Settings struct {
	Sources []UpstreamSource `json:"sources"`

	// CacheDurationHours is the cache entry lifetime, applied at write time.
	CacheDurationHours int `json:"cacheDuration"`

	// UAWhitelist, when non-empty, restricts the public fetch endpoint to
	// clients whose User-Agent contains one of these substrings.
	UAWhitelist []string `json:"uaWhitelist"`
}

const DefaultCacheDurationHours = 24

func (s Settings) CacheTTL() time.Duration {
	h := s.CacheDurationHours
	if h <= 0 {
		h = DefaultCacheDurationHours
	}
	return time.Duration(h) * time.Hour
}

// SelectSources filters the configured sources down to the named ones,
// keeping configuration order. Names that match nothing are dropped.
func (s Settings) SelectSources(names []string) []UpstreamSource {
	want := make(map[string]struct{}, len(names))
	for _, n := range names {
		want[n] = struct{}{}
	}
	out := make([]UpstreamSource, 0, len(names))
	for _, src := range s.Sources {
		if _, ok := want[src.Name]; ok {
			out = append(out, src)
		}
	}
	return out
}
