package model

import (
	"reflect"
	"testing"
	"time"
)

func TestInventory_DedupPerSource(t *testing.T) {
	v := NewInventory()
	if !v.Add(Proxy{Source: "A", Name: "HK1"}) {
		t.Fatal("first add rejected")
	}
	if v.Add(Proxy{Source: "A", Name: "HK1"}) {
		t.Fatal("duplicate (source, name) accepted")
	}
	// Same name under a different source is a distinct entry.
	if !v.Add(Proxy{Source: "B", Name: "HK1"}) {
		t.Fatal("cross-source duplicate rejected")
	}
	if v.Add(Proxy{Source: "", Name: "X"}) {
		t.Fatal("sourceless proxy accepted")
	}
	if v.Len() != 2 {
		t.Fatalf("Len = %d", v.Len())
	}
	if got := v.Names(); !reflect.DeepEqual(got, []string{"HK1", "HK1"}) {
		t.Fatalf("Names = %v", got)
	}
}

func TestConfigRef_Default(t *testing.T) {
	if !ConfigRef("").IsDefault() || !RefDefault.IsDefault() {
		t.Fatal("zero value and 'default' must both be default")
	}
	if ConfigRef("set-1").IsDefault() {
		t.Fatal("named ref reported default")
	}
	if ConfigRef("set-1").ID() != "set-1" {
		t.Fatal("ID mangled")
	}
}

func TestSettings_CacheTTL(t *testing.T) {
	if got := (Settings{CacheDurationHours: 6}).CacheTTL(); got != 6*time.Hour {
		t.Fatalf("got %v", got)
	}
	if got := (Settings{}).CacheTTL(); got != time.Duration(DefaultCacheDurationHours)*time.Hour {
		t.Fatalf("default ttl = %v", got)
	}
	if got := (Settings{CacheDurationHours: -1}).CacheTTL(); got != time.Duration(DefaultCacheDurationHours)*time.Hour {
		t.Fatalf("negative ttl = %v", got)
	}
}

func TestSettings_SelectSourcesKeepsConfigOrder(t *testing.T) {
	s := Settings{Sources: []UpstreamSource{
		{Name: "A", URL: "https://a"},
		{Name: "B", URL: "https://b"},
		{Name: "C", URL: "https://c"},
	}}

	got := s.SelectSources([]string{"C", "Gone", "A"})
	want := []string{"A", "C"}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i, name := range want {
		if got[i].Name != name {
			t.Fatalf("got %v, want order %v", got, want)
		}
	}
}

func TestBuiltinPolicies(t *testing.T) {
	names := BuiltinPolicies()
	want := map[string]bool{
		PolicyProxy: false, PolicyDirect: false, PolicyReject: false,
		PolicyAuto: false, PolicyGlobal: false,
	}
	for _, n := range names {
		if _, ok := want[n]; !ok {
			t.Fatalf("unexpected policy %q", n)
		}
		want[n] = true
	}
	for n, seen := range want {
		if !seen {
			t.Fatalf("policy %q missing", n)
		}
	}
}

func TestValidGroupType(t *testing.T) {
	for _, typ := range []string{GroupSelect, GroupURLTest, GroupFallback, GroupLoadBalance} {
		if !ValidGroupType(typ) {
			t.Fatalf("%q should be valid", typ)
		}
	}
	if ValidGroupType("relay") {
		t.Fatal("relay should be invalid")
	}
}
