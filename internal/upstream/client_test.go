package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/elysiawen/SubLinks-sub001/internal/fetch"
	"github.com/elysiawen/SubLinks-sub001/internal/model"
)

func yamlServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

const docA = `
proxies:
  - name: HK1
    type: ss
    server: a.example.com
    port: 8388
  - name: HK2
    type: ss
    server: a.example.com
    port: 8389
proxy-groups:
  - name: Shared
    type: select
    proxies: [HK1]
rules:
  - DOMAIN,a.com,Proxy
`

const docB = `
proxies:
  - name: US1
    type: trojan
    server: b.example.com
    port: 443
  - name: HK1
    type: ss
    server: b.example.com
    port: 8388
proxy-groups:
  - name: Shared
    type: select
    proxies: [US1]
rules:
  - DOMAIN,b.com,Proxy
`

func testClient() *Client {
	return &Client{Fetch: fetch.Options{Timeout: 5 * time.Second}}
}

func TestFetchAll_MergesInConfigOrder(t *testing.T) {
	a := yamlServer(t, docA)
	b := yamlServer(t, docB)

	res := testClient().FetchAll(context.Background(), []model.UpstreamSource{
		{Name: "A", URL: a.URL},
		{Name: "B", URL: b.URL},
	})

	if len(res.Failed) != 0 {
		t.Fatalf("failed sources: %v", res.Failed)
	}
	// Cross-source duplicate names both survive.
	names := res.Inventory.Names()
	want := []string{"HK1", "HK2", "US1", "HK1"}
	if len(names) != len(want) {
		t.Fatalf("names = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("names = %v, want %v", names, want)
		}
	}

	// Duplicate declared group keeps the first source's definition.
	if len(res.Groups) != 1 || res.Groups[0].Members[0] != "HK1" {
		t.Fatalf("groups = %+v", res.Groups)
	}
	if len(res.Warnings) == 0 {
		t.Fatal("expected a duplicate-group warning")
	}

	if len(res.Rules) != 2 || res.Rules[0].Value != "a.com" || res.Rules[1].Value != "b.com" {
		t.Fatalf("rules = %+v", res.Rules)
	}
}

func TestFetchAll_FailureIsolated(t *testing.T) {
	a := yamlServer(t, docA)
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(bad.Close)

	res := testClient().FetchAll(context.Background(), []model.UpstreamSource{
		{Name: "A", URL: a.URL},
		{Name: "Broken", URL: bad.URL},
	})

	if res.Inventory.Len() != 2 {
		t.Fatalf("inventory len = %d, want 2", res.Inventory.Len())
	}
	if _, ok := res.Failed["Broken"]; !ok {
		t.Fatalf("Failed = %v, want Broken recorded", res.Failed)
	}
	if _, ok := res.Failed["A"]; ok {
		t.Fatal("healthy source recorded as failed")
	}
}

func TestFetchSource_ParseErrorSurfaces(t *testing.T) {
	srv := yamlServer(t, "proxies: []\n")

	_, err := testClient().FetchSource(context.Background(), model.UpstreamSource{Name: "A", URL: srv.URL})
	if err == nil {
		t.Fatal("expected an error for an empty upstream")
	}
}
