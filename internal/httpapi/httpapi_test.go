package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/elysiawen/SubLinks-sub001/internal/engine"
	"github.com/elysiawen/SubLinks-sub001/internal/fetch"
	"github.com/elysiawen/SubLinks-sub001/internal/model"
	"github.com/elysiawen/SubLinks-sub001/internal/store"
)

const upstreamDoc = `
proxies:
  - name: HK1
    type: ss
    server: hk1.example.com
    port: 8388
rules:
  - DOMAIN,up.example.com,Proxy
`

// testEnv is one fully wired server: bbolt store in a temp dir, a fake
// upstream, and the engine behind the mux.
type testEnv struct {
	mux *http.ServeMux
	st  *store.Store
}

func newTestEnv(t *testing.T, uaWhitelist []string) *testEnv {
	t.Helper()

	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(upstreamDoc))
	}))
	t.Cleanup(up.Close)

	st, err := store.Open(filepath.Join(t.TempDir(), "sublinks.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = st.Close() })

	err = st.PutSettings(model.Settings{
		Sources:            []model.UpstreamSource{{Name: "A", URL: up.URL, IsDefault: true}},
		CacheDurationHours: 1,
		UAWhitelist:        uaWhitelist,
	})
	if err != nil {
		t.Fatal(err)
	}

	eng := engine.New(st, st, st, engine.Options{Fetch: fetch.Options{Timeout: 5 * time.Second}})
	return &testEnv{
		mux: NewMux(Deps{Engine: eng, Store: st}),
		st:  st,
	}
}

func (env *testEnv) addSubscription(t *testing.T, sub *model.Subscription) {
	t.Helper()
	if sub.SelectedSources == nil {
		sub.SelectedSources = []string{"A"}
	}
	if err := env.st.PutSubscription(sub); err != nil {
		t.Fatal(err)
	}
}

func (env *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(data)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	w := httptest.NewRecorder()
	env.mux.ServeHTTP(w, req)
	return w
}

func decodeAppError(t *testing.T, w *httptest.ResponseRecorder) model.AppError {
	t.Helper()
	var resp model.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("error body: %v\n%s", err, w.Body.String())
	}
	return resp.Error
}

func TestSub_ServesDocument(t *testing.T) {
	env := newTestEnv(t, nil)
	env.addSubscription(t, &model.Subscription{Token: "tok", Enabled: true})

	w := env.do(t, http.MethodGet, "/sub/tok", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d\n%s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/yaml") {
		t.Fatalf("Content-Type = %q", ct)
	}
	if cc := w.Header().Get("Cache-Control"); cc != "no-store" {
		t.Fatalf("Cache-Control = %q", cc)
	}
	if !strings.Contains(w.Body.String(), "HK1") {
		t.Fatalf("body missing proxy:\n%s", w.Body.String())
	}
}

func TestSub_UnknownToken(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodGet, "/sub/nope", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
	if ae := decodeAppError(t, w); ae.Code != "SUB_NOT_FOUND" {
		t.Fatalf("code = %s", ae.Code)
	}
}

func TestSub_DisabledToken(t *testing.T) {
	env := newTestEnv(t, nil)
	env.addSubscription(t, &model.Subscription{Token: "off", Enabled: false})

	w := env.do(t, http.MethodGet, "/sub/off", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
	if ae := decodeAppError(t, w); ae.Code != "SUB_DISABLED" {
		t.Fatalf("code = %s", ae.Code)
	}
}

func TestSub_UAWhitelist(t *testing.T) {
	env := newTestEnv(t, []string{"clash"})
	env.addSubscription(t, &model.Subscription{Token: "tok", Enabled: true})

	req := httptest.NewRequest(http.MethodGet, "/sub/tok", nil)
	req.Header.Set("User-Agent", "curl/8.0")
	w := httptest.NewRecorder()
	env.mux.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403 for non-whitelisted UA", w.Code)
	}
	if ae := decodeAppError(t, w); ae.Code != "UA_FORBIDDEN" {
		t.Fatalf("code = %s", ae.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/sub/tok", nil)
	req.Header.Set("User-Agent", "ClashMetaForAndroid/2.9")
	w = httptest.NewRecorder()
	env.mux.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 for whitelisted UA\n%s", w.Code, w.Body.String())
	}
}

func TestSub_RefreshQueryParam(t *testing.T) {
	env := newTestEnv(t, nil)
	env.addSubscription(t, &model.Subscription{Token: "tok", Enabled: true})

	if w := env.do(t, http.MethodGet, "/sub/tok", nil); w.Code != http.StatusOK {
		t.Fatalf("prime: %d", w.Code)
	}
	if w := env.do(t, http.MethodGet, "/sub/tok?refresh=true", nil); w.Code != http.StatusOK {
		t.Fatalf("refresh: %d\n%s", w.Code, w.Body.String())
	}
}

func TestRefreshToken_ReturnsCounts(t *testing.T) {
	env := newTestEnv(t, nil)
	env.addSubscription(t, &model.Subscription{Token: "tok", Enabled: true})

	w := env.do(t, http.MethodPost, "/api/refresh/tok", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d\n%s", w.Code, w.Body.String())
	}
	var resp struct {
		Status  string `json:"status"`
		Proxies int    `json:"proxies"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "ok" || resp.Proxies != 1 {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestPrecache_DefaultsToEnabledSubscriptions(t *testing.T) {
	env := newTestEnv(t, nil)
	env.addSubscription(t, &model.Subscription{Token: "on", Enabled: true})
	env.addSubscription(t, &model.Subscription{Token: "off", Enabled: false})

	w := env.do(t, http.MethodPost, "/api/precache", precacheRequest{})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d\n%s", w.Code, w.Body.String())
	}
	var resp precacheResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Requested != 1 || resp.Succeeded != 1 {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestPrecache_ReportsPerTokenFailures(t *testing.T) {
	env := newTestEnv(t, nil)
	env.addSubscription(t, &model.Subscription{Token: "on", Enabled: true})

	w := env.do(t, http.MethodPost, "/api/precache", precacheRequest{Tokens: []string{"on", "ghost"}})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp precacheResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Requested != 2 || resp.Succeeded != 1 {
		t.Fatalf("resp = %+v", resp)
	}
	if _, ok := resp.Failed["ghost"]; !ok {
		t.Fatalf("Failed = %v", resp.Failed)
	}
}

func TestSubscriptionCRUD(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodPost, "/api/subscriptions", map[string]any{
		"owner":           "alice",
		"enabled":         true,
		"selectedSources": []string{"A"},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create: %d\n%s", w.Code, w.Body.String())
	}
	var created model.Subscription
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}
	if created.Token == "" {
		t.Fatal("create did not mint a token")
	}

	if w := env.do(t, http.MethodGet, "/api/subscriptions/"+created.Token, nil); w.Code != http.StatusOK {
		t.Fatalf("get: %d", w.Code)
	}

	w = env.do(t, http.MethodPut, "/api/subscriptions/"+created.Token, map[string]any{
		"owner":           "alice",
		"remark":          "updated",
		"enabled":         true,
		"selectedSources": []string{"A"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("update: %d\n%s", w.Code, w.Body.String())
	}

	if w := env.do(t, http.MethodDelete, "/api/subscriptions/"+created.Token, nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete: %d", w.Code)
	}
	if w := env.do(t, http.MethodGet, "/api/subscriptions/"+created.Token, nil); w.Code != http.StatusNotFound {
		t.Fatalf("get after delete: %d", w.Code)
	}
}

func TestCreateSubscription_BadAppendedRules(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodPost, "/api/subscriptions", map[string]any{
		"enabled":         true,
		"selectedSources": []string{"A"},
		"customRules":     "NOT-A-RULE\n",
	})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d\n%s", w.Code, w.Body.String())
	}
}

func TestCreateSubscription_UnknownJSONField(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodPost, "/api/subscriptions", map[string]any{
		"enabled": true,
		"bogus":   1,
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	if ae := decodeAppError(t, w); ae.Code != "INVALID_ARGUMENT" {
		t.Fatalf("code = %s", ae.Code)
	}
}

func TestConfigSetCRUD_ContentValidated(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodPost, "/api/configsets", map[string]any{
		"name":    "my rules",
		"kind":    "rules",
		"content": "DOMAIN,example.com,Proxy\nMATCH,,DIRECT\n",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create: %d\n%s", w.Code, w.Body.String())
	}
	var created model.ConfigSet
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}

	w = env.do(t, http.MethodPost, "/api/configsets", map[string]any{
		"name":    "broken",
		"kind":    "rules",
		"content": "NOT-A-RULE\n",
	})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("bad content: %d\n%s", w.Code, w.Body.String())
	}

	if w := env.do(t, http.MethodDelete, "/api/configsets/"+created.ID, nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete: %d", w.Code)
	}
}

func TestSettings_PutInvalidatesCache(t *testing.T) {
	env := newTestEnv(t, nil)
	env.addSubscription(t, &model.Subscription{Token: "tok", Enabled: true})

	if w := env.do(t, http.MethodGet, "/sub/tok", nil); w.Code != http.StatusOK {
		t.Fatalf("prime: %d", w.Code)
	}

	settings, err := env.st.Settings()
	if err != nil {
		t.Fatal(err)
	}
	w := env.do(t, http.MethodPut, "/api/settings", settings)
	if w.Code != http.StatusOK {
		t.Fatalf("put settings: %d\n%s", w.Code, w.Body.String())
	}

	if w := env.do(t, http.MethodGet, "/sub/tok", nil); w.Code != http.StatusOK {
		t.Fatalf("read after settings change: %d", w.Code)
	}
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(t, http.MethodGet, "/healthz", nil)
	if w.Code != http.StatusOK || w.Body.String() != "ok\n" {
		t.Fatalf("%d %q", w.Code, w.Body.String())
	}
}
