package httpapi

import (
	"net/http"

	"github.com/elysiawen/SubLinks-sub001/internal/engine"
	"github.com/elysiawen/SubLinks-sub001/internal/model"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Store is the persistence surface the HTTP layer needs. *store.Store
// satisfies it.
type Store interface {
	GetSubscription(token string) (*model.Subscription, error)
	PutSubscription(sub *model.Subscription) error
	DeleteSubscription(token string) error
	ListSubscriptions() ([]*model.Subscription, error)

	GetConfigSet(id string) (*model.ConfigSet, error)
	PutConfigSet(set *model.ConfigSet) error
	DeleteConfigSet(id string) error
	ListConfigSets() ([]*model.ConfigSet, error)

	Settings() (model.Settings, error)
	PutSettings(settings model.Settings) error
}

type Deps struct {
	Engine  *engine.Engine
	Store   Store
	Options Options

	// NewToken mints subscription tokens; defaults to store.NewToken.
	NewToken func() string
}

func NewMux(deps Deps) *http.ServeMux {
	deps.Options = deps.Options.withDefaults()
	h := &handlers{deps: deps}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealthz)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /sub/{token}", h.handleSub)

	mux.HandleFunc("POST /api/refresh", h.handleRefreshAll)
	mux.HandleFunc("POST /api/refresh/{token}", h.handleRefreshToken)
	mux.HandleFunc("POST /api/precache", h.handlePrecache)

	mux.HandleFunc("GET /api/subscriptions", h.handleListSubscriptions)
	mux.HandleFunc("POST /api/subscriptions", h.handleCreateSubscription)
	mux.HandleFunc("GET /api/subscriptions/{token}", h.handleGetSubscription)
	mux.HandleFunc("PUT /api/subscriptions/{token}", h.handleUpdateSubscription)
	mux.HandleFunc("DELETE /api/subscriptions/{token}", h.handleDeleteSubscription)

	mux.HandleFunc("GET /api/configsets", h.handleListConfigSets)
	mux.HandleFunc("POST /api/configsets", h.handleCreateConfigSet)
	mux.HandleFunc("GET /api/configsets/{id}", h.handleGetConfigSet)
	mux.HandleFunc("PUT /api/configsets/{id}", h.handleUpdateConfigSet)
	mux.HandleFunc("DELETE /api/configsets/{id}", h.handleDeleteConfigSet)

	mux.HandleFunc("GET /api/settings", h.handleGetSettings)
	mux.HandleFunc("PUT /api/settings", h.handlePutSettings)

	return mux
}

type handlers struct {
	deps Deps
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	WriteText(w, http.StatusOK, "ok\n")
}
