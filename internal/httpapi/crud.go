package httpapi

import (
	"net/http"
	"strings"

	"github.com/elysiawen/SubLinks-sub001/internal/model"
	"github.com/elysiawen/SubLinks-sub001/internal/rules"
	"github.com/elysiawen/SubLinks-sub001/internal/store"
)

// Subscription and config-set CRUD. These endpoints exist to operate the
// engine without an external admin surface; they carry no authentication.

func (h *handlers) handleListSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs, err := h.deps.Store.ListSubscriptions()
	if err != nil {
		writeErrorFromErr(w, err)
		return
	}
	if subs == nil {
		subs = []*model.Subscription{}
	}
	WriteJSON(w, http.StatusOK, subs)
}

func (h *handlers) handleGetSubscription(w http.ResponseWriter, r *http.Request) {
	sub, err := h.deps.Store.GetSubscription(r.PathValue("token"))
	if err != nil {
		writeErrorFromErr(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, sub)
}

func (h *handlers) handleCreateSubscription(w http.ResponseWriter, r *http.Request) {
	var sub model.Subscription
	if err := decodeJSON(r, &sub); err != nil {
		writeErrorFromErr(w, err)
		return
	}
	if sub.Token == "" {
		newToken := h.deps.NewToken
		if newToken == nil {
			newToken = store.NewToken
		}
		sub.Token = newToken()
	}
	if err := validateAppendedRules(sub.CustomRules); err != nil {
		writeErrorFromErr(w, err)
		return
	}
	if err := h.deps.Store.PutSubscription(&sub); err != nil {
		writeErrorFromErr(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, &sub)
}

func (h *handlers) handleUpdateSubscription(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")
	if _, err := h.deps.Store.GetSubscription(token); err != nil {
		writeErrorFromErr(w, err)
		return
	}

	var sub model.Subscription
	if err := decodeJSON(r, &sub); err != nil {
		writeErrorFromErr(w, err)
		return
	}
	sub.Token = token
	if err := validateAppendedRules(sub.CustomRules); err != nil {
		writeErrorFromErr(w, err)
		return
	}
	if err := h.deps.Store.PutSubscription(&sub); err != nil {
		writeErrorFromErr(w, err)
		return
	}

	// The cached document no longer matches the stored definition.
	h.deps.Engine.Invalidate(token)
	WriteJSON(w, http.StatusOK, &sub)
}

func (h *handlers) handleDeleteSubscription(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")
	if _, err := h.deps.Store.GetSubscription(token); err != nil {
		writeErrorFromErr(w, err)
		return
	}
	if err := h.deps.Store.DeleteSubscription(token); err != nil {
		writeErrorFromErr(w, err)
		return
	}
	h.deps.Engine.Invalidate(token)
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) handleListConfigSets(w http.ResponseWriter, r *http.Request) {
	sets, err := h.deps.Store.ListConfigSets()
	if err != nil {
		writeErrorFromErr(w, err)
		return
	}
	if sets == nil {
		sets = []*model.ConfigSet{}
	}
	WriteJSON(w, http.StatusOK, sets)
}

func (h *handlers) handleGetConfigSet(w http.ResponseWriter, r *http.Request) {
	set, err := h.deps.Store.GetConfigSet(r.PathValue("id"))
	if err != nil {
		writeErrorFromErr(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, set)
}

func (h *handlers) handleCreateConfigSet(w http.ResponseWriter, r *http.Request) {
	var set model.ConfigSet
	if err := decodeJSON(r, &set); err != nil {
		writeErrorFromErr(w, err)
		return
	}
	if err := validateConfigSetContent(&set); err != nil {
		writeErrorFromErr(w, err)
		return
	}
	if err := h.deps.Store.PutConfigSet(&set); err != nil {
		writeErrorFromErr(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, &set)
}

func (h *handlers) handleUpdateConfigSet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := h.deps.Store.GetConfigSet(id); err != nil {
		writeErrorFromErr(w, err)
		return
	}

	var set model.ConfigSet
	if err := decodeJSON(r, &set); err != nil {
		writeErrorFromErr(w, err)
		return
	}
	set.ID = id
	if err := validateConfigSetContent(&set); err != nil {
		writeErrorFromErr(w, err)
		return
	}
	if err := h.deps.Store.PutConfigSet(&set); err != nil {
		writeErrorFromErr(w, err)
		return
	}

	// Any number of subscriptions may reference this set.
	h.deps.Engine.InvalidateAll()
	WriteJSON(w, http.StatusOK, &set)
}

func (h *handlers) handleDeleteConfigSet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := h.deps.Store.GetConfigSet(id); err != nil {
		writeErrorFromErr(w, err)
		return
	}
	if err := h.deps.Store.DeleteConfigSet(id); err != nil {
		writeErrorFromErr(w, err)
		return
	}
	// Referencing subscriptions fall back to default synthesis from now on.
	h.deps.Engine.InvalidateAll()
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.deps.Store.Settings()
	if err != nil {
		writeErrorFromErr(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, settings)
}

func (h *handlers) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var settings model.Settings
	if err := decodeJSON(r, &settings); err != nil {
		writeErrorFromErr(w, err)
		return
	}
	if err := h.deps.Store.PutSettings(settings); err != nil {
		writeErrorFromErr(w, err)
		return
	}

	// Upstream URLs or TTL may have changed; every cached document is stale.
	h.deps.Engine.InvalidateAll()
	WriteJSON(w, http.StatusOK, settings)
}

// validateAppendedRules rejects bad appended rule text at write time, where
// the author can fix it. (Build time degrades instead of failing.)
func validateAppendedRules(text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	_, err := rules.ParseText(text)
	return err
}

// validateConfigSetContent rejects config-set content that would be ignored
// at synthesis time.
func validateConfigSetContent(set *model.ConfigSet) error {
	switch set.Kind {
	case model.SetGroups:
		_, err := rules.ParseGroupText(set.Content)
		return err
	case model.SetRules:
		_, err := rules.ParseText(set.Content)
		return err
	default:
		return requestError("INVALID_ARGUMENT", "配置集类型必须是 groups 或 rules", set.Kind)
	}
}
