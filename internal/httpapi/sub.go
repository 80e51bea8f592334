package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/elysiawen/SubLinks-sub001/internal/model"
	"github.com/elysiawen/SubLinks-sub001/internal/synth"
)

// handleSub is the public subscription fetch endpoint. It never serves a
// half-built document: either the full body with 200, or an error payload.
func (h *handlers) handleSub(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")

	settings, err := h.deps.Store.Settings()
	if err != nil {
		writeErrorFromErr(w, err)
		return
	}
	if !uaAllowed(r.UserAgent(), settings.UAWhitelist) {
		WriteError(w, http.StatusForbidden, model.AppError{
			Code:    "UA_FORBIDDEN",
			Message: "客户端 User-Agent 不在白名单内",
			Stage:   "validate_request",
		})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.deps.Options.BuildTimeout)
	defer cancel()

	var doc *synth.Document
	if r.URL.Query().Get("refresh") == "true" {
		doc, err = h.deps.Engine.Refresh(ctx, token)
	} else {
		doc, err = h.deps.Engine.Document(ctx, token)
	}
	if err != nil {
		writeErrorFromErr(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/yaml; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc.Body)
}

// uaAllowed applies the UA whitelist: empty whitelist admits everyone,
// otherwise the User-Agent must contain one of the configured substrings
// (case-insensitive).
func uaAllowed(ua string, whitelist []string) bool {
	if len(whitelist) == 0 {
		return true
	}
	lower := strings.ToLower(ua)
	for _, want := range whitelist {
		if want == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(want)) {
			return true
		}
	}
	return false
}
