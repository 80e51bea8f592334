package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

type precacheRequest struct {
	Tokens []string `json:"tokens"`
	Force  bool     `json:"force"`
}

type precacheResponse struct {
	Requested int               `json:"requested"`
	Succeeded int               `json:"succeeded"`
	Failed    map[string]string `json:"failed,omitempty"`
}

// handleRefreshAll drops every cached document. The next fetch per token
// rebuilds lazily.
func (h *handlers) handleRefreshAll(w http.ResponseWriter, r *http.Request) {
	h.deps.Engine.InvalidateAll()
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) handleRefreshToken(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.deps.Options.BuildTimeout)
	defer cancel()

	doc, err := h.deps.Engine.Refresh(ctx, r.PathValue("token"))
	if err != nil {
		writeErrorFromErr(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"proxies": doc.ProxyCount,
		"groups":  doc.GroupCount,
		"rules":   doc.RuleCount,
	})
}

// handlePrecache warms the cache for the requested tokens, or for every
// enabled subscription when the list is empty. Per-token failures are
// reported individually; the batch itself always returns 200.
func (h *handlers) handlePrecache(w http.ResponseWriter, r *http.Request) {
	var req precacheRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErrorFromErr(w, err)
		return
	}

	tokens := req.Tokens
	if len(tokens) == 0 {
		subs, err := h.deps.Store.ListSubscriptions()
		if err != nil {
			writeErrorFromErr(w, err)
			return
		}
		for _, sub := range subs {
			if sub.Enabled {
				tokens = append(tokens, sub.Token)
			}
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.deps.Options.PrecacheTimeout)
	defer cancel()

	res := h.deps.Engine.Precache(ctx, tokens, req.Force)

	resp := precacheResponse{
		Requested: res.Requested,
		Succeeded: len(res.Succeeded),
	}
	if len(res.Failed) > 0 {
		resp.Failed = make(map[string]string, len(res.Failed))
		for token, err := range res.Failed {
			resp.Failed[token] = err.Error()
		}
	}
	WriteJSON(w, http.StatusOK, resp)
}

// decodeJSON decodes a single strict JSON document from the request body.
func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return requestError("INVALID_ARGUMENT", "JSON body 解析失败", err.Error())
	}
	var extra any
	if err := dec.Decode(&extra); err == nil {
		return requestError("INVALID_ARGUMENT", "JSON body 不允许多段", "")
	} else if !errors.Is(err, io.EOF) {
		return requestError("INVALID_ARGUMENT", "JSON body 解析失败", err.Error())
	}
	return nil
}
