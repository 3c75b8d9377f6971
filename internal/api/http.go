// Package api exposes the inquiry session over a local JSON HTTP API and an
// MCP tool server.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/cekrek/internal/history"
	"github.com/kalambet/cekrek/internal/provider"
	"github.com/kalambet/cekrek/internal/session"
	"github.com/kalambet/cekrek/internal/validate"
)

const maxBodySize = 64 << 10

type AppDeps struct {
	Session *session.Session
	History *history.Store
	Token   string
}

func NewAppHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Get("/providers", handleListProviders(deps))
		r.Post("/validate", handleValidate)

		r.Post("/inquiries", handleSubmitInquiry(deps))
		r.Get("/inquiries/current", handleCurrentInquiry(deps))
		r.Delete("/inquiries/current", handleResetInquiry(deps))

		r.Get("/incognito", handleGetIncognito(deps))
		r.Put("/incognito", handleSetIncognito(deps))

		r.Get("/history", handleListHistory(deps))
		r.Delete("/history", handleClearHistory(deps))
		r.Get("/recents", handleListRecents(deps))

		r.Get("/favorites", handleListFavorites(deps))
		r.Post("/favorites", handleSaveFavorite(deps))
		r.Get("/favorites/{id}", handleGetFavorite(deps))
		r.Delete("/favorites/{id}", handleDeleteFavorite(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func handleListProviders(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cat := deps.Session.Catalog()
		q := r.URL.Query()

		raw := q.Get("type")
		if raw == "" {
			writeJSON(w, http.StatusOK, cat)
			return
		}
		t, err := provider.ParseType(raw)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}

		popular, _ := strconv.ParseBool(q.Get("popular"))
		entries := cat.Filter(t, q.Get("search"), popular)
		if entries == nil {
			entries = []provider.Entry{}
		}
		writeJSON(w, http.StatusOK, entries)
	}
}

type validateRequest struct {
	AccountType string `json:"account_type"`
	Number      string `json:"number"`
}

type validateResponse struct {
	validate.Result
	Message string `json:"message,omitempty"`
}

func handleValidate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	t, err := provider.ParseType(req.AccountType)
	if err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
		return
	}

	res := validate.Validate(req.Number, t)
	resp := validateResponse{Result: res}
	if !res.Valid {
		resp.Message = validate.Message(t, res.Reason)
	}
	writeJSON(w, http.StatusOK, resp)
}

type inquiryRequest struct {
	AccountType  string `json:"account_type"`
	ProviderCode string `json:"provider_code"`
	Number       string `json:"number"`
	Incognito    bool   `json:"incognito"`
}

func handleSubmitInquiry(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req inquiryRequest
		if !decodeBody(w, r, &req) {
			return
		}
		t, err := provider.ParseType(req.AccountType)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}

		out, err := deps.Session.Submit(r.Context(), session.Request{
			AccountType:  t,
			ProviderCode: req.ProviderCode,
			Number:       req.Number,
			Incognito:    req.Incognito,
		})
		if err != nil {
			status, errType := submitErrorStatus(err)
			httpError(w, status, errType, "%v", err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func submitErrorStatus(err error) (int, string) {
	var verr *validate.Error
	switch {
	case errors.As(err, &verr),
		errors.Is(err, session.ErrEmptyInput),
		errors.Is(err, provider.ErrUnknownProvider):
		return http.StatusBadRequest, "invalid_request_error"
	case errors.Is(err, session.ErrBusy):
		return http.StatusConflict, "conflict_error"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "cancelled_error"
	default:
		return http.StatusInternalServerError, "api_error"
	}
}

func handleCurrentInquiry(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, deps.Session.Outcome())
	}
}

func handleResetInquiry(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deps.Session.Reset()
		w.WriteHeader(http.StatusNoContent)
	}
}

type incognitoBody struct {
	Enabled bool `json:"enabled"`
}

func handleGetIncognito(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, incognitoBody{Enabled: deps.Session.Incognito()})
	}
}

func handleSetIncognito(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req incognitoBody
		if !decodeBody(w, r, &req) {
			return
		}
		deps.Session.SetIncognito(req.Enabled)
		writeJSON(w, http.StatusOK, req)
	}
}

func handleListHistory(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := deps.History.LoadHistory()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "loading history: %v", err)
			return
		}
		if entries == nil {
			entries = []history.Entry{}
		}
		writeJSON(w, http.StatusOK, entries)
	}
}

func handleClearHistory(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.History.ClearHistory(); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleListRecents(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		recents, err := deps.History.LoadRecents()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "loading recents: %v", err)
			return
		}
		if recents == nil {
			recents = []string{}
		}
		writeJSON(w, http.StatusOK, recents)
	}
}

func handleListFavorites(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		favs, err := deps.History.LoadFavorites()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "loading favorites: %v", err)
			return
		}
		if favs == nil {
			favs = []history.Favorite{}
		}
		writeJSON(w, http.StatusOK, favs)
	}
}

type saveFavoriteRequest struct {
	Label string `json:"label"`
}

func handleSaveFavorite(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req saveFavoriteRequest
		if !decodeBody(w, r, &req) {
			return
		}

		fav, err := deps.Session.SaveFavorite(req.Label)
		switch {
		case errors.Is(err, history.ErrEmptyLabel):
			httpError(w, http.StatusBadRequest, "invalid_request_error", "label is required")
			return
		case errors.Is(err, session.ErrIncognito), errors.Is(err, session.ErrNoResult):
			httpError(w, http.StatusConflict, "conflict_error", "%v", err)
			return
		case err != nil:
			httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
			return
		}
		writeJSON(w, http.StatusCreated, fav)
	}
}

func handleGetFavorite(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fav, err := deps.History.Favorite(chi.URLParam(r, "id"))
		if errors.Is(err, history.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found_error", "favorite not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
			return
		}
		writeJSON(w, http.StatusOK, fav)
	}
}

func handleDeleteFavorite(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.History.RemoveFavorite(chi.URLParam(r, "id")); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// decodeBody reads a size-limited JSON body into dst, writing a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"message": fmt.Sprintf(format, args...),
			"type":    errType,
		},
	})
}
