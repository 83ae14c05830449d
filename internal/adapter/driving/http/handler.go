// Package httphandler is the REST driving adapter: it starts and stops
// watches, reports pipeline status and manages the GitHub credential.
package httphandler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ericfisherdev/threadwatch/internal/application"
	"github.com/ericfisherdev/threadwatch/internal/domain/model"
	"github.com/ericfisherdev/threadwatch/internal/domain/port/driven"
)

// FetcherFactory builds a CommentFetcher authenticated with token.
type FetcherFactory func(token string) (driven.CommentFetcher, error)

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	manager      *application.WatchManager
	runner       *application.Runner
	requirements driven.RequirementStore
	tokens       driven.TokenStore
	fetchers     *application.FetcherProvider
	newFetcher   FetcherFactory
	logger       *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(
	manager *application.WatchManager,
	runner *application.Runner,
	requirements driven.RequirementStore,
	tokens driven.TokenStore,
	fetchers *application.FetcherProvider,
	newFetcher FetcherFactory,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		manager:      manager,
		runner:       runner,
		requirements: requirements,
		tokens:       tokens,
		fetchers:     fetchers,
		newFetcher:   newFetcher,
		logger:       logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with request-id, logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/watches", h.StartWatch)
	mux.HandleFunc("DELETE /api/v1/watches", h.StopAllWatches)
	mux.HandleFunc("GET /api/v1/watches/status", h.WatchStatus)
	mux.HandleFunc("GET /api/v1/watches/{owner}/{repo}/{number}", h.GetWatch)
	mux.HandleFunc("DELETE /api/v1/watches/{owner}/{repo}/{number}", h.StopWatch)
	mux.HandleFunc("GET /api/v1/queue", h.QueueStatus)
	mux.HandleFunc("DELETE /api/v1/queue", h.ClearQueue)
	mux.HandleFunc("GET /api/v1/requirements/{owner}/{repo}/{number}", h.ListRequirements)
	mux.HandleFunc("GET /api/v1/credentials/github", h.GetGitHubCredential)
	mux.HandleFunc("PUT /api/v1/credentials/github", h.SetGitHubCredential)
	mux.HandleFunc("DELETE /api/v1/credentials/github", h.DeleteGitHubCredential)
	mux.HandleFunc("GET /api/v1/health", h.Health)

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)
	wrapped = requestIDMiddleware(wrapped)

	return wrapped
}

// StartWatch begins watching the document named in the request body,
// replacing the active watch under the single-document policy.
func (h *Handler) StartWatch(w http.ResponseWriter, r *http.Request) {
	var req StartWatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ref, err := model.ParseDocRef(req.Token)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid document token: expected owner/repo#number")
		return
	}

	if err := h.manager.Start(ref.Token()); err != nil {
		if errors.Is(err, model.ErrInvalidToken) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("failed to start watch", "doc", ref.Token(), "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	status, err := h.manager.Watch(ref.Token())
	if err != nil {
		h.logger.Error("watch vanished after start", "doc", ref.Token(), "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusCreated, toWatchStatusResponse(status))
}

// StopWatch ends the watch for a single document.
func (h *Handler) StopWatch(w http.ResponseWriter, r *http.Request) {
	ref, ok := docRefFromPath(w, r)
	if !ok {
		return
	}

	if err := h.manager.Stop(ref.Token()); err != nil {
		if errors.Is(err, model.ErrWatchNotFound) {
			writeError(w, http.StatusNotFound, "document is not being watched")
			return
		}
		h.logger.Error("failed to stop watch", "doc", ref.Token(), "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// StopAllWatches ends every watch.
func (h *Handler) StopAllWatches(w http.ResponseWriter, _ *http.Request) {
	h.manager.StopAll()
	w.WriteHeader(http.StatusNoContent)
}

// WatchStatus returns the watch manager status map.
func (h *Handler) WatchStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, toManagerStatusResponse(h.manager.Status()))
}

// GetWatch returns the status of a single watch context.
func (h *Handler) GetWatch(w http.ResponseWriter, r *http.Request) {
	ref, ok := docRefFromPath(w, r)
	if !ok {
		return
	}

	status, err := h.manager.Watch(ref.Token())
	if err != nil {
		if errors.Is(err, model.ErrWatchNotFound) {
			writeError(w, http.StatusNotFound, "document is not being watched")
			return
		}
		h.logger.Error("failed to get watch", "doc", ref.Token(), "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, toWatchStatusResponse(status))
}

// QueueStatus returns queue depth and pipeline counters.
func (h *Handler) QueueStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, toQueueStatusResponse(h.runner.QueueStatus()))
}

// ClearQueue discards every pending command.
func (h *Handler) ClearQueue(w http.ResponseWriter, _ *http.Request) {
	cleared := h.runner.ClearQueue()
	h.logger.Info("command queue cleared", "removed", cleared)
	writeJSON(w, http.StatusOK, ClearQueueResponse{Cleared: cleared})
}

// ListRequirements returns the tracker entries recorded for a document.
func (h *Handler) ListRequirements(w http.ResponseWriter, r *http.Request) {
	ref, ok := docRefFromPath(w, r)
	if !ok {
		return
	}

	reqs, err := h.requirements.ListByDocument(r.Context(), ref.Token())
	if err != nil {
		h.logger.Error("failed to list requirements", "doc", ref.Token(), "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]RequirementResponse, 0, len(reqs))
	for _, req := range reqs {
		resp = append(resp, toRequirementResponse(req))
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetGitHubCredential reports whether a GitHub token is active. The token
// itself is never returned.
func (h *Handler) GetGitHubCredential(w http.ResponseWriter, r *http.Request) {
	resp := CredentialStatusResponse{Configured: h.fetchers.HasFetcher()}

	stored, err := h.tokens.Load(r.Context())
	switch {
	case errors.Is(err, driven.ErrEncryptionKeyNotSet):
	case err != nil:
		h.logger.Error("failed to read github credential", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	case stored != nil:
		resp.Persisted = true
		if !stored.SavedAt.IsZero() {
			resp.SavedAt = stored.SavedAt.Format(time.RFC3339)
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// SetGitHubCredential swaps in a fetcher built from the supplied token and
// persists the token when an encryption key is configured. Running watches
// pick up the new fetcher on their next tick.
func (h *Handler) SetGitHubCredential(w http.ResponseWriter, r *http.Request) {
	var req SetCredentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token := strings.TrimSpace(req.Token)
	if token == "" {
		writeError(w, http.StatusBadRequest, "token is required")
		return
	}

	fetcher, err := h.newFetcher(token)
	if err != nil {
		h.logger.Error("failed to create github client", "error", err)
		writeError(w, http.StatusBadRequest, "could not create github client")
		return
	}

	persisted := true
	if err := h.tokens.Save(r.Context(), token); err != nil {
		if !errors.Is(err, driven.ErrEncryptionKeyNotSet) {
			h.logger.Error("failed to store github credential", "error", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		persisted = false
		h.logger.Warn("github token applied for this process only", "error", err)
	}

	h.fetchers.Replace(fetcher)
	h.logger.Info("github credential updated", "persisted", persisted)

	writeJSON(w, http.StatusOK, CredentialStatusResponse{Configured: true, Persisted: persisted})
}

// DeleteGitHubCredential removes the stored token and disables fetching.
func (h *Handler) DeleteGitHubCredential(w http.ResponseWriter, r *http.Request) {
	if err := h.tokens.Clear(r.Context()); err != nil {
		h.logger.Error("failed to delete github credential", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.fetchers.Replace(nil)
	h.logger.Info("github credential removed")
	w.WriteHeader(http.StatusNoContent)
}

// Health returns a simple health check response.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:        "ok",
		Time:          time.Now().UTC().Format(time.RFC3339),
		FetcherActive: h.fetchers.HasFetcher(),
		Watching:      h.manager.Status().Watching,
	})
}

// docRefFromPath builds the document reference from the {owner}/{repo}/{number}
// path values, writing a 400 response when they do not form a valid token.
func docRefFromPath(w http.ResponseWriter, r *http.Request) (model.DocRef, bool) {
	token := r.PathValue("owner") + "/" + r.PathValue("repo") + "#" + r.PathValue("number")

	ref, err := model.ParseDocRef(token)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid document reference")
		return model.DocRef{}, false
	}
	return ref, true
}
