package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ericfisherdev/threadwatch/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// StartWatchRequest is the JSON body for the start watch endpoint.
type StartWatchRequest struct {
	Token string `json:"token"`
}

// SetCredentialRequest is the JSON body for the credential endpoint.
type SetCredentialRequest struct {
	Token string `json:"token"`
}

// WatchStatusResponse is the JSON representation of a single watch context.
type WatchStatusResponse struct {
	Token               string `json:"token"`
	State               string `json:"state"`
	Watching            bool   `json:"watching"`
	IdleCount           int    `json:"idle_count"`
	IdleLimit           int    `json:"idle_limit"`
	ConsecutiveFailures int    `json:"consecutive_failures"`
	LastError           string `json:"last_error,omitempty"`
	LastTickAt          string `json:"last_tick_at,omitempty"`
	LastSnapshotAt      string `json:"last_snapshot_at,omitempty"`
	LastCommentCount    int    `json:"last_comment_count"`
	Ticks               int64  `json:"ticks"`
	EventsEmitted       int64  `json:"events_emitted"`
}

// ManagerStatusResponse is the JSON representation of the watch manager status map.
type ManagerStatusResponse struct {
	CurrentDocument  string                `json:"current_document"`
	Watching         bool                  `json:"watching"`
	IdleCount        int                   `json:"idle_count"`
	WatchedDocuments []string              `json:"watched_documents"`
	LastSnapshotAt   string                `json:"last_snapshot_at,omitempty"`
	LastCommentCount int                   `json:"last_comment_count"`
	Watches          []WatchStatusResponse `json:"watches"`
}

// QueueStatusResponse is the JSON representation of the command pipeline counters.
type QueueStatusResponse struct {
	Size           int   `json:"size"`
	Capacity       int   `json:"capacity"`
	PendingBatches int   `json:"pending_batches"`
	Dispatched     int64 `json:"dispatched"`
	Dropped        int64 `json:"dropped"`
	Executed       int64 `json:"executed"`
	Failed         int64 `json:"failed"`
}

// ClearQueueResponse reports how many pending commands were discarded.
type ClearQueueResponse struct {
	Cleared int `json:"cleared"`
}

// RequirementResponse is the JSON representation of a tracker entry.
type RequirementResponse struct {
	CommentID   string `json:"comment_id"`
	Summary     string `json:"summary"`
	Author      string `json:"author"`
	Status      string `json:"status"`
	LastCommand string `json:"last_command"`
	Revision    int    `json:"revision"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// CredentialStatusResponse reports whether a GitHub token is active and stored.
// SavedAt is set when a stored token is present.
type CredentialStatusResponse struct {
	Configured bool   `json:"configured"`
	Persisted  bool   `json:"persisted"`
	SavedAt    string `json:"saved_at,omitempty"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status        string `json:"status"`
	Time          string `json:"time"`
	FetcherActive bool   `json:"fetcher_active"`
	Watching      bool   `json:"watching"`
}

// formatTime renders t as RFC3339 in UTC, or "" for the zero time.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// toWatchStatusResponse converts a domain WatchStatus to its JSON representation.
func toWatchStatusResponse(s model.WatchStatus) WatchStatusResponse {
	return WatchStatusResponse{
		Token:               s.DocToken,
		State:               string(s.State),
		Watching:            s.Watching(),
		IdleCount:           s.IdleCount,
		IdleLimit:           s.IdleLimit,
		ConsecutiveFailures: s.ConsecutiveFailures,
		LastError:           s.LastError,
		LastTickAt:          formatTime(s.LastTickAt),
		LastSnapshotAt:      formatTime(s.LastSnapshotAt),
		LastCommentCount:    s.LastCommentCount,
		Ticks:               s.Ticks,
		EventsEmitted:       s.EventsEmitted,
	}
}

// toManagerStatusResponse converts a domain ManagerStatus to its JSON
// representation. The top-level idle and snapshot fields describe the
// current document.
func toManagerStatusResponse(s model.ManagerStatus) ManagerStatusResponse {
	resp := ManagerStatusResponse{
		CurrentDocument:  s.CurrentDocument,
		Watching:         s.Watching,
		WatchedDocuments: s.WatchedDocuments,
		Watches:          make([]WatchStatusResponse, 0, len(s.Watches)),
	}
	if resp.WatchedDocuments == nil {
		resp.WatchedDocuments = []string{}
	}

	for _, ws := range s.Watches {
		resp.Watches = append(resp.Watches, toWatchStatusResponse(ws))
		if ws.DocToken == s.CurrentDocument {
			resp.IdleCount = ws.IdleCount
			resp.LastSnapshotAt = formatTime(ws.LastSnapshotAt)
			resp.LastCommentCount = ws.LastCommentCount
		}
	}

	return resp
}

// toQueueStatusResponse converts a domain QueueStatus to its JSON representation.
func toQueueStatusResponse(s model.QueueStatus) QueueStatusResponse {
	return QueueStatusResponse{
		Size:           s.Size,
		Capacity:       s.Capacity,
		PendingBatches: s.PendingBatches,
		Dispatched:     s.Dispatched,
		Dropped:        s.Dropped,
		Executed:       s.Executed,
		Failed:         s.Failed,
	}
}

// toRequirementResponse converts a domain Requirement to its JSON representation.
func toRequirementResponse(r model.Requirement) RequirementResponse {
	return RequirementResponse{
		CommentID:   r.CommentID,
		Summary:     r.Summary,
		Author:      r.Author,
		Status:      string(r.Status),
		LastCommand: string(r.LastCommand),
		Revision:    r.Revision,
		CreatedAt:   formatTime(r.CreatedAt),
		UpdatedAt:   formatTime(r.UpdatedAt),
	}
}
