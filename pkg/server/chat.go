package server

import (
	"context"
	"encoding/json"
	"net/http"

	"parkside-labs/gatehouse/pkg/server/middleware"
	"parkside-labs/gatehouse/pkg/telemetry/logging"
)

// ChatRequest is the body of a POST /v1/chat call.
type ChatRequest struct {
	// Message is the user's conversational turn.
	Message string `json:"message"`

	// SessionID is resolved server-side from the X-Session-ID header; a
	// value in the body is ignored.
	SessionID string `json:"-"`
}

// ChatResponse is what the downstream responder produced.
type ChatResponse struct {
	// Reply is the assistant's turn.
	Reply string `json:"reply"`

	// Units is the actual usage the turn consumed, reconciled against the
	// budget reservation made at admission.
	Units uint64 `json:"-"`
}

// Responder produces the conversational reply for an admitted request.
// The production implementation calls the downstream model; tests inject
// fakes.
type Responder interface {
	Respond(ctx context.Context, req ChatRequest) (ChatResponse, error)
}

// chatHandler decodes the chat request, delegates to the responder, and
// reports actual usage back to the admission layer.
type chatHandler struct {
	responder Responder
}

func newChatHandler(responder Responder) *chatHandler {
	return &chatHandler{responder: responder}
}

func (h *chatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Message == "" {
		http.Error(w, "message is required", http.StatusBadRequest)
		return
	}
	req.SessionID = middleware.GetSessionID(r.Context())

	resp, err := h.responder.Respond(r.Context(), req)
	if err != nil {
		logging.FromContext(r.Context(), nil).Error("responder failed", "error", err)
		http.Error(w, "upstream error", http.StatusBadGateway)
		return
	}

	middleware.ReportActualUsage(r.Context(), resp.Units)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"reply":     resp.Reply,
		"sessionId": req.SessionID,
	})
}

// sessionHandler releases the caller's session slot on DELETE.
type sessionHandler struct {
	releaser interface{ ReleaseSession(key, sessionID string) }
}

func (h *sessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		w.Header().Set("Allow", http.MethodDelete)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sessionID := r.Header.Get(middleware.SessionIDHeader)
	if sessionID == "" {
		http.Error(w, "X-Session-ID is required", http.StatusBadRequest)
		return
	}

	h.releaser.ReleaseSession(middleware.GetClientKey(r.Context()), sessionID)
	w.WriteHeader(http.StatusNoContent)
}
