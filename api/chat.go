package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gchcm-gchgc/virtual-assistant-ai-ia-assistant-virtuel/internal/chat"
	"github.com/gchcm-gchgc/virtual-assistant-ai-ia-assistant-virtuel/internal/log"
)

// ChatService is the slice of the pipeline the HTTP layer needs.
type ChatService interface {
	// StreamChat feeds visible answer chunks to emit in order.
	StreamChat(ctx context.Context, req chat.Request, emit func(string) error) error
	// Answer drains the whole stream and returns prompt plus response.
	Answer(ctx context.Context, req chat.Request) (*chat.PromptAnswer, error)
}

// ChatHandler handles the chat endpoints.
type ChatHandler struct {
	svc    ChatService
	logger log.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(svc ChatService, logger log.Logger) *ChatHandler {
	return &ChatHandler{svc: svc, logger: logger}
}

// RegisterRoutes registers chat routes on the given mux, wrapped in auth.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux, auth func(http.Handler) http.Handler) {
	mux.Handle("POST /v1/api/chat", auth(http.HandlerFunc(h.handleChat)))
	mux.Handle("POST /v1/api/chat_prompt", auth(http.HandlerFunc(h.handleChatPrompt)))
}

// chatRequest is the wire shape of both chat endpoints. Pointer fields
// distinguish "absent" from zero values so each missing field gets its own
// 400 message.
type chatRequest struct {
	Question       *string `json:"question"`
	SessionID      *string `json:"session_id"`
	CaseID         *int64  `json:"id"`
	ActivityRecord *int64  `json:"acc_rec"`
}

// decode parses and validates the request body. On failure it writes the
// error response and returns false.
func (h *ChatHandler) decode(w http.ResponseWriter, r *http.Request) (chat.Request, bool) {
	var body chatRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeDetail(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return chat.Request{}, false
	}

	for _, f := range []struct {
		name    string
		present bool
	}{
		{"question", body.Question != nil},
		{"session_id", body.SessionID != nil},
		{"id", body.CaseID != nil},
		{"acc_rec", body.ActivityRecord != nil},
	} {
		if !f.present {
			writeDetail(w, http.StatusBadRequest, f.name+" field is missing")
			return chat.Request{}, false
		}
	}

	return chat.Request{
		Question:       *body.Question,
		SessionKey:     *body.SessionID,
		CaseID:         *body.CaseID,
		ActivityRecord: *body.ActivityRecord,
	}, true
}

// handleChat streams the answer as raw UTF-8 text fragments in emission
// order. A pipeline failure before the first fragment maps to a status
// code; after fragments have been sent, a terminal SSE error frame is
// emitted instead, since the status line is already on the wire.
func (h *ChatHandler) handleChat(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.logger.Error("streaming not supported")
		writeDetail(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no") // disable nginx buffering

	streamed := false
	err := h.svc.StreamChat(r.Context(), req, func(chunk string) error {
		if _, werr := fmt.Fprint(w, chunk); werr != nil {
			return werr
		}
		flusher.Flush()
		streamed = true
		return nil
	})
	if err != nil {
		h.logger.Error("chat stream failed",
			"session", req.SessionKey,
			"streamed", streamed,
			"error", err)
		if !streamed {
			w.Header().Set("Content-Type", "application/json")
			writeDetail(w, statusFor(err), "chat pipeline failed")
			return
		}
		// Mid-stream failure: close with an explicit error frame rather
		// than a silent truncation.
		fmt.Fprint(w, "\n\nevent: error\ndata: chat pipeline failed\n\n")
		flusher.Flush()
	}
}

// handleChatPrompt runs the same pipeline without splitting and returns the
// composed prompt with the drained response as JSON.
func (h *ChatHandler) handleChatPrompt(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	pa, err := h.svc.Answer(r.Context(), req)
	if err != nil {
		h.logger.Error("chat prompt failed",
			"session", req.SessionKey,
			"error", err)
		writeDetail(w, statusFor(err), "chat pipeline failed")
		return
	}

	writeJSON(w, http.StatusOK, pa)
}

// statusFor maps pipeline errors to HTTP status codes.
func statusFor(err error) int {
	var ue *chat.UpstreamError
	if errors.As(err, &ue) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
