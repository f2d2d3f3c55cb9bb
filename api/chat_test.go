package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gchcm-gchgc/virtual-assistant-ai-ia-assistant-virtuel/internal/chat"
	"github.com/gchcm-gchgc/virtual-assistant-ai-ia-assistant-virtuel/internal/log"
)

// stubService scripts the pipeline's behavior for handler tests.
type stubService struct {
	chunks    []string
	streamErr error // returned after chunks are emitted
	failFast  bool  // fail before any chunk
	answer    *chat.PromptAnswer
	answerErr error
	got       chat.Request
}

func (s *stubService) StreamChat(_ context.Context, req chat.Request, emit func(string) error) error {
	s.got = req
	if s.failFast {
		return s.streamErr
	}
	for _, c := range s.chunks {
		if err := emit(c); err != nil {
			return err
		}
	}
	return s.streamErr
}

func (s *stubService) Answer(_ context.Context, req chat.Request) (*chat.PromptAnswer, error) {
	s.got = req
	return s.answer, s.answerErr
}

func postJSON(t *testing.T, h http.HandlerFunc, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/api/chat", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h(w, req)
	return w
}

func validBody() map[string]any {
	return map[string]any{
		"question":   "What is acting pay?",
		"session_id": "42",
		"id":         7,
		"acc_rec":    2,
	}
}

func TestChatHandler_MissingFields(t *testing.T) {
	t.Parallel()

	for _, field := range []string{"question", "session_id", "id", "acc_rec"} {
		t.Run(field, func(t *testing.T) {
			t.Parallel()

			h := NewChatHandler(&stubService{}, log.NewNop())
			body := validBody()
			delete(body, field)

			w := postJSON(t, h.handleChat, body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			var resp DetailResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, field+" field is missing", resp.Detail)
		})
	}
}

func TestChatHandler_StreamsRawFragments(t *testing.T) {
	t.Parallel()

	svc := &stubService{chunks: []string{"The ", "answer."}}
	h := NewChatHandler(svc, log.NewNop())

	w := postJSON(t, h.handleChat, validBody())

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Equal(t, "The answer.", w.Body.String())
	assert.Equal(t, "42", svc.got.SessionKey)
	assert.Equal(t, int64(7), svc.got.CaseID)
	assert.Equal(t, int64(2), svc.got.ActivityRecord)
}

func TestChatHandler_UpstreamFailureBeforeStream(t *testing.T) {
	t.Parallel()

	svc := &stubService{
		failFast:  true,
		streamErr: &chat.UpstreamError{Dependency: "search", Err: errors.New("down")},
	}
	h := NewChatHandler(svc, log.NewNop())

	w := postJSON(t, h.handleChat, validBody())

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "chat pipeline failed")
}

func TestChatHandler_MidStreamFailureEmitsErrorFrame(t *testing.T) {
	t.Parallel()

	svc := &stubService{
		chunks:    []string{"partial "},
		streamErr: &chat.UpstreamError{Dependency: "answer-model", Err: errors.New("reset")},
	}
	h := NewChatHandler(svc, log.NewNop())

	w := postJSON(t, h.handleChat, validBody())

	// Status line already sent with the first fragment.
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "partial ")
	assert.Contains(t, w.Body.String(), "event: error")
}

func TestChatHandler_PromptEndpoint(t *testing.T) {
	t.Parallel()

	svc := &stubService{
		answer: &chat.PromptAnswer{Prompt: "composed prompt", Response: "full answer"},
	}
	h := NewChatHandler(svc, log.NewNop())

	w := postJSON(t, h.handleChatPrompt, validBody())

	assert.Equal(t, http.StatusOK, w.Code)
	var pa chat.PromptAnswer
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pa))
	assert.Equal(t, "composed prompt", pa.Prompt)
	assert.Equal(t, "full answer", pa.Response)
}

func TestChatHandler_PromptEndpointUpstreamFailure(t *testing.T) {
	t.Parallel()

	svc := &stubService{
		answerErr: &chat.UpstreamError{Dependency: "embedder", Err: errors.New("down")},
	}
	h := NewChatHandler(svc, log.NewNop())

	w := postJSON(t, h.handleChatPrompt, validBody())

	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestChatHandler_InvalidJSONBody(t *testing.T) {
	t.Parallel()

	h := NewChatHandler(&stubService{}, log.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/v1/api/chat", bytes.NewReader([]byte("{not json")))
	w := httptest.NewRecorder()
	h.handleChat(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid request body")
}
