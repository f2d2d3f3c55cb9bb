package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gchcm-gchgc/virtual-assistant-ai-ia-assistant-virtuel/internal/chat"
	"github.com/gchcm-gchgc/virtual-assistant-ai-ia-assistant-virtuel/internal/log"
)

func newTestServer(svc ChatService) http.Handler {
	return NewServer(nil, svc, "sekrit", log.NewNop()).Handler()
}

func TestServerRouting(t *testing.T) {
	t.Parallel()

	h := newTestServer(&stubService{chunks: []string{"hi"}})

	t.Run("hello root", func(t *testing.T) {
		t.Parallel()

		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"hello":"world"}`, w.Body.String())
	})

	t.Run("liveness", func(t *testing.T) {
		t.Parallel()

		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "ok", w.Body.String())
	})

	t.Run("readiness without pool", func(t *testing.T) {
		t.Parallel()

		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("chat requires token", func(t *testing.T) {
		t.Parallel()

		body, _ := json.Marshal(validBody())
		req := httptest.NewRequest(http.MethodPost, "/v1/api/chat", bytes.NewReader(body))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("chat with token streams", func(t *testing.T) {
		t.Parallel()

		body, _ := json.Marshal(validBody())
		req := httptest.NewRequest(http.MethodPost, "/v1/api/chat", bytes.NewReader(body))
		req.Header.Set("Authorization", "Bearer sekrit")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "hi", w.Body.String())
		assert.NotEmpty(t, w.Header().Get(requestIDHeader))
	})

	t.Run("chat_prompt with token", func(t *testing.T) {
		t.Parallel()

		h := newTestServer(&stubService{
			answer: &chat.PromptAnswer{Prompt: "p", Response: "r"},
		})

		body, _ := json.Marshal(validBody())
		req := httptest.NewRequest(http.MethodPost, "/v1/api/chat_prompt", bytes.NewReader(body))
		req.Header.Set("Authorization", "Bearer sekrit")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"prompt":"p","response":"r"}`, w.Body.String())
	})

	t.Run("unknown route", func(t *testing.T) {
		t.Parallel()

		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
