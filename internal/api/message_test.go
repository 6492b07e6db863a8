package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-brain/backend/internal/models"
	"chat-brain/backend/internal/service"
	"chat-brain/backend/pkg/errors"
)

type fakePipeline struct {
	response string
	err      error
	received *models.Message
	stats    service.Stats
}

func (f *fakePipeline) Submit(_ context.Context, msg *models.Message) (string, error) {
	f.received = msg
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func (f *fakePipeline) Stats() service.Stats {
	return f.stats
}

func newMessageRouter(pipeline Submitter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(errors.ErrorHandler())
	NewMessageController(pipeline).RegisterRoutes(r)
	return r
}

func TestSubmitMessageSuccess(t *testing.T) {
	pipeline := &fakePipeline{response: "hello back"}
	r := newMessageRouter(pipeline)

	body := `{"id":"msg-1","user_id":"user-1","platform":"telegram","content":"hello","metadata":{"chat":"42"}}`
	req, _ := http.NewRequest(http.MethodPost, "/api/v1/message", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success   bool   `json:"success"`
		Response  string `json:"response"`
		MessageID string `json:"message_id"`
		Timestamp int64  `json:"timestamp"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "hello back", resp.Response)
	assert.Equal(t, "msg-1", resp.MessageID)
	assert.NotZero(t, resp.Timestamp)

	require.NotNil(t, pipeline.received)
	assert.Equal(t, "user-1", pipeline.received.UserID)
	assert.Equal(t, "42", pipeline.received.Metadata["chat"])
}

func TestSubmitMessageMissingFields(t *testing.T) {
	r := newMessageRouter(&fakePipeline{})

	req, _ := http.NewRequest(http.MethodPost, "/api/v1/message", strings.NewReader(`{"content":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"success":false`)
}

func TestSubmitMessagePipelineErrors(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"rate limited", errors.NewRateLimitError("too many"), http.StatusTooManyRequests},
		{"queue full", errors.NewQueueFullError("backpressure"), http.StatusServiceUnavailable},
		{"upstream down", errors.NewUpstreamError(assert.AnError), http.StatusBadGateway},
		{"invalid", errors.NewInvalidMessageError("too long"), http.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newMessageRouter(&fakePipeline{err: tc.err})

			body := `{"id":"msg-1","user_id":"user-1","platform":"telegram","content":"hello"}`
			req, _ := http.NewRequest(http.MethodPost, "/api/v1/message", strings.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tc.wantStatus, w.Code)

			var resp struct {
				Success   bool   `json:"success"`
				Error     string `json:"error"`
				Timestamp int64  `json:"timestamp"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			assert.NotEmpty(t, resp.Error)
			assert.NotZero(t, resp.Timestamp)
		})
	}
}

func TestGetStats(t *testing.T) {
	pipeline := &fakePipeline{stats: service.Stats{
		ActiveSessions:    2,
		MessagesProcessed: 10,
		ErrorCount:        1,
		QueueDepth:        3,
		UptimeSeconds:     60,
	}}
	r := newMessageRouter(pipeline)

	req, _ := http.NewRequest(http.MethodGet, "/api/v1/stats", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var stats service.Stats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 2, stats.ActiveSessions)
	assert.Equal(t, uint64(10), stats.MessagesProcessed)
	assert.Equal(t, 3, stats.QueueDepth)
}

func TestHealthEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterHealthRoutes(r)

	req, _ := http.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotEmpty(t, resp.Version)
	assert.False(t, resp.Timestamp.IsZero())
}
