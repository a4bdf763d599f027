package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ashnajames/Agentic-AI/internal/models"
)

type fakeRAG struct {
	queryResult   models.QueryResult
	refreshResult models.RefreshResult
	health        models.HealthStatus

	lastQuestion   string
	lastHistory    []models.ChatMessage
	lastMaxResults int
	lastForce      bool
}

func (f *fakeRAG) Query(ctx context.Context, question string, history []models.ChatMessage, maxResults int) models.QueryResult {
	f.lastQuestion = question
	f.lastHistory = history
	f.lastMaxResults = maxResults
	return f.queryResult
}

func (f *fakeRAG) Refresh(ctx context.Context, forceRefresh bool) models.RefreshResult {
	f.lastForce = forceRefresh
	return f.refreshResult
}

func (f *fakeRAG) Health(ctx context.Context) models.HealthStatus {
	return f.health
}

func newTestServer(rag *fakeRAG) *Server {
	return New(Config{Host: "127.0.0.1", Port: 0}, rag, nil)
}

func TestHandleChat(t *testing.T) {
	rag := &fakeRAG{queryResult: models.QueryResult{
		Response:   "ServiceNow is ranked first.",
		Sources:    []models.SourceInfo{{ToolName: "ServiceNow", Certainty: 0.92}},
		Confidence: 0.92,
	}}
	srv := newTestServer(rag)

	body, _ := json.Marshal(map[string]any{
		"message":              "Which tool is ranked first?",
		"conversation_history": []models.ChatMessage{{Role: "user", Content: "hi"}},
		"max_results":          3,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var result models.QueryResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
	assert.Equal(t, "ServiceNow is ranked first.", result.Response)
	assert.InDelta(t, 0.92, result.Confidence, 1e-9)

	assert.Equal(t, "Which tool is ranked first?", rag.lastQuestion)
	assert.Len(t, rag.lastHistory, 1)
	assert.Equal(t, 3, rag.lastMaxResults)
}

func TestHandleChatEmptyMessage(t *testing.T) {
	srv := newTestServer(&fakeRAG{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(`{"message": ""}`))
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp errorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "message is required", resp.Detail)
}

func TestHandleChatInvalidBody(t *testing.T) {
	srv := newTestServer(&fakeRAG{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleChatMethodNotAllowed(t *testing.T) {
	srv := newTestServer(&fakeRAG{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/chat", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleRefresh(t *testing.T) {
	rag := &fakeRAG{refreshResult: models.RefreshResult{
		Status:             "success",
		Message:            "Knowledge base updated successfully",
		DocumentsProcessed: 42,
	}}
	srv := newTestServer(rag)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat/refresh", strings.NewReader(`{"force_refresh": true}`))
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, rag.lastForce)

	var result models.RefreshResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
	assert.Equal(t, "success", result.Status)
	assert.Equal(t, 42, result.DocumentsProcessed)
}

func TestHandleRefreshEmptyBody(t *testing.T) {
	srv := newTestServer(&fakeRAG{refreshResult: models.RefreshResult{Status: "success"}})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat/refresh", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleHealth(t *testing.T) {
	rag := &fakeRAG{health: models.HealthStatus{
		Status:          "healthy",
		StoreReady:      true,
		EmbeddingReady:  true,
		GenerationReady: false,
		DocumentCount:   17,
	}}
	srv := newTestServer(rag)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp healthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.True(t, resp.StoreReady)
	assert.True(t, resp.EmbeddingReady)
	assert.False(t, resp.GenerationReady)
	assert.False(t, resp.ModelReady, "model_ready requires both embedding and generation")
	assert.Equal(t, 17, resp.DocumentCount)
}

func TestHandleWebSocketChat(t *testing.T) {
	rag := &fakeRAG{queryResult: models.QueryResult{
		Response:   "Freshservice suits small teams.",
		Confidence: 0.8,
	}}
	srv := newTestServer(rag)

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(wsMessage{Type: "chat", Content: "Which tool for small teams?"}))

	var reply wsMessage
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, "response", reply.Type)
	assert.Equal(t, "Freshservice suits small teams.", reply.Content)
	assert.Equal(t, "Which tool for small teams?", rag.lastQuestion)
}

func TestHandleWebSocketEmptyMessage(t *testing.T) {
	srv := newTestServer(&fakeRAG{})

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(wsMessage{Type: "chat", Content: ""}))

	var reply wsMessage
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, "error", reply.Type)
}
