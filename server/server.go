package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Ashnajames/Agentic-AI/internal/models"
)

// RAGService is the slice of the orchestrator the HTTP layer needs. All
// methods return outcome values, never errors; the pipeline degrades
// internally.
type RAGService interface {
	Query(ctx context.Context, question string, history []models.ChatMessage, maxResults int) models.QueryResult
	Refresh(ctx context.Context, forceRefresh bool) models.RefreshResult
	Health(ctx context.Context) models.HealthStatus
}

type Config struct {
	Host string
	Port int
}

type Server struct {
	config Config
	rag    RAGService
	logger *slog.Logger
	mux    *http.ServeMux
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Be careful with this in production
	},
}

type chatRequest struct {
	Message             string               `json:"message"`
	ConversationHistory []models.ChatMessage `json:"conversation_history"`
	MaxResults          int                  `json:"max_results"`
}

type refreshRequest struct {
	ForceRefresh bool `json:"force_refresh"`
}

type healthResponse struct {
	Status          string     `json:"status"`
	StoreReady      bool       `json:"store_ready"`
	ModelReady      bool       `json:"model_ready"`
	EmbeddingReady  bool       `json:"embedding_ready"`
	GenerationReady bool       `json:"generation_ready"`
	DocumentCount   int        `json:"document_count"`
	LastUpdated     *time.Time `json:"last_updated"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func New(config Config, rag RAGService, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		config: config,
		rag:    rag,
		logger: logger,
		mux:    http.NewServeMux(),
	}

	s.mux.HandleFunc("/api/v1/chat", s.handleChat)
	s.mux.HandleFunc("/api/v1/chat/refresh", s.handleRefresh)
	s.mux.HandleFunc("/api/v1/health", s.handleHealth)
	s.mux.HandleFunc("/ws", s.handleWebSocket)

	return s
}

// Handler exposes the route table, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting HTTP server", "addr", addr)
	return http.ListenAndServe(addr, s.mux)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Message == "" {
		s.writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	s.logger.Info("processing chat request", "message_length", len(req.Message))

	result := s.rag.Query(r.Context(), req.Message, req.ConversationHistory, req.MaxResults)
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req refreshRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	s.logger.Info("manual data refresh requested", "force", req.ForceRefresh)

	result := s.rag.Refresh(r.Context(), req.ForceRefresh)
	s.writeJSON(w, http.StatusOK, result)
}

// handleHealth always answers 200. When the pipeline cannot even produce a
// snapshot it reports an all-false degraded one.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	health := s.rag.Health(r.Context())

	s.writeJSON(w, http.StatusOK, healthResponse{
		Status:          health.Status,
		StoreReady:      health.StoreReady,
		ModelReady:      health.EmbeddingReady && health.GenerationReady,
		EmbeddingReady:  health.EmbeddingReady,
		GenerationReady: health.GenerationReady,
		DocumentCount:   health.DocumentCount,
		LastUpdated:     health.LastUpdated,
	})
}

type wsMessage struct {
	Type    string               `json:"type"`
	Content string               `json:"content"`
	History []models.ChatMessage `json:"history,omitempty"`
	Data    any                  `json:"data,omitempty"`
}

// handleWebSocket serves chat over a websocket connection. Each incoming
// message is answered with one response message carrying the query outcome.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("error reading websocket message", "error", err)
			}
			return
		}

		if msg.Content == "" {
			s.sendWS(conn, wsMessage{Type: "error", Content: "message is required"})
			continue
		}

		result := s.rag.Query(r.Context(), msg.Content, msg.History, 0)
		s.sendWS(conn, wsMessage{Type: "response", Content: result.Response, Data: result})
	}
}

func (s *Server) sendWS(conn *websocket.Conn, msg wsMessage) {
	if err := conn.WriteJSON(msg); err != nil {
		s.logger.Warn("error sending websocket message", "error", err)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, detail string) {
	s.writeJSON(w, status, errorResponse{Detail: detail})
}
