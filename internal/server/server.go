// Package server exposes the conversation engine over HTTP: a webhook
// endpoint for message-channel callbacks and a websocket endpoint for live
// chat sessions, with lifecycle management.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/raphaelgruber/secretary-go/internal/metrics"
)

// TurnHandler processes one inbound message. *dialog.Engine satisfies it.
type TurnHandler interface {
	Handle(ctx context.Context, phone, text string) (string, error)
}

// Server serves the inbound message surface.
type Server struct {
	engine   TurnHandler
	stats    *metrics.Collector
	logger   *slog.Logger
	http     *http.Server
	upgrader websocket.Upgrader
}

// New creates the HTTP server on the given listen address.
func New(addr string, engine TurnHandler, stats *metrics.Collector, logger *slog.Logger) *Server {
	s := &Server{
		engine: engine,
		stats:  stats,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /webhook", s.handleWebhook)
	mux.HandleFunc("GET /chat", s.handleChat)
	mux.HandleFunc("GET /stats", s.handleStats)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})

	s.http = &http.Server{
		Addr:         addr,
		Handler:      LoggingMiddleware(logger)(mux),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 60 * time.Second, // long enough for LLM-backed turns
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}

// webhookRequest is one inbound message-channel callback.
type webhookRequest struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

// webhookResponse carries the reply back to the channel. An empty reply
// means the turn was guarded and nothing should be sent to the patient.
type webhookResponse struct {
	Reply string `json:"reply"`
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var req webhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed payload", http.StatusBadRequest)
		return
	}
	req.Phone = strings.TrimSpace(req.Phone)
	if req.Phone == "" || strings.TrimSpace(req.Message) == "" {
		http.Error(w, "phone and message are required", http.StatusBadRequest)
		return
	}

	reply, err := s.engine.Handle(r.Context(), req.Phone, req.Message)
	if err != nil {
		s.logger.Error("turn failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(webhookResponse{Reply: reply}); err != nil {
		s.logger.Error("encode webhook response", "error", err)
	}
}

// handleChat upgrades to a websocket and runs each text frame as one turn.
// Sessions without a phone query parameter get an ephemeral identity.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	phone := strings.TrimSpace(r.URL.Query().Get("phone"))
	if phone == "" {
		phone = "chat:" + uuid.NewString()
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade", "error", err)
		return
	}
	defer conn.Close()
	s.logger.Info("chat session opened", "phone", phone)

	for {
		msgType, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("chat session aborted", "phone", phone, "error", err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		text := strings.TrimSpace(string(payload))
		if text == "" {
			continue
		}

		reply, err := s.engine.Handle(r.Context(), phone, text)
		if err != nil {
			s.logger.Error("chat turn failed", "phone", phone, "error", err)
			reply = "Sorry, something went wrong on our side. Please try again."
		}
		if reply == "" {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, []byte(reply)); err != nil {
			s.logger.Warn("chat write failed", "phone", phone, "error", err)
			return
		}
	}
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.stats.Snapshot()); err != nil {
		s.logger.Error("encode stats", "error", err)
	}
}
