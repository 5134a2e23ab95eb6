// Package server exposes the bootstrap status of the app over a local
// HTTP endpoint with a websocket feed, so external tooling can render
// load progress without polling the CLI.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/voxscribe/voxscribe/internal/app"
)

const defaultPushInterval = 500 * time.Millisecond

// StatusMessage is one frame on the /status websocket feed.
type StatusMessage struct {
	Type    string     `json:"type"`
	Session string     `json:"session"`
	Status  app.Status `json:"status"`
}

type Server struct {
	app      *app.App
	logger   *zap.Logger
	interval time.Duration
	upgrader websocket.Upgrader
}

func New(a *app.App, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		app:      a,
		logger:   logger,
		interval: defaultPushInterval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The feed is bound to loopback; cross-origin pages on the
			// same machine are allowed to subscribe.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Handler returns the HTTP surface: a JSON snapshot at /status and a
// websocket push feed at /status/ws.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.handleSnapshot)
	mux.HandleFunc("/status/ws", s.handleFeed)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

// ListenAndServe blocks until ctx is canceled or the listener fails.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.logger.Info("status server listening", zap.String("addr", addr))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.app.Status()); err != nil {
		s.logger.Warn("write status snapshot", zap.Error(err))
	}
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	session := uuid.NewString()
	s.logger.Info("status feed subscribed", zap.String("session", session))

	// Drain client frames so close handshakes are noticed.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		msg := StatusMessage{
			Type:    "status",
			Session: session,
			Status:  s.app.Status(),
		}
		if err := conn.WriteJSON(msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("status feed write failed", zap.String("session", session), zap.Error(err))
			}
			return
		}

		select {
		case <-closed:
			s.logger.Info("status feed closed", zap.String("session", session))
			return
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}
