package realtime

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/handoffdesk/chat-handoff/internal/config"
)

// Handler upgrades HTTP requests to websocket connections.
type Handler struct {
	coordinator *Coordinator
	cfg         config.RealtimeConfig
	upgrader    websocket.Upgrader
	baseCtx     context.Context
	logger      *zap.Logger
}

// NewHandler creates a new websocket handler. baseCtx bounds the lifetime of
// every connection's command handling.
func NewHandler(baseCtx context.Context, coordinator *Coordinator, cfg config.RealtimeConfig, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{
		coordinator: coordinator,
		cfg:         cfg,
		baseCtx:     baseCtx,
		logger:      logger,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// ServeHTTP handles websocket upgrade requests.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("failed to upgrade connection", zap.Error(err))
		return
	}
	client := NewClient(conn, h.coordinator, h.cfg, h.logger)
	client.Start(h.baseCtx)
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.cfg.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}
