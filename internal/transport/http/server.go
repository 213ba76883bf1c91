package http

import (
	"context"
	stdhttp "net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/alexismendozaa/chat/internal/auth"
	"github.com/alexismendozaa/chat/internal/config"
	"github.com/alexismendozaa/chat/internal/core"
	"github.com/alexismendozaa/chat/internal/store"
)

// ServiceName is reported by the health endpoint.
const ServiceName = "chat-gateway"

// HealthResponse represents the health endpoint body.
type HealthResponse struct {
	OK   bool   `json:"ok"`
	Name string `json:"name"`
	Time string `json:"time"`
}

// NewServer builds the HTTP server: websocket gateway, history API, health and metrics.
// Websocket connections are closed when ctx is cancelled.
func NewServer(ctx context.Context, gateway *core.Gateway, st store.MessageStore, validator auth.Validator, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))
	router.Use(MetricsMiddleware())
	router.Use(CORSMiddleware(cfg.AllowedOrigins))

	router.GET("/health", healthHandler)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	ws := NewWSHandler(ctx, gateway, validator, cfg.AllowedOrigins, cfg.MaxMessageBytes, logger)
	router.GET("/ws", gin.WrapH(ws))

	history := NewHistoryHandlers(st, logger)
	authed := router.Group("/", AuthMiddleware(validator, logger))
	authed.GET("/rooms/:roomId/messages", history.GetRoomMessages)
	authed.GET("/api/chat/rooms/:roomId/messages", history.GetRoomMessages)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	c.JSON(stdhttp.StatusOK, HealthResponse{
		OK:   true,
		Name: ServiceName,
		Time: time.Now().UTC().Format(time.RFC3339),
	})
}
