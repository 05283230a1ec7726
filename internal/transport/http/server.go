package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/partyroom-server/internal/config"
	"github.com/vovakirdan/partyroom-server/internal/core"
)

// NewServer builds an HTTP server with the health, websocket and read-only API routes.
func NewServer(hub *core.Hub, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))

	router.GET("/health", healthHandler)

	ws := NewWSHandler(hub, WSOptions{
		MaxMessageBytes: cfg.MaxMessageBytes,
		RatePerSec:      cfg.RateLimitPerSec,
		RateBurst:       cfg.RateLimitBurst,
	}, logger)
	router.GET("/ws", gin.WrapH(ws))

	rooms := NewRoomHandlers(hub, logger)
	api := router.Group("/api")
	{
		api.GET("/rooms/:code", rooms.GetRoom)
		api.GET("/stats", rooms.Stats)
	}

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
