package relay

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-client/internal/config"
)

// HubPath is where the relay accepts WebSocket connections.
const HubPath = "/chatHub"

// NewServer builds the relay HTTP server with health and hub routes.
// The hub route bypasses gin: its response writer does not hand the hijacked
// connection over cleanly to the WebSocket library.
func NewServer(hub *Hub, cfg config.RelayConfig, logger *zerolog.Logger) *stdhttp.Server {
	mux := stdhttp.NewServeMux()
	mux.Handle(HubPath, NewWSHandler(hub, cfg.RateLimit, logger))
	mux.Handle("/", newRouter(logger))

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

// newRouter builds the gin engine serving the plain HTTP routes.
func newRouter(logger *zerolog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))
	router.GET("/health", healthHandler)

	return router
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
