package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/relaychat/internal/config"
	"github.com/vovakirdan/relaychat/internal/core"
	"github.com/vovakirdan/relaychat/internal/feed"
	"github.com/vovakirdan/relaychat/internal/store"
)

// NewServer builds an HTTP server with the REST, SSE and WebSocket routes.
// The WebSocket endpoint is served by the mux directly, outside gin's response writer.
func NewServer(hub *core.Hub, st store.Store, broker feed.Broker, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	mux := stdhttp.NewServeMux()
	mux.Handle("/ws", NewWSHandler(hub, cfg, logger))
	mux.Handle("/", NewRouter(hub, st, broker, cfg, logger))

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

// NewRouter wires the REST and SSE handlers and middleware into a gin engine.
func NewRouter(hub *core.Hub, st store.Store, broker feed.Broker, cfg *config.Config, logger *zerolog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))
	router.Use(CORSMiddleware(cfg.AllowedOrigins))

	chats := NewChatHandlers(st, hub.Resolver(), cfg.HistoryLimit, logger)
	users := NewUserHandlers(st, logger)
	unread := NewUnreadHandlers(hub.Ledger(), broker, logger)

	router.GET("/health", healthHandler)

	router.GET("/chat/rooms/:userId", chats.ListRooms)
	router.GET("/chat/unread/cnt/:userId", unread.Stream)
	router.GET("/chat/:roomId/:otherUserId", chats.History)
	router.POST("/room/exists", chats.RoomExists)

	router.GET("/nickname/:userId", users.GetNickname)
	router.POST("/register/nickname", users.RegisterNickname)

	return router
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
