package handler

import (
	"net/http"
	"time"

	"github.com/academvault/discussions/internal/config"
	"github.com/academvault/discussions/internal/middleware"
	"github.com/academvault/discussions/pkg/auth"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

// Handlers bundles the HTTP handlers mounted by SetupRouter
type Handlers struct {
	Auth          *AuthHandler
	Discussions   *DiscussionHandler
	Memberships   *MembershipHandler
	Messages      *MessageHandler
	Notifications *NotificationHandler
	WS            *WSHandler
}

func SetupRouter(
	cfg *config.Config,
	logger *zap.Logger,
	jwtManager *auth.JWTManager,
	revoked middleware.RevocationChecker,
	joinLimiter *middleware.RateLimiter,
	h Handlers,
) *gin.Engine {
	if cfg.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(middleware.Recovery(logger))
	router.Use(otelgin.Middleware(cfg.App.Name))
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.CORSMiddleware(cfg.CORS))

	// Swagger: serve swagger.json at /docs/swagger.json to avoid conflict with the /swagger/* wildcard
	router.StaticFile("/docs/swagger.json", "./docs/swagger.json")
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/docs/swagger.json")))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": cfg.App.Name,
			"time":    time.Now().Format(time.RFC3339),
		})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1")
	protected := api.Group("")
	protected.Use(middleware.AuthMiddleware(jwtManager, revoked, logger))
	{
		// Session
		protected.POST("/auth/logout", h.Auth.Logout)
		protected.GET("/auth/profile", h.Auth.GetProfile)

		// Discussions
		protected.POST("/discussions", h.Discussions.Create)
		protected.GET("/discussions", h.Discussions.ListMine)
		protected.GET("/discussions/public", h.Discussions.ListPublic)
		protected.GET("/discussions/:id", h.Discussions.Get)
		protected.PATCH("/discussions/:id", h.Discussions.Update)
		protected.DELETE("/discussions/:id", h.Discussions.Delete)
		protected.POST("/discussions/:id/archive", h.Discussions.Archive)
		protected.POST("/discussions/:id/unarchive", h.Discussions.Unarchive)
		protected.POST("/discussions/:id/invite-code", h.Discussions.RegenerateInviteCode)

		// Membership
		protected.POST("/discussions/join-by-code", joinLimiter.Middleware(), h.Memberships.JoinByCode)
		protected.POST("/discussions/:id/join", h.Memberships.JoinByID)
		protected.POST("/discussions/:id/leave", h.Memberships.Leave)
		protected.GET("/discussions/:id/members", h.Memberships.ListMembers)
		protected.POST("/discussions/:id/members", h.Memberships.InviteMembers)
		protected.PATCH("/discussions/:id/members/:userId", h.Memberships.UpdateMember)

		// Messages
		protected.POST("/discussions/:id/messages", h.Messages.Send)
		protected.GET("/discussions/:id/messages", h.Messages.History)
		protected.GET("/discussions/:id/messages/recent", h.Messages.Poll)
		protected.DELETE("/discussions/:id/messages/:messageId", h.Messages.Delete)

		// Notifications
		protected.GET("/notifications", h.Notifications.List)
		protected.POST("/notifications/read-all", h.Notifications.MarkAllRead)
		protected.POST("/notifications/:id/read", h.Notifications.MarkRead)
		protected.POST("/devices", h.Notifications.RegisterDevice)
	}

	// WebSocket endpoint (auth via query parameter)
	if h.WS != nil {
		router.GET("/ws", middleware.QueryTokenAuth(jwtManager, revoked, logger), h.WS.HandleWebSocket)
	}

	return router
}
