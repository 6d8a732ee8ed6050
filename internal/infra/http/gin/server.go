package ginserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	gin "github.com/gin-gonic/gin"

	"autoparc/internal/infra/config"
	"autoparc/internal/infra/obs"
)

type Handlers struct {
	Auth           AuthHTTP
	Listing        ListingHTTP
	Chat           ChatHTTP
	Favorites      FavoritesHTTP
	Notification   NotificationHTTP
	Expertise      ExpertiseHTTP
	User           UserHTTP
	Realtime       RealtimeHTTP
	Media          *MediaHandler
	AuthMiddleware gin.HandlerFunc
}

func NewServer(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *http.Server {
	return &http.Server{Addr: cfg.HTTPAddr, Handler: NewRouter(cfg, obsMW, health, h)}
}

func NewRouter(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *gin.Engine {
	mode := configureGinMode(cfg.Env)
	if obsMW.Logger != nil {
		obsMW.Logger.Info("gin initialized", "mode", mode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(obsMW.RequestID())
	router.Use(obsMW.LoggerMiddleware())
	router.Use(cors.New(corsConfig(cfg.CORSOrigins)))
	if h.AuthMiddleware != nil {
		router.Use(h.AuthMiddleware)
	}

	router.GET("/livez", health.Livez)
	router.GET("/readyz", health.Readyz)
	if h.Media != nil {
		router.GET("/media/*key", h.Media.Serve)
	}

	api := router.Group("/api/v1")
	if h.Auth != nil {
		api.POST("/auth/register", h.Auth.Register)
		api.POST("/auth/login", h.Auth.Login)
		api.POST("/auth/logout", h.Auth.Logout)
		api.GET("/auth/me", h.Auth.Me)
	}
	if h.Listing != nil {
		api.GET("/listings", h.Listing.Catalog)
		api.GET("/listings/:id", h.Listing.Get)
		api.POST("/listings", h.Listing.Create)
		api.PUT("/listings/:id", h.Listing.Update)
		api.DELETE("/listings/:id", h.Listing.Delete)
		api.POST("/listings/:id/boost", h.Listing.Boost)
		api.DELETE("/listings/:id/boost", h.Listing.Unboost)
		api.POST("/listings/:id/images", h.Listing.UploadImage)
		api.DELETE("/listings/:id/images", h.Listing.RemoveImage)
		api.GET("/me/listings", h.Listing.Mine)
	}
	if h.Chat != nil {
		api.POST("/listings/:id/chat", h.Chat.Start)
		api.GET("/chats", h.Chat.List)
		api.GET("/chats/unread", h.Chat.Unread)
		api.GET("/chats/:id/messages", h.Chat.ListMessages)
		api.POST("/chats/:id/messages", h.Chat.SendMessage)
		api.POST("/chats/:id/read", h.Chat.MarkRead)
		api.POST("/chats/:id/typing", h.Chat.Typing)
	}
	if h.Favorites != nil {
		api.GET("/me/favorites", h.Favorites.List)
		api.GET("/listings/:id/favorite", h.Favorites.Status)
		api.PUT("/listings/:id/favorite", h.Favorites.Add)
		api.DELETE("/listings/:id/favorite", h.Favorites.Remove)
	}
	if h.Notification != nil {
		api.GET("/notifications", h.Notification.List)
		api.GET("/notifications/unread", h.Notification.UnreadCount)
		api.POST("/notifications/:id/read", h.Notification.MarkRead)
		api.POST("/notifications/read", h.Notification.MarkAllRead)
	}
	if h.Expertise != nil {
		api.POST("/expertise/reports", h.Expertise.Submit)
		api.GET("/expertise/reports/:id", h.Expertise.Get)
		api.GET("/listings/:id/reports", h.Expertise.ForListing)
		api.GET("/me/expertise", h.Expertise.Dashboard)
	}
	if h.User != nil {
		api.GET("/users/:id", h.User.Profile)
		api.PATCH("/me/profile", h.User.UpdateProfile)
		api.GET("/mechanics", h.User.Mechanics)
	}
	if h.Realtime != nil {
		api.GET("/realtime", h.Realtime.Stream)
	}
	return router
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization", "Idempotency-Key"},
		ExposeHeaders: []string{
			"Content-Length",
			"Content-Type",
			"X-Request-ID",
		},
		MaxAge: 12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

func configureGinMode(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "debug":
		gin.SetMode(gin.DebugMode)
		return gin.DebugMode
	case "test", "testing":
		gin.SetMode(gin.TestMode)
		return gin.TestMode
	default:
		gin.SetMode(gin.ReleaseMode)
		return gin.ReleaseMode
	}
}
