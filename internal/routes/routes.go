package routes

import (
	"github.com/gin-gonic/gin"

	"treebio-api/internal/handlers"
	"treebio-api/internal/logging"
	"treebio-api/internal/middleware"
)

func SetupRoutes(deps handlers.Deps) *gin.Engine {
	h := handlers.New(deps)

	// Create a new GIN Router
	ginRouter := gin.New()
	ginRouter.Use(gin.Recovery(), middleware.RequestLogger(logging.Sub("http")))

	// CORS middleware (for frontend integration)
	ginRouter.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	ginRouter.GET("/health", h.Health)
	ginRouter.GET("/l/:id", h.RedirectLink)

	// Public routes (no authentication required)
	api := ginRouter.Group("/api")
	{
		api.POST("/register", h.Register)
		api.POST("/login", h.Login)
		api.GET("/realtime/config", h.RealtimeConfig)
		api.GET("/public/:username", h.GetPublicProfile)
		api.POST("/public/links/:id/click", h.ClickLink)
		api.GET("/ws", middleware.OptionalJWTAuth(deps.Tokens), h.WebSocket)
	}

	// Protected routes (authentication required)
	protectedRoutes := api.Group("")
	protectedRoutes.Use(middleware.JWTAuthMiddleware(deps.Tokens))
	{
		protectedRoutes.GET("/profile", h.GetProfile)
		protectedRoutes.PUT("/profile", h.UpdateProfile)

		protectedRoutes.POST("/links", h.CreateLink)
		protectedRoutes.PUT("/links", h.UpdateLink)
		protectedRoutes.DELETE("/links", h.DeleteLink)

		protectedRoutes.POST("/social-links", h.CreateSocialLink)
		protectedRoutes.PUT("/social-links", h.UpdateSocialLink)
		protectedRoutes.DELETE("/social-links", h.DeleteSocialLink)

		protectedRoutes.GET("/analytics", h.GetAnalytics)
	}

	return ginRouter
}
