package api

import (
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/knowhub/knowhub/app/database"
	"github.com/knowhub/knowhub/app/search"
	"github.com/knowhub/knowhub/app/tasks"
)

func NewHandler(articleRepo database.ArticleRepository, sourceRepo database.SourceRepository,
	searchSvc *search.Service, scheduler tasks.SchedulerInterface, feedToken string) *Handler {
	return &Handler{
		articleRepo: articleRepo,
		sourceRepo:  sourceRepo,
		searchSvc:   searchSvc,
		scheduler:   scheduler,
		feedToken:   feedToken,
	}
}

// NewServer creates the HTTP server with all routes configured
func NewServer(handler *Handler, apiAccessKey string) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
				param.ClientIP,
				param.TimeStamp.Format(time.RFC3339),
				param.Method,
				param.Path,
				param.Request.Proto,
				param.StatusCode,
				param.Latency,
				param.Request.UserAgent(),
				param.ErrorMessage,
			)
		},
	}))

	r.Use(gin.Recovery())

	// CORS middleware for API endpoints
	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, X-API-Key")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	setupRoutes(r, handler, apiAccessKey)

	return r
}

func setupRoutes(r *gin.Engine, handler *Handler, apiAccessKey string) {
	// Public endpoints
	r.GET("/health", handler.GetHealth)
	r.GET("/feed/:token", handler.GetDigestFeed)

	api := r.Group("/api")
	if apiAccessKey != "" {
		api.Use(authMiddleware(apiAccessKey))
		slog.Info("API authentication enabled")
	} else {
		slog.Info("API authentication disabled (API_ACCESS_KEY not set)")
	}
	{
		api.GET("/articles", handler.ListArticles)
		api.GET("/articles/:id", handler.GetArticle)
		api.POST("/articles/:id/clip", handler.ClipArticle)
		api.DELETE("/articles/:id/clip", handler.UnclipArticle)

		api.GET("/sources", handler.ListSources)
		api.POST("/sources", handler.CreateSource)
		api.PATCH("/sources/:id", handler.UpdateSource)
		api.DELETE("/sources/:id", handler.DeleteSource)

		api.POST("/collect", handler.TriggerCollect)
		api.POST("/search/ai", handler.SearchAI)
		api.GET("/export", handler.ExportClipped)
	}

	// Root endpoint with basic information
	r.GET("/", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"service":     "KnowHub",
			"description": "RSS/YouTube ingestion with AI classification, scoring, and search",
			"endpoints": map[string]string{
				"articles": "/api/articles",
				"sources":  "/api/sources",
				"search":   "/api/search/ai (POST)",
				"collect":  "/api/collect (POST)",
				"export":   "/api/export",
				"feed":     "/feed/<token>",
				"health":   "/health",
			},
			"api_status": map[string]interface{}{
				"auth_required": apiAccessKey != "",
				"header":        "X-API-Key",
			},
		})
	})

	// Favicon handler (return 204 to avoid 404s)
	r.GET("/favicon.ico", func(c *gin.Context) {
		c.Status(204)
	})
}

// authMiddleware guards API endpoints with a static key
func authMiddleware(apiAccessKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader("X-API-Key")
		if subtle.ConstantTimeCompare([]byte(key), []byte(apiAccessKey)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or missing API key"})
			return
		}
		c.Next()
	}
}
