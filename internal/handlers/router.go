package handlers

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/justsurfingit/job-application-tracker/internal/auth"
	"github.com/justsurfingit/job-application-tracker/internal/services"
	"github.com/rs/zerolog"
)

type RouterDeps struct {
	Classifier   *services.ClassificationService
	Applications *services.ApplicationService
	Credentials  *auth.CredentialStore
	AllowOrigins []string
	Log          zerolog.Logger
}

// NewRouter wires every route under /api/v1.
func NewRouter(d RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(d.Log))

	config := cors.DefaultConfig()
	if len(d.AllowOrigins) == 0 || (len(d.AllowOrigins) == 1 && d.AllowOrigins[0] == "*") {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = d.AllowOrigins
		config.AllowCredentials = true
	}
	config.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	r.Use(cors.New(config))

	classify := NewClassifyHandler(d.Classifier, d.Credentials)
	apps := NewApplicationHandler(d.Applications)
	creds := NewCredentialHandler(d.Credentials)

	api := r.Group("/api/v1")
	{
		api.GET("/health", HealthCheck)

		api.POST("/classify", classify.Classify)
		api.GET("/applications/by-status", apps.ByStatus)

		api.POST("/credentials", creds.Login)
		api.DELETE("/credentials/:user_id/:provider", creds.Logout)
	}
	return r
}

func requestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		ev := log.Info()
		if c.Writer.Status() >= 500 {
			ev = log.Error()
		}
		ev.Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}
