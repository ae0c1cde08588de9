package httpserver

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/dmitrijs2005/rtcauth/internal/logging"
)

// NewRouter wires gin routes and middleware.
func NewRouter(serviceName string, h *Handler, l logging.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(l))
	r.Use(cors())
	r.Use(otelgin.Middleware(serviceName))

	v1 := r.Group("/v1")
	{
		sms := v1.Group("/sms")
		{
			sms.POST("/send", h.SendCode)
			sms.POST("/login", h.Login)
		}

		v1.POST("/rtc/token", h.CapabilityToken)
		v1.POST("/user/rename", h.Rename)
		v1.POST("/user/profile", h.Profile)
		v1.POST("/session/refresh", h.Refresh)
		v1.POST("/logout", h.Logout)
		v1.POST("/upload-url", h.UploadURL)
	}

	r.GET("/healthz", h.Health)

	return r
}

// cors allows any origin; the API carries no cookies.
func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.Writer.Header()
		header.Set("Access-Control-Allow-Origin", "*")
		header.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+SessionTokenHeader)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func requestLogger(l logging.Logger) gin.HandlerFunc {
	l = l.With("module", "http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		args := []any{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			l.Warn(c.Request.Context(), "request failed", args...)
			return
		}
		l.Debug(c.Request.Context(), "request", args...)
	}
}
