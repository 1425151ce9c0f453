package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"exam-editor/internal/domain"
	"exam-editor/internal/service"
)

// Options configures the HTTP layer.
type Options struct {
	Auth          *service.AuthService
	Submissions   *service.SubmissionService
	Logger        logrus.FieldLogger
	CookieName    string
	SessionSecret string
	SessionTTL    time.Duration
	SecureCookies bool
	AllowedOrigin string
	// Registry receives the handler's metrics; a private registry is created when nil.
	Registry *prometheus.Registry
}

// Handler wires HTTP routes to domain services.
type Handler struct {
	auth          *service.AuthService
	submissions   *service.SubmissionService
	logger        logrus.FieldLogger
	cookies       sessionCookie
	allowedOrigin string
	metrics       *metrics
}

func NewHandler(opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	registry := opts.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	return &Handler{
		auth:          opts.Auth,
		submissions:   opts.Submissions,
		logger:        logger,
		cookies:       newSessionCookie(opts.CookieName, opts.SessionSecret, opts.SessionTTL, opts.SecureCookies),
		allowedOrigin: opts.AllowedOrigin,
		metrics:       newMetrics(registry),
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(h.requestLogger(), corsMiddleware(h.allowedOrigin), h.authenticate())

	router.GET("/metrics", gin.WrapH(h.metrics.handler()))

	api := router.Group("/api")
	{
		api.POST("/register", h.register)
		api.POST("/admin/register", h.registerAdmin)
		api.POST("/login", h.login)
		api.POST("/logout", h.logout)
		api.GET("/user", h.currentUser)
		api.GET("/health", func(ctx *gin.Context) {
			ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
		})
	}

	authed := api.Group("", requireAuth())
	{
		authed.POST("/submissions", h.createSubmission)
		authed.GET("/submissions", h.listSubmissions)
		authed.GET("/submissions/url", h.submissionURL)
	}

	admin := api.Group("/admin", requireAuth(), requireRole(domain.RoleAdmin))
	{
		admin.GET("/submissions", h.listAllSubmissions)
	}
}

func corsMiddleware(allowedOrigin string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if allowedOrigin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			c.Writer.Header().Add("Vary", "Origin")
		} else {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		}
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func (h *Handler) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		latency := time.Since(start)
		h.metrics.observeRequest(c.Request.Method, route, status, latency)

		entry := h.logger.WithFields(logrus.Fields{
			"method":    c.Request.Method,
			"path":      c.Request.URL.Path,
			"status":    status,
			"latency":   latency.String(),
			"client_ip": c.ClientIP(),
		})
		if status >= http.StatusInternalServerError {
			entry.Warn("request failed")
			return
		}
		entry.Debug("request served")
	}
}

func writeMessage(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"message": message})
}

// internalError logs the cause and answers with a generic 500.
func (h *Handler) internalError(c *gin.Context, op string, err error) {
	h.logger.WithError(err).WithField("op", op).Error("request failed")
	writeMessage(c, http.StatusInternalServerError, "Internal Server Error")
}
