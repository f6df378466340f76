package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"rocket-rental/internal/domain"
	"rocket-rental/internal/service"
	"rocket-rental/internal/session"
)

const ctxUserID = "user_id"

// Pinger reports whether an optional backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Users        service.UserService
	Profiles     service.ProfileService
	Provisioners []service.RoleProvisioner
	Sessions     *session.Manager
	Cache        Pinger
	Logger       *logrus.Logger
}

// Handler wires HTTP routes to domain services.
type Handler struct {
	users        service.UserService
	profiles     service.ProfileService
	provisioners map[domain.Capability]service.RoleProvisioner
	sessions     *session.Manager
	cache        Pinger
	logger       *logrus.Logger
}

func NewHandler(deps Deps) *Handler {
	logger := deps.Logger
	if logger == nil {
		logger = logrus.New()
	}
	provisioners := make(map[domain.Capability]service.RoleProvisioner, len(deps.Provisioners))
	for _, p := range deps.Provisioners {
		provisioners[p.Capability()] = p
	}
	return &Handler{
		users:        deps.Users,
		profiles:     deps.Profiles,
		provisioners: provisioners,
		sessions:     deps.Sessions,
		cache:        deps.Cache,
		logger:       logger,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(accessLog(h.logger), corsMiddleware(), h.errorBoundary())

	router.POST("/login", h.login)
	router.POST("/logout", h.logout)
	router.GET("/users/:username", h.publicProfile)

	settings := router.Group("/settings/profile", h.requireSession())
	{
		settings.GET("", h.editableProfile)
		settings.POST("", h.updateProfile)
		settings.POST("/:capability", h.provision)
	}

	api := router.Group("/api")
	{
		api.GET("/health", h.health)
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" {
			// Session cookies require an explicit origin rather than "*".
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			c.Writer.Header().Add("Vary", "Origin")
		}
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Location, X-Request-ID")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// requireSession resolves the caller from the session cookie. A missing or
// unverifiable cookie stops the request with 401; an unverifiable one is
// also cleared.
func (h *Handler) requireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := h.sessions.UserID(c)
		if err != nil {
			if errors.Is(err, session.ErrInvalidSession) {
				h.sessions.Terminate(c)
			}
			_ = c.Error(unauthorized(err))
			c.Abort()
			return
		}
		c.Set(ctxUserID, userID)
		c.Next()
	}
}

func (h *Handler) health(c *gin.Context) {
	resp := gin.H{"ok": "ok", "cache": "disabled"}
	if h.cache != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
		defer cancel()
		if err := h.cache.Ping(ctx); err != nil {
			resp["cache"] = "down"
		} else {
			resp["cache"] = "up"
		}
	}
	c.JSON(http.StatusOK, resp)
}
