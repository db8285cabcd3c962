package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/MarcoPoloResearchLab/prospect/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/prospect/backend/internal/crm"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const userIDContextKey = "prospect_user_id"

var (
	errMissingSessionValidator = errors.New("session validator dependency required")
	errMissingServices         = errors.New("record services dependency required")
)

// SessionValidator authenticates the session carried by a request.
type SessionValidator interface {
	ValidateRequest(r *http.Request) (auth.Session, error)
}

// Dependencies wires the HTTP handler.
type Dependencies struct {
	SessionValidator SessionValidator
	Services         *crm.Services
	AllowedOrigins   []string
	MetricsGatherer  prometheus.Gatherer
	Logger           *zap.Logger
}

// NewHTTPHandler builds the gin router serving every entity under /api.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.SessionValidator == nil {
		return nil, errMissingSessionValidator
	}
	if deps.Services == nil || deps.Services.Meetings == nil || deps.Services.Contacts == nil || deps.Services.Leads == nil {
		return nil, errMissingServices
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware(deps.AllowedOrigins))

	handler := &httpHandler{
		sessions: deps.SessionValidator,
		logger:   logger,
	}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if deps.MetricsGatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.MetricsGatherer, promhttp.HandlerOpts{})))
	}

	api := router.Group("/api")
	api.Use(handler.authorizeRequest)
	mountEntity[crm.Meeting, crm.MeetingPayload](api, crm.EntityMeetings, deps.Services.Meetings, logger)
	mountEntity[crm.Contact, crm.ContactPayload](api, crm.EntityContacts, deps.Services.Contacts, logger)
	mountEntity[crm.Lead, crm.LeadPayload](api, crm.EntityLeads, deps.Services.Leads, logger)

	return router, nil
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(allowedOrigins) == 0 {
		cfg.AllowOriginFunc = func(string) bool { return true }
	} else {
		cfg.AllowOrigins = allowedOrigins
	}
	return cors.New(cfg)
}

type httpHandler struct {
	sessions SessionValidator
	logger   *zap.Logger
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	session, err := h.sessions.ValidateRequest(c.Request)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredSessionToken) || errors.Is(err, jwt.ErrTokenExpired) {
			h.logger.Info("token validation failed", zap.Error(err))
		} else {
			h.logger.Warn("token validation failed", zap.Error(err))
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"err": errorKindUnauthorized, "error": "unauthorized"})
		return
	}
	c.Set(userIDContextKey, session.UserID)
	c.Next()
}
