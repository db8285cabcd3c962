package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/MarcoPoloResearchLab/prospect/backend/internal/records"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	errorKindUnauthorized = "unauthorized"
	errorKindValidation   = "validation"
	errorKindPersistence  = "persistence"

	messageNoData = "No Data Found."
	messageDone   = "done"
)

// entityService is the slice of records.Service the HTTP layer depends on.
type entityService[T records.Record, P records.Payload[T]] interface {
	List(ctx context.Context, filter records.Filter, callerID string) ([]records.View[T], error)
	Get(ctx context.Context, id, callerID string) (records.View[T], error)
	Create(ctx context.Context, payload P, callerID string) (T, error)
	Delete(ctx context.Context, id, callerID string) (records.Outcome, error)
	DeleteMany(ctx context.Context, ids []string, callerID string) (records.Outcome, error)
}

type entityHandler[T records.Record, P records.Payload[T]] struct {
	entity  string
	service entityService[T, P]
	logger  *zap.Logger
}

// mountEntity registers list, view, create, delete and bulk delete routes for one entity.
func mountEntity[T records.Record, P records.Payload[T]](group *gin.RouterGroup, entity string, service entityService[T, P], logger *zap.Logger) {
	handler := &entityHandler[T, P]{entity: entity, service: service, logger: logger}
	routes := group.Group("/" + entity)
	routes.GET("", handler.list)
	routes.POST("", handler.create)
	routes.POST("/delete-many", handler.deleteMany)
	routes.GET("/:id", handler.view)
	routes.DELETE("/:id", handler.delete)
}

func (h *entityHandler[T, P]) list(c *gin.Context) {
	filter := records.Filter{}
	for key, values := range c.Request.URL.Query() {
		if len(values) > 0 {
			filter[key] = values[0]
		}
	}
	views, err := h.service.List(c.Request.Context(), filter, c.GetString(userIDContextKey))
	if err != nil {
		h.respondError(c, err, fmt.Sprintf("Failed to fetch %s", h.entity))
		return
	}
	c.JSON(http.StatusOK, views)
}

func (h *entityHandler[T, P]) view(c *gin.Context) {
	view, err := h.service.Get(c.Request.Context(), c.Param("id"), c.GetString(userIDContextKey))
	if err != nil {
		h.respondError(c, err, fmt.Sprintf("Failed to view %s", h.entity))
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *entityHandler[T, P]) create(c *gin.Context) {
	var payload P
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"err":   errorKindValidation,
			"error": fmt.Sprintf("Failed to create %s", h.entity),
			"code":  "request.invalid_body",
		})
		return
	}
	record, err := h.service.Create(c.Request.Context(), payload, c.GetString(userIDContextKey))
	if err != nil {
		h.respondError(c, err, fmt.Sprintf("Failed to create %s", h.entity))
		return
	}
	c.JSON(http.StatusOK, record)
}

func (h *entityHandler[T, P]) delete(c *gin.Context) {
	outcome, err := h.service.Delete(c.Request.Context(), c.Param("id"), c.GetString(userIDContextKey))
	if err != nil {
		h.respondError(c, err, fmt.Sprintf("Failed to delete %s", h.entity))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": messageDone, "result": outcome})
}

func (h *entityHandler[T, P]) deleteMany(c *gin.Context) {
	var ids []string
	if err := c.ShouldBindJSON(&ids); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"err":   errorKindValidation,
			"error": fmt.Sprintf("Failed to delete %s", h.entity),
			"code":  "request.invalid_body",
		})
		return
	}
	outcome, err := h.service.DeleteMany(c.Request.Context(), ids, c.GetString(userIDContextKey))
	if err != nil {
		h.respondError(c, err, fmt.Sprintf("Failed to delete %s", h.entity))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": messageDone, "result": outcome})
}

// respondError maps a service error onto a status and a body that never carries store error text.
func (h *entityHandler[T, P]) respondError(c *gin.Context, err error, message string) {
	code := ""
	var serviceErr *records.ServiceError
	if errors.As(err, &serviceErr) {
		code = serviceErr.Code()
	}

	switch records.KindOf(err) {
	case records.ErrRecordNotFound:
		c.JSON(http.StatusNotFound, gin.H{"message": messageNoData})
	case records.ErrUnauthorizedIdentity:
		c.JSON(http.StatusUnauthorized, gin.H{"err": errorKindUnauthorized, "error": "unauthorized", "code": code})
	case records.ErrValidation:
		c.JSON(http.StatusBadRequest, gin.H{"err": errorKindValidation, "error": message, "code": code, "details": err.Error()})
	default:
		if serviceErr == nil {
			h.logger.Error("unclassified service error", zap.String("entity", h.entity), zap.Error(err))
		}
		c.JSON(http.StatusBadRequest, gin.H{"err": errorKindPersistence, "error": message, "code": code})
	}
}
