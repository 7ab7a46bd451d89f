package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	appsync "github.com/finsight/backend/internal/application/sync"
	"github.com/finsight/backend/internal/domain/platform"
)

// SyncHandler handles sync pipeline endpoints
type SyncHandler struct {
	BaseHandler
	service *appsync.Service
}

// NewSyncHandler creates a new SyncHandler
func NewSyncHandler(service *appsync.Service) *SyncHandler {
	return &SyncHandler{service: service}
}

// SyncRequest carries the optional sync window as date-only query params
type SyncRequest struct {
	From string `form:"from" binding:"omitempty,datetime=2006-01-02"`
	To   string `form:"to" binding:"omitempty,datetime=2006-01-02"`
}

func (r SyncRequest) window() appsync.Window {
	var w appsync.Window
	if r.From != "" {
		w.From, _ = time.Parse("2006-01-02", r.From)
	}
	if r.To != "" {
		// Inclusive end date: extend to the end of the day.
		t, _ := time.Parse("2006-01-02", r.To)
		w.To = t.Add(24*time.Hour - time.Nanosecond)
	}
	return w
}

// SyncPlatform triggers a sync for a single platform.
// POST /sync/:platform
func (h *SyncHandler) SyncPlatform(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, err.Error())
		return
	}

	p, err := platform.Parse(c.Param("platform"))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	var req SyncRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	report := h.service.SyncPlatform(c.Request.Context(), userID, p, req.window())
	h.Success(c, report)
}

// SyncAll triggers a sync for every connected platform.
// POST /sync
func (h *SyncHandler) SyncAll(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, err.Error())
		return
	}

	var req SyncRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	report := h.service.SyncAllPlatforms(c.Request.Context(), userID, req.window())
	h.Success(c, report)
}

// RegisterRoutes registers sync routes on the given group
func (h *SyncHandler) RegisterRoutes(rg *gin.RouterGroup) {
	sync := rg.Group("/sync")
	{
		sync.POST("", h.SyncAll)
		sync.POST("/:platform", h.SyncPlatform)
	}
}
