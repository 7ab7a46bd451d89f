package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	appcredential "github.com/finsight/backend/internal/application/credential"
	"github.com/finsight/backend/internal/domain/credential"
	"github.com/finsight/backend/internal/domain/platform"
)

// ConnectionHandler handles platform connection (credential) endpoints
type ConnectionHandler struct {
	BaseHandler
	store *appcredential.Store
}

// NewConnectionHandler creates a new ConnectionHandler
func NewConnectionHandler(store *appcredential.Store) *ConnectionHandler {
	return &ConnectionHandler{store: store}
}

// StoreConnectionRequest represents a request to connect a platform
type StoreConnectionRequest struct {
	AccessToken    string            `json:"access_token" binding:"required,min=1"`
	RefreshToken   string            `json:"refresh_token"`
	ExpiresAt      *time.Time        `json:"expires_at"`
	PlatformUserID string            `json:"platform_user_id" binding:"max=200"`
	Scopes         []string          `json:"scopes"`
	Metadata       map[string]string `json:"metadata"`
}

// ConnectionResponse describes a connected platform. Token material is
// never echoed back.
type ConnectionResponse struct {
	Platform       string     `json:"platform"`
	PlatformUserID string     `json:"platform_user_id,omitempty"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	Scopes         []string   `json:"scopes,omitempty"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Store connects a platform by saving its credential.
// PUT /connections/:platform
func (h *ConnectionHandler) Store(c *gin.Context) {
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

	var req StoreConnectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	cred := &credential.Credential{
		Platform:       p,
		AccessToken:    req.AccessToken,
		RefreshToken:   req.RefreshToken,
		ExpiresAt:      req.ExpiresAt,
		PlatformUserID: req.PlatformUserID,
		Scopes:         req.Scopes,
		Metadata:       req.Metadata,
	}

	if err := h.store.Store(c.Request.Context(), userID, cred); err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, ConnectionResponse{
		Platform:       p.String(),
		PlatformUserID: req.PlatformUserID,
		ExpiresAt:      req.ExpiresAt,
		Scopes:         req.Scopes,
		UpdatedAt:      time.Now().UTC(),
	})
}

// List returns the platforms the user has connected.
// GET /connections
func (h *ConnectionHandler) List(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, err.Error())
		return
	}

	platforms, err := h.store.ListPlatforms(c.Request.Context(), userID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	names := make([]string, 0, len(platforms))
	for _, p := range platforms {
		names = append(names, p.String())
	}
	h.Success(c, gin.H{"platforms": names})
}

// Get returns connection status for one platform, without refreshing.
// GET /connections/:platform
func (h *ConnectionHandler) Get(c *gin.Context) {
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

	cred, err := h.store.GetWithoutRefresh(c.Request.Context(), userID, p)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, ConnectionResponse{
		Platform:       p.String(),
		PlatformUserID: cred.PlatformUserID,
		ExpiresAt:      cred.ExpiresAt,
		Scopes:         cred.Scopes,
		UpdatedAt:      cred.UpdatedAt,
	})
}

// Delete disconnects a platform.
// DELETE /connections/:platform
func (h *ConnectionHandler) Delete(c *gin.Context) {
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

	deleted, err := h.store.Delete(c.Request.Context(), userID, p)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if !deleted {
		h.NotFound(c, "no connection for platform "+p.String())
		return
	}
	h.NoContent(c)
}

// DeleteAll disconnects every platform for the user.
// DELETE /connections
func (h *ConnectionHandler) DeleteAll(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, err.Error())
		return
	}

	removed, err := h.store.ClearUser(c.Request.Context(), userID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, gin.H{"removed": removed})
}

// RegisterRoutes registers connection routes on the given group
func (h *ConnectionHandler) RegisterRoutes(rg *gin.RouterGroup) {
	conns := rg.Group("/connections")
	{
		conns.GET("", h.List)
		conns.DELETE("", h.DeleteAll)
		conns.GET("/:platform", h.Get)
		conns.PUT("/:platform", h.Store)
		conns.DELETE("/:platform", h.Delete)
	}
}
