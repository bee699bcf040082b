package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/open-tvbox/boxhub/internal/models"
	"github.com/open-tvbox/boxhub/internal/store"
	"gorm.io/gorm"
)

// LiveSourceHandler manages admin CRUD for live-channel sources.
type LiveSourceHandler struct {
	db     *gorm.DB
	config *store.ConfigStore
}

// NewLiveSourceHandler constructs a live source handler.
func NewLiveSourceHandler(db *gorm.DB, config *store.ConfigStore) *LiveSourceHandler {
	return &LiveSourceHandler{db: db, config: config}
}

// liveSourceRequest captures the payload for creating or updating a live source.
type liveSourceRequest struct {
	Name     string `json:"name"` // Display name.
	URL      string `json:"url"`  // Channel list URL.
	Disabled bool   `json:"disabled"`
}

// Create validates and inserts a live source.
func (h *LiveSourceHandler) Create(c *gin.Context) {
	var body liveSourceRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	name := strings.TrimSpace(body.Name)
	url := strings.TrimSpace(body.URL)
	if name == "" || url == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name and url are required"})
		return
	}

	live := models.LiveSource{Name: name, URL: url, Disabled: body.Disabled}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&live).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create live source failed"})
		return
	}
	_ = h.config.InvalidateConfigCache(c.Request.Context())
	c.JSON(http.StatusCreated, live)
}

// List returns all live sources, disabled ones included.
func (h *LiveSourceHandler) List(c *gin.Context) {
	var rows []models.LiveSource
	if errFind := h.db.WithContext(c.Request.Context()).Order("id ASC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list live sources failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"lives": rows})
}

// Update replaces the mutable fields of a live source.
func (h *LiveSourceHandler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var body liveSourceRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	var live models.LiveSource
	if errFind := h.db.WithContext(c.Request.Context()).First(&live, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	if name := strings.TrimSpace(body.Name); name != "" {
		live.Name = name
	}
	if url := strings.TrimSpace(body.URL); url != "" {
		live.URL = url
	}
	live.Disabled = body.Disabled

	if errSave := h.db.WithContext(c.Request.Context()).Save(&live).Error; errSave != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	_ = h.config.InvalidateConfigCache(c.Request.Context())
	c.JSON(http.StatusOK, live)
}

// Delete removes a live source.
func (h *LiveSourceHandler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	res := h.db.WithContext(c.Request.Context()).Delete(&models.LiveSource{}, id)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	_ = h.config.InvalidateConfigCache(c.Request.Context())
	c.Status(http.StatusNoContent)
}
