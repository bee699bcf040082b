package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/open-tvbox/boxhub/internal/db"
	"github.com/open-tvbox/boxhub/internal/models"
	"github.com/open-tvbox/boxhub/internal/store"
	"gorm.io/gorm"
)

// SourceHandler manages admin CRUD for video sources.
type SourceHandler struct {
	db     *gorm.DB           // Database handle for source rows.
	config *store.ConfigStore // Invalidates cached assembled documents after writes.
}

// NewSourceHandler constructs a source handler.
func NewSourceHandler(db *gorm.DB, config *store.ConfigStore) *SourceHandler {
	return &SourceHandler{db: db, config: config}
}

// sourceRequest captures the payload for creating or updating a source.
type sourceRequest struct {
	Key       string          `json:"key"`    // Stable source key.
	Name      string          `json:"name"`   // Display name.
	API       string          `json:"api"`    // Upstream API URL or csp_ directive.
	Detail    json.RawMessage `json:"detail"` // Raw per-source JSON blob.
	Disabled  bool            `json:"disabled"`
	SortOrder int             `json:"sort"`
}

// Create validates and inserts a source.
func (h *SourceHandler) Create(c *gin.Context) {
	var body sourceRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	key := strings.TrimSpace(body.Key)
	name := strings.TrimSpace(body.Name)
	api := strings.TrimSpace(body.API)
	if key == "" || name == "" || api == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "key, name and api are required"})
		return
	}

	var existing models.Source
	if errFind := h.db.WithContext(c.Request.Context()).Where("key = ?", key).First(&existing).Error; errFind == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "key already exists"})
		return
	}

	source := models.Source{
		Key:       key,
		Name:      name,
		API:       api,
		Detail:    []byte(body.Detail),
		Disabled:  body.Disabled,
		SortOrder: body.SortOrder,
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&source).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create source failed"})
		return
	}
	h.invalidate(c)
	c.JSON(http.StatusCreated, source)
}

// List returns all sources in output order, optionally filtered by a
// case-insensitive name search.
func (h *SourceHandler) List(c *gin.Context) {
	query := h.db.WithContext(c.Request.Context()).Order("sort_order ASC, id ASC")
	if q := strings.TrimSpace(c.Query("q")); q != "" {
		pattern := db.NormalizeLikePattern(h.db, "%"+q+"%")
		query = query.Where(db.CaseInsensitiveLikeExpr(h.db, "name"), pattern)
	}
	var rows []models.Source
	if errFind := query.Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list sources failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sources": rows})
}

// Get returns a source by ID.
func (h *SourceHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var source models.Source
	if errFind := h.db.WithContext(c.Request.Context()).First(&source, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, source)
}

// Update replaces the mutable fields of a source.
func (h *SourceHandler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var body sourceRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	var source models.Source
	if errFind := h.db.WithContext(c.Request.Context()).First(&source, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	if name := strings.TrimSpace(body.Name); name != "" {
		source.Name = name
	}
	if api := strings.TrimSpace(body.API); api != "" {
		source.API = api
	}
	if body.Detail != nil {
		source.Detail = []byte(body.Detail)
	}
	source.Disabled = body.Disabled
	source.SortOrder = body.SortOrder

	if errSave := h.db.WithContext(c.Request.Context()).Save(&source).Error; errSave != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	h.invalidate(c)
	c.JSON(http.StatusOK, source)
}

// Delete removes a source.
func (h *SourceHandler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	res := h.db.WithContext(c.Request.Context()).Delete(&models.Source{}, id)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	h.invalidate(c)
	c.Status(http.StatusNoContent)
}

// Enable marks a source visible.
func (h *SourceHandler) Enable(c *gin.Context) {
	h.setDisabled(c, false)
}

// Disable hides a source from every user.
func (h *SourceHandler) Disable(c *gin.Context) {
	h.setDisabled(c, true)
}

func (h *SourceHandler) setDisabled(c *gin.Context, disabled bool) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	res := h.db.WithContext(c.Request.Context()).Model(&models.Source{}).Where("id = ?", id).
		Update("disabled", disabled)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	h.invalidate(c)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *SourceHandler) invalidate(c *gin.Context) {
	_ = h.config.InvalidateConfigCache(c.Request.Context())
}

// parseID parses the numeric :id path parameter, writing a 400 on failure.
func parseID(c *gin.Context) (uint64, bool) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}
