package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/open-tvbox/boxhub/internal/models"
	"github.com/open-tvbox/boxhub/internal/store"
	"gorm.io/gorm"
)

// TagHandler manages admin CRUD for permission tags.
type TagHandler struct {
	db     *gorm.DB
	config *store.ConfigStore
}

// NewTagHandler constructs a tag handler.
func NewTagHandler(db *gorm.DB, config *store.ConfigStore) *TagHandler {
	return &TagHandler{db: db, config: config}
}

// tagRequest captures the payload for creating or updating a tag.
type tagRequest struct {
	Name         string   `json:"name"`         // Unique tag name.
	AllowedKeys  []string `json:"allowed_keys"` // Source keys members may see.
	FilterExempt bool     `json:"filter_exempt"`
}

// Create validates and inserts a tag.
func (h *TagHandler) Create(c *gin.Context) {
	var body tagRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	name := strings.TrimSpace(body.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	var existing models.Tag
	if errFind := h.db.WithContext(c.Request.Context()).Where("name = ?", name).First(&existing).Error; errFind == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "name already exists"})
		return
	}

	keys, errKeys := encodeStrings(body.AllowedKeys)
	if errKeys != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid allowed_keys"})
		return
	}

	tag := models.Tag{Name: name, AllowedKeys: keys, FilterExempt: body.FilterExempt}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&tag).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create tag failed"})
		return
	}
	_ = h.config.InvalidateConfigCache(c.Request.Context())
	c.JSON(http.StatusCreated, tag)
}

// List returns all tags sorted by name.
func (h *TagHandler) List(c *gin.Context) {
	var rows []models.Tag
	if errFind := h.db.WithContext(c.Request.Context()).Order("name ASC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list tags failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tags": rows})
}

// Update replaces the mutable fields of a tag.
func (h *TagHandler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var body tagRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	var tag models.Tag
	if errFind := h.db.WithContext(c.Request.Context()).First(&tag, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	if name := strings.TrimSpace(body.Name); name != "" {
		tag.Name = name
	}
	keys, errKeys := encodeStrings(body.AllowedKeys)
	if errKeys != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid allowed_keys"})
		return
	}
	tag.AllowedKeys = keys
	tag.FilterExempt = body.FilterExempt

	if errSave := h.db.WithContext(c.Request.Context()).Save(&tag).Error; errSave != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	_ = h.config.InvalidateConfigCache(c.Request.Context())
	c.JSON(http.StatusOK, tag)
}

// Delete removes a tag. User rows keep referencing the name until edited.
func (h *TagHandler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	res := h.db.WithContext(c.Request.Context()).Delete(&models.Tag{}, id)
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

// encodeStrings marshals a string list to the JSON column shape, mapping nil to [].
func encodeStrings(values []string) ([]byte, error) {
	if values == nil {
		values = []string{}
	}
	return json.Marshal(values)
}
