package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/open-tvbox/boxhub/internal/auth"
	"github.com/open-tvbox/boxhub/internal/config"
	"github.com/open-tvbox/boxhub/internal/db"
	"github.com/open-tvbox/boxhub/internal/models"
	"github.com/open-tvbox/boxhub/internal/store"
	"gorm.io/gorm"
)

// UserHandler manages admin CRUD for end-user accounts.
type UserHandler struct {
	db     *gorm.DB
	config *store.ConfigStore
	jwtCfg config.JWTConfig // Signs issued identity cookies.
}

// NewUserHandler constructs a user handler.
func NewUserHandler(db *gorm.DB, configStore *store.ConfigStore, jwtCfg config.JWTConfig) *UserHandler {
	return &UserHandler{db: db, config: configStore, jwtCfg: jwtCfg}
}

// userRequest captures the payload for creating or updating a user.
type userRequest struct {
	Username     string   `json:"username"`     // Unique login name.
	EnabledKeys  []string `json:"enabled_keys"` // Direct source allow list; overrides tags when non-empty.
	TagNames     []string `json:"tag_names"`    // Assigned tag names.
	FilterExempt bool     `json:"filter_exempt"`
}

// Create validates and inserts a user.
func (h *UserHandler) Create(c *gin.Context) {
	var body userRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	username := strings.TrimSpace(body.Username)
	if username == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username is required"})
		return
	}

	var existing models.User
	if errFind := h.db.WithContext(c.Request.Context()).Where("username = ?", username).First(&existing).Error; errFind == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "username already exists"})
		return
	}

	enabledKeys, errKeys := encodeStrings(body.EnabledKeys)
	if errKeys != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid enabled_keys"})
		return
	}
	tagNames, errTags := encodeStrings(body.TagNames)
	if errTags != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tag_names"})
		return
	}

	user := models.User{
		Username:     username,
		EnabledKeys:  enabledKeys,
		TagNames:     tagNames,
		FilterExempt: body.FilterExempt,
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&user).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create user failed"})
		return
	}
	_ = h.config.InvalidateConfigCache(c.Request.Context())
	c.JSON(http.StatusCreated, user)
}

// List returns all users sorted by username, optionally filtered by a
// case-insensitive username search.
func (h *UserHandler) List(c *gin.Context) {
	query := h.db.WithContext(c.Request.Context()).Order("username ASC")
	if q := strings.TrimSpace(c.Query("q")); q != "" {
		pattern := db.NormalizeLikePattern(h.db, "%"+q+"%")
		query = query.Where(db.CaseInsensitiveLikeExpr(h.db, "username"), pattern)
	}
	var rows []models.User
	if errFind := query.Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list users failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": rows})
}

// Get returns a user by ID.
func (h *UserHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var user models.User
	if errFind := h.db.WithContext(c.Request.Context()).First(&user, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, user)
}

// Update replaces the mutable fields of a user.
func (h *UserHandler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var body userRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	var user models.User
	if errFind := h.db.WithContext(c.Request.Context()).First(&user, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	enabledKeys, errKeys := encodeStrings(body.EnabledKeys)
	if errKeys != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid enabled_keys"})
		return
	}
	tagNames, errTags := encodeStrings(body.TagNames)
	if errTags != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tag_names"})
		return
	}

	user.EnabledKeys = enabledKeys
	user.TagNames = tagNames
	user.FilterExempt = body.FilterExempt

	if errSave := h.db.WithContext(c.Request.Context()).Save(&user).Error; errSave != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	_ = h.config.InvalidateConfigCache(c.Request.Context())
	c.JSON(http.StatusOK, user)
}

// Delete removes a user.
func (h *UserHandler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	res := h.db.WithContext(c.Request.Context()).Delete(&models.User{}, id)
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

// IssueCookie mints an identity cookie value for a user. The admin hands the
// value to the user out of band; the gateway reads it from the auth cookie.
func (h *UserHandler) IssueCookie(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var user models.User
	if errFind := h.db.WithContext(c.Request.Context()).First(&user, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	cookie, errSign := auth.IssueUserCookie(h.jwtCfg.Secret, user.Username, h.jwtCfg.Expiry)
	if errSign != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "issue cookie failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cookie": auth.UserCookieName, "value": cookie})
}
