package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/open-tvbox/boxhub/internal/auth"
	"github.com/open-tvbox/boxhub/internal/config"
	handlers "github.com/open-tvbox/boxhub/internal/http/api/admin/handlers"
	"github.com/open-tvbox/boxhub/internal/models"
	"github.com/open-tvbox/boxhub/internal/store"
	"gorm.io/gorm"
)

// RegisterAdminRoutes registers the admin JSON API routes, middleware, and handlers.
func RegisterAdminRoutes(r *gin.Engine, db *gorm.DB, configStore *store.ConfigStore, jwtCfg config.JWTConfig) {
	if r == nil || db == nil {
		return
	}

	healthHandler := handlers.NewHealthHandler(db)
	r.GET("/healthz", healthHandler.Healthz)

	adminGroup := r.Group("/v0/admin")

	authHandler := handlers.NewAuthHandler(db, jwtCfg)
	adminGroup.POST("/login", authHandler.Login)

	authed := adminGroup.Group("")
	authed.Use(adminAuthMiddleware(db, jwtCfg))

	sourceHandler := handlers.NewSourceHandler(db, configStore)
	authed.POST("/sources", sourceHandler.Create)
	authed.GET("/sources", sourceHandler.List)
	authed.GET("/sources/:id", sourceHandler.Get)
	authed.PUT("/sources/:id", sourceHandler.Update)
	authed.DELETE("/sources/:id", sourceHandler.Delete)
	authed.POST("/sources/:id/enable", sourceHandler.Enable)
	authed.POST("/sources/:id/disable", sourceHandler.Disable)

	liveHandler := handlers.NewLiveSourceHandler(db, configStore)
	authed.POST("/lives", liveHandler.Create)
	authed.GET("/lives", liveHandler.List)
	authed.PUT("/lives/:id", liveHandler.Update)
	authed.DELETE("/lives/:id", liveHandler.Delete)

	tagHandler := handlers.NewTagHandler(db, configStore)
	authed.POST("/tags", tagHandler.Create)
	authed.GET("/tags", tagHandler.List)
	authed.PUT("/tags/:id", tagHandler.Update)
	authed.DELETE("/tags/:id", tagHandler.Delete)

	userHandler := handlers.NewUserHandler(db, configStore, jwtCfg)
	authed.POST("/users", userHandler.Create)
	authed.GET("/users", userHandler.List)
	authed.GET("/users/:id", userHandler.Get)
	authed.PUT("/users/:id", userHandler.Update)
	authed.DELETE("/users/:id", userHandler.Delete)
	authed.POST("/users/:id/cookie", userHandler.IssueCookie)

	securityHandler := handlers.NewSecurityHandler(configStore)
	authed.GET("/security", securityHandler.Get)
	authed.PUT("/security", securityHandler.Update)
	authed.POST("/security/tokens", securityHandler.AddToken)
	authed.DELETE("/security/tokens/:token", securityHandler.DeleteToken)
	authed.POST("/security/tokens/:token/enabled", securityHandler.SetTokenEnabled)
	authed.DELETE("/security/tokens/:token/devices/:device_id", securityHandler.UnbindDevice)

	settingHandler := handlers.NewSettingHandler(db, configStore)
	authed.POST("/settings", settingHandler.Create)
	authed.GET("/settings", settingHandler.List)
	authed.GET("/settings/:key", settingHandler.Get)
	authed.PUT("/settings/:key", settingHandler.Update)
	authed.DELETE("/settings/:key", settingHandler.Delete)
}

// adminAuthMiddleware validates admin bearer tokens and loads admin context.
func adminAuthMiddleware(db *gorm.DB, jwtCfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		username, ok := auth.BearerAdmin(c, jwtCfg.Secret)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		var admin models.Admin
		if errFind := db.WithContext(c.Request.Context()).Where("username = ?", username).First(&admin).Error; errFind != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "admin not found"})
			return
		}

		c.Set("adminID", admin.ID)
		c.Set("adminUsername", admin.Username)
		c.Next()
	}
}
