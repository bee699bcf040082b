package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/open-tvbox/boxhub/internal/authgate"
	"github.com/open-tvbox/boxhub/internal/category"
	"github.com/open-tvbox/boxhub/internal/config"
	"github.com/open-tvbox/boxhub/internal/db"
	"github.com/open-tvbox/boxhub/internal/gateway"
	admin "github.com/open-tvbox/boxhub/internal/http/api/admin"
	"github.com/open-tvbox/boxhub/internal/ratelimit"
	"github.com/open-tvbox/boxhub/internal/settings"
	"github.com/open-tvbox/boxhub/internal/spider"
	"github.com/open-tvbox/boxhub/internal/store"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const defaultListen = ":8318"

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, cfg config.AppConfig) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	dsn, err := config.LoadDatabaseDSN(configPath)
	if err != nil {
		return err
	}
	conn, err := db.Open(dsn)
	if err != nil {
		return err
	}
	return db.Migrate(conn)
}

// RunServer boots the config gateway with database-backed components.
func RunServer(ctx context.Context, cfg config.AppConfig, defaultPort int) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	fileCfg, errLoad := config.Load(configPath)
	if errLoad != nil {
		return errLoad
	}
	dsn, errDSN := config.LoadDatabaseDSN(configPath)
	if errDSN != nil {
		return errDSN
	}

	conn, errOpen := db.Open(dsn)
	if errOpen != nil {
		return errOpen
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}
	if errAdmin := EnsureDefaultAdmin(conn); errAdmin != nil {
		return errAdmin
	}
	if errRefresh := settings.RefreshSnapshot(ctx, conn); errRefresh != nil {
		return errRefresh
	}

	jwtCfg, errJWT := config.LoadJWTConfig(configPath)
	if errJWT != nil {
		return errJWT
	}

	cache := buildCache(ctx, fileCfg.Redis)
	configStore := store.NewConfigStore(conn, cache)
	limiter := ratelimit.NewWindow(cache, time.Now)
	gate := authgate.NewGate(configStore, limiter, time.Now)
	categories := category.NewService(cache, http.DefaultClient, fileCfg.BlockWords)
	resolver := spider.NewResolver(cache, http.DefaultClient, fileCfg.Spider.Candidates)
	handler := gateway.NewHandler(configStore, gate, categories, resolver, fileCfg.Static, jwtCfg.Secret)

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	engine.GET("/api/config", handler.Config)
	engine.OPTIONS("/api/config", handler.Preflight)
	engine.GET(gateway.LivesPath, handler.Lives)
	engine.GET(spider.ProxyPath, resolver.ProxyHandler)

	admin.RegisterAdminRoutes(engine, conn, configStore, jwtCfg)

	addr := listenAddr(fileCfg.Listen, defaultPort)
	srv := &http.Server{
		Addr:              addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if errShutdown := srv.Shutdown(shutdownCtx); errShutdown != nil {
			log.Errorf("server shutdown error: %v", errShutdown)
		}
	}()

	log.Infof("starting gateway on %s with config=%s", addr, configPath)
	if errListen := srv.ListenAndServe(); errListen != nil && !errors.Is(errListen, http.ErrServerClosed) {
		return errListen
	}
	return nil
}

// buildCache returns the shared cache backend. With Redis configured it layers
// Redis over a process-local memory fallback; otherwise memory alone.
func buildCache(ctx context.Context, redisCfg config.RedisConfig) store.Cache {
	memory := store.NewMemoryCache()
	if !redisCfg.Enabled {
		return memory
	}
	redisCache, errRedis := store.NewRedisCache(ctx, &redis.Options{
		Addr:     redisCfg.Addr,
		Password: redisCfg.Password,
		DB:       redisCfg.DB,
	}, redisCfg.Prefix)
	if errRedis != nil {
		log.Warnf("redis unavailable at startup, using memory cache: %v", errRedis)
		return memory
	}
	return store.NewFallbackCache(redisCache, memory, time.Now)
}

// listenAddr resolves the listen address from config, falling back to the
// command-line port.
func listenAddr(listen string, defaultPort int) string {
	if trimmed := strings.TrimSpace(listen); trimmed != "" {
		return trimmed
	}
	if defaultPort > 0 {
		return fmt.Sprintf(":%d", defaultPort)
	}
	return defaultListen
}
