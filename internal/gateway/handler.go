// Package gateway assembles the aggregated playback configuration document
// served to third-party player clients.
package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/open-tvbox/boxhub/internal/auth"
	"github.com/open-tvbox/boxhub/internal/authgate"
	"github.com/open-tvbox/boxhub/internal/category"
	"github.com/open-tvbox/boxhub/internal/config"
	"github.com/open-tvbox/boxhub/internal/models"
	"github.com/open-tvbox/boxhub/internal/permission"
	"github.com/open-tvbox/boxhub/internal/profile"
	"github.com/open-tvbox/boxhub/internal/projector"
	"github.com/open-tvbox/boxhub/internal/spider"
	"github.com/open-tvbox/boxhub/internal/store"
	log "github.com/sirupsen/logrus"
)

// LivesPath is the aggregation endpoint referenced when more than one live
// source is enabled.
const LivesPath = "/api/lives"

// Handler serves the configuration synthesis endpoint.
type Handler struct {
	config     *store.ConfigStore
	gate       *authgate.Gate
	categories *category.Service
	resolver   *spider.Resolver
	static     config.StaticConfig
	jwtSecret  string
}

// NewHandler constructs a gateway handler.
func NewHandler(configStore *store.ConfigStore, gate *authgate.Gate, categories *category.Service, resolver *spider.Resolver, static config.StaticConfig, jwtSecret string) *Handler {
	return &Handler{
		config:     configStore,
		gate:       gate,
		categories: categories,
		resolver:   resolver,
		static:     static,
		jwtSecret:  jwtSecret,
	}
}

// setCORS applies the permissive header set every gateway response carries.
func setCORS(c *gin.Context) {
	c.Header("Access-Control-Allow-Origin", "*")
	c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
	c.Header("Access-Control-Allow-Headers", "*")
	c.Header("Cache-Control", "no-store")
}

// Preflight answers CORS preflight requests.
func (h *Handler) Preflight(c *gin.Context) {
	setCORS(c)
	c.Status(http.StatusOK)
}

// Config handles GET /api/config. Everything below admission degrades
// gracefully; the deferred recover is the single true fatal path.
func (h *Handler) Config(c *gin.Context) {
	setCORS(c)

	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("gateway: config assembly failed")
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "config assembly failed",
				"details": fmt.Sprint(r),
			})
		}
	}()

	ctx := c.Request.Context()

	if denial := h.gate.Admit(ctx, authgate.Request{
		Token:  c.Query("token"),
		Header: c.Request.Header,
	}); denial != nil {
		c.JSON(denial.Status, gin.H{"error": denial.Code, "hint": denial.Hint})
		return
	}

	doc, errBuild := h.assemble(ctx, c)
	if errBuild != nil {
		log.WithError(errBuild).Error("gateway: config assembly failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "config assembly failed",
			"details": errBuild.Error(),
		})
		return
	}

	projected := projector.Project(*doc, projector.ParseMode(c.Query("mode")), h.static.VendorParseURLs)

	if c.Query("format") == "base64" {
		raw, errMarshal := json.Marshal(projected)
		if errMarshal != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "config assembly failed", "details": errMarshal.Error()})
			return
		}
		c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(base64.StdEncoding.EncodeToString(raw)))
		return
	}
	c.JSON(http.StatusOK, projected)
}

// assemble builds the full document before projection.
func (h *Handler) assemble(ctx context.Context, c *gin.Context) (*projector.Document, error) {
	username := auth.CookieUsername(c, h.jwtSecret)
	userRow, errUser := h.config.UserByName(ctx, username)
	if errUser != nil {
		// An unreadable user row downgrades to anonymous rather than failing
		// the whole request.
		log.WithError(errUser).WithField("username", username).Warn("gateway: user lookup failed")
		userRow = nil
	}
	user := permission.FromUser(userRow)

	sources, errSources := h.config.Sources(ctx)
	if errSources != nil {
		return nil, errSources
	}
	tags, errTags := h.config.Tags(ctx)
	if errTags != nil {
		return nil, errTags
	}

	visible := permission.Filter(sources, user, tags)
	sites := h.buildSites(ctx, visible, user, userRow, tags)

	lives, errLives := h.config.LiveSources(ctx)
	if errLives != nil {
		return nil, errLives
	}

	customJar := firstCustomJar(visible)
	resolution := h.resolver.Resolve(ctx, c.Query("forceSpiderRefresh") == "1", customJar)

	doc := &projector.Document{
		Spider:  resolution.Reference(),
		Sites:   sites,
		Lives:   buildLives(lives),
		Ads:     h.static.AdFilterHosts,
		DOH:     dohPresets(h.static.DOHPresets),
		Players: h.static.PlayerPresets,
		Diagnostics: projector.Diagnostics{
			SpiderOrigin:     resolution.Origin,
			SpiderMD5:        resolution.MD5,
			SpiderSize:       resolution.Size,
			SpiderAttempts:   resolution.Attempts,
			SpiderSucceeded:  resolution.Succeeded,
			SpiderCandidates: resolution.Candidates,
		},
	}
	return doc, nil
}

// buildSites classifies each visible source and enriches it with categories.
// Category fetches run concurrently across sources; output order is the
// filtered source order, never completion order.
func (h *Handler) buildSites(ctx context.Context, visible []models.Source, user permission.Context, userRow *models.User, tags []models.Tag) []projector.Site {
	sites := make([]projector.Site, len(visible))

	var wg sync.WaitGroup
	for i, source := range visible {
		detail := profile.ParseDetail(source.Detail)
		netProfile := profile.Classify(source.API, detail)

		sites[i] = projector.Site{
			Key:        source.Key,
			Name:       source.Name,
			Type:       netProfile.APIType,
			API:        source.API,
			Jar:        detail.SpiderJar,
			UserAgent:  netProfile.UserAgent,
			TimeoutSec: int(netProfile.Timeout.Seconds()),
			Retries:    netProfile.Retries,
		}

		wg.Add(1)
		go func(i int, source models.Source, userAgent string) {
			defer wg.Done()
			sites[i].Categories = h.categories.Categories(ctx, source.API, source.Name, userAgent, user, userRow, tags)
		}(i, source, netProfile.UserAgent)
	}
	wg.Wait()
	return sites
}

// buildLives passes a single live source through directly and points at the
// aggregation endpoint when several are enabled.
func buildLives(lives []models.LiveSource) []projector.Live {
	switch len(lives) {
	case 0:
		return nil
	case 1:
		return []projector.Live{{Name: lives[0].Name, URL: lives[0].URL}}
	default:
		return []projector.Live{{Name: "Aggregated", URL: LivesPath}}
	}
}

// Lives handles the aggregation endpoint serving every enabled live source.
func (h *Handler) Lives(c *gin.Context) {
	setCORS(c)
	lives, errLives := h.config.LiveSources(c.Request.Context())
	if errLives != nil {
		log.WithError(errLives).Error("gateway: live aggregation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "live aggregation failed"})
		return
	}
	entries := make([]projector.Live, 0, len(lives))
	for _, live := range lives {
		entries = append(entries, projector.Live{Name: live.Name, URL: live.URL})
	}
	c.JSON(http.StatusOK, gin.H{"lives": entries})
}

// firstCustomJar returns the first source-defined jar override in filtered
// order, used as the userCustom spider tier.
func firstCustomJar(visible []models.Source) string {
	for _, source := range visible {
		if detail := profile.ParseDetail(source.Detail); detail.SpiderJar != "" {
			return detail.SpiderJar
		}
	}
	return ""
}

func dohPresets(presets []config.DOHPreset) []projector.DOHPreset {
	if len(presets) == 0 {
		return nil
	}
	out := make([]projector.DOHPreset, len(presets))
	for i, preset := range presets {
		out[i] = projector.DOHPreset{Name: preset.Name, URL: preset.URL}
	}
	return out
}
