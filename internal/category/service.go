// Package category fetches per-source category lists from upstream feeds
// with bounded concurrency and a TTL cache that only ever stores successful
// results.
package category

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/open-tvbox/boxhub/internal/models"
	"github.com/open-tvbox/boxhub/internal/permission"
	"github.com/open-tvbox/boxhub/internal/store"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

const (
	// cacheTTL bounds how long a successful category list is reused.
	cacheTTL = time.Hour
	// fetchTimeout is the hard per-call cancellation.
	fetchTimeout = 5 * time.Second
	// maxInflight bounds concurrent upstream calls across all requests.
	maxInflight = 10
	// maxBodyBytes caps how much of an upstream response is read.
	maxBodyBytes = 2 << 20
)

// defaultCategories is returned whenever the upstream cannot be used.
var defaultCategories = []string{"Movies", "Series", "Variety", "Anime", "Documentary"}

// Service resolves category lists for sources.
type Service struct {
	cache             store.Cache
	client            *http.Client
	gate              *semaphore.Weighted
	defaultBlockWords []string
}

// NewService constructs a Service. client may be nil.
func NewService(cache store.Cache, client *http.Client, defaultBlockWords []string) *Service {
	if client == nil {
		client = &http.Client{Timeout: fetchTimeout}
	}
	return &Service{
		cache:             cache,
		client:            client,
		gate:              semaphore.NewWeighted(maxInflight),
		defaultBlockWords: defaultBlockWords,
	}
}

// Categories returns the category list for a source. It never fails: any
// upstream problem yields a freshly filtered default list, and only verified
// successful fetches are written to the cache so the next request retries the
// real upstream instead of being pinned to a fallback.
func (s *Service) Categories(ctx context.Context, api, name, userAgent string, user permission.Context, userRow *models.User, tags []models.Tag) []string {
	cacheKey := fmt.Sprintf("cat:%s|%s", api, name)

	if raw, found, errGet := s.cache.Get(ctx, cacheKey); errGet == nil && found {
		var cached []string
		if errUnmarshal := json.Unmarshal(raw, &cached); errUnmarshal == nil && len(cached) > 0 {
			return cached
		}
	}

	categories, errFetch := s.fetch(ctx, api, userAgent)
	if errFetch != nil {
		log.WithError(errFetch).WithField("source", name).Debug("category: upstream fetch failed, using defaults")
		return s.applyFilter(defaultCategories, user, userRow, tags)
	}

	filtered := s.applyFilter(categories, user, userRow, tags)
	if raw, errMarshal := json.Marshal(filtered); errMarshal == nil {
		if errSet := s.cache.Set(ctx, cacheKey, raw, cacheTTL); errSet != nil {
			log.WithError(errSet).Debug("category: cache write failed")
		}
	}
	return filtered
}

// fetch performs one bounded, time-limited upstream call and extracts the
// category names. An empty or malformed list is a failure.
func (s *Service) fetch(ctx context.Context, api, userAgent string) ([]string, error) {
	if !strings.HasPrefix(api, "http://") && !strings.HasPrefix(api, "https://") {
		return nil, fmt.Errorf("category: source has no fetchable api url")
	}

	if errAcquire := s.gate.Acquire(ctx, 1); errAcquire != nil {
		return nil, fmt.Errorf("category: acquire fetch slot: %w", errAcquire)
	}
	defer s.gate.Release(1)

	ctxFetch, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, errReq := http.NewRequestWithContext(ctxFetch, http.MethodGet, api, nil)
	if errReq != nil {
		return nil, fmt.Errorf("category: build request: %w", errReq)
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}

	resp, errDo := s.client.Do(req)
	if errDo != nil {
		return nil, fmt.Errorf("category: fetch: %w", errDo)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("category: upstream status %d", resp.StatusCode)
	}

	body, errRead := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if errRead != nil {
		return nil, fmt.Errorf("category: read body: %w", errRead)
	}

	categories := extractCategories(body)
	if len(categories) == 0 {
		return nil, fmt.Errorf("category: no categories in response")
	}
	return categories, nil
}

// feedClassList is the JSON category envelope used by feed upstreams.
type feedClassList struct {
	Class []struct {
		TypeName string `json:"type_name"`
	} `json:"class"`
}

// xmlClassList is the XML category envelope used by older feed upstreams.
type xmlClassList struct {
	Class struct {
		Types []struct {
			Name string `xml:",chardata"`
		} `xml:"ty"`
	} `xml:"class"`
}

// extractCategories pulls category names out of a JSON or XML feed body.
func extractCategories(body []byte) []string {
	var jsonList feedClassList
	if errUnmarshal := json.Unmarshal(body, &jsonList); errUnmarshal == nil && len(jsonList.Class) > 0 {
		names := make([]string, 0, len(jsonList.Class))
		for _, entry := range jsonList.Class {
			if name := strings.TrimSpace(entry.TypeName); name != "" {
				names = append(names, name)
			}
		}
		return names
	}

	var xmlList xmlClassList
	if errUnmarshal := xml.Unmarshal(body, &xmlList); errUnmarshal == nil && len(xmlList.Class.Types) > 0 {
		names := make([]string, 0, len(xmlList.Class.Types))
		for _, entry := range xmlList.Class.Types {
			if name := strings.TrimSpace(entry.Name); name != "" {
				names = append(names, name)
			}
		}
		return names
	}
	return nil
}
