// Package spider resolves the external plugin jar reference handed to the
// player, falling back through remote candidates, a source-defined custom
// jar, and finally a same-origin proxy that can always be served.
package spider

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/open-tvbox/boxhub/internal/settings"
	"github.com/open-tvbox/boxhub/internal/store"
	log "github.com/sirupsen/logrus"
)

// Origin identifies which resolution tier produced the jar reference.
type Origin string

const (
	OriginRemote     Origin = "remote"
	OriginUserCustom Origin = "userCustom"
	OriginLocalProxy Origin = "localProxy"
)

// ProxyPath is the same-origin endpoint serving the jar when no public
// candidate validates. It is always servable.
const ProxyPath = "/spider/proxy"

const (
	fetchTimeout = 8 * time.Second
	maxJarBytes  = 32 << 20
	cacheKey     = "spider:resolved"
)

// jarMagic is the zip local-file-header signature every jar starts with.
var jarMagic = []byte("PK")

// Resolution is the per-request outcome of spider resolution.
type Resolution struct {
	URL        string   `json:"url"`
	MD5        string   `json:"md5"`
	Size       int64    `json:"size"`
	Attempts   int      `json:"attempts"`
	Succeeded  bool     `json:"succeeded"`
	Origin     Origin   `json:"origin"`
	Candidates []string `json:"candidates"`
}

// Reference renders the player-facing spider string "<url>;md5;<hash>".
func (r Resolution) Reference() string {
	if r.MD5 == "" {
		return r.URL
	}
	return fmt.Sprintf("%s;md5;%s", r.URL, r.MD5)
}

// Resolver tries jar candidates in order and caches the outcome briefly.
type Resolver struct {
	cache      store.Cache
	client     *http.Client
	candidates []string

	// isPrivateHost is injectable for tests; the default classifies IP
	// literals and resolves hostnames.
	isPrivateHost func(ctx context.Context, host string) bool
}

// NewResolver constructs a Resolver. client may be nil.
func NewResolver(cache store.Cache, client *http.Client, candidates []string) *Resolver {
	if client == nil {
		client = &http.Client{Timeout: fetchTimeout}
	}
	return &Resolver{
		cache:         cache,
		client:        client,
		candidates:    candidates,
		isPrivateHost: defaultIsPrivateHost,
	}
}

// Resolve determines the jar reference. forceRefresh bypasses the short
// resolution cache; customJar is the optional source-defined jar URL. The
// local proxy tier cannot fail, so the caller always gets a usable result.
func (r *Resolver) Resolve(ctx context.Context, forceRefresh bool, customJar string) Resolution {
	if !forceRefresh {
		if raw, found, errGet := r.cache.Get(ctx, cacheKey); errGet == nil && found {
			var cached Resolution
			if errUnmarshal := json.Unmarshal(raw, &cached); errUnmarshal == nil && cached.URL != "" {
				return cached
			}
		}
	}

	candidates := r.allCandidates()
	resolution := Resolution{Candidates: candidates}

	for _, candidate := range candidates {
		jarURL, expectedMD5 := splitCandidate(candidate)
		resolution.Attempts++
		sum, size, errVerify := r.verify(ctx, jarURL, expectedMD5)
		if errVerify != nil {
			log.WithError(errVerify).WithField("candidate", jarURL).Debug("spider: candidate rejected")
			continue
		}
		resolution.URL = jarURL
		resolution.MD5 = sum
		resolution.Size = size
		resolution.Succeeded = true
		resolution.Origin = OriginRemote
		r.storeResolution(ctx, resolution)
		return resolution
	}

	if jarURL := strings.TrimSpace(customJar); jarURL != "" {
		resolution.Attempts++
		if sum, size, errVerify := r.verify(ctx, jarURL, ""); errVerify == nil {
			resolution.URL = jarURL
			resolution.MD5 = sum
			resolution.Size = size
			resolution.Succeeded = true
			resolution.Origin = OriginUserCustom
			r.storeResolution(ctx, resolution)
			return resolution
		} else {
			log.WithError(errVerify).WithField("candidate", jarURL).Debug("spider: custom jar rejected")
		}
	}

	// Guaranteed tier: same-origin proxy. Private-network candidate URLs are
	// never emitted to the client; reaching this point is how they resolve.
	resolution.URL = ProxyPath
	resolution.MD5 = fallbackJarMD5
	resolution.Size = int64(len(fallbackJar))
	resolution.Succeeded = false
	resolution.Origin = OriginLocalProxy
	return resolution
}

// allCandidates merges configured candidates with admin-managed extras.
func (r *Resolver) allCandidates() []string {
	merged := append([]string(nil), r.candidates...)
	if extras, ok := settings.StringsValue(settings.SpiderCustomCandidatesKey); ok {
		merged = append(merged, extras...)
	}
	return merged
}

// verify downloads a candidate and checks that it is a public, well-formed
// jar whose hash matches the expected checksum when one is supplied.
func (r *Resolver) verify(ctx context.Context, jarURL, expectedMD5 string) (string, int64, error) {
	parsed, errParse := url.Parse(jarURL)
	if errParse != nil || parsed.Host == "" {
		return "", 0, fmt.Errorf("spider: invalid candidate url %q", jarURL)
	}
	if r.isPrivateHost(ctx, parsed.Hostname()) {
		return "", 0, fmt.Errorf("spider: private-network host %q", parsed.Hostname())
	}

	ctxFetch, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()
	req, errReq := http.NewRequestWithContext(ctxFetch, http.MethodGet, jarURL, nil)
	if errReq != nil {
		return "", 0, fmt.Errorf("spider: build request: %w", errReq)
	}
	resp, errDo := r.client.Do(req)
	if errDo != nil {
		return "", 0, fmt.Errorf("spider: fetch: %w", errDo)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("spider: status %d", resp.StatusCode)
	}

	body, errRead := io.ReadAll(io.LimitReader(resp.Body, maxJarBytes))
	if errRead != nil {
		return "", 0, fmt.Errorf("spider: read body: %w", errRead)
	}
	if len(body) == 0 || !bytes.HasPrefix(body, jarMagic) {
		return "", 0, fmt.Errorf("spider: body is not a jar")
	}

	sum := md5.Sum(body)
	sumHex := hex.EncodeToString(sum[:])
	if expectedMD5 != "" && !strings.EqualFold(expectedMD5, sumHex) {
		return "", 0, fmt.Errorf("spider: checksum mismatch")
	}
	return sumHex, int64(len(body)), nil
}

func (r *Resolver) storeResolution(ctx context.Context, resolution Resolution) {
	raw, errMarshal := json.Marshal(resolution)
	if errMarshal != nil {
		return
	}
	ttl := time.Duration(settings.IntValue(settings.SpiderCacheTTLSecondsKey, settings.DefaultSpiderCacheTTLSeconds)) * time.Second
	if errSet := r.cache.Set(ctx, cacheKey, raw, ttl); errSet != nil {
		log.WithError(errSet).Debug("spider: cache write failed")
	}
}

// splitCandidate separates "url[;md5;<hash>]" into its parts.
func splitCandidate(candidate string) (string, string) {
	jarURL, rest, found := strings.Cut(strings.TrimSpace(candidate), ";md5;")
	if !found {
		return strings.TrimSpace(candidate), ""
	}
	return jarURL, strings.TrimSpace(rest)
}

// defaultIsPrivateHost classifies loopback, link-local and RFC1918 hosts.
// Hostnames are resolved; unresolvable hosts are treated as public and left
// to fail at fetch time.
func defaultIsPrivateHost(ctx context.Context, host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	if ip := net.ParseIP(host); ip != nil {
		return isPrivateIP(ip)
	}
	addrs, errLookup := net.DefaultResolver.LookupIPAddr(ctx, host)
	if errLookup != nil {
		return false
	}
	for _, addr := range addrs {
		if isPrivateIP(addr.IP) {
			return true
		}
	}
	return false
}

func isPrivateIP(ip net.IP) bool {
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsUnspecified()
}
