// Package projector reshapes the assembled configuration document into the
// leaner output variants selected by the player's mode parameter.
package projector

import "github.com/open-tvbox/boxhub/internal/spider"

// Mode selects an output projection.
type Mode string

const (
	ModeFull         Mode = ""
	ModeSafe         Mode = "safe"
	ModeFast         Mode = "fast"
	ModeVendorCompat Mode = "vendorCompat"
)

// ParseMode maps the query parameter onto a known mode, defaulting to full.
func ParseMode(raw string) Mode {
	switch Mode(raw) {
	case ModeSafe, ModeFast, ModeVendorCompat:
		return Mode(raw)
	default:
		return ModeFull
	}
}

// Site is one playable source entry in the output document.
type Site struct {
	Key        string   `json:"key"`
	Name       string   `json:"name"`
	Type       int      `json:"type"`
	API        string   `json:"api"`
	Categories []string `json:"categories,omitempty"`
	Jar        string   `json:"jar,omitempty"`
	UserAgent  string   `json:"ua,omitempty"`
	TimeoutSec int      `json:"timeout,omitempty"`
	Retries    int      `json:"retries,omitempty"`
}

// Live is one live-channel entry in the output document.
type Live struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Diagnostics reports how the spider reference was resolved. Always emitted
// for operability.
type Diagnostics struct {
	SpiderOrigin     spider.Origin `json:"spider_origin"`
	SpiderMD5        string        `json:"spider_md5"`
	SpiderSize       int64         `json:"spider_size"`
	SpiderAttempts   int           `json:"spider_attempts"`
	SpiderSucceeded  bool          `json:"spider_succeeded"`
	SpiderCandidates []string      `json:"spider_candidates,omitempty"`
}

// DOHPreset is one DNS-over-HTTPS provider entry.
type DOHPreset struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Document is the full player configuration document.
type Document struct {
	Spider  string              `json:"spider"`
	Sites   []Site              `json:"sites"`
	Lives   []Live              `json:"lives"`
	Parses  []string            `json:"parses,omitempty"`
	Rules   []CompatRule        `json:"rules,omitempty"`
	Ads     []string            `json:"ads,omitempty"`
	DOH     []DOHPreset         `json:"doh,omitempty"`
	Players map[string][]string `json:"players,omitempty"`

	Diagnostics Diagnostics `json:"diagnostics"`
}

// CompatRule rewrites playback behavior for a host pattern on players that
// need the vendor-compatible document.
type CompatRule struct {
	Host   string   `json:"host"`
	Regex  []string `json:"regex,omitempty"`
	Script []string `json:"script,omitempty"`
}

// fastTimeoutSec caps per-site timeouts in the fast projection so source
// switching stays responsive.
const fastTimeoutSec = 5

// vendorCompatRules is the fixed rule table substituted by vendorCompat.
var vendorCompatRules = []CompatRule{
	{Host: "*", Regex: []string{"#EXT-X-DISCONTINUITY\\r*\\n*#EXTINF:6.433333,[\\s\\S]*?#EXT-X-DISCONTINUITY"}},
	{Host: "vip.lz", Regex: []string{"#EXT-X-DISCONTINUITY\\r*\\n*#EXTINF:3"}},
}

// Project maps the full document onto the requested mode. Full is the
// identity transform; the inputs are not mutated.
func Project(doc Document, mode Mode, vendorParseURLs []string) Document {
	switch mode {
	case ModeSafe:
		return projectLean(doc, false)
	case ModeFast:
		return projectLean(doc, true)
	case ModeVendorCompat:
		out := doc
		out.Parses = append([]string(nil), vendorParseURLs...)
		out.Rules = append([]CompatRule(nil), vendorCompatRules...)
		return out
	default:
		return doc
	}
}

// projectLean drops deployment metadata and retunes site hints. fast
// additionally clamps timeouts and disables retries.
func projectLean(doc Document, fast bool) Document {
	out := doc
	out.Ads = nil
	out.DOH = nil
	out.Players = nil
	out.Parses = nil
	out.Rules = nil

	sites := make([]Site, len(doc.Sites))
	for i, site := range doc.Sites {
		lean := site
		lean.UserAgent = ""
		if fast {
			if lean.TimeoutSec == 0 || lean.TimeoutSec > fastTimeoutSec {
				lean.TimeoutSec = fastTimeoutSec
			}
			lean.Retries = 0
		}
		sites[i] = lean
	}
	out.Sites = sites
	return out
}
