// Package profile classifies a source's upstream API dialect and assigns the
// network profile used when calling it.
package profile

import (
	"encoding/json"
	"strings"
	"time"
)

// API dialects emitted to the player.
const (
	APITypeXMLFeed      = 0
	APITypeJSONFeed     = 1
	APITypePluginSource = 3
)

// ExtFieldPolicy: free-text ext parameters inside a source's detail blob are
// never forwarded to the upstream. Scraped HTML fragments stored there would
// otherwise be misinterpreted as query parameters.
const ExtFieldPolicy = "ignore-detail-ext"

// pluginPrefix marks a source whose upstream is a client-side plugin module
// rather than a plain feed.
const pluginPrefix = "csp_"

// Profile pairs a detected API dialect with its network settings.
type Profile struct {
	APIType   int           `json:"type"`
	UserAgent string        `json:"-"`
	Timeout   time.Duration `json:"-"`
	Retries   int           `json:"-"`
}

// Detail is the subset of a source's raw detail blob the classifier trusts.
type Detail struct {
	APIType   *int   `json:"type"`
	SpiderJar string `json:"jar"`
}

// ParseDetail decodes a source detail blob, tolerating absent or malformed
// JSON.
func ParseDetail(raw []byte) Detail {
	var detail Detail
	if len(raw) == 0 {
		return detail
	}
	_ = json.Unmarshal(raw, &detail)
	return detail
}

// Ordered classification rules; the first match wins. The explicit detail
// directive is checked by Classify before these run.
var rules = []struct {
	match   func(api string) bool
	apiType int
}{
	{func(api string) bool { return strings.HasPrefix(api, pluginPrefix) }, APITypePluginSource},
	{func(api string) bool { return strings.Contains(api, "/at/xml") }, APITypeXMLFeed},
	{func(api string) bool { return strings.Contains(api, "xml.php") }, APITypeXMLFeed},
	{func(api string) bool { return strings.Contains(api, "=xml") }, APITypeXMLFeed},
	{func(api string) bool { return strings.HasSuffix(api, ".xml") }, APITypeXMLFeed},
}

// Classify determines the API dialect for a source. An explicit directive in
// the detail blob overrides every heuristic; otherwise the ordered rule list
// runs with JSON as the default.
func Classify(api string, detail Detail) Profile {
	if detail.APIType != nil {
		return profileFor(*detail.APIType)
	}

	trimmed := strings.ToLower(strings.TrimSpace(api))
	for _, rule := range rules {
		if rule.match(trimmed) {
			return profileFor(rule.apiType)
		}
	}
	return profileFor(APITypeJSONFeed)
}

// profileFor maps an API dialect to its fixed network profile. The values
// were tuned against real upstream behavior: plugin sources are slower to
// answer and retrying them rarely helps.
func profileFor(apiType int) Profile {
	switch apiType {
	case APITypeXMLFeed:
		return Profile{
			APIType:   APITypeXMLFeed,
			UserAgent: "Mozilla/5.0 (compatible; MSIE 9.0; Windows NT 6.1)",
			Timeout:   8 * time.Second,
			Retries:   2,
		}
	case APITypePluginSource:
		return Profile{
			APIType:   APITypePluginSource,
			UserAgent: "okhttp/3.15",
			Timeout:   15 * time.Second,
			Retries:   1,
		}
	default:
		return Profile{
			APIType:   APITypeJSONFeed,
			UserAgent: "Mozilla/5.0 (Linux; Android 11) AppleWebKit/537.36",
			Timeout:   8 * time.Second,
			Retries:   2,
		}
	}
}
