package settings

// DB config keys and defaults for settings.
const (
	// SiteNameKey is the DB config key for the deployment display name.
	SiteNameKey = "SITE_NAME"
	// DefaultSiteName is the fallback deployment display name.
	DefaultSiteName = "boxhub"
	// DisableYellowFilterKey disables the block-word category filter globally.
	DisableYellowFilterKey = "DISABLE_YELLOW_FILTER"
	// BlockWordsKey overrides the block-word list from the config file.
	BlockWordsKey = "BLOCK_WORDS"
	// ConfigCacheTTLSecondsKey controls the security-policy read cache TTL.
	ConfigCacheTTLSecondsKey = "CONFIG_CACHE_TTL_SECONDS"
	// SpiderCacheTTLSecondsKey controls how long a spider resolution is reused.
	SpiderCacheTTLSecondsKey = "SPIDER_CACHE_TTL_SECONDS"
	// SpiderCustomCandidatesKey appends admin-managed spider jar candidates.
	SpiderCustomCandidatesKey = "SPIDER_CUSTOM_CANDIDATES"

	// DefaultDisableYellowFilter keeps the category filter active.
	DefaultDisableYellowFilter = false
	// DefaultConfigCacheTTLSeconds is the fallback policy cache TTL (seconds).
	DefaultConfigCacheTTLSeconds = 30
	// DefaultSpiderCacheTTLSeconds is the fallback spider cache TTL (seconds).
	DefaultSpiderCacheTTLSeconds = 600
)
