package models

import (
	"time"

	"gorm.io/datatypes"
)

// DeviceBinding records one device authorized for a user token.
type DeviceBinding struct {
	ID         string    `json:"id"`          // Binding UUID.
	DeviceID   string    `json:"device_id"`   // Fingerprint derived from request headers.
	DeviceInfo string    `json:"device_info"` // Truncated user agent for display.
	BoundAt    time.Time `json:"bound_at"`    // Binding timestamp.
}

// UserToken is one per-user access token with its bound devices.
type UserToken struct {
	Username string          `json:"username"` // Owning user.
	Token    string          `json:"token"`    // Token string supplied by the player.
	Enabled  bool            `json:"enabled"`  // Disabled tokens never match.
	Devices  []DeviceBinding `json:"devices"`  // Bound devices, capped at MaxDevicesPerToken.
}

// SecurityPolicy is the single-row security configuration for the gateway.
type SecurityPolicy struct {
	ID uint64 `gorm:"primaryKey;autoIncrement" json:"id"` // Primary key; exactly one row.

	AuthEnabled bool `gorm:"not null;default:false" json:"auth_enabled"` // Require a valid token.

	DeviceBindingEnabled bool `gorm:"not null;default:false" json:"device_binding_enabled"` // Enforce device binding.
	MaxDevicesPerToken   int  `gorm:"not null;default:3" json:"max_devices_per_token"`      // Binding capacity per token.

	IPWhitelistEnabled bool           `gorm:"not null;default:false" json:"ip_whitelist_enabled"` // Enforce the IP allow list.
	AllowedIPs         datatypes.JSON `gorm:"type:text" json:"allowed_ips"`                       // Exact IPs, "*", or CIDR entries.

	RateLimitEnabled  bool  `gorm:"not null;default:false" json:"rate_limit_enabled"` // Enforce per-IP rate limiting.
	RequestsPerWindow int   `gorm:"not null;default:60" json:"requests_per_window"`   // Allowed requests per window.
	WindowMillis      int64 `gorm:"not null;default:60000" json:"window_millis"`      // Fixed window length in ms.

	// LegacyToken is the single shared token honored alongside per-user tokens.
	// A match via LegacyToken never participates in device binding.
	LegacyToken string `gorm:"type:text" json:"legacy_token"`

	Tokens datatypes.JSON `gorm:"type:text" json:"tokens"` // JSON array of UserToken.

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"` // Last update timestamp.
}
