package models

import (
	"time"

	"gorm.io/datatypes"
)

// Source represents a playable upstream video source.
type Source struct {
	ID uint64 `gorm:"primaryKey;autoIncrement" json:"id"` // Primary key.

	Key  string `gorm:"type:text;not null;uniqueIndex" json:"key"` // Stable source key.
	Name string `gorm:"type:text;not null" json:"name"`            // Display name.
	API  string `gorm:"type:text;not null" json:"api"`             // Upstream API URL or csp_ directive.

	// Detail holds the raw per-source JSON blob edited by administrators. It may
	// override the detected api type and supply a custom spider jar URL. Free-text
	// ext parameters inside it are never forwarded upstream (see
	// profile.ExtFieldPolicy).
	Detail datatypes.JSON `gorm:"type:text" json:"detail,omitempty"`

	Disabled  bool `gorm:"not null;default:false" json:"disabled"` // Hidden from all users when true.
	SortOrder int  `gorm:"not null;default:0;index" json:"sort"`   // Ascending output position.

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"` // Last update timestamp.
}

// LiveSource represents a live-channel list source.
type LiveSource struct {
	ID uint64 `gorm:"primaryKey;autoIncrement" json:"id"` // Primary key.

	Name     string `gorm:"type:text;not null" json:"name"`         // Display name.
	URL      string `gorm:"type:text;not null" json:"url"`          // Channel list URL.
	Disabled bool   `gorm:"not null;default:false" json:"disabled"` // Excluded from output when true.

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"` // Last update timestamp.
}
