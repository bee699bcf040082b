package models

import (
	"time"

	"gorm.io/datatypes"
)

// User represents an end-user account identified by the auth cookie.
type User struct {
	ID uint64 `gorm:"primaryKey;autoIncrement" json:"id"` // Primary key.

	Username string `gorm:"type:text;not null;uniqueIndex" json:"username"` // Unique login name.

	// EnabledKeys is the user's direct source allow list. When non-empty it takes
	// precedence over every tag rule.
	EnabledKeys datatypes.JSON `gorm:"type:text" json:"enabled_keys"`

	TagNames datatypes.JSON `gorm:"type:text" json:"tag_names"` // Names of tags assigned to the user.

	// FilterExempt skips the block-word category filter for this user directly,
	// independent of any tag grant.
	FilterExempt bool `gorm:"not null;default:false" json:"filter_exempt"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"` // Last update timestamp.
}

// Tag groups users and grants them a set of source keys.
type Tag struct {
	ID uint64 `gorm:"primaryKey;autoIncrement" json:"id"` // Primary key.

	Name         string         `gorm:"type:text;not null;uniqueIndex" json:"name"`  // Unique tag name.
	AllowedKeys  datatypes.JSON `gorm:"type:text" json:"allowed_keys"`               // Source keys members may see.
	FilterExempt bool           `gorm:"not null;default:false" json:"filter_exempt"` // Members skip the block-word filter.

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"` // Last update timestamp.
}
