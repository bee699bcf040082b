package category

import (
	"strings"

	"github.com/open-tvbox/boxhub/internal/models"
	"github.com/open-tvbox/boxhub/internal/permission"
	"github.com/open-tvbox/boxhub/internal/settings"
)

// Exempt reports whether the block-word filter is skipped for this user,
// either by direct flag or through an exempting tag.
func Exempt(user permission.Context, userRow *models.User, tags []models.Tag) bool {
	if userRow != nil && userRow.FilterExempt {
		return true
	}
	if len(user.TagNames) == 0 {
		return false
	}
	assigned := make(map[string]struct{}, len(user.TagNames))
	for _, name := range user.TagNames {
		assigned[name] = struct{}{}
	}
	for _, tag := range tags {
		if !tag.FilterExempt {
			continue
		}
		if _, ok := assigned[tag.Name]; ok {
			return true
		}
	}
	return false
}

// applyFilter drops categories matching a block word unless filtering is
// globally disabled or the user is exempt. Matching is case-insensitive
// substring.
func (s *Service) applyFilter(categories []string, user permission.Context, userRow *models.User, tags []models.Tag) []string {
	if settings.BoolValue(settings.DisableYellowFilterKey, settings.DefaultDisableYellowFilter) {
		return categories
	}
	if Exempt(user, userRow, tags) {
		return categories
	}

	blockWords := s.blockWords()
	if len(blockWords) == 0 {
		return categories
	}

	kept := make([]string, 0, len(categories))
	for _, name := range categories {
		lower := strings.ToLower(name)
		blocked := false
		for _, word := range blockWords {
			if word != "" && strings.Contains(lower, strings.ToLower(word)) {
				blocked = true
				break
			}
		}
		if !blocked {
			kept = append(kept, name)
		}
	}
	return kept
}

// blockWords returns the active block-word list, preferring the settings
// snapshot over the config file default.
func (s *Service) blockWords() []string {
	if words, ok := settings.StringsValue(settings.BlockWordsKey); ok {
		return words
	}
	return s.defaultBlockWords
}
