// Package permission reduces the full source list to the subset a user may
// see. Filtering is pure and order-preserving: output order is input order.
package permission

import (
	"github.com/open-tvbox/boxhub/internal/models"
	"github.com/open-tvbox/boxhub/internal/store"
)

// Context is the per-request view of a user's permissions.
type Context struct {
	Username    string
	EnabledKeys []string
	TagNames    []string
}

// FromUser builds a permission context from a loaded user row. A nil user
// yields the anonymous context.
func FromUser(user *models.User) Context {
	if user == nil {
		return Context{}
	}
	return Context{
		Username:    user.Username,
		EnabledKeys: store.DecodeStrings(user.EnabledKeys),
		TagNames:    store.DecodeStrings(user.TagNames),
	}
}

// Filter returns the sources visible to the user. A non-empty direct allow
// list wins outright and ignores tag rules; otherwise tag allow lists are
// unioned; otherwise every non-disabled source is visible.
func Filter(sources []models.Source, user Context, tags []models.Tag) []models.Source {
	if len(user.EnabledKeys) > 0 {
		return filterByKeys(sources, toSet(user.EnabledKeys))
	}

	if allowed, ok := tagAllowedKeys(user.TagNames, tags); ok {
		return filterByKeys(sources, allowed)
	}

	visible := make([]models.Source, 0, len(sources))
	for _, source := range sources {
		if !source.Disabled {
			visible = append(visible, source)
		}
	}
	return visible
}

// tagAllowedKeys unions the allow lists of the user's tags. ok is false when
// no assigned tag carries a non-empty allow list, meaning tag rules do not
// constrain this user.
func tagAllowedKeys(tagNames []string, tags []models.Tag) (map[string]struct{}, bool) {
	if len(tagNames) == 0 {
		return nil, false
	}
	assigned := toSet(tagNames)
	allowed := make(map[string]struct{})
	constrained := false
	for _, tag := range tags {
		if _, ok := assigned[tag.Name]; !ok {
			continue
		}
		keys := store.DecodeStrings(tag.AllowedKeys)
		if len(keys) == 0 {
			continue
		}
		constrained = true
		for _, key := range keys {
			allowed[key] = struct{}{}
		}
	}
	return allowed, constrained
}

func filterByKeys(sources []models.Source, allowed map[string]struct{}) []models.Source {
	visible := make([]models.Source, 0, len(sources))
	for _, source := range sources {
		if source.Disabled {
			continue
		}
		if _, ok := allowed[source.Key]; ok {
			visible = append(visible, source)
		}
	}
	return visible
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		set[item] = struct{}{}
	}
	return set
}
