package permission

import (
	"reflect"
	"testing"

	"github.com/open-tvbox/boxhub/internal/models"
)

func sampleSources() []models.Source {
	return []models.Source{
		{Key: "alpha", Name: "Alpha"},
		{Key: "beta", Name: "Beta"},
		{Key: "gamma", Name: "Gamma", Disabled: true},
		{Key: "delta", Name: "Delta"},
	}
}

func keysOf(sources []models.Source) []string {
	keys := make([]string, 0, len(sources))
	for _, source := range sources {
		keys = append(keys, source.Key)
	}
	return keys
}

func TestFilter_DirectKeysWinOverTags(t *testing.T) {
	user := Context{
		Username:    "alice",
		EnabledKeys: []string{"delta", "alpha"},
		TagNames:    []string{"movies"},
	}
	tags := []models.Tag{{Name: "movies", AllowedKeys: []byte(`["beta"]`)}}

	got := keysOf(Filter(sampleSources(), user, tags))
	if !reflect.DeepEqual(got, []string{"alpha", "delta"}) {
		t.Fatalf("expected [alpha delta] in source order, got %v", got)
	}
}

func TestFilter_TagUnion(t *testing.T) {
	user := Context{Username: "bob", TagNames: []string{"movies", "shows"}}
	tags := []models.Tag{
		{Name: "movies", AllowedKeys: []byte(`["alpha"]`)},
		{Name: "shows", AllowedKeys: []byte(`["delta"]`)},
		{Name: "other", AllowedKeys: []byte(`["beta"]`)},
	}

	got := keysOf(Filter(sampleSources(), user, tags))
	if !reflect.DeepEqual(got, []string{"alpha", "delta"}) {
		t.Fatalf("expected union [alpha delta], got %v", got)
	}
}

func TestFilter_EmptyTagListsDoNotConstrain(t *testing.T) {
	user := Context{Username: "carol", TagNames: []string{"movies"}}
	tags := []models.Tag{{Name: "movies"}}

	got := keysOf(Filter(sampleSources(), user, tags))
	if !reflect.DeepEqual(got, []string{"alpha", "beta", "delta"}) {
		t.Fatalf("expected all non-disabled sources, got %v", got)
	}
}

func TestFilter_AnonymousSeesNonDisabled(t *testing.T) {
	got := keysOf(Filter(sampleSources(), Context{}, nil))
	if !reflect.DeepEqual(got, []string{"alpha", "beta", "delta"}) {
		t.Fatalf("expected all non-disabled sources, got %v", got)
	}
}

func TestFilter_DisabledSourceNeverVisible(t *testing.T) {
	user := Context{Username: "dave", EnabledKeys: []string{"gamma", "alpha"}}
	got := keysOf(Filter(sampleSources(), user, nil))
	if !reflect.DeepEqual(got, []string{"alpha"}) {
		t.Fatalf("expected disabled source excluded, got %v", got)
	}
}

func TestFilter_Deterministic(t *testing.T) {
	user := Context{Username: "erin", TagNames: []string{"movies", "shows"}}
	tags := []models.Tag{
		{Name: "shows", AllowedKeys: []byte(`["delta","alpha"]`)},
		{Name: "movies", AllowedKeys: []byte(`["beta"]`)},
	}

	first := keysOf(Filter(sampleSources(), user, tags))
	for i := 0; i < 10; i++ {
		again := keysOf(Filter(sampleSources(), user, tags))
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d: expected %v, got %v", i, first, again)
		}
	}
}
