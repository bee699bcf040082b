package projector

import (
	"reflect"
	"testing"

	"github.com/open-tvbox/boxhub/internal/spider"
)

func sampleDocument() Document {
	return Document{
		Spider: "https://cdn.example.com/spider.jar;md5;abc",
		Sites: []Site{
			{Key: "alpha", Name: "Alpha", Type: 1, API: "https://a.example.com/api.php/provide/vod/", Categories: []string{"Movies"}, UserAgent: "okhttp/3.15", TimeoutSec: 15, Retries: 2},
			{Key: "beta", Name: "Beta", Type: 0, API: "https://b.example.com/at/xml", TimeoutSec: 3, Retries: 1},
		},
		Lives:   []Live{{Name: "Main", URL: "https://live.example.com/channels.txt"}},
		Ads:     []string{"ads.example.com"},
		DOH:     []DOHPreset{{Name: "Cloudflare", URL: "https://1.1.1.1/dns-query"}},
		Players: map[string][]string{"ijk": {"opensles", "0"}},
		Diagnostics: Diagnostics{
			SpiderOrigin:    spider.OriginRemote,
			SpiderSucceeded: true,
		},
	}
}

func TestParseMode(t *testing.T) {
	cases := map[string]Mode{
		"":             ModeFull,
		"safe":         ModeSafe,
		"fast":         ModeFast,
		"vendorCompat": ModeVendorCompat,
		"bogus":        ModeFull,
	}
	for raw, want := range cases {
		if got := ParseMode(raw); got != want {
			t.Fatalf("ParseMode(%q): expected %q, got %q", raw, want, got)
		}
	}
}

func TestProject_FullIsIdentity(t *testing.T) {
	doc := sampleDocument()
	got := Project(doc, ModeFull, []string{"https://parse.example.com"})
	if !reflect.DeepEqual(got, doc) {
		t.Fatalf("full projection must be the identity transform:\n got %+v\nwant %+v", got, doc)
	}
}

func TestProject_SafeDropsMetadata(t *testing.T) {
	got := Project(sampleDocument(), ModeSafe, nil)
	if got.Ads != nil || got.DOH != nil || got.Players != nil {
		t.Fatal("safe projection must drop deployment metadata")
	}
	if got.Sites[0].UserAgent != "" {
		t.Fatal("safe projection must drop per-site user agents")
	}
	if got.Sites[0].TimeoutSec != 15 {
		t.Fatalf("safe projection must keep timeouts, got %d", got.Sites[0].TimeoutSec)
	}
	if len(got.Lives) != 1 || got.Spider == "" {
		t.Fatal("safe projection must keep sites, lives and spider")
	}
}

func TestProject_FastRetunesHints(t *testing.T) {
	got := Project(sampleDocument(), ModeFast, nil)
	if got.Sites[0].TimeoutSec != fastTimeoutSec {
		t.Fatalf("expected clamped timeout, got %d", got.Sites[0].TimeoutSec)
	}
	if got.Sites[1].TimeoutSec != 3 {
		t.Fatalf("expected short timeout preserved, got %d", got.Sites[1].TimeoutSec)
	}
	if got.Sites[0].Retries != 0 || got.Sites[1].Retries != 0 {
		t.Fatal("fast projection must disable retries")
	}
}

func TestProject_VendorCompatSubstitutesParses(t *testing.T) {
	parses := []string{"https://parse-a.example.com/?url=", "https://parse-b.example.com/?url="}
	got := Project(sampleDocument(), ModeVendorCompat, parses)
	if !reflect.DeepEqual(got.Parses, parses) {
		t.Fatalf("expected vendor parse endpoints, got %v", got.Parses)
	}
	if len(got.Rules) == 0 {
		t.Fatal("expected compat rule table")
	}
	if !reflect.DeepEqual(got.Sites, sampleDocument().Sites) {
		t.Fatal("vendorCompat must not alter the sites array")
	}
}

func TestProject_DoesNotMutateInput(t *testing.T) {
	doc := sampleDocument()
	Project(doc, ModeFast, nil)
	if doc.Sites[0].Retries != 2 || doc.Sites[0].UserAgent == "" {
		t.Fatal("projection mutated the input document")
	}
}
