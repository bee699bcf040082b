package profile

import "testing"

func intPtr(v int) *int { return &v }

func TestClassify_DetailDirectiveOverridesHeuristics(t *testing.T) {
	got := Classify("https://example.com/api.php/provide/vod/at/xml", Detail{APIType: intPtr(APITypeJSONFeed)})
	if got.APIType != APITypeJSONFeed {
		t.Fatalf("expected directive to win, got type %d", got.APIType)
	}
}

func TestClassify_PluginPrefix(t *testing.T) {
	got := Classify("csp_XPath", Detail{})
	if got.APIType != APITypePluginSource {
		t.Fatalf("expected plugin source, got type %d", got.APIType)
	}
}

func TestClassify_XMLMarkers(t *testing.T) {
	for _, api := range []string{
		"https://example.com/api.php/provide/vod/at/xml",
		"https://example.com/xml.php?ac=videolist",
		"https://example.com/feed.xml",
		"https://example.com/api?out=xml",
	} {
		if got := Classify(api, Detail{}); got.APIType != APITypeXMLFeed {
			t.Fatalf("%s: expected xml feed, got type %d", api, got.APIType)
		}
	}
}

func TestClassify_JSONDefault(t *testing.T) {
	got := Classify("https://example.com/api.php/provide/vod/", Detail{})
	if got.APIType != APITypeJSONFeed {
		t.Fatalf("expected json default, got type %d", got.APIType)
	}
}

func TestClassify_PluginProfileSlowerFewerRetries(t *testing.T) {
	plugin := Classify("csp_AppYsV2", Detail{})
	feed := Classify("https://example.com/api.php/provide/vod/", Detail{})
	if plugin.Timeout <= feed.Timeout {
		t.Fatal("plugin profile should allow a longer timeout than feeds")
	}
	if plugin.Retries >= feed.Retries {
		t.Fatal("plugin profile should retry less than feeds")
	}
}

func TestParseDetail_Tolerant(t *testing.T) {
	if detail := ParseDetail(nil); detail.APIType != nil {
		t.Fatal("empty detail should have no directive")
	}
	if detail := ParseDetail([]byte("{not json")); detail.APIType != nil {
		t.Fatal("malformed detail should have no directive")
	}
	detail := ParseDetail([]byte(`{"type":3,"jar":"https://example.com/custom.jar"}`))
	if detail.APIType == nil || *detail.APIType != APITypePluginSource {
		t.Fatalf("expected type directive 3, got %+v", detail.APIType)
	}
	if detail.SpiderJar != "https://example.com/custom.jar" {
		t.Fatalf("expected jar url, got %q", detail.SpiderJar)
	}
}
