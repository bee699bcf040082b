package authgate

import (
	"net/http"
	"testing"
)

func TestClientIP_HeaderPreference(t *testing.T) {
	cases := []struct {
		name   string
		header map[string]string
		want   string
	}{
		{"forwarded first hop", map[string]string{"X-Forwarded-For": "1.1.1.1, 2.2.2.2", "X-Real-IP": "3.3.3.3"}, "1.1.1.1"},
		{"real ip fallback", map[string]string{"X-Real-IP": "3.3.3.3"}, "3.3.3.3"},
		{"connecting ip fallback", map[string]string{"CF-Connecting-IP": "4.4.4.4"}, "4.4.4.4"},
		{"no headers", nil, UnknownClientIP},
	}
	for _, tc := range cases {
		header := http.Header{}
		for k, v := range tc.header {
			header.Set(k, v)
		}
		if got := ClientIP(header); got != tc.want {
			t.Fatalf("%s: expected %q, got %q", tc.name, tc.want, got)
		}
	}
}

func TestIPAllowed(t *testing.T) {
	cases := []struct {
		ip    string
		rules []string
		want  bool
	}{
		{"192.168.1.55", []string{"192.168.1.0/24"}, true},
		{"192.168.2.1", []string{"192.168.1.0/24"}, false},
		{"10.1.2.3", []string{"10.1.0.0/16"}, true},
		{"10.2.2.3", []string{"10.1.0.0/16"}, false},
		{"8.8.8.8", []string{"*"}, true},
		{"8.8.8.8", []string{"8.8.8.8"}, true},
		{"8.8.8.9", []string{"8.8.8.8"}, false},
		{"8.8.8.8", nil, false},
		{"8.8.8.8", []string{"not-a-rule/xx"}, false},
	}
	for _, tc := range cases {
		if got := ipAllowed(tc.ip, tc.rules); got != tc.want {
			t.Fatalf("ipAllowed(%q, %v): expected %v, got %v", tc.ip, tc.rules, tc.want, got)
		}
	}
}

func TestFingerprint_Deterministic(t *testing.T) {
	a := deviceHeader("Mozilla/5.0 (TV)")
	b := deviceHeader("Mozilla/5.0 (TV)")
	if Fingerprint(a) != Fingerprint(b) {
		t.Fatal("identical headers must fingerprint identically")
	}
	if Fingerprint(a) == Fingerprint(deviceHeader("Mozilla/5.0 (Phone)")) {
		t.Fatal("distinct user agents must fingerprint differently")
	}
}
