package authgate

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
)

// Fingerprint derives a stable device identifier from request headers. Only
// server-observable signals are used, so the same device produces the same
// fingerprint with no client cooperation.
func Fingerprint(header http.Header) string {
	parts := []string{
		header.Get("User-Agent"),
		header.Get("Sec-CH-UA-Platform"),
		header.Get("Accept"),
		header.Get("Accept-Language"),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:16])
}

// DeviceInfo returns a short human-readable label for a binding.
func DeviceInfo(header http.Header) string {
	ua := strings.TrimSpace(header.Get("User-Agent"))
	if ua == "" {
		return "unknown device"
	}
	if len(ua) > 80 {
		return ua[:80]
	}
	return ua
}
