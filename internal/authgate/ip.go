package authgate

import (
	"net/http"
	"strings"
)

// UnknownClientIP is reported when no proxy header carries a client address.
const UnknownClientIP = "unknown"

// ClientIP resolves the client address from proxy headers: the first hop of
// X-Forwarded-For wins, then the real-ip/connecting-ip headers.
func ClientIP(header http.Header) string {
	if forwarded := strings.TrimSpace(header.Get("X-Forwarded-For")); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if realIP := strings.TrimSpace(header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	if connecting := strings.TrimSpace(header.Get("CF-Connecting-IP")); connecting != "" {
		return connecting
	}
	return UnknownClientIP
}

// ipAllowed reports whether the client IP matches any allow-list entry.
// Entries are exact addresses, the wildcard "*", or CIDR ranges compared by
// dotted-octet prefix: masks of /24 and longer compare the first three
// octets, shorter masks compare the first two.
func ipAllowed(clientIP string, rules []string) bool {
	for _, rule := range rules {
		rule = strings.TrimSpace(rule)
		if rule == "" {
			continue
		}
		if rule == "*" || rule == clientIP {
			return true
		}
		if prefix, mask, ok := splitCIDR(rule); ok && octetPrefixMatch(clientIP, prefix, mask) {
			return true
		}
	}
	return false
}

// splitCIDR splits "a.b.c.d/m" into its network address and mask length.
func splitCIDR(rule string) (string, int, bool) {
	prefix, maskRaw, found := strings.Cut(rule, "/")
	if !found {
		return "", 0, false
	}
	mask := 0
	for _, r := range maskRaw {
		if r < '0' || r > '9' {
			return "", 0, false
		}
		mask = mask*10 + int(r-'0')
	}
	if mask < 0 || mask > 32 {
		return "", 0, false
	}
	return prefix, mask, true
}

func octetPrefixMatch(clientIP, network string, mask int) bool {
	octets := 2
	if mask >= 24 {
		octets = 3
	}
	clientParts := strings.Split(clientIP, ".")
	networkParts := strings.Split(network, ".")
	if len(clientParts) < octets || len(networkParts) < octets {
		return false
	}
	for i := 0; i < octets; i++ {
		if clientParts[i] != networkParts[i] {
			return false
		}
	}
	return true
}
