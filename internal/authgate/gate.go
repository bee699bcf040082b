// Package authgate composes token validation, device binding, IP policy and
// rate limiting into a single admission decision for the gateway endpoint.
package authgate

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/open-tvbox/boxhub/internal/models"
	"github.com/open-tvbox/boxhub/internal/ratelimit"
	"github.com/open-tvbox/boxhub/internal/store"
	log "github.com/sirupsen/logrus"
)

// Denial reports a rejected admission with its HTTP status, a machine code
// and a human-readable hint.
type Denial struct {
	Status int    `json:"-"`
	Code   string `json:"error"`
	Hint   string `json:"hint"`
}

// Denial codes returned by Admit.
const (
	CodeInvalidToken  = "invalid token"
	CodeBindingFailed = "binding failed"
	CodeDeviceDenied  = "device not authorized"
	CodeIPDenied      = "ip denied"
	CodeRateLimited   = "rate limit exceeded"
)

// Request carries the admission-relevant parts of an inbound request.
type Request struct {
	Token  string
	Header http.Header
}

// Gate evaluates the layered admission checks against the current policy.
type Gate struct {
	config  *store.ConfigStore
	limiter *ratelimit.Window
	nowFn   func() time.Time
}

// NewGate constructs a Gate with default dependencies when nil.
func NewGate(config *store.ConfigStore, limiter *ratelimit.Window, nowFn func() time.Time) *Gate {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Gate{config: config, limiter: limiter, nowFn: nowFn}
}

// Admit runs the admission checks in order and short-circuits on the first
// failure. A nil return means the request is allowed.
func (g *Gate) Admit(ctx context.Context, req Request) *Denial {
	policy, errPolicy := g.config.SecurityPolicy(ctx)
	if errPolicy != nil {
		// No policy row is a deployment fault, not a user error.
		log.WithError(errPolicy).Error("authgate: security policy unavailable")
		return &Denial{Status: http.StatusInternalServerError, Code: "policy unavailable", Hint: "try again later"}
	}

	matched, viaUserToken, denial := g.checkToken(policy, req)
	if denial != nil {
		return denial
	}

	if policy.DeviceBindingEnabled && viaUserToken {
		if denial = g.checkDevice(ctx, policy, matched, req); denial != nil {
			return denial
		}
	}

	if policy.IPWhitelistEnabled {
		clientIP := ClientIP(req.Header)
		if !ipAllowed(clientIP, store.DecodeStrings(policy.AllowedIPs)) {
			return &Denial{Status: http.StatusForbidden, Code: CodeIPDenied, Hint: "client address is not on the allow list"}
		}
	}

	if policy.RateLimitEnabled {
		window := time.Duration(policy.WindowMillis) * time.Millisecond
		result := g.limiter.Allow(ctx, ClientIP(req.Header), policy.RequestsPerWindow, window)
		if !result.Allowed {
			return &Denial{Status: http.StatusTooManyRequests, Code: CodeRateLimited, Hint: "slow down and retry after the window resets"}
		}
	}

	return nil
}

// checkToken validates the supplied token against per-user tokens and the
// legacy shared token. viaUserToken reports a per-user match, which is the
// only match kind that participates in device binding.
func (g *Gate) checkToken(policy *models.SecurityPolicy, req Request) (*models.UserToken, bool, *Denial) {
	if !policy.AuthEnabled && !policy.DeviceBindingEnabled {
		return nil, false, nil
	}

	supplied := strings.TrimSpace(req.Token)
	if supplied != "" {
		for _, token := range store.DecodeTokens(policy) {
			if token.Enabled && token.Token == supplied {
				matched := token
				return &matched, true, nil
			}
		}
		if legacy := strings.TrimSpace(policy.LegacyToken); legacy != "" && legacy == supplied {
			return nil, false, nil
		}
	}
	return nil, false, &Denial{Status: http.StatusUnauthorized, Code: CodeInvalidToken, Hint: "supply a valid token query parameter"}
}

// checkDevice enforces the per-token device capacity, auto-binding unknown
// devices while a slot is free. Binding persistence is fail-closed: a request
// whose bind cannot be stored is rejected rather than silently admitted.
func (g *Gate) checkDevice(ctx context.Context, policy *models.SecurityPolicy, matched *models.UserToken, req Request) *Denial {
	fingerprint := Fingerprint(req.Header)
	for _, device := range matched.Devices {
		if device.DeviceID == fingerprint {
			return nil
		}
	}

	if len(matched.Devices) >= policy.MaxDevicesPerToken {
		return &Denial{Status: http.StatusForbidden, Code: CodeDeviceDenied, Hint: "device limit reached for this token"}
	}

	binding := models.DeviceBinding{
		ID:         uuid.NewString(),
		DeviceID:   fingerprint,
		DeviceInfo: DeviceInfo(req.Header),
		BoundAt:    g.nowFn().UTC(),
	}

	errBind := g.config.MutateSecurityPolicy(ctx, func(fresh *models.SecurityPolicy) (bool, error) {
		tokens := store.DecodeTokens(fresh)
		for i := range tokens {
			if tokens[i].Token != matched.Token {
				continue
			}
			for _, device := range tokens[i].Devices {
				if device.DeviceID == fingerprint {
					return false, nil
				}
			}
			if len(tokens[i].Devices) >= fresh.MaxDevicesPerToken {
				return false, errCapacityReached
			}
			tokens[i].Devices = append(tokens[i].Devices, binding)
			return true, store.EncodeTokens(fresh, tokens)
		}
		// Token removed since the admission read; treat as a stale match.
		return false, errCapacityReached
	})
	if errBind != nil {
		if errors.Is(errBind, errCapacityReached) {
			return &Denial{Status: http.StatusForbidden, Code: CodeDeviceDenied, Hint: "device limit reached for this token"}
		}
		log.WithError(errBind).WithField("token_user", matched.Username).Error("authgate: device bind persistence failed")
		return &Denial{Status: http.StatusInternalServerError, Code: CodeBindingFailed, Hint: "try again later"}
	}

	log.WithField("token_user", matched.Username).WithField("device", binding.DeviceID).Info("authgate: bound new device")
	return nil
}

// errCapacityReached marks a bind rejected by the capacity re-check.
var errCapacityReached = errors.New("device capacity reached")
