package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/open-tvbox/boxhub/internal/models"
	"github.com/open-tvbox/boxhub/internal/store"
)

// SecurityHandler manages the single-row security policy and its tokens.
type SecurityHandler struct {
	config *store.ConfigStore
}

// NewSecurityHandler constructs a security handler.
func NewSecurityHandler(config *store.ConfigStore) *SecurityHandler {
	return &SecurityHandler{config: config}
}

// Get returns the policy with every token value masked.
func (h *SecurityHandler) Get(c *gin.Context) {
	policy, errLoad := h.config.SecurityPolicy(c.Request.Context())
	if errLoad != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load policy failed"})
		return
	}

	tokens := store.DecodeTokens(policy)
	maskedTokens := make([]gin.H, 0, len(tokens))
	for _, token := range tokens {
		maskedTokens = append(maskedTokens, gin.H{
			"username": token.Username,
			"token":    maskToken(token.Token),
			"enabled":  token.Enabled,
			"devices":  token.Devices,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"auth_enabled":           policy.AuthEnabled,
		"device_binding_enabled": policy.DeviceBindingEnabled,
		"max_devices_per_token":  policy.MaxDevicesPerToken,
		"ip_whitelist_enabled":   policy.IPWhitelistEnabled,
		"allowed_ips":            store.DecodeStrings(policy.AllowedIPs),
		"rate_limit_enabled":     policy.RateLimitEnabled,
		"requests_per_window":    policy.RequestsPerWindow,
		"window_millis":          policy.WindowMillis,
		"legacy_token":           maskToken(policy.LegacyToken),
		"tokens":                 maskedTokens,
	})
}

// securityRequest captures the scalar policy fields. Tokens are managed through
// the dedicated token endpoints and never replaced wholesale.
type securityRequest struct {
	AuthEnabled          bool     `json:"auth_enabled"`
	DeviceBindingEnabled bool     `json:"device_binding_enabled"`
	MaxDevicesPerToken   int      `json:"max_devices_per_token"`
	IPWhitelistEnabled   bool     `json:"ip_whitelist_enabled"`
	AllowedIPs           []string `json:"allowed_ips"`
	RateLimitEnabled     bool     `json:"rate_limit_enabled"`
	RequestsPerWindow    int      `json:"requests_per_window"`
	WindowMillis         int64    `json:"window_millis"`
	LegacyToken          *string  `json:"legacy_token"` // nil keeps the current value.
}

// Update replaces the scalar policy fields.
func (h *SecurityHandler) Update(c *gin.Context) {
	var body securityRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.MaxDevicesPerToken < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "max_devices_per_token must be positive"})
		return
	}
	if body.RateLimitEnabled && (body.RequestsPerWindow < 1 || body.WindowMillis < 1) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "requests_per_window and window_millis must be positive"})
		return
	}

	allowedIPs, errIPs := json.Marshal(normalizeIPs(body.AllowedIPs))
	if errIPs != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid allowed_ips"})
		return
	}

	errMutate := h.config.MutateSecurityPolicy(c.Request.Context(), func(policy *models.SecurityPolicy) (bool, error) {
		policy.AuthEnabled = body.AuthEnabled
		policy.DeviceBindingEnabled = body.DeviceBindingEnabled
		policy.MaxDevicesPerToken = body.MaxDevicesPerToken
		policy.IPWhitelistEnabled = body.IPWhitelistEnabled
		policy.AllowedIPs = allowedIPs
		policy.RateLimitEnabled = body.RateLimitEnabled
		policy.RequestsPerWindow = body.RequestsPerWindow
		policy.WindowMillis = body.WindowMillis
		if body.LegacyToken != nil {
			policy.LegacyToken = strings.TrimSpace(*body.LegacyToken)
		}
		return true, nil
	})
	if errMutate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update policy failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// addTokenRequest captures the payload for minting a user token.
type addTokenRequest struct {
	Username string `json:"username"` // Owning user.
	Token    string `json:"token"`    // Optional explicit value; generated when empty.
}

// AddToken appends a per-user token to the policy. The response carries the
// full token value once; reads mask it afterwards.
func (h *SecurityHandler) AddToken(c *gin.Context) {
	var body addTokenRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	username := strings.TrimSpace(body.Username)
	if username == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username is required"})
		return
	}
	token := strings.TrimSpace(body.Token)
	if token == "" {
		token = uuid.NewString()
	}

	duplicate := false
	errMutate := h.config.MutateSecurityPolicy(c.Request.Context(), func(policy *models.SecurityPolicy) (bool, error) {
		tokens := store.DecodeTokens(policy)
		for _, existing := range tokens {
			if existing.Token == token {
				duplicate = true
				return false, nil
			}
		}
		tokens = append(tokens, models.UserToken{
			Username: username,
			Token:    token,
			Enabled:  true,
			Devices:  []models.DeviceBinding{},
		})
		return true, store.EncodeTokens(policy, tokens)
	})
	if errMutate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "add token failed"})
		return
	}
	if duplicate {
		c.JSON(http.StatusConflict, gin.H{"error": "token already exists"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"username": username, "token": token})
}

// DeleteToken removes a per-user token and all its device bindings.
func (h *SecurityHandler) DeleteToken(c *gin.Context) {
	token := strings.TrimSpace(c.Param("token"))
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid token"})
		return
	}

	found := false
	errMutate := h.config.MutateSecurityPolicy(c.Request.Context(), func(policy *models.SecurityPolicy) (bool, error) {
		tokens := store.DecodeTokens(policy)
		kept := tokens[:0]
		for _, existing := range tokens {
			if existing.Token == token {
				found = true
				continue
			}
			kept = append(kept, existing)
		}
		if !found {
			return false, nil
		}
		return true, store.EncodeTokens(policy, kept)
	})
	if errMutate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete token failed"})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

// setTokenEnabledRequest captures the enabled flag for a token.
type setTokenEnabledRequest struct {
	Enabled bool `json:"enabled"`
}

// SetTokenEnabled flips a token's enabled flag. Disabled tokens stop matching
// immediately but keep their device bindings.
func (h *SecurityHandler) SetTokenEnabled(c *gin.Context) {
	token := strings.TrimSpace(c.Param("token"))
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid token"})
		return
	}
	var body setTokenEnabledRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	found := false
	errMutate := h.config.MutateSecurityPolicy(c.Request.Context(), func(policy *models.SecurityPolicy) (bool, error) {
		tokens := store.DecodeTokens(policy)
		for i := range tokens {
			if tokens[i].Token == token {
				found = true
				tokens[i].Enabled = body.Enabled
			}
		}
		if !found {
			return false, nil
		}
		return true, store.EncodeTokens(policy, tokens)
	})
	if errMutate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update token failed"})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// UnbindDevice removes one device binding from a token, freeing a slot.
func (h *SecurityHandler) UnbindDevice(c *gin.Context) {
	token := strings.TrimSpace(c.Param("token"))
	deviceID := strings.TrimSpace(c.Param("device_id"))
	if token == "" || deviceID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid token or device id"})
		return
	}

	found := false
	errMutate := h.config.MutateSecurityPolicy(c.Request.Context(), func(policy *models.SecurityPolicy) (bool, error) {
		tokens := store.DecodeTokens(policy)
		for i := range tokens {
			if tokens[i].Token != token {
				continue
			}
			kept := tokens[i].Devices[:0]
			for _, device := range tokens[i].Devices {
				if device.DeviceID == deviceID {
					found = true
					continue
				}
				kept = append(kept, device)
			}
			tokens[i].Devices = kept
		}
		if !found {
			return false, nil
		}
		return true, store.EncodeTokens(policy, tokens)
	})
	if errMutate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "unbind device failed"})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

// maskToken hides all but the edges of a token value.
func maskToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 8 {
		return "****"
	}
	return token[:4] + "****" + token[len(token)-4:]
}

// normalizeIPs trims entries and drops empty ones.
func normalizeIPs(entries []string) []string {
	out := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry = strings.TrimSpace(entry); entry != "" {
			out = append(out, entry)
		}
	}
	return out
}
