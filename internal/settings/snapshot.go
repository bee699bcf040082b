package settings

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/open-tvbox/boxhub/internal/models"
	"gorm.io/gorm"
)

// snapshot holds the latest settings table contents keyed by setting key.
var snapshot atomic.Value // map[string]json.RawMessage

// RefreshSnapshot reloads all settings rows into the in-memory snapshot.
func RefreshSnapshot(ctx context.Context, conn *gorm.DB) error {
	var rows []models.Setting
	if errFind := conn.WithContext(ctx).Find(&rows).Error; errFind != nil {
		return errFind
	}
	next := make(map[string]json.RawMessage, len(rows))
	for _, row := range rows {
		if len(row.Value) == 0 {
			continue
		}
		next[row.Key] = json.RawMessage(row.Value)
	}
	snapshot.Store(next)
	return nil
}

// Value returns the raw JSON value for a setting key from the snapshot.
func Value(key string) (json.RawMessage, bool) {
	current, _ := snapshot.Load().(map[string]json.RawMessage)
	if current == nil {
		return nil, false
	}
	raw, ok := current[key]
	return raw, ok
}

// BoolValue returns a boolean setting, accepting JSON bools and bool strings.
func BoolValue(key string, fallback bool) bool {
	raw, ok := Value(key)
	if !ok {
		return fallback
	}
	trimmed := bytes.TrimSpace(raw)
	var b bool
	if errUnmarshal := json.Unmarshal(trimmed, &b); errUnmarshal == nil {
		return b
	}
	var s string
	if errUnmarshal := json.Unmarshal(trimmed, &s); errUnmarshal == nil {
		if parsed, errParse := strconv.ParseBool(strings.TrimSpace(s)); errParse == nil {
			return parsed
		}
	}
	return fallback
}

// IntValue returns an integer setting, accepting JSON numbers and digit strings.
func IntValue(key string, fallback int) int {
	raw, ok := Value(key)
	if !ok {
		return fallback
	}
	trimmed := bytes.TrimSpace(raw)
	var n int
	if errUnmarshal := json.Unmarshal(trimmed, &n); errUnmarshal == nil {
		return n
	}
	var s string
	if errUnmarshal := json.Unmarshal(trimmed, &s); errUnmarshal == nil {
		if parsed, errParse := strconv.Atoi(strings.TrimSpace(s)); errParse == nil {
			return parsed
		}
	}
	return fallback
}

// StringsValue returns a string-list setting, accepting JSON arrays and
// comma-separated strings.
func StringsValue(key string) ([]string, bool) {
	raw, ok := Value(key)
	if !ok {
		return nil, false
	}
	trimmed := bytes.TrimSpace(raw)
	var list []string
	if errUnmarshal := json.Unmarshal(trimmed, &list); errUnmarshal == nil {
		return list, true
	}
	var s string
	if errUnmarshal := json.Unmarshal(trimmed, &s); errUnmarshal == nil {
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, part := range parts {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out, true
	}
	return nil, false
}
