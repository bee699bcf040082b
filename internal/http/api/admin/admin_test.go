package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/open-tvbox/boxhub/internal/auth"
	"github.com/open-tvbox/boxhub/internal/config"
	"github.com/open-tvbox/boxhub/internal/db"
	"github.com/open-tvbox/boxhub/internal/models"
	"github.com/open-tvbox/boxhub/internal/store"
	"gorm.io/gorm"
)

type testEnv struct {
	engine *gin.Engine
	conn   *gorm.DB
	config *store.ConfigStore
	token  string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conn, errOpen := db.Open(":memory:")
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	hashed, errHash := auth.HashPassword("letmein")
	if errHash != nil {
		t.Fatalf("hash password: %v", errHash)
	}
	if errCreate := conn.Create(&models.Admin{Username: "root", Password: hashed}).Error; errCreate != nil {
		t.Fatalf("create admin: %v", errCreate)
	}

	jwtCfg := config.JWTConfig{Secret: "test-secret", Expiry: time.Hour}
	configStore := store.NewConfigStore(conn, store.NewMemoryCache())

	engine := gin.New()
	RegisterAdminRoutes(engine, conn, configStore, jwtCfg)

	token, errSign := auth.IssueAdminToken(jwtCfg.Secret, "root", time.Hour)
	if errSign != nil {
		t.Fatalf("issue token: %v", errSign)
	}
	return &testEnv{engine: engine, conn: conn, config: configStore, token: token}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, errMarshal := json.Marshal(body)
		if errMarshal != nil {
			t.Fatalf("marshal body: %v", errMarshal)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if authed {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}
	rec := httptest.NewRecorder()
	e.engine.ServeHTTP(rec, req)
	return rec
}

func itoa(id uint64) string {
	return strconv.FormatUint(id, 10)
}

func TestLogin_IssuesToken(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/v0/admin/login", gin.H{"username": "root", "password": "letmein"}, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	if errDecode := json.Unmarshal(rec.Body.Bytes(), &resp); errDecode != nil {
		t.Fatalf("decode response: %v", errDecode)
	}
	if resp.Token == "" {
		t.Fatalf("expected a token in the response")
	}

	rec = env.do(t, http.MethodPost, "/v0/admin/login", gin.H{"username": "root", "password": "wrong"}, false)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad password, got %d", rec.Code)
	}
}

func TestAdminRoutes_RequireBearerToken(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/v0/admin/sources", nil, false)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/v0/admin/sources", nil, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAdminRoutes_UserTokenRejected(t *testing.T) {
	env := newTestEnv(t)

	cookie, errSign := auth.IssueUserCookie("test-secret", "alice", time.Hour)
	if errSign != nil {
		t.Fatalf("issue user cookie: %v", errSign)
	}
	req := httptest.NewRequest(http.MethodGet, "/v0/admin/sources", nil)
	req.Header.Set("Authorization", "Bearer "+cookie)
	rec := httptest.NewRecorder()
	env.engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for non-admin token, got %d", rec.Code)
	}
}

func TestSourceCRUD(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/v0/admin/sources", gin.H{
		"key":  "alpha",
		"name": "Alpha",
		"api":  "https://alpha.example.com/api.php/provide/vod",
	}, true)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created models.Source
	if errDecode := json.Unmarshal(rec.Body.Bytes(), &created); errDecode != nil {
		t.Fatalf("decode created source: %v", errDecode)
	}

	rec = env.do(t, http.MethodPost, "/v0/admin/sources", gin.H{
		"key":  "alpha",
		"name": "Duplicate",
		"api":  "https://dup.example.com",
	}, true)
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate key: expected 409, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/v0/admin/sources/"+itoa(created.ID)+"/disable", nil, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("disable: expected 200, got %d", rec.Code)
	}
	var source models.Source
	if errFind := env.conn.First(&source, created.ID).Error; errFind != nil {
		t.Fatalf("find source: %v", errFind)
	}
	if !source.Disabled {
		t.Fatalf("expected source to be disabled")
	}

	rec = env.do(t, http.MethodDelete, "/v0/admin/sources/"+itoa(created.ID), nil, true)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", rec.Code)
	}
	rec = env.do(t, http.MethodDelete, "/v0/admin/sources/"+itoa(created.ID), nil, true)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("delete again: expected 404, got %d", rec.Code)
	}
}

func TestSourceList_NameSearch(t *testing.T) {
	env := newTestEnv(t)

	for _, src := range []models.Source{
		{Key: "alpha", Name: "Alpha Movies", API: "https://alpha.example.com"},
		{Key: "beta", Name: "Beta Series", API: "https://beta.example.com"},
	} {
		if errCreate := env.conn.Create(&src).Error; errCreate != nil {
			t.Fatalf("seed source: %v", errCreate)
		}
	}

	rec := env.do(t, http.MethodGet, "/v0/admin/sources?q=ALPHA", nil, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Sources []models.Source `json:"sources"`
	}
	if errDecode := json.Unmarshal(rec.Body.Bytes(), &resp); errDecode != nil {
		t.Fatalf("decode response: %v", errDecode)
	}
	if len(resp.Sources) != 1 || resp.Sources[0].Key != "alpha" {
		t.Fatalf("expected only the alpha source, got %+v", resp.Sources)
	}
}

func TestSecurityTokenLifecycleAndMasking(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/v0/admin/security/tokens", gin.H{"username": "alice"}, true)
	if rec.Code != http.StatusCreated {
		t.Fatalf("add token: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var minted struct {
		Token string `json:"token"`
	}
	if errDecode := json.Unmarshal(rec.Body.Bytes(), &minted); errDecode != nil {
		t.Fatalf("decode minted token: %v", errDecode)
	}
	if minted.Token == "" {
		t.Fatalf("expected a generated token value")
	}

	rec = env.do(t, http.MethodGet, "/v0/admin/security", nil, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("get policy: expected 200, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), minted.Token) {
		t.Fatalf("policy read leaked the full token value")
	}
	if !strings.Contains(rec.Body.String(), "****") {
		t.Fatalf("expected masked token in policy read: %s", rec.Body.String())
	}

	rec = env.do(t, http.MethodPost, "/v0/admin/security/tokens/"+minted.Token+"/enabled", gin.H{"enabled": false}, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("disable token: expected 200, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodDelete, "/v0/admin/security/tokens/"+minted.Token, nil, true)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete token: expected 204, got %d", rec.Code)
	}
	rec = env.do(t, http.MethodDelete, "/v0/admin/security/tokens/"+minted.Token, nil, true)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("delete token again: expected 404, got %d", rec.Code)
	}
}

func TestSecurityUpdate_Validates(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPut, "/v0/admin/security", gin.H{
		"auth_enabled":          true,
		"max_devices_per_token": 0,
	}, true)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for zero device cap, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodPut, "/v0/admin/security", gin.H{
		"auth_enabled":          true,
		"max_devices_per_token": 2,
		"ip_whitelist_enabled":  true,
		"allowed_ips":           []string{" 10.0.0.1 ", "", "192.168.1.0/24"},
		"rate_limit_enabled":    true,
		"requests_per_window":   30,
		"window_millis":         60000,
		"legacy_token":          "shared-secret",
	}, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	policy, errLoad := env.config.SecurityPolicy(context.Background())
	if errLoad != nil {
		t.Fatalf("load policy: %v", errLoad)
	}
	if !policy.AuthEnabled || policy.MaxDevicesPerToken != 2 || policy.LegacyToken != "shared-secret" {
		t.Fatalf("unexpected policy after update: %+v", policy)
	}
	ips := store.DecodeStrings(policy.AllowedIPs)
	if len(ips) != 2 || ips[0] != "10.0.0.1" || ips[1] != "192.168.1.0/24" {
		t.Fatalf("unexpected allowed ips: %v", ips)
	}
}

func TestSettingsWriteRefreshesSnapshot(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/v0/admin/settings", gin.H{
		"key":   "SITE_NAME",
		"value": "BoxHub",
	}, true)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create setting: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodGet, "/v0/admin/settings/SITE_NAME", nil, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("get setting: expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "BoxHub") {
		t.Fatalf("unexpected setting body: %s", rec.Body.String())
	}

	rec = env.do(t, http.MethodDelete, "/v0/admin/settings/SITE_NAME", nil, true)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete setting: expected 204, got %d", rec.Code)
	}
	rec = env.do(t, http.MethodGet, "/v0/admin/settings/SITE_NAME", nil, true)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get deleted setting: expected 404, got %d", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/healthz", nil, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
