package rest

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	accessApp "github.com/AzielCF/az-admin/access/application"
	accessDomain "github.com/AzielCF/az-admin/access/domain"
	accountsApp "github.com/AzielCF/az-admin/accounts/application"
	accountsDomain "github.com/AzielCF/az-admin/accounts/domain"
	accountsRepo "github.com/AzielCF/az-admin/accounts/repository"
	analyticsApp "github.com/AzielCF/az-admin/analytics/application"
	auditApp "github.com/AzielCF/az-admin/audit/application"
	auditRepo "github.com/AzielCF/az-admin/audit/repository"
	bulkApp "github.com/AzielCF/az-admin/bulk/application"
	cacheApp "github.com/AzielCF/az-admin/cache/application"
	cacheRepo "github.com/AzielCF/az-admin/cache/repository"
	"github.com/AzielCF/az-admin/core/config"
	"github.com/AzielCF/az-admin/core/database"
	settingsApp "github.com/AzielCF/az-admin/core/settings/application"
	settingsInfra "github.com/AzielCF/az-admin/core/settings/infrastructure"
	monitorApp "github.com/AzielCF/az-admin/monitor/application"
	notifyDomain "github.com/AzielCF/az-admin/notify/domain"
	quotaApp "github.com/AzielCF/az-admin/quota/application"
	quotaRepo "github.com/AzielCF/az-admin/quota/repository"
	"github.com/AzielCF/az-admin/ui/rest/middleware"
	json "github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type discardNotifier struct{}

func (discardNotifier) Notify(context.Context, notifyDomain.Notification) error { return nil }

type harness struct {
	app      *fiber.App
	accounts *accountsRepo.AccountsGormRepository
}

func newHarness(t *testing.T, adminLimit int) harness {
	t.Helper()
	db, err := database.NewInMemory()
	require.NoError(t, err)

	accounts := accountsRepo.NewAccountsGormRepository(db)
	audits := auditRepo.NewAuditGormRepository(db)
	settingsRepo := settingsInfra.NewSettingsGormRepository(db)
	require.NoError(t, database.Migrate(context.Background(), accounts, audits, settingsRepo))

	cfg := config.Config{
		Quota:  config.QuotaConfig{Window: 15 * time.Minute, DefaultLimit: 100, AdminLimit: adminLimit},
		Health: config.HealthConfig{PendingBacklogThreshold: 50, LargeBalanceThreshold: 1_000_000, SuspendedThreshold: 10, BannedThreshold: 5},
	}

	enforcer := accessApp.MustNewEnforcer()
	trail := auditApp.NewTrail(audits)
	store := cacheApp.NewStore(cacheRepo.NewMemoryBackend(), cacheApp.Options{})
	limiter := quotaApp.NewLimiter(quotaRepo.NewMemoryCounter(), quotaApp.RulesFrom(cfg.Quota), "")
	settings := settingsApp.NewSettingsService(db, settingsRepo, trail, store, enforcer, cfg)
	settings.OnChange(func(ds *settingsApp.DynamicSettings) {
		limiter.SetRules(quotaApp.RulesFrom(ds.ApplyQuota(cfg.Quota)))
	})

	app := fiber.New(fiber.Config{JSONEncoder: json.Marshal, JSONDecoder: json.Unmarshal})
	app.Use(middleware.Recovery())
	InitRestAdmin(app, Admin{
		Access:     enforcer,
		Trail:      trail,
		Cache:      store,
		Limiter:    limiter,
		Moderation: accountsApp.NewModerationService(db, accounts, trail, store, discardNotifier{}, enforcer),
		Bulk:       bulkApp.NewEngine(db, accounts, trail, store, enforcer),
		Monitor:    monitorApp.NewGenerator(accounts, store, settings),
		Analytics:  analyticsApp.NewAggregator(analyticsApp.CountersFrom(accounts, trail), store, trail, enforcer, time.Minute, "7d"),
		Settings:   settings,
	})
	return harness{app: app, accounts: accounts}
}

type envelope struct {
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Results json.RawMessage `json:"results"`
}

func (h harness) call(t *testing.T, method, path string, role accessDomain.Role, body string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if role != "" {
		req.Header.Set(middleware.HeaderActorID, string(role)+"-1")
		req.Header.Set(middleware.HeaderActorRole, string(role))
	}

	resp, err := h.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, raw
}

func TestAdmin_RequiresActor(t *testing.T) {
	h := newHarness(t, 100)
	resp, _ := h.call(t, http.MethodGet, "/admin/logs", "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAdmin_ForbiddenCapability(t *testing.T) {
	h := newHarness(t, 100)
	resp, raw := h.call(t, http.MethodGet, "/admin/users", accessDomain.RoleUser, "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	var env envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	assert.Equal(t, "FORBIDDEN", env.Code)
}

func TestAdmin_AnalyticsAreMemoized(t *testing.T) {
	h := newHarness(t, 100)

	resp, raw := h.call(t, http.MethodGet, "/admin/analytics?period=7d&metrics=new_users", accessDomain.RoleModerator, "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	assert.Equal(t, "MISS", resp.Header.Get("X-Cache"))
	assert.Equal(t, "100", resp.Header.Get("X-RateLimit-Limit"))
	assert.Equal(t, "99", resp.Header.Get("X-RateLimit-Remaining"))

	var env envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	var report map[string]map[string]any
	require.NoError(t, json.Unmarshal(env.Results, &report))
	assert.Equal(t, "neutral", report["new_users"]["trend"])

	resp, _ = h.call(t, http.MethodGet, "/admin/analytics?metrics=new_users&period=7d", accessDomain.RoleModerator, "")
	assert.Equal(t, "HIT", resp.Header.Get("X-Cache"))
}

func TestAdmin_QuotaRejectsWith429(t *testing.T) {
	h := newHarness(t, 2)

	for i := 0; i < 2; i++ {
		resp, _ := h.call(t, http.MethodGet, "/admin/logs", accessDomain.RoleModerator, "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	resp, _ := h.call(t, http.MethodGet, "/admin/logs", accessDomain.RoleModerator, "")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "0", resp.Header.Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, resp.Header.Get(fiber.HeaderRetryAfter))

	// Reading the quota does not spend it and admins are exempt.
	resp, _ = h.call(t, http.MethodGet, "/admin/quota", accessDomain.RoleModerator, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = h.call(t, http.MethodGet, "/admin/logs", accessDomain.RoleAdmin, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAdmin_BulkResponseShape(t *testing.T) {
	h := newHarness(t, 100)
	require.NoError(t, h.accounts.CreateUser(context.Background(), accountsDomain.User{ID: "kid-1", Username: "kid", Email: "k@x", Kidzcoin: 40}))

	resp, raw := h.call(t, http.MethodPost, "/admin/bulk", accessDomain.RoleAdmin,
		`{"action":"reset_balances","target":"users","confirmed":true}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))

	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "reset_balances", body["action"])
	assert.Equal(t, "users", body["target"])
	assert.Equal(t, "admin-1", body["performed_by"])
	assert.NotEmpty(t, body["timestamp"])
	result := body["result"].(map[string]any)
	assert.EqualValues(t, 1, result["records_affected"])

	u, err := h.accounts.GetUser(context.Background(), "kid-1")
	require.NoError(t, err)
	assert.Zero(t, u.Kidzcoin)
}

func TestAdmin_BulkFailureShape(t *testing.T) {
	h := newHarness(t, 100)

	resp, raw := h.call(t, http.MethodPost, "/admin/bulk", accessDomain.RoleAdmin,
		`{"action":"reset_balances","target":"users"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "VALIDATION_ERROR", body["error"])
	assert.Contains(t, body["message"], "confirmed")

	resp, raw = h.call(t, http.MethodPost, "/admin/bulk", accessDomain.RoleModerator,
		`{"action":"maintenance","target":"all","confirmed":true}`)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, "FORBIDDEN", body["error"])
}

func TestAdmin_ModerationInvalidatesUserListing(t *testing.T) {
	h := newHarness(t, 100)
	require.NoError(t, h.accounts.CreateUser(context.Background(), accountsDomain.User{ID: "kid-1", Username: "kid", Email: "k@x"}))

	resp, _ := h.call(t, http.MethodGet, "/admin/users", accessDomain.RoleModerator, "")
	assert.Equal(t, "MISS", resp.Header.Get("X-Cache"))
	resp, _ = h.call(t, http.MethodGet, "/admin/users", accessDomain.RoleModerator, "")
	assert.Equal(t, "HIT", resp.Header.Get("X-Cache"))

	resp, raw := h.call(t, http.MethodPost, "/admin/users/kid-1/suspend", accessDomain.RoleModerator, `{"reason":"spam"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))

	resp, raw = h.call(t, http.MethodGet, "/admin/users", accessDomain.RoleModerator, "")
	assert.Equal(t, "MISS", resp.Header.Get("X-Cache"))
	var env envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	var page accountsDomain.UserPage
	require.NoError(t, json.Unmarshal(env.Results, &page))
	require.Len(t, page.Items, 1)
	assert.Equal(t, accountsDomain.StatusSuspended, page.Items[0].Status)

	resp, _ = h.call(t, http.MethodPost, "/admin/users/kid-1/suspend", accessDomain.RoleModerator, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAdmin_AlertsAndCacheFlush(t *testing.T) {
	h := newHarness(t, 100)

	resp, raw := h.call(t, http.MethodGet, "/admin/health/alerts", accessDomain.RoleModerator, "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	var env envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	var alerts []map[string]any
	require.NoError(t, json.Unmarshal(env.Results, &alerts))

	// Alerts are recomputed per request and never served from the cache.
	assert.Empty(t, resp.Header.Get("X-Cache"))
	resp, _ = h.call(t, http.MethodGet, "/admin/health/alerts", accessDomain.RoleModerator, "")
	assert.Empty(t, resp.Header.Get("X-Cache"))

	resp, _ = h.call(t, http.MethodGet, "/admin/users", accessDomain.RoleModerator, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = h.call(t, http.MethodGet, "/admin/users", accessDomain.RoleModerator, "")
	assert.Equal(t, "HIT", resp.Header.Get("X-Cache"))

	resp, _ = h.call(t, http.MethodPost, "/admin/cache/flush", accessDomain.RoleModerator, `{"namespace":"admin:users"}`)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = h.call(t, http.MethodPost, "/admin/cache/flush", accessDomain.RoleAdmin, `{"namespace":"nope"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, raw = h.call(t, http.MethodPost, "/admin/cache/flush", accessDomain.RoleAdmin, `{"namespace":"admin:users"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))

	resp, _ = h.call(t, http.MethodGet, "/admin/users", accessDomain.RoleModerator, "")
	assert.Equal(t, "MISS", resp.Header.Get("X-Cache"))

	resp, raw = h.call(t, http.MethodGet, "/admin/logs?action=cache_flush", accessDomain.RoleAdmin, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), "admin:users")
}

func TestAdmin_SettingsUpdateQuota(t *testing.T) {
	h := newHarness(t, 100)

	resp, raw := h.call(t, http.MethodPut, "/admin/settings", accessDomain.RoleAdmin, `{"quota_admin_limit":"5"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))

	resp, _ = h.call(t, http.MethodGet, "/admin/logs", accessDomain.RoleModerator, "")
	assert.Equal(t, "5", resp.Header.Get("X-RateLimit-Limit"))

	resp, _ = h.call(t, http.MethodPut, "/admin/settings", accessDomain.RoleModerator, `{"quota_admin_limit":"500"}`)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = h.call(t, http.MethodPut, "/admin/settings", accessDomain.RoleAdmin, `{"quota_admin_limit":"lots"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
