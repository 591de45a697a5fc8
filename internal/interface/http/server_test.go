package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsepet/progression/config"
	"github.com/pulsepet/progression/internal/application/progression"
	"github.com/pulsepet/progression/internal/application/saga"
	"github.com/pulsepet/progression/internal/domain/achievement"
	"github.com/pulsepet/progression/internal/domain/cosmetic"
	"github.com/pulsepet/progression/internal/domain/shared"
	"github.com/pulsepet/progression/internal/infrastructure/messaging"
	"github.com/pulsepet/progression/internal/infrastructure/persistence/blob"
	"github.com/pulsepet/progression/internal/infrastructure/persistence/kv"
	"github.com/pulsepet/progression/internal/infrastructure/persistence/progress"
	apihttp "github.com/pulsepet/progression/internal/interface/http"
	"github.com/pulsepet/progression/internal/interface/http/handlers"
	"github.com/pulsepet/progression/pkg/logger"
)

var now = time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)

type testAPI struct {
	server *apihttp.Server
	engine *progression.Engine
}

func newTestAPI(t *testing.T, cfg apihttp.Config, opts ...progression.Option) *testAPI {
	t.Helper()
	gw := blob.NewGateway(kv.NewMemoryStore())
	achievements := achievement.DefaultCatalog()
	cosmetics := cosmetic.DefaultCatalog()
	clock := shared.FixedClock(now)

	engine := progression.NewEngine(
		progression.Repositories{
			Achievements: progress.NewAchievementRepository(gw, achievements),
			Streaks:      progress.NewStreakRepository(gw, nil),
			Challenges:   progress.NewChallengeRepository(gw),
			Cosmetics:    progress.NewCosmeticRepository(gw, cosmetics),
			History:      progress.NewHealthHistoryRepository(gw),
			Directory:    progress.NewDirectory(gw),
		},
		progression.Catalogs{Achievements: achievements, Cosmetics: cosmetics},
		append([]progression.Option{progression.WithClock(clock)}, opts...)...,
	)

	health := handlers.NewHealthChecker("test")
	server := apihttp.NewServer(cfg, apihttp.Dependencies{
		Engine:  engine,
		Updater: saga.NewHealthUpdateSaga(engine, clock, nil),
		Health:  health,
		Logger:  logger.Nop(),
	})
	return &testAPI{server: server, engine: engine}
}

func (a *testAPI) do(t *testing.T, method, path, body string, headers ...string) (int, map[string]any, http.Header) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := a.server.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out, resp.Header
}

func TestHealthEndpoint(t *testing.T) {
	api := newTestAPI(t, apihttp.DefaultConfig())

	code, body, headers := api.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["healthy"])
	assert.NotEmpty(t, headers.Get(handlers.HeaderRequestID))

	_, _, headers = api.do(t, http.MethodGet, "/health", "", handlers.HeaderRequestID, "req-42")
	assert.Equal(t, "req-42", headers.Get(handlers.HeaderRequestID))
}

func TestHealthEndpoint_FailingCheck(t *testing.T) {
	checker := handlers.NewHealthChecker("test")
	checker.AddCheck("store", func(context.Context) error { return errors.New("down") })
	status := checker.Check(context.Background())
	assert.False(t, status.Healthy)
	assert.Contains(t, status.Message, "store")
}

func TestRecordHealthAndReadBack(t *testing.T) {
	api := newTestAPI(t, apihttp.DefaultConfig())

	code, body, _ := api.do(t, http.MethodPost, "/api/v1/users/u1/health",
		`{"today":{"date":"2026-03-04","steps":12000},"qualifying":true,"evolution_count":1}`)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, true, body["challenges_rotated"])

	code, body, _ = api.do(t, http.MethodGet, "/api/v1/users/u1/achievements?status=earned", "")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["achievements"], 3)

	code, body, _ = api.do(t, http.MethodGet, "/api/v1/users/u1/achievements/stats?recent=2", "")
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 3, body["total_earned"])
	assert.Len(t, body["recent"], 2)

	code, body, _ = api.do(t, http.MethodGet, "/api/v1/users/u1/streak", "")
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, body["current"])
	next, ok := body["next_milestone"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 7, next["days"])

	code, body, _ = api.do(t, http.MethodGet, "/api/v1/users/u1/challenges", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "2026-03-02", body["week_start"])
	assert.Len(t, body["challenges"], 3)

	code, body, _ = api.do(t, http.MethodPost, "/api/v1/users/u1/challenges/generate", "")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["challenges"], 3)
}

func TestCosmeticRoutes(t *testing.T) {
	api := newTestAPI(t, apihttp.DefaultConfig())
	ctx := context.Background()

	code, body, _ := api.do(t, http.MethodPost, "/api/v1/users/u1/cosmetics/hat_crown/equip", "")
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "not_owned", body["error"])

	code, _, _ = api.do(t, http.MethodPost, "/api/v1/users/u1/cosmetics/nope/equip", "")
	assert.Equal(t, http.StatusNotFound, code)

	_, err := api.engine.Cosmetics.GrantRewards(ctx, "u1", []string{"hat_crown", "background_meadow"})
	require.NoError(t, err)

	code, body, _ = api.do(t, http.MethodPost, "/api/v1/users/u1/cosmetics/hat_crown/equip", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "hat_crown", body["equipped"])

	code, body, _ = api.do(t, http.MethodGet, "/api/v1/users/u1/cosmetics/preview/background_meadow", "")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["layers"], 2)

	code, body, _ = api.do(t, http.MethodGet, "/api/v1/users/u1/cosmetics/layers", "")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["layers"], 1)

	code, body, _ = api.do(t, http.MethodGet, "/api/v1/users/u1/cosmetics", "")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["items"], 2)

	code, body, _ = api.do(t, http.MethodDelete, "/api/v1/users/u1/cosmetics/hat_crown/equip", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["unequipped"])

	code, body, _ = api.do(t, http.MethodDelete, "/api/v1/users/u1/cosmetics/hat_crown/equip", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["unequipped"])
}

func TestValidationErrors(t *testing.T) {
	api := newTestAPI(t, apihttp.DefaultConfig())

	cases := []struct {
		method, path, body string
	}{
		{http.MethodPost, "/api/v1/users/u1/health", `{"today":{"date":"yesterday"}}`},
		{http.MethodPost, "/api/v1/users/u1/health", `not json`},
		{http.MethodGet, "/api/v1/users/u1/achievements?category=cooking", ""},
		{http.MethodGet, "/api/v1/users/u1/achievements?status=maybe", ""},
		{http.MethodGet, "/api/v1/users/u1/achievements/stats?recent=-1", ""},
		{http.MethodGet, "/api/v1/catalog/cosmetics?category=shoes", ""},
	}
	for _, tc := range cases {
		code, body, _ := api.do(t, tc.method, tc.path, tc.body)
		assert.Equal(t, http.StatusBadRequest, code, "%s %s", tc.method, tc.path)
		assert.Equal(t, "invalid_input", body["error"], "%s %s", tc.method, tc.path)
		assert.NotEmpty(t, body["request_id"])
	}
}

func TestCatalogRoutes(t *testing.T) {
	api := newTestAPI(t, apihttp.DefaultConfig())

	code, body, _ := api.do(t, http.MethodGet, "/api/v1/catalog/achievements", "")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["achievements"], achievement.DefaultCatalog().Len())

	code, body, _ = api.do(t, http.MethodGet, "/api/v1/catalog/cosmetics?category=hat", "")
	require.Equal(t, http.StatusOK, code)
	for _, item := range body["cosmetics"].([]any) {
		assert.Equal(t, "hat", item.(map[string]any)["category"])
	}
}

func TestResetUser_RequiresAPIKey(t *testing.T) {
	cfg := apihttp.DefaultConfig()
	cfg.APIKeys = []string{"secret"}
	api := newTestAPI(t, cfg)

	code, _, _ := api.do(t, http.MethodPost, "/api/v1/users/u1/health", `{"today":{"date":"2026-03-04","steps":6000}}`)
	require.Equal(t, http.StatusOK, code)

	code, body, _ := api.do(t, http.MethodDelete, "/api/v1/users/u1", "")
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "missing_api_key", body["error"])

	code, _, _ = api.do(t, http.MethodDelete, "/api/v1/users/u1", "", "X-API-Key", "wrong")
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _, _ = api.do(t, http.MethodDelete, "/api/v1/users/u1", "", "Authorization", "Bearer secret")
	assert.Equal(t, http.StatusNoContent, code)

	users, err := api.engine.Directory.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestResetUser_Disabled(t *testing.T) {
	cfg := apihttp.DefaultConfig()
	cfg.DisableReset = true
	api := newTestAPI(t, cfg)

	code, _, _ := api.do(t, http.MethodDelete, "/api/v1/users/u1", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestRecordHealth_AsyncEventsKeepUserID(t *testing.T) {
	bus := messaging.NewBus(messaging.Options{Async: true, Workers: 4, Logger: logger.Nop()})
	var (
		mu     sync.Mutex
		byUser = map[string]int{}
	)
	require.NoError(t, bus.SubscribeAll(func(e shared.Event) error {
		mu.Lock()
		defer mu.Unlock()
		byUser[e.AggregateID()]++
		return nil
	}))
	api := newTestAPI(t, apihttp.DefaultConfig(), progression.WithPublisher(bus))

	users := make([]string, 16)
	for i := range users {
		users[i] = fmt.Sprintf("user-%02d-%s", i, strings.Repeat("x", i))
	}

	var wg sync.WaitGroup
	for _, id := range users {
		for _, path := range []string{"/health", "/achievements", "/streak"} {
			wg.Add(1)
			go func(id, path string) {
				defer wg.Done()
				method, body := http.MethodGet, ""
				if path == "/health" {
					method = http.MethodPost
					body = `{"today":{"date":"2026-03-04","steps":12000},"qualifying":true,"evolution_count":1}`
				}
				req := httptest.NewRequest(method, "/api/v1/users/"+id+path, strings.NewReader(body))
				req.Header.Set("Content-Type", "application/json")
				resp, err := api.server.App().Test(req, -1)
				if assert.NoError(t, err) {
					assert.Equal(t, http.StatusOK, resp.StatusCode, "%s %s", method, id)
					resp.Body.Close()
				}
			}(id, path)
		}
	}
	wg.Wait()
	require.NoError(t, bus.Close())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, byUser, len(users), "events attributed to unknown users: %v", byUser)
	want := byUser[users[0]]
	assert.Positive(t, want)
	for _, id := range users {
		assert.Equal(t, want, byUser[id], id)
	}
}

func newFlagAPI(t *testing.T, ff *config.FeatureFlags) *testAPI {
	t.Helper()
	cfg := apihttp.DefaultConfig()
	cfg.APIKeys = []string{"secret"}
	base := newTestAPI(t, cfg)

	pipeline := saga.NewHealthUpdateSaga(base.engine, shared.FixedClock(now), nil).
		WithStepGate(func(step saga.HealthUpdateStep, userID string) bool {
			if step == saga.StepEvolution {
				return ff.ForUser(config.FeaturePipelineEvolution, userID)
			}
			return true
		})
	server := apihttp.NewServer(cfg, apihttp.Dependencies{
		Engine:   base.engine,
		Updater:  pipeline,
		Logger:   logger.Nop(),
		Features: ff,
	})
	return &testAPI{server: server, engine: base.engine}
}

func TestFeatureAdmin_OverridesGatePipeline(t *testing.T) {
	ff := config.LoadFeatureFlags()
	api := newFlagAPI(t, ff)
	key := []string{"X-API-Key", "secret"}

	code, _, _ := api.do(t, http.MethodGet, "/api/v1/admin/features", "")
	assert.Equal(t, http.StatusUnauthorized, code)

	code, body, _ := api.do(t, http.MethodGet, "/api/v1/admin/features", "", key...)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body["features"], config.FeaturePipelineEvolution)

	code, body, _ = api.do(t, http.MethodPut, "/api/v1/admin/features/"+config.FeaturePipelineEvolution,
		`{"enabled":false}`, key...)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, false, body["Enabled"])

	code, _, _ = api.do(t, http.MethodPut, "/api/v1/admin/features/"+config.FeaturePipelineEvolution+"/users/u1",
		`{"enabled":true}`, key...)
	require.Equal(t, http.StatusOK, code)

	update := `{"today":{"date":"2026-03-04","steps":3000},"evolution_count":1}`
	code, body, _ = api.do(t, http.MethodPost, "/api/v1/users/u1/health", update)
	require.Equal(t, http.StatusOK, code, body)
	assert.Len(t, body["evolution"], 1)

	code, body, _ = api.do(t, http.MethodPost, "/api/v1/users/u2/health", update)
	require.Equal(t, http.StatusOK, code, body)
	assert.Empty(t, body["evolution"])

	code, _, _ = api.do(t, http.MethodDelete, "/api/v1/admin/users/u1/features", "", key...)
	assert.Equal(t, http.StatusNoContent, code)
	assert.False(t, ff.ForUser(config.FeaturePipelineEvolution, "u1"))
}

func TestFeatureAdmin_Errors(t *testing.T) {
	api := newFlagAPI(t, config.LoadFeatureFlags())
	key := []string{"X-API-Key", "secret"}

	code, _, _ := api.do(t, http.MethodPut, "/api/v1/admin/features/no.such.flag", `{"rollout_percent":10}`, key...)
	assert.Equal(t, http.StatusNotFound, code)

	code, body, _ := api.do(t, http.MethodPut, "/api/v1/admin/features/"+config.FeatureNotifyLog, `{"rollout_percent":150}`, key...)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid_input", body["error"])

	code, _, _ = api.do(t, http.MethodPut, "/api/v1/admin/features/"+config.FeatureNotifyLog, `{}`, key...)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _, _ = api.do(t, http.MethodPut, "/api/v1/admin/features/no.such.flag/users/u1", `{"enabled":true}`, key...)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestFeatureAdmin_NotMountedWithoutKeys(t *testing.T) {
	api := newTestAPI(t, apihttp.DefaultConfig())
	server := apihttp.NewServer(apihttp.DefaultConfig(), apihttp.Dependencies{
		Engine:   api.engine,
		Updater:  saga.NewHealthUpdateSaga(api.engine, shared.FixedClock(now), nil),
		Logger:   logger.Nop(),
		Features: config.LoadFeatureFlags(),
	})
	api.server = server

	code, _, _ := api.do(t, http.MethodGet, "/api/v1/admin/features", "")
	assert.Equal(t, http.StatusNotFound, code)
}
