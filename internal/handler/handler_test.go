package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/parcel-routing/route-optimizer/backend/internal/config"
	"github.com/parcel-routing/route-optimizer/backend/internal/domain"
	"github.com/parcel-routing/route-optimizer/backend/internal/runner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testProfiles = `
profiles:
  quick:
    population_size: 10
    generations: 5
`

func newTestHandler(t *testing.T) *Handler {
	t.Helper()

	cfg := &config.Config{Environment: "test"}
	cfg.JWT.Secret = "test-secret"
	cfg.JWT.Issuer = "route-optimizer"
	cfg.JWT.Expiration = 1
	cfg.Optimizer.TruckCount = 3
	cfg.Optimizer.TruckCapacity = 16
	cfg.Optimizer.TruckSpeed = 18
	cfg.Optimizer.DepartureTimes = []string{"08:00"}
	cfg.Optimizer.PopulationSize = 50
	cfg.Optimizer.Generations = 100
	cfg.Optimizer.CrossoverRate = 0.9
	cfg.Optimizer.MutationRate = 0.2
	cfg.Optimizer.LatePenalty = 20

	profiles, err := config.ParseProfiles([]byte(testProfiles))
	require.NoError(t, err)

	h, err := NewHandler(cfg, profiles, nil, nil, nil)
	require.NoError(t, err)
	h.RegisterRoutes()
	return h
}

func token(t *testing.T, h *Handler, role domain.Role) string {
	t.Helper()
	ss, err := NewToken(h.config, "tester", role)
	require.NoError(t, err)
	return ss
}

func do(t *testing.T, h *Handler, method, path, bearer, body string) Response {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	h.Mux.ServeHTTP(rec, req)

	var resp Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestHealthz(t *testing.T) {
	h := newTestHandler(t)
	resp := do(t, h, http.MethodGet, "/healthz", "", "")
	assert.True(t, resp.Success)
}

func TestAuthRequired(t *testing.T) {
	h := newTestHandler(t)

	resp := do(t, h, http.MethodGet, "/runs", "", "")
	assert.False(t, resp.Success)
	assert.Equal(t, "missing bearer token", resp.Message)

	resp = do(t, h, http.MethodGet, "/runs", "not-a-jwt", "")
	assert.Equal(t, "invalid token", resp.Message)

	other := *h.config
	other.JWT.Secret = "someone-else"
	forged, err := NewToken(&other, "mallory", domain.RoleDispatcher)
	require.NoError(t, err)
	resp = do(t, h, http.MethodGet, "/runs", forged, "")
	assert.Equal(t, "invalid token", resp.Message)
}

func TestCreateRunRequiresDispatcher(t *testing.T) {
	h := newTestHandler(t)

	resp := do(t, h, http.MethodPost, "/runs", token(t, h, domain.RoleViewer), `{}`)
	assert.False(t, resp.Success)
	assert.Equal(t, "permission denied", resp.Message)
}

func TestCreateRunValidation(t *testing.T) {
	h := newTestHandler(t)
	dispatcher := token(t, h, domain.RoleDispatcher)

	for name, tc := range map[string]struct {
		body string
		want string
	}{
		"malformed json":    {`{"profile":`, "unexpected EOF"},
		"empty body":        {``, "request body is empty"},
		"trailing value":    {`{}{}`, "single JSON object"},
		"wrong type":        {`{"profile":1}`, `field "profile" must be string`},
		"oversized body":    {`{"profile":"` + strings.Repeat("x", maxBodyBytes) + `"}`, "exceeds"},
		"unknown field":     {`{"bogus":1}`, "unknown field"},
		"bad email":         {`{"notifyEmail":"nope"}`, "NotifyEmail"},
		"unknown profile":   {`{"profile":"huge"}`, "profile not found"},
		"population zero":   {`{"parameters":{"populationSize":0}}`, "PopulationSize"},
		"rate out of range": {`{"profile":"quick","parameters":{"mutationRate":1.5}}`, "MutationRate"},
		"bad parameter":     {`{"parameters":{"truckSpeed":"fast"}}`, "invalid parameters"},
	} {
		t.Run(name, func(t *testing.T) {
			resp := do(t, h, http.MethodPost, "/runs", dispatcher, tc.body)
			assert.False(t, resp.Success)
			assert.Contains(t, resp.Message, tc.want)
		})
	}
}

func TestResolveParametersLayering(t *testing.T) {
	h := newTestHandler(t)

	p, err := h.resolveParameters(&createRunRequest{
		Profile:    "quick",
		Parameters: json.RawMessage(`{"generations":7,"seed":42}`),
	})
	require.NoError(t, err)
	assert.Equal(t, 10, p.PopulationSize)
	assert.Equal(t, 7, p.Generations)
	assert.Equal(t, int64(42), p.Seed)
	assert.Equal(t, 16, p.TruckCapacity)
}

func TestResolveParametersAcceptsZeroPenalty(t *testing.T) {
	h := newTestHandler(t)

	p, err := h.resolveParameters(&createRunRequest{
		Parameters: json.RawMessage(`{"latePenalty":0}`),
	})
	require.NoError(t, err)
	require.NotNil(t, p.LatePenalty)
	assert.Equal(t, 0.0, *p.LatePenalty)
	assert.Equal(t, 0.0, runner.BuildParameters(p, 1).LatePenalty)
}

func TestRunIDMustBeUUID(t *testing.T) {
	h := newTestHandler(t)

	resp := do(t, h, http.MethodGet, "/runs/42", token(t, h, domain.RoleViewer), "")
	assert.False(t, resp.Success)
	assert.Equal(t, "invalid run id", resp.Message)
}

func TestParseAt(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/runs/x/packages?at=10:25:00", nil)
	at, err := parseAt(req)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Hour+25*time.Minute, at)

	at, err = parseAt(httptest.NewRequest(http.MethodGet, "/runs/x/packages", nil))
	require.NoError(t, err)
	assert.Equal(t, domain.EndOfDay, at)

	_, err = parseAt(httptest.NewRequest(http.MethodGet, "/runs/x/packages?at=noon", nil))
	assert.Error(t, err)
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.Mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
