package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstrumentUsesRoutePattern(t *testing.T) {
	RegisterDefault()

	r := chi.NewRouter()
	r.Use(Instrument)
	r.Get("/runs/{runID}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	before := testutil.ToFloat64(HTTPRequests.WithLabelValues(http.MethodGet, "/runs/{runID}", "404"))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/runs/abc", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/runs/def", nil))

	after := testutil.ToFloat64(HTTPRequests.WithLabelValues(http.MethodGet, "/runs/{runID}", "404"))
	assert.Equal(t, 2.0, after-before)
}

func TestHandlerExposesOptimizerMetrics(t *testing.T) {
	Generations.Add(3)
	Runs.WithLabelValues("completed").Inc()

	srv := httptest.NewServer(Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	text := string(body)

	assert.True(t, strings.Contains(text, "optimizer_generations_total"))
	assert.True(t, strings.Contains(text, `optimizer_runs_total{status="completed"}`))
	assert.True(t, strings.Contains(text, "go_goroutines"))
}
