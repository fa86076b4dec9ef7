package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gmsas95/medtrack/internal/analytics"
	"github.com/gmsas95/medtrack/internal/config"
	"github.com/gmsas95/medtrack/internal/dose"
	apperrors "github.com/gmsas95/medtrack/internal/errors"
	"github.com/gmsas95/medtrack/internal/insights"
	"github.com/gmsas95/medtrack/internal/ledger"
	"github.com/gmsas95/medtrack/internal/metrics"
	"github.com/gmsas95/medtrack/internal/store"
	"github.com/gmsas95/medtrack/internal/timeofday"
	"github.com/gmsas95/medtrack/internal/tracker"
)

const secret = "test-secret"

type harness struct {
	t      *testing.T
	server *Server
	token  string
}

func newHarness(t *testing.T, rateLimit float64, burst int) *harness {
	t.Helper()
	st, err := store.NewInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	clock := timeofday.NewFixedClock(time.Date(2026, 4, 10, 8, 10, 0, 0, time.UTC))
	l := ledger.New(st, time.UTC, nil)
	m := metrics.New()
	trk := tracker.New(st, l, clock, nil, tracker.WithObserver(m))
	analyzer := analytics.New(l, clock)

	cfg := &config.Config{
		Server: config.ServerConfig{ReadTimeout: 5, WriteTimeout: 5},
		Security: config.SecurityConfig{
			JWTSecret:    secret,
			AllowOrigins: []string{"*"},
			RateLimit:    rateLimit,
			RateBurst:    burst,
		},
	}
	srv := New(cfg, Deps{
		Tracker:  trk,
		Analyzer: analyzer,
		Insights: insights.New(analyzer, nil, st, time.Hour, clock, nil),
		Metrics:  m,
		Version:  "test",
	}, nil)

	token, err := IssueToken(secret, "user_1", time.Hour)
	require.NoError(t, err)
	return &harness{t: t, server: srv, token: token}
}

func (h *harness) do(method, path string, body any) (int, []byte) {
	h.t.Helper()
	return h.doAs(h.token, method, path, body)
}

func (h *harness) doAs(token, method, path string, body any) (int, []byte) {
	h.t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(h.t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := h.server.App().Test(req, -1)
	require.NoError(h.t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(h.t, err)
	return resp.StatusCode, out
}

func (h *harness) createMedication(body map[string]any) tracker.MedicationView {
	h.t.Helper()
	status, out := h.do(http.MethodPost, "/api/medications", body)
	require.Equal(h.t, http.StatusCreated, status, string(out))
	var v tracker.MedicationView
	require.NoError(h.t, json.Unmarshal(out, &v))
	return v
}

func TestHealth_IsPublic(t *testing.T) {
	h := newHarness(t, 0, 0)
	status, out := h.doAs("", http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(out), `"status":"healthy"`)
}

func TestAuth_Rejects(t *testing.T) {
	h := newHarness(t, 0, 0)

	wrongSecret, err := IssueToken("other-secret", "user_1", time.Hour)
	require.NoError(t, err)
	expired, err := IssueToken(secret, "user_1", -time.Hour)
	require.NoError(t, err)
	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(secret))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"missing", ""},
		{"garbage", "not-a-token"},
		{"wrong secret", wrongSecret},
		{"expired", expired},
		{"no subject", noSubject},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, out := h.doAs(tt.token, http.MethodGet, "/api/medications", nil)
			assert.Equal(t, http.StatusUnauthorized, status)
			assert.Contains(t, string(out), "AUTH_000")
		})
	}
}

func TestMedicationLifecycle(t *testing.T) {
	h := newHarness(t, 0, 0)

	med := h.createMedication(map[string]any{
		"name":         "Aspirin",
		"frequency":    2,
		"total_stock":  10,
		"custom_times": []string{"08:00", "20:00"},
	})
	assert.Equal(t, []string{"08:00", "20:00"}, med.Schedule)
	assert.True(t, med.IsCustomSchedule)

	status, out := h.do(http.MethodGet, "/api/medications/"+med.ID, nil)
	assert.Equal(t, http.StatusOK, status, string(out))

	status, out = h.do(http.MethodPut, "/api/medications/"+med.ID, map[string]any{"name": "Aspirin 100mg"})
	require.Equal(t, http.StatusOK, status, string(out))
	assert.Contains(t, string(out), "Aspirin 100mg")

	status, out = h.do(http.MethodGet, "/api/medications", nil)
	require.Equal(t, http.StatusOK, status)
	var list tracker.MedicationList
	require.NoError(t, json.Unmarshal(out, &list))
	assert.Len(t, list.Medications, 1)

	status, out = h.do(http.MethodDelete, "/api/medications/"+med.ID+"/schedule", nil)
	require.Equal(t, http.StatusOK, status, string(out))
	assert.Contains(t, string(out), `"is_custom":false`)

	status, _ = h.do(http.MethodDelete, "/api/medications/"+med.ID, nil)
	assert.Equal(t, http.StatusOK, status)

	status, _ = h.do(http.MethodGet, "/api/medications/"+med.ID, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestCreateMedication_Invalid(t *testing.T) {
	h := newHarness(t, 0, 0)
	status, out := h.do(http.MethodPost, "/api/medications", map[string]any{"name": "A", "frequency": 0})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, string(out), "INVALID_001")
}

func TestMedication_OtherUserGets404(t *testing.T) {
	h := newHarness(t, 0, 0)
	med := h.createMedication(map[string]any{"name": "Aspirin", "frequency": 1})

	other, err := IssueToken(secret, "user_2", time.Hour)
	require.NoError(t, err)
	status, _ := h.doAs(other, http.MethodGet, "/api/medications/"+med.ID, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestStockEndpoints(t *testing.T) {
	h := newHarness(t, 0, 0)
	med := h.createMedication(map[string]any{"name": "Aspirin", "frequency": 1, "total_stock": 30, "current_stock": 5})

	status, out := h.do(http.MethodPost, "/api/medications/"+med.ID+"/refill", map[string]any{"amount": 10})
	require.Equal(t, http.StatusOK, status, string(out))
	assert.Contains(t, string(out), `"current_stock":15`)

	status, _ = h.do(http.MethodPost, "/api/medications/"+med.ID+"/refill", map[string]any{"amount": 0})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = h.do(http.MethodPut, "/api/medications/"+med.ID+"/stock", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, status)

	status, out = h.do(http.MethodPut, "/api/medications/"+med.ID+"/stock", map[string]any{"current_stock": 3})
	require.Equal(t, http.StatusOK, status, string(out))
	assert.Contains(t, string(out), `"current_stock":3`)
}

func TestDoses(t *testing.T) {
	h := newHarness(t, 0, 0)
	med := h.createMedication(map[string]any{
		"name":         "Aspirin",
		"frequency":    2,
		"total_stock":  10,
		"custom_times": []string{"08:00", "20:00"},
	})

	status, out := h.do(http.MethodPost, "/api/doses/mark", map[string]any{"medication_id": med.ID, "time_slot": "08:00"})
	require.Equal(t, http.StatusOK, status, string(out))
	var res tracker.MarkResult
	require.NoError(t, json.Unmarshal(out, &res))
	assert.True(t, res.Changed)
	assert.Equal(t, dose.StatusTaken, res.Evaluation.Status)
	assert.Equal(t, 10, res.Evaluation.OffsetMinutes)
	require.NotNil(t, res.CurrentStock)
	assert.Equal(t, 9, *res.CurrentStock)

	tests := []struct {
		name   string
		path   string
		body   map[string]any
		status int
	}{
		{"unscheduled slot", "/api/doses/mark", map[string]any{"medication_id": med.ID, "time_slot": "09:00"}, http.StatusNotFound},
		{"malformed slot", "/api/doses/mark", map[string]any{"medication_id": med.ID, "time_slot": "25:99"}, http.StatusBadRequest},
		{"missing fields", "/api/doses/mark", map[string]any{}, http.StatusBadRequest},
		{"unknown medication", "/api/doses/mark", map[string]any{"medication_id": "nope", "time_slot": "08:00"}, http.StatusNotFound},
		{"skip a taken slot", "/api/doses/skip", map[string]any{"medication_id": med.ID, "time_slot": "08:00"}, http.StatusConflict},
		{"skip", "/api/doses/skip", map[string]any{"medication_id": med.ID, "time_slot": "20:00", "notes": "nausea"}, http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, out := h.do(http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.status, status, string(out))
		})
	}

	status, out = h.do(http.MethodGet, "/api/doses/today", nil)
	require.Equal(t, http.StatusOK, status, string(out))
	var today tracker.Today
	require.NoError(t, json.Unmarshal(out, &today))
	assert.Equal(t, "2026-04-10", today.Date)
	require.Len(t, today.Medications, 1)
	assert.Equal(t, 1, today.Summary.Taken)
	assert.Equal(t, 1, today.Summary.Skipped)
}

func TestAdherenceEndpoints(t *testing.T) {
	h := newHarness(t, 0, 0)

	status, out := h.do(http.MethodGet, "/api/adherence?period=year", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, string(out), "INVALID_005")

	status, out = h.do(http.MethodGet, "/api/adherence", nil)
	require.Equal(t, http.StatusOK, status, string(out))
	var report analytics.AdherenceReport
	require.NoError(t, json.Unmarshal(out, &report))
	assert.Equal(t, 100.0, report.Summary.AdherencePercentage)

	status, _ = h.do(http.MethodGet, "/api/adherence/missed?from=10-04-2026", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	for _, path := range []string{
		"/api/adherence/missed?from=2026-04-01&to=2026-04-10",
		"/api/adherence/history?limit=5",
		"/api/adherence/streak",
		"/api/adherence/time-of-day?period=month",
		"/api/adherence/comparison",
	} {
		status, out := h.do(http.MethodGet, path, nil)
		assert.Equal(t, http.StatusOK, status, path+": "+string(out))
	}

	_, out = h.do(http.MethodGet, "/api/adherence/missed", nil)
	assert.Contains(t, string(out), `"missed_doses":[]`)
}

func TestInsights_FallbackWithoutSummarizer(t *testing.T) {
	h := newHarness(t, 0, 0)

	status, out := h.do(http.MethodGet, "/api/insights", nil)
	require.Equal(t, http.StatusOK, status, string(out))
	var got insights.Insights
	require.NoError(t, json.Unmarshal(out, &got))
	assert.True(t, got.Fallback)
	assert.Len(t, got.Insights, 3)

	status, out = h.do(http.MethodGet, "/api/insights/refresh-status", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(out), `"can_refresh":true`)
}

func TestRateLimit(t *testing.T) {
	h := newHarness(t, 0.001, 2)

	for i := 0; i < 2; i++ {
		status, _ := h.do(http.MethodGet, "/api/medications", nil)
		require.Equal(t, http.StatusOK, status)
	}
	status, out := h.do(http.MethodGet, "/api/medications", nil)
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Contains(t, string(out), "rate limit")

	// Buckets are per user.
	other, err := IssueToken(secret, "user_2", time.Hour)
	require.NoError(t, err)
	status, _ = h.doAs(other, http.MethodGet, "/api/medications", nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestUserLimiter_EvictsIdleBuckets(t *testing.T) {
	assert.Nil(t, newUserLimiter(0, 5), "zero rate disables limiting")

	clock := time.Date(2026, 4, 10, 8, 0, 0, 0, time.UTC)
	l := newUserLimiter(0.001, 1)
	l.now = func() time.Time { return clock }

	for _, user := range []string{"user_1", "user_2", "user_3"} {
		assert.True(t, l.allow(user))
	}
	assert.False(t, l.allow("user_1"), "bucket is drained")
	assert.Equal(t, 3, l.size())

	clock = clock.Add(limiterIdleTTL / 2)
	assert.False(t, l.allow("user_1"))

	clock = clock.Add(limiterIdleTTL / 2)
	assert.False(t, l.allow("user_1"), "recently seen users keep their bucket")
	assert.Equal(t, 1, l.size(), "idle users are dropped")
}

func TestMetricsEndpoint(t *testing.T) {
	h := newHarness(t, 0, 0)
	h.do(http.MethodGet, "/api/medications", nil)

	status, out := h.doAs("", http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, status)
	body := string(out)
	assert.True(t, strings.Contains(body, "medtrack_http_requests_total"), body)
	assert.Contains(t, body, `route="/api/medications`)
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{apperrors.ErrMedicationNotFound, http.StatusNotFound},
		{apperrors.ErrInvalidTime.Withf("x"), http.StatusBadRequest},
		{apperrors.ErrVersionConflict, http.StatusConflict},
		{apperrors.ErrLedgerWrite.WithCause(io.EOF), http.StatusServiceUnavailable},
		{apperrors.ErrUnauthorized, http.StatusUnauthorized},
		{apperrors.ErrRateLimited, http.StatusTooManyRequests},
		{io.EOF, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusOf(tt.err), tt.err.Error())
	}
}
