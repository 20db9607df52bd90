package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/time/rate"

	"dashboard-backend/internal/ctxkeys"
	"dashboard-backend/internal/metrics"
)

const testSecret = "test-secret"

func signToken(t *testing.T, method jwt.SigningMethod, key interface{}, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func validClaims(role string) jwt.MapClaims {
	return jwt.MapClaims{
		"userId": "42",
		"role":   role,
		"exp":    time.Now().Add(time.Hour).Unix(),
		"iat":    time.Now().Unix(),
	}
}

// echoIdentity writes the user id and role found in the request context.
var echoIdentity = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	role, _ := r.Context().Value(ctxkeys.UserRole).(string)
	w.Write([]byte(ctxkeys.GetUserID(r.Context()) + "/" + role))
})

func TestAuth(t *testing.T) {
	h := Auth(testSecret)(echoIdentity)

	expired := validClaims(ctxkeys.RoleAdmin)
	expired["exp"] = time.Now().Add(-time.Minute).Unix()
	noExp := validClaims(ctxkeys.RoleAdmin)
	delete(noExp, "exp")
	noUser := validClaims(ctxkeys.RoleAdmin)
	delete(noUser, "userId")

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer not.a.token", http.StatusUnauthorized},
		{"wrong secret", "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte("other"), validClaims("admin")), http.StatusUnauthorized},
		{"wrong algorithm", "Bearer " + signToken(t, jwt.SigningMethodHS512, []byte(testSecret), validClaims("admin")), http.StatusUnauthorized},
		{"expired", "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testSecret), expired), http.StatusUnauthorized},
		{"no expiry", "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testSecret), noExp), http.StatusUnauthorized},
		{"no user", "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testSecret), noUser), http.StatusUnauthorized},
		{"valid", "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims("viewer")), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/dashboard/stats", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, "42/viewer", rec.Body.String())
				return
			}
			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, false, body["success"])
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestRequireMinRole(t *testing.T) {
	h := RequireMinRole(ctxkeys.RoleAdmin)(echoIdentity)

	for role, want := range map[string]int{
		ctxkeys.RoleAdmin:  http.StatusOK,
		ctxkeys.RoleViewer: http.StatusForbidden,
		"":                 http.StatusForbidden,
		"root":             http.StatusForbidden,
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(context.WithValue(req.Context(), ctxkeys.UserRole, role))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code, "role %q", role)
	}
}

func TestRateLimit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// One proxy in front: it appends the peer it saw.
	h := RateLimit(ctx, rate.Every(10*time.Second), 2, 1, zap.NewNop())(echoIdentity)

	hit := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		req.RemoteAddr = "10.0.0.1:443"
		req.Header.Set("X-Forwarded-For", ip)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, hit("1.1.1.1").Code)
	assert.Equal(t, http.StatusOK, hit("1.1.1.1").Code)

	limited := hit("1.1.1.1")
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.Equal(t, "10", limited.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, hit("2.2.2.2").Code, "limits are per client")
}

func TestLimiterSweep(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	ipl := newIPLimiter(1, 1)
	ipl.now = func() time.Time { return now }

	ipl.getLimiter("a")
	now = now.Add(limiterIdleAfter / 2)
	ipl.getLimiter("b")
	now = now.Add(limiterIdleAfter/2 + time.Second)

	assert.Equal(t, 1, ipl.sweep())
	assert.Len(t, ipl.limiters, 1)
	assert.Contains(t, ipl.limiters, "b")
}

func TestRateLimitIgnoresSpoofedForwardedFor(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for _, proxies := range []int{0, 1} {
		h := RateLimit(ctx, rate.Every(10*time.Second), 1, proxies, zap.NewNop())(echoIdentity)

		codes := make([]int, 0, 3)
		for _, forged := range []string{"1.1.1.1", "2.2.2.2", "3.3.3.3"} {
			req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
			req.RemoteAddr = "10.0.0.1:443"
			if proxies == 0 {
				req.Header.Set("X-Forwarded-For", forged)
			} else {
				// The client forges the left entry; the proxy appends the real peer.
				req.Header.Set("X-Forwarded-For", forged+", 198.51.100.4")
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			codes = append(codes, rec.Code)
		}
		assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests, http.StatusTooManyRequests}, codes,
			"rotating the header must not reset the limit (proxies=%d)", proxies)
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.7:5555"
	assert.Equal(t, "192.0.2.7", clientIP(req, 0))
	assert.Equal(t, "192.0.2.7", clientIP(req, 1), "no header")

	req.RemoteAddr = "[2001:db8::1]:443"
	assert.Equal(t, "2001:db8::1", clientIP(req, 0))

	req.Header.Set("X-Forwarded-For", " 203.0.113.9 , 198.51.100.4 , 10.0.0.1")
	assert.Equal(t, "2001:db8::1", clientIP(req, 0), "header ignored without trusted proxies")
	assert.Equal(t, "10.0.0.1", clientIP(req, 1))
	assert.Equal(t, "198.51.100.4", clientIP(req, 2))
	assert.Equal(t, "203.0.113.9", clientIP(req, 5), "fewer hops than proxies")

	req.Header.Set("X-Forwarded-For", "not-an-ip")
	assert.Equal(t, "2001:db8::1", clientIP(req, 1))
}

func TestRequestLoggerLevels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := zap.New(core)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(RequestLogger(log))
	r.Get("/ok", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("fine")) })
	r.Get("/bad", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusBadRequest) })
	r.Get("/down", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusServiceUnavailable) })

	for _, path := range []string{"/ok?tier=1", "/bad", "/down"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)

	first := entries[0].ContextMap()
	assert.EqualValues(t, 200, first["status"])
	assert.Equal(t, "/ok", first["path"])
	assert.Equal(t, "tier=1", first["query"])
	assert.EqualValues(t, 4, first["bytes"])
	assert.NotEmpty(t, first["request_id"])
}

func TestMetricsUsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Metrics)
	r.Get("/api/files/{name}", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNotFound) })

	counter := metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/api/files/{name}", "404")
	before := testutil.ToFloat64(counter)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/files/a.json", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/files/b.json", nil))

	assert.Equal(t, before+2, testutil.ToFloat64(counter))
}
