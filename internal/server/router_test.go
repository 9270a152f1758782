package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/afero"
	"golang.org/x/crypto/bcrypt"

	"github.com/haoyun/filedrop/internal/activity"
	"github.com/haoyun/filedrop/internal/auth"
	"github.com/haoyun/filedrop/internal/config"
	"github.com/haoyun/filedrop/internal/logging"
	"github.com/haoyun/filedrop/internal/store"
	"github.com/haoyun/filedrop/internal/transfer"
)

func newTestDependencies(t *testing.T) Dependencies {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger, _ := logging.NewTestLogger()
	fs := afero.NewMemMapFs()
	clock := store.RealClock{}

	authService, err := auth.NewService(config.AuthConfig{
		Password:   "open-sesame",
		JWTSecret:  "test-secret",
		TokenTTL:   time.Hour,
		BcryptCost: bcrypt.MinCost,
	}, logger)
	if err != nil {
		t.Fatalf("auth.NewService: %v", err)
	}

	activityLog := activity.NewLog(fs, "/data/download.json", 5*time.Minute, 3*time.Second, clock, logger)
	dated := store.NewDated(fs, "/files", clock, logger)
	transferService := transfer.NewService(dated, activityLog, clock, logger)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}

	return Dependencies{
		Config:          cfg,
		Logger:          logger,
		AuthService:     authService,
		TransferService: transferService,
		ActivityLog:     activityLog,
	}
}

func TestRouterProtectsDropEndpoints(t *testing.T) {
	router := NewRouter(newTestDependencies(t))

	for _, path := range []string{"/files?date=2025-04-05", "/download?date=2025-04-05&names=a.txt", "/monit"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		res := httptest.NewRecorder()
		router.ServeHTTP(res, req)
		if res.Code != http.StatusUnauthorized {
			t.Errorf("%s: expected 401 without session, got %d", path, res.Code)
		}
	}
}

func TestRouterLoginGrantsAccess(t *testing.T) {
	router := NewRouter(newTestDependencies(t))

	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"pwd":"open-sesame"}`))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("login failed: %d %s", res.Code, res.Body.String())
	}

	var session *http.Cookie
	for _, cookie := range res.Result().Cookies() {
		if cookie.Name == auth.CookieName {
			session = cookie
		}
	}
	if session == nil {
		t.Fatalf("no session cookie after login")
	}

	req = httptest.NewRequest(http.MethodGet, "/files?date=2025-04-05", nil)
	req.AddCookie(session)
	res = httptest.NewRecorder()
	router.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected authorized listing, got %d: %s", res.Code, res.Body.String())
	}
}

func TestHealthEndpoints(t *testing.T) {
	deps := newTestDependencies(t)
	router := NewRouter(deps)

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("liveness: expected 200, got %d", res.Code)
	}

	// Nil readiness probe reports ready.
	req = httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	res = httptest.NewRecorder()
	router.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("readiness: expected 200, got %d", res.Code)
	}
}

func TestReadinessReportsStorageFailure(t *testing.T) {
	deps := newTestDependencies(t)
	deps.Readiness = func(ctx context.Context) error {
		return errors.New("storage offline")
	}
	router := NewRouter(deps)

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when storage is down, got %d", res.Code)
	}
}
