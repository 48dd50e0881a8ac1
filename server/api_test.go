package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/skillsenselab/loaderkit/logger"
	"github.com/skillsenselab/loaderkit/registry"
)

func newTestAPI(t *testing.T) (*registry.Registry, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	reg := registry.New()
	api := NewAPI(reg, logger.NewDefault("test"))

	engine := gin.New()
	api.RegisterRoutes(engine)
	return reg, engine
}

func doRequest(engine *gin.Engine, method, path string, body []byte) *httptest.ResponseRecorder {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decoding envelope: %v (body: %s)", err, w.Body.String())
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		t.Fatalf("decoding data: %v (body: %s)", err, w.Body.String())
	}
}

func TestHealthEndpoint(t *testing.T) {
	_, engine := newTestAPI(t)

	w := doRequest(engine, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestVersionEndpoint(t *testing.T) {
	_, engine := newTestAPI(t)

	w := doRequest(engine, http.MethodGet, "/version", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var info struct {
		Version string `json:"version"`
	}
	decodeData(t, w, &info)
	if info.Version == "" {
		t.Error("expected a version string")
	}
}

func TestListComponents(t *testing.T) {
	reg, engine := newTestAPI(t)
	reg.Register("cache", func(ctx context.Context) (any, error) { return "c", nil })
	reg.Register("db", func(ctx context.Context) (any, error) { return "d", nil },
		registry.WithPriority(10), registry.Required())

	w := doRequest(engine, http.MethodGet, "/api/components", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var views []ComponentView
	decodeData(t, w, &views)
	if len(views) != 2 {
		t.Fatalf("expected 2 components, got %d", len(views))
	}
	if views[0].Name != "cache" || views[1].Name != "db" {
		t.Errorf("expected registration order [cache db], got [%s %s]", views[0].Name, views[1].Name)
	}
	if views[0].Status != "pending" {
		t.Errorf("expected status pending, got %s", views[0].Status)
	}
	if !views[1].Required || views[1].Priority != 10 {
		t.Errorf("expected db required with priority 10, got %+v", views[1])
	}
}

func TestGetComponentNotFound(t *testing.T) {
	_, engine := newTestAPI(t)

	w := doRequest(engine, http.MethodGet, "/api/components/ghost", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}

	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decoding error body: %v", err)
	}
	if envelope.Error.Code != "UNKNOWN_COMPONENT" {
		t.Errorf("expected code UNKNOWN_COMPONENT, got %s", envelope.Error.Code)
	}
}

func TestLoadComponentEndpoint(t *testing.T) {
	reg, engine := newTestAPI(t)

	calls := 0
	reg.Register("cache", func(ctx context.Context) (any, error) {
		calls++
		return "instance", nil
	})

	w := doRequest(engine, http.MethodPost, "/api/components/cache/load", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", w.Code, w.Body.String())
	}

	var view ComponentView
	decodeData(t, w, &view)
	if view.Status != "loaded" {
		t.Errorf("expected status loaded, got %s", view.Status)
	}
	if calls != 1 {
		t.Errorf("expected 1 factory call, got %d", calls)
	}

	// A second load is idempotent.
	doRequest(engine, http.MethodPost, "/api/components/cache/load", nil)
	if calls != 1 {
		t.Errorf("expected factory not to run again, got %d calls", calls)
	}
}

func TestLoadComponentForce(t *testing.T) {
	reg, engine := newTestAPI(t)

	calls := 0
	reg.Register("cache", func(ctx context.Context) (any, error) {
		calls++
		return calls, nil
	})

	doRequest(engine, http.MethodPost, "/api/components/cache/load", nil)

	body := []byte(`{"force": true}`)
	w := doRequest(engine, http.MethodPost, "/api/components/cache/load", body)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if calls != 2 {
		t.Errorf("expected forced reload to run the factory again, got %d calls", calls)
	}
}

func TestLoadComponentFailure(t *testing.T) {
	reg, engine := newTestAPI(t)
	reg.Register("broken", func(ctx context.Context) (any, error) {
		return nil, errors.New("boom")
	})

	w := doRequest(engine, http.MethodPost, "/api/components/broken/load", nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d (body: %s)", w.Code, w.Body.String())
	}
}

func TestUnloadComponentEndpoint(t *testing.T) {
	reg, engine := newTestAPI(t)
	reg.Register("cache", func(ctx context.Context) (any, error) { return "c", nil })
	if _, err := reg.Load(context.Background(), "cache"); err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}

	w := doRequest(engine, http.MethodPost, "/api/components/cache/unload", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var result UnloadResult
	decodeData(t, w, &result)
	if !result.Unloaded {
		t.Error("expected unloaded=true")
	}
	if reg.IsLoaded("cache") {
		t.Error("expected cache to be unloaded")
	}
}

func TestUnloadRefusedWithDependents(t *testing.T) {
	reg, engine := newTestAPI(t)
	reg.Register("db", func(ctx context.Context) (any, error) { return "d", nil })
	reg.Register("api", func(ctx context.Context) (any, error) { return "a", nil },
		registry.WithDependencies("db"))
	if _, err := reg.Load(context.Background(), "api"); err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}

	w := doRequest(engine, http.MethodPost, "/api/components/db/unload", nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}

	var result UnloadResult
	decodeData(t, w, &result)
	if result.Unloaded {
		t.Error("expected unloaded=false")
	}
	if len(result.Dependents) != 1 || result.Dependents[0].Name != "api" {
		t.Errorf("expected dependents [api], got %+v", result.Dependents)
	}
}

func TestUnloadUnknownComponent(t *testing.T) {
	_, engine := newTestAPI(t)

	w := doRequest(engine, http.MethodPost, "/api/components/ghost/unload", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestStatsEndpoint(t *testing.T) {
	reg, engine := newTestAPI(t)
	reg.Register("a", func(ctx context.Context) (any, error) { return 1, nil })
	reg.Register("b", func(ctx context.Context) (any, error) { return 2, nil })
	if _, err := reg.Load(context.Background(), "a"); err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}

	w := doRequest(engine, http.MethodGet, "/api/stats", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var stats StatsView
	decodeData(t, w, &stats)
	if stats.Total != 2 || stats.Loaded != 1 || stats.Pending != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Port)
	}
	if cfg.ReadTimeout != 15 || cfg.WriteTimeout != 15 || cfg.IdleTimeout != 60 {
		t.Errorf("unexpected timeout defaults: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected defaults to validate, got %v", err)
	}
}

func TestConfigValidateRejectsBadPort(t *testing.T) {
	cfg := Config{Port: 70000}
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for port 70000")
	}
}
