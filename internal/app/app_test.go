package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/MrWong99/geoquiz/internal/app"
	"github.com/MrWong99/geoquiz/internal/config"
	"github.com/MrWong99/geoquiz/internal/observe"
	"github.com/MrWong99/geoquiz/internal/pointset"
)

const seedYAML = `
sets:
  - id: capitales
    name: Capitales
    mode: world
    owner_id: system
    points:
      - { name: Madrid, lat: 40.4168, lng: -3.7038 }
      - { name: Sevilla, lat: 37.3891, lng: -5.9845 }
`

// testConfig returns a defaulted config with one seed file.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	seed := filepath.Join(t.TempDir(), "sets.yaml")
	if err := os.WriteFile(seed, []byte(seedYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := &config.Config{
		Server: config.ServerConfig{ListenAddr: "127.0.0.1:0"},
		Store:  config.StoreConfig{SeedFiles: []string{seed}},
	}
	config.ApplyDefaults(cfg)
	return cfg
}

func testMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewManualReader()))
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m
}

func newTestApp(t *testing.T, cfg *config.Config, opts ...app.Option) (*app.App, *pointset.MemStore) {
	t.Helper()
	store := pointset.NewMemStore()
	all := append([]app.Option{app.WithStore(store), app.WithMetrics(testMetrics(t))}, opts...)
	a, err := app.New(t.Context(), cfg, &app.Providers{}, all...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = a.Shutdown(context.Background()) })
	return a, store
}

func TestNew_SeedsStore(t *testing.T) {
	t.Parallel()
	_, store := newTestApp(t, testConfig(t))

	set, err := store.Get(context.Background(), "capitales")
	if err != nil {
		t.Fatalf("seeded set missing: %v", err)
	}
	if len(set.Points) != 2 {
		t.Errorf("points = %d, want 2", len(set.Points))
	}
}

func TestNew_BadSeedFileFails(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)
	cfg.Store.SeedFiles = []string{filepath.Join(t.TempDir(), "missing.yaml")}

	_, err := app.New(t.Context(), cfg, nil, app.WithStore(pointset.NewMemStore()), app.WithMetrics(testMetrics(t)))
	if err == nil {
		t.Fatal("expected error for missing seed file")
	}
}

func TestHandler_Routes(t *testing.T) {
	t.Parallel()
	a, _ := newTestApp(t, testConfig(t))

	tests := []struct {
		path       string
		wantStatus int
	}{
		{"/healthz", http.StatusOK},
		{"/readyz", http.StatusOK},
		{"/api/sets", http.StatusOK},
		{"/api/sets/capitales", http.StatusOK},
		{"/api/sets/nope", http.StatusNotFound},
		// Injected metrics serve no exposition endpoint.
		{"/metrics", http.StatusNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			a.Handler().ServeHTTP(rec, httptest.NewRequest("GET", tc.path, nil))
			if rec.Code != tc.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
		})
	}

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/sets?owner=system", nil))
	var sets []pointset.PointSet
	if err := json.NewDecoder(rec.Body).Decode(&sets); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(sets) != 1 || sets[0].Name != "Capitales" {
		t.Errorf("sets = %+v", sets)
	}
}

func TestServe_StopsOnCancel(t *testing.T) {
	t.Parallel()
	a, _ := newTestApp(t, testConfig(t))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- a.Serve(ctx, ln) }()

	url := "http://" + ln.Addr().String() + "/healthz"
	deadline := time.Now().Add(2 * time.Second)
	for {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("healthz status = %d", resp.StatusCode)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server never came up: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}

	// Draining: readiness fails from now on.
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("readyz after shutdown = %d, want 503", rec.Code)
	}
}

func TestApplyConfig(t *testing.T) {
	t.Parallel()
	lv := new(slog.LevelVar)
	cfg := testConfig(t)
	a, _ := newTestApp(t, cfg, app.WithLogLevel(lv))

	next := *cfg
	next.Server.LogLevel = config.LogDebug
	next.Recognition.Language = "ca-ES"
	a.ApplyConfig(cfg, &next, config.Diff(cfg, &next))

	if lv.Level() != slog.LevelDebug {
		t.Errorf("log level = %v, want debug", lv.Level())
	}
	if got := a.Sessions().Recognition().Language; got != "ca-ES" {
		t.Errorf("recognition language = %q, want ca-ES", got)
	}
}

func TestShutdown_Idempotent(t *testing.T) {
	t.Parallel()
	a, _ := newTestApp(t, testConfig(t))
	for range 2 {
		if err := a.Shutdown(context.Background()); err != nil {
			t.Errorf("Shutdown: %v", err)
		}
	}
}

func TestSlogLevel(t *testing.T) {
	t.Parallel()
	tests := map[config.LogLevel]slog.Level{
		config.LogDebug: slog.LevelDebug,
		config.LogInfo:  slog.LevelInfo,
		config.LogWarn:  slog.LevelWarn,
		config.LogError: slog.LevelError,
		"":              slog.LevelInfo,
	}
	for in, want := range tests {
		if got := app.SlogLevel(in); got != want {
			t.Errorf("SlogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
