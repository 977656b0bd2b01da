package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/flemzord/almond/internal/core"
	"github.com/flemzord/almond/internal/provider"
	"github.com/prometheus/client_golang/prometheus"
)

func TestGateway_ModuleInfo(t *testing.T) {
	t.Parallel()

	g := &Gateway{}
	info := g.ModuleInfo()

	if info.ID != "gateway.http" {
		t.Errorf("ID = %q, want %q", info.ID, "gateway.http")
	}
	if _, ok := info.New().(*Gateway); !ok {
		t.Error("New() should return *Gateway")
	}
}

func TestGateway_ConfigureDefaults(t *testing.T) {
	t.Parallel()

	g := &Gateway{}
	if err := g.Configure(mustYAMLNode(t, "{}")); err != nil {
		t.Fatalf("Configure: %v", err)
	}

	if g.config.Bind != "127.0.0.1:8080" {
		t.Errorf("Bind = %q, want default", g.config.Bind)
	}
	if g.config.ReadTimeout != 10*time.Second {
		t.Errorf("ReadTimeout = %v, want 10s", g.config.ReadTimeout)
	}
	if g.config.WriteTimeout != 30*time.Second {
		t.Errorf("WriteTimeout = %v, want 30s", g.config.WriteTimeout)
	}
	if g.config.ShutdownTimeout != 5*time.Second {
		t.Errorf("ShutdownTimeout = %v, want 5s", g.config.ShutdownTimeout)
	}
}

func TestGateway_ConfigureCustom(t *testing.T) {
	t.Parallel()

	g := &Gateway{}
	yml := `
bind: "0.0.0.0:9090"
read_timeout: 3s
auth:
  bearer_token: tok
`
	if err := g.Configure(mustYAMLNode(t, yml)); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if g.config.Bind != "0.0.0.0:9090" {
		t.Errorf("Bind = %q", g.config.Bind)
	}
	if g.config.ReadTimeout != 3*time.Second {
		t.Errorf("ReadTimeout = %v, want 3s", g.config.ReadTimeout)
	}
	if !g.config.Auth.IsConfigured() {
		t.Error("auth should be configured")
	}
}

func TestGateway_ValidateBadBind(t *testing.T) {
	t.Parallel()

	g := &Gateway{config: Config{Bind: "not an address"}}
	if err := g.Validate(); err == nil {
		t.Fatal("expected error for invalid bind")
	}
}

func TestGateway_StartResolvesServices(t *testing.T) {
	t.Parallel()

	mem := newTestManager(t)
	reg := prometheus.NewRegistry()
	health := &fakeHealth{statuses: []provider.Status{{Name: "openai", Available: true}}}

	appCtx := core.NewAppContext(discard(), t.TempDir())
	appCtx.RegisterService(core.ServiceMemory, mem)
	appCtx.RegisterService(core.ServiceDispatcher, &fakeLanes{})
	appCtx.RegisterService(core.ServiceProviderHealth, health)
	appCtx.RegisterService(core.ServiceMetricsRegistry, reg)

	g := &Gateway{config: Config{Bind: "127.0.0.1:0"}}
	if err := g.Provision(appCtx); err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if err := g.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = g.Stop(context.Background()) })

	if g.memory != mem {
		t.Error("memory service not resolved")
	}
	if g.lanes == nil || g.providers == nil || g.gatherer == nil {
		t.Error("services not resolved")
	}

	resp, err := http.Get("http://" + g.Addr().String() + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	var body HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Providers) != 1 || body.Providers[0].Name != "openai" {
		t.Errorf("providers = %+v", body.Providers)
	}
}

func TestGateway_StartWithoutServices(t *testing.T) {
	t.Parallel()

	g := &Gateway{config: Config{Bind: "127.0.0.1:0"}}
	if err := g.Provision(core.NewAppContext(discard(), t.TempDir())); err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if err := g.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := g.Stop(context.Background()); err != nil {
		t.Errorf("Stop: %v", err)
	}
}

func TestGateway_StopWithoutStart(t *testing.T) {
	t.Parallel()

	g := &Gateway{}
	if err := g.Stop(context.Background()); err != nil {
		t.Errorf("Stop: %v", err)
	}
}
