// Package gateway provides the HTTP surface for operators: health,
// Prometheus metrics, and read-only inspection of memory and dispatch
// state. It binds to loopback by default.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/flemzord/almond/internal/core"
	"github.com/flemzord/almond/internal/dispatch"
	"github.com/flemzord/almond/internal/memory"
	"github.com/flemzord/almond/internal/provider"
	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"
)

func init() {
	core.RegisterModule(&Gateway{})
}

// LaneSource reports dispatch lane state.
type LaneSource interface {
	Lanes() []dispatch.LaneInfo
	LaneCount() int
}

// HealthReporter reports delegate availability.
type HealthReporter interface {
	HealthReport() []provider.Status
}

// Gateway is the HTTP gateway module. Nothing imports it; it resolves its
// dependencies from the service registry at Start.
type Gateway struct {
	config    Config
	appCtx    *core.AppContext
	logger    *slog.Logger
	server    *http.Server
	addr      net.Addr
	startedAt time.Time

	memory    *memory.Manager
	lanes     LaneSource
	providers HealthReporter
	gatherer  prometheus.Gatherer

	// now is injectable for testing.
	now func() time.Time
}

// ModuleInfo implements core.Module.
func (g *Gateway) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "gateway.http",
		New: func() core.Module { return &Gateway{} },
	}
}

// Configure implements core.Configurable.
func (g *Gateway) Configure(node *yaml.Node) error {
	if err := node.Decode(&g.config); err != nil {
		return err
	}
	g.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (g *Gateway) Provision(ctx *core.AppContext) error {
	g.config.defaults()
	g.appCtx = ctx
	g.logger = ctx.Logger
	if g.now == nil {
		g.now = time.Now
	}
	return nil
}

// Validate implements core.Validator.
func (g *Gateway) Validate() error {
	if _, err := net.ResolveTCPAddr("tcp", g.config.Bind); err != nil {
		return fmt.Errorf("gateway: invalid bind address %q: %w", g.config.Bind, err)
	}
	return nil
}

// Start implements core.Starter. Missing services degrade the matching
// endpoints instead of failing.
func (g *Gateway) Start() error {
	g.resolveServices()
	g.startedAt = g.now()

	g.server = &http.Server{
		Addr:         g.config.Bind,
		Handler:      g.buildRouter(),
		ReadTimeout:  g.config.ReadTimeout,
		WriteTimeout: g.config.WriteTimeout,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", g.config.Bind)
	if err != nil {
		return fmt.Errorf("gateway: listen failed: %w", err)
	}
	g.addr = ln.Addr()

	go func() {
		g.logger.Info("gateway: listening", "addr", ln.Addr().String())
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway: serve error", "error", err)
		}
	}()

	return nil
}

func (g *Gateway) resolveServices() {
	if svc, ok := g.appCtx.GetService(core.ServiceMemory); ok {
		if m, ok := svc.(*memory.Manager); ok {
			g.memory = m
		}
	}
	if svc, ok := g.appCtx.GetService(core.ServiceDispatcher); ok {
		if l, ok := svc.(LaneSource); ok {
			g.lanes = l
		}
	}
	if svc, ok := g.appCtx.GetService(core.ServiceProviderHealth); ok {
		if h, ok := svc.(HealthReporter); ok {
			g.providers = h
		}
	}
	if svc, ok := g.appCtx.GetService(core.ServiceMetricsRegistry); ok {
		if gt, ok := svc.(prometheus.Gatherer); ok {
			g.gatherer = gt
		}
	}
}

// Addr returns the bound listener address, or nil before Start.
func (g *Gateway) Addr() net.Addr { return g.addr }

// Stop implements core.Stopper. Graceful shutdown with configured timeout.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, g.config.ShutdownTimeout)
	defer cancel()

	g.logger.Info("gateway: shutting down")
	return g.server.Shutdown(shutdownCtx)
}

// Interface guards.
var (
	_ core.Module       = (*Gateway)(nil)
	_ core.Configurable = (*Gateway)(nil)
	_ core.Provisioner  = (*Gateway)(nil)
	_ core.Validator    = (*Gateway)(nil)
	_ core.Starter      = (*Gateway)(nil)
	_ core.Stopper      = (*Gateway)(nil)
)
