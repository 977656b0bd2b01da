package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/flemzord/almond/internal/channel"
	"github.com/flemzord/almond/internal/config"
	ctxengine "github.com/flemzord/almond/internal/context"
	"github.com/flemzord/almond/internal/core"
	"github.com/flemzord/almond/internal/cron"
	"github.com/flemzord/almond/internal/dispatch"
	"github.com/flemzord/almond/internal/memory"
	"github.com/flemzord/almond/internal/provider"
	"github.com/flemzord/almond/internal/telemetry"
)

const hydrateTimeout = time.Minute

var (
	errNoProvider        = errors.New("app: at least one provider module is required when a channel is configured")
	errAmbiguousProvider = errors.New("app: provider.primary is required when more than one provider module is configured")
)

// healthReporter is satisfied by the provider fallback chain.
type healthReporter interface {
	HealthReport() []provider.Status
}

// Core is the wired message path shared by every channel.
type Core struct {
	Memory     *memory.Manager
	Dispatcher *dispatch.Dispatcher
	Outbound   *channel.Dispatcher
	Scheduler  *cron.Scheduler
}

// coreModule puts the Core into the App lifecycle. It is appended after
// the store and provider modules and before the channels, so stores are
// connected before hydration and no channel delivers a message before
// the histories are seeded.
type coreModule struct {
	core   *Core
	logger *slog.Logger
}

func (m *coreModule) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{ID: "dispatch"}
}

func (m *coreModule) Start() error {
	ctx, cancel := context.WithTimeout(context.Background(), hydrateTimeout)
	defer cancel()

	n, err := m.core.Memory.Hydrate(ctx)
	if err != nil {
		return err
	}
	m.logger.Info("app: histories seeded", "conversations", n)

	if m.core.Scheduler != nil {
		return m.core.Scheduler.Start()
	}
	return nil
}

func (m *coreModule) Stop(ctx context.Context) error {
	var errs []error
	if m.core.Scheduler != nil {
		errs = append(errs, m.core.Scheduler.Stop(ctx))
	}
	errs = append(errs, m.core.Dispatcher.Stop(ctx))
	return errors.Join(errs...)
}

var (
	_ core.Module  = (*coreModule)(nil)
	_ core.Starter = (*coreModule)(nil)
	_ core.Stopper = (*coreModule)(nil)
)

// splitModuleIDs separates channel modules, which are loaded after the
// core is wired, from everything else.
func splitModuleIDs(ids []string) (base, channels []string) {
	for _, id := range ids {
		if core.ModuleID(id).Namespace() == "channel" {
			channels = append(channels, id)
			continue
		}
		base = append(base, id)
	}
	return base, channels
}

// assemble loads every configured module and wires the core between them:
// stores, providers and the gateway first, then the dispatch core, then
// the channels with their inbox pointed at the dispatcher.
func assemble(application *core.App, appCtx *core.AppContext, cfg *config.Config, metrics *telemetry.Metrics) (*Core, error) {
	logger := appCtx.Logger
	base, channels := splitModuleIDs(config.Resolve(cfg))

	if err := application.LoadModules(base); err != nil {
		return nil, err
	}

	if len(channels) == 0 {
		logger.Info("app: no channel configured, skipping dispatch wiring")
		return nil, nil
	}

	c, err := wireCore(application, appCtx, cfg, metrics)
	if err != nil {
		return nil, err
	}
	application.AppendModule(&coreModule{core: c, logger: logger})

	if err := application.LoadModules(channels); err != nil {
		return nil, err
	}
	if err := attachChannels(application, c, channels); err != nil {
		return nil, err
	}
	logger.Info("app: wired", "channels", len(channels))
	return c, nil
}

// wireCore builds the delegate chain, the memory manager, the pipeline and
// the dispatcher, and registers them as services. It must run after the
// store and provider modules are loaded.
func wireCore(application *core.App, appCtx *core.AppContext, cfg *config.Config, metrics *telemetry.Metrics) (*Core, error) {
	logger := appCtx.Logger

	chain, err := buildDelegates(application, cfg.Provider, metrics, logger)
	if err != nil {
		return nil, err
	}
	if chain.health != nil {
		appCtx.RegisterService(core.ServiceProviderHealth, chain.health)
	}

	compressor := ctxengine.NewCompressor(chain.internal, ctxengine.RegexEstimator{}, cfg.Context, logger)
	mem, err := newMemory(appCtx, cfg.Memory, metrics,
		[]memory.RouterOption{memory.WithOptimizer(compressor)},
		memory.WithCompressor(compressor),
		memory.WithRewriter(memory.NewLLMRewriter(chain.internal)),
	)
	if err != nil {
		return nil, err
	}

	outbound := channel.NewDispatcher(logger)
	pipeline, err := dispatch.NewPipeline(dispatch.PipelineConfig{
		Assistant: cfg.Assistant,
		Memory:    mem,
		Assembler: ctxengine.NewAssembler(ctxengine.RegexEstimator{}, cfg.Context),
		Delegate:  chain.reply,
		Sender:    outbound,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}

	d, err := dispatch.New(pipeline, cfg.Dispatch,
		dispatch.WithLogger(logger),
		dispatch.WithMetrics(metrics),
	)
	if err != nil {
		return nil, err
	}
	pipeline.SetLaneCounter(d)

	c := &Core{
		Memory:     mem,
		Dispatcher: d,
		Outbound:   outbound,
	}
	if !cfg.Maintenance.Disabled {
		if c.Scheduler, err = newScheduler(cfg, c, logger); err != nil {
			return nil, err
		}
	}

	appCtx.RegisterService(core.ServiceMemory, mem)
	appCtx.RegisterService(core.ServiceDispatcher, d)
	return c, nil
}

func newScheduler(cfg *config.Config, c *Core, logger *slog.Logger) (*cron.Scheduler, error) {
	s := cron.NewScheduler(logger)
	jobs := []cron.Job{
		&cron.ForgetJob{
			Forgetter:    c.Memory,
			ScheduleExpr: cfg.Memory.Forget.Schedule,
			Logger:       logger,
		},
		&cron.LanePruneJob{
			Lanes:        c.Dispatcher,
			MaxIdle:      cfg.Dispatch.IdleTimeout,
			ScheduleExpr: cfg.Maintenance.LanePruneSchedule,
			Logger:       logger,
		},
	}
	for _, j := range jobs {
		if err := s.RegisterJob(j); err != nil {
			return nil, fmt.Errorf("app: registering job %s: %w", j.Name(), err)
		}
	}
	return s, nil
}

// attachChannels registers every loaded channel with the outbound
// dispatcher under its module ID and points its inbox at the dispatcher.
func attachChannels(application *core.App, c *Core, ids []string) error {
	for _, id := range ids {
		mod, ok := application.Module(id)
		if !ok {
			return fmt.Errorf("app: channel %s not loaded", id)
		}
		ch, ok := mod.(channel.Channel)
		if !ok {
			return fmt.Errorf("app: module %s does not implement channel.Channel", id)
		}
		if err := c.Outbound.Register(id, ch); err != nil {
			return fmt.Errorf("app: registering channel %s: %w", id, err)
		}
		ch.SetInbox(c.Dispatcher.Enqueue)
	}
	return nil
}

// delegates holds the two views of the provider chain. reply carries the
// duplicate-request guard and answers users; internal skips it and serves
// compression, batch optimization and query rewriting.
type delegates struct {
	reply    provider.Delegate
	internal provider.Delegate
	health   healthReporter
}

// buildDelegates collects every loaded provider module into a registry and
// builds Traced → Fallback → Retry → DedupGuard.
func buildDelegates(application *core.App, cfg provider.Config, metrics *telemetry.Metrics, logger *slog.Logger) (delegates, error) {
	reg := provider.NewRegistry()
	for _, mod := range application.Modules() {
		id := mod.ModuleInfo().ID
		if id.Namespace() != "provider" {
			continue
		}
		d, ok := mod.(provider.Delegate)
		if !ok {
			return delegates{}, fmt.Errorf("app: module %s does not implement provider.Delegate", id)
		}
		if err := reg.Add(id.Name(), provider.NewTraced(id.Name(), d, metrics, nil)); err != nil {
			return delegates{}, err
		}
	}

	primary := cfg.Primary
	if primary == "" {
		switch names := reg.Names(); len(names) {
		case 0:
			return delegates{}, errNoProvider
		case 1:
			primary = names[0]
		default:
			return delegates{}, errAmbiguousProvider
		}
	}

	resolved, err := reg.Resolve(primary, cfg.Fallbacks,
		provider.WithCooldown(cfg.Cooldown),
		provider.WithFallbackLogger(logger),
	)
	if err != nil {
		return delegates{}, fmt.Errorf("app: resolving provider chain: %w", err)
	}

	internal := provider.WithRetry(resolved, cfg.RetryConfig, logger)
	out := delegates{
		reply:    provider.NewDedupGuard(internal, cfg.DuplicateWindow),
		internal: internal,
	}
	if h, ok := resolved.(healthReporter); ok {
		out.health = h
	}
	logger.Info("app: provider chain ready", "primary", primary, "fallbacks", cfg.Fallbacks)
	return out, nil
}

// resolveStores returns the stores registered by memory.* modules, falling
// back to process-local stores for a missing tier.
func resolveStores(appCtx *core.AppContext) (memory.ShortStore, memory.LongStore) {
	short, _ := core.Service[memory.ShortStore](appCtx, core.ServiceShortStore)
	long, _ := core.Service[memory.LongStore](appCtx, core.ServiceLongStore)
	if short == nil {
		appCtx.Logger.Warn("app: no short-form store configured, memories will not survive a restart", "tier", memory.TierShort)
		short = memory.NewInMemoryShortStore()
	}
	if long == nil {
		appCtx.Logger.Warn("app: no long-form store configured, memories will not survive a restart", "tier", memory.TierLong)
		long = memory.NewInMemoryLongStore()
	}
	return short, long
}

// newMemory builds the store router and memory manager over the resolved
// stores.
func newMemory(appCtx *core.AppContext, cfg memory.Config, metrics *telemetry.Metrics, routerOpts []memory.RouterOption, opts ...memory.ManagerOption) (*memory.Manager, error) {
	short, long := resolveStores(appCtx)

	routerOpts = append(routerOpts,
		memory.WithRouterLogger(appCtx.Logger),
		memory.WithRouterMetrics(metrics),
	)
	router, err := memory.NewRouter(short, long, cfg.RouterConfig, routerOpts...)
	if err != nil {
		return nil, err
	}

	opts = append(opts,
		memory.WithLogger(appCtx.Logger),
		memory.WithMetrics(metrics),
	)
	return memory.NewManager(router, cfg, opts...)
}
