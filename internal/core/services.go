package core

// Well-known service names shared through AppContext.RegisterService.
const (
	// ServiceShortStore holds the memory.ShortStore provided by a
	// memory.* module.
	ServiceShortStore = "memory.short_store"

	// ServiceLongStore holds the memory.LongStore provided by a memory.*
	// module.
	ServiceLongStore = "memory.long_store"

	// ServiceMemory holds the wired *memory.Manager.
	ServiceMemory = "memory.manager"

	// ServiceDispatcher holds the wired *dispatch.Dispatcher.
	ServiceDispatcher = "dispatch.dispatcher"

	// ServiceProviderHealth holds the delegate fallback health reporter.
	ServiceProviderHealth = "provider.health"

	// ServiceMetricsRegistry holds the *prometheus.Registry.
	ServiceMetricsRegistry = "telemetry.registry"
)
