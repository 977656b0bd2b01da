package core

import (
	"context"

	"gopkg.in/yaml.v3"
)

// The optional hooks below run in declaration order for every loaded
// module: Configure, Provision and Validate while loading, Start once the
// whole set is loaded, and Stop in reverse start order on shutdown.

// Configurable modules decode their section of the modules map. It is
// skipped when the section is absent.
type Configurable interface {
	Configure(node *yaml.Node) error
}

// Provisioner modules fill defaults, open clients and register the services
// they offer (a store, a delegate) on the scoped context.
type Provisioner interface {
	Provision(ctx *AppContext) error
}

// Validator modules check their final settings. Validate must not touch the
// network or the filesystem.
type Validator interface {
	Validate() error
}

// Starter modules begin background work such as polling a chat network or
// connecting a store.
type Starter interface {
	Start() error
}

// Stopper modules release what Start acquired. ctx carries the shutdown
// deadline.
type Stopper interface {
	Stop(ctx context.Context) error
}
