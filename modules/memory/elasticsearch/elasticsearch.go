// Package elasticsearch implements the long-form memory tier on an
// Elasticsearch index searched with more_like_this queries.
package elasticsearch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/flemzord/almond/internal/core"
	"gopkg.in/yaml.v3"
)

func init() {
	core.RegisterModule(&Module{})
}

// Compile-time interface guards.
var (
	_ core.Configurable = (*Module)(nil)
	_ core.Provisioner  = (*Module)(nil)
	_ core.Validator    = (*Module)(nil)
	_ core.Starter      = (*Module)(nil)
)

// Module registers an Elasticsearch-backed memory.LongStore.
type Module struct {
	config Config
	store  *Store
	logger *slog.Logger
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "memory.elasticsearch",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("elasticsearch: decode config: %w", err)
	}
	m.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	m.logger = ctx.Logger

	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: m.config.Addresses,
		Username:  m.config.Username,
		Password:  m.config.Password,
	})
	if err != nil {
		return fmt.Errorf("elasticsearch: create client: %w", err)
	}
	m.store = NewStore(es, m.config)

	ctx.RegisterService(core.ServiceLongStore, m.store)
	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	return m.config.validate()
}

// Start implements core.Starter. Creating the index up front surfaces
// connection and auth problems at startup.
func (m *Module) Start() error {
	ctx, cancel := context.WithTimeout(context.Background(), m.config.Timeout)
	defer cancel()

	if err := m.store.EnsureIndex(ctx); err != nil {
		return err
	}
	m.logger.Info("elasticsearch: long-form store ready", "index", m.config.Index)
	return nil
}
