// Package mongo implements the short-form memory tier on MongoDB: one
// collection for persisted fragments and one for the batching staging
// area.
package mongo

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/flemzord/almond/internal/core"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
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
	_ core.Stopper      = (*Module)(nil)
)

// Module registers a MongoDB-backed memory.ShortStore.
type Module struct {
	config Config
	client *mongo.Client
	store  *Store
	logger *slog.Logger
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "memory.mongo",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("mongo: decode config: %w", err)
	}
	m.config.defaults()
	return nil
}

// Provision implements core.Provisioner. The driver connects lazily, so no
// network traffic happens here.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	m.logger = ctx.Logger

	opts := options.Client().
		ApplyURI(m.config.URI).
		SetConnectTimeout(m.config.ConnectTimeout).
		SetServerSelectionTimeout(m.config.ConnectTimeout)
	if m.config.Username != "" {
		opts.SetAuth(options.Credential{
			Username: m.config.Username,
			Password: m.config.Password,
		})
	}

	client, err := mongo.Connect(context.Background(), opts)
	if err != nil {
		return fmt.Errorf("mongo: connect: %w", err)
	}
	m.client = client
	m.store = NewStore(client.Database(m.config.Database), m.config.Collection, m.config.StagingCollection)

	ctx.RegisterService(core.ServiceShortStore, m.store)
	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	return m.config.validate()
}

// Start implements core.Starter. It pings the primary and ensures indexes
// so a misconfigured deployment fails at startup.
func (m *Module) Start() error {
	ctx, cancel := context.WithTimeout(context.Background(), m.config.ConnectTimeout)
	defer cancel()

	if err := m.client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("mongo: ping %s: %w", m.config.Database, err)
	}
	if err := m.store.EnsureIndexes(ctx); err != nil {
		return err
	}
	m.logger.Info("mongo: short-form store ready",
		"database", m.config.Database,
		"collection", m.config.Collection,
		"staging", m.config.StagingCollection,
	)
	return nil
}

// Stop implements core.Stopper.
func (m *Module) Stop(ctx context.Context) error {
	if m.client == nil {
		return nil
	}
	return m.client.Disconnect(ctx)
}
