// Package sqlite implements a persistent SQLite-backed memory module. One
// database provides the short-form tier with its staging area and the
// long-form tier, whose similarity search runs on an FTS5 index. It uses
// modernc.org/sqlite (pure Go, no CGO) in WAL mode.
package sqlite

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/flemzord/almond/internal/core"
	"github.com/flemzord/almond/internal/memory"
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
	_ core.Stopper      = (*Module)(nil)
)

// Module registers the SQLite tiers it is configured for as the memory
// store services.
type Module struct {
	config Config
	db     *DB
	logger *slog.Logger
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "memory.sqlite",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("sqlite: decode config: %w", err)
	}
	m.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	m.logger = ctx.Logger

	if m.config.Path == "" {
		m.config.Path = filepath.Join(ctx.DataDir, defaultDBFile)
	}

	db, err := Open(context.Background(), m.config)
	if err != nil {
		return err
	}
	m.db = db

	if m.config.provides(memory.TierShort) {
		ctx.RegisterService(core.ServiceShortStore, db.Short())
	}
	if m.config.provides(memory.TierLong) {
		ctx.RegisterService(core.ServiceLongStore, db.Long())
	}

	m.logger.Info("sqlite: memory module provisioned",
		"path", m.config.Path,
		"wal", m.config.walEnabled(),
		"tiers", m.config.Tiers,
	)
	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	if err := m.config.validate(); err != nil {
		return err
	}
	return m.db.Ping(context.Background())
}

// Stop implements core.Stopper.
func (m *Module) Stop(_ context.Context) error {
	if m.db == nil {
		return nil
	}
	m.logger.Info("sqlite: memory module stopping")
	return m.db.Close()
}

// DB returns the open database, or nil before Provision.
func (m *Module) DB() *DB { return m.db }
