package gateway

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/flemzord/almond/internal/dispatch"
	"github.com/flemzord/almond/internal/memory"
	"github.com/flemzord/almond/internal/provider"
	"gopkg.in/yaml.v3"
)

func mustYAMLNode(t *testing.T, s string) *yaml.Node {
	t.Helper()
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(s), &doc); err != nil {
		t.Fatalf("yaml: %v", err)
	}
	if len(doc.Content) == 0 {
		t.Fatal("empty yaml document")
	}
	return doc.Content[0]
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestManager(t *testing.T) *memory.Manager {
	t.Helper()
	router, err := memory.NewRouter(memory.NewInMemoryShortStore(), memory.NewInMemoryLongStore(), memory.RouterConfig{BatchSize: 1})
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	m, err := memory.NewManager(router, memory.Config{})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}

func mustStore(t *testing.T, m *memory.Manager, conv, content string) {
	t.Helper()
	if _, ok, err := m.Store(context.Background(), conv, memory.RoleUser, content); err != nil || !ok {
		t.Fatalf("Store(%q) = %v, %v", content, ok, err)
	}
}

type fakeLanes struct {
	lanes []dispatch.LaneInfo
}

func (f *fakeLanes) Lanes() []dispatch.LaneInfo { return f.lanes }
func (f *fakeLanes) LaneCount() int             { return len(f.lanes) }

type fakeHealth struct {
	statuses []provider.Status
}

func (f *fakeHealth) HealthReport() []provider.Status { return f.statuses }

func fixedClock(ts time.Time) func() time.Time {
	return func() time.Time { return ts }
}
