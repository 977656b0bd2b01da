package core

import (
	"bytes"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

// hookModule records which loading hooks ran and can fail any of them.
type hookModule struct {
	id    ModuleID
	calls *[]string
	fail  string
	key   *string
}

func (m *hookModule) ModuleInfo() ModuleInfo {
	return ModuleInfo{ID: m.id, New: func() Module {
		cp := *m
		return &cp
	}}
}

func (m *hookModule) hook(name string) error {
	*m.calls = append(*m.calls, name)
	if m.fail == name {
		return errors.New(name + " boom")
	}
	return nil
}

func (m *hookModule) Configure(node *yaml.Node) error {
	if err := m.hook("configure"); err != nil {
		return err
	}
	if m.key == nil {
		return nil
	}
	var section struct {
		Key string `yaml:"key"`
	}
	if err := node.Decode(&section); err != nil {
		return err
	}
	*m.key = section.Key
	return nil
}

func (m *hookModule) Provision(ctx *AppContext) error {
	ctx.RegisterService("provisioned."+string(m.id), true)
	return m.hook("provision")
}

func (m *hookModule) Validate() error { return m.hook("validate") }

// provisionOnly has no Configure hook.
type provisionOnly struct {
	calls *[]string
}

func (m *provisionOnly) ModuleInfo() ModuleInfo {
	return ModuleInfo{ID: "memory.plain", New: func() Module { return m }}
}

func (m *provisionOnly) Provision(*AppContext) error {
	*m.calls = append(*m.calls, "provision")
	return nil
}

func section(t *testing.T, src string) yaml.Node {
	t.Helper()
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(src), &doc); err != nil {
		t.Fatal(err)
	}
	return *doc.Content[0]
}

func TestAppContext_LoadModule(t *testing.T) {
	t.Cleanup(resetRegistry)

	tests := []struct {
		name      string
		id        ModuleID
		fail      string
		withCfg   bool
		wantCalls []string
		wantErr   string
	}{
		{"all hooks", "memory.full", "", true, []string{"configure", "provision", "validate"}, ""},
		{"no section skips configure", "memory.nocfg", "", false, []string{"provision", "validate"}, ""},
		{"configure fails", "memory.badcfg", "configure", true, []string{"configure"}, "configuring module"},
		{"provision fails", "memory.badprov", "provision", true, []string{"configure", "provision"}, "provisioning module"},
		{"validate fails", "memory.badval", "validate", false, []string{"provision", "validate"}, "validating module"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls []string
			RegisterModule(&hookModule{id: tt.id, calls: &calls, fail: tt.fail})

			ctx := NewAppContext(nil, t.TempDir())
			if tt.withCfg {
				ctx = ctx.WithModuleConfigs(map[string]yaml.Node{string(tt.id): section(t, "key: v")})
			}

			mod, err := ctx.LoadModule(string(tt.id))
			if !slices.Equal(calls, tt.wantCalls) {
				t.Errorf("calls = %v, want %v", calls, tt.wantCalls)
			}
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("err = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil || mod == nil {
				t.Fatalf("LoadModule = %v, %v", mod, err)
			}
		})
	}
}

func TestAppContext_LoadModule_DecodesSection(t *testing.T) {
	t.Cleanup(resetRegistry)

	var (
		calls []string
		key   string
	)
	RegisterModule(&hookModule{id: "memory.keyed", calls: &calls, key: &key})

	ctx := NewAppContext(nil, t.TempDir()).WithModuleConfigs(map[string]yaml.Node{
		"memory.keyed": section(t, "key: hello"),
	})
	if _, err := ctx.LoadModule("memory.keyed"); err != nil {
		t.Fatalf("LoadModule: %v", err)
	}
	if key != "hello" {
		t.Errorf("key = %q, want hello", key)
	}
	if _, ok := ctx.GetService("provisioned.memory.keyed"); !ok {
		t.Error("service registered during Provision not visible from the root context")
	}
}

func TestAppContext_LoadModule_SectionIgnoredWithoutConfigure(t *testing.T) {
	t.Cleanup(resetRegistry)

	var calls []string
	RegisterModule(&provisionOnly{calls: &calls})

	ctx := NewAppContext(nil, t.TempDir()).WithModuleConfigs(map[string]yaml.Node{
		"memory.plain": section(t, "key: v"),
	})
	if _, err := ctx.LoadModule("memory.plain"); err != nil {
		t.Fatalf("LoadModule: %v", err)
	}
	if !slices.Equal(calls, []string{"provision"}) {
		t.Errorf("calls = %v", calls)
	}
}

func TestAppContext_LoadModule_Unknown(t *testing.T) {
	t.Cleanup(resetRegistry)

	if _, err := NewAppContext(nil, t.TempDir()).LoadModule("memory.nowhere"); err == nil {
		t.Fatal("expected error for unknown module")
	}
}

func TestAppContext_ForModule(t *testing.T) {
	var buf bytes.Buffer
	root := NewAppContext(slog.New(slog.NewTextHandler(&buf, nil)), "/var/lib/almond").
		WithModuleConfigs(map[string]yaml.Node{"memory.mongo": {}})

	child := root.ForModule("memory.mongo")
	child.Logger.Info("connected")
	if !strings.Contains(buf.String(), "module=memory.mongo") {
		t.Errorf("log line = %q, want module attribute", buf.String())
	}
	if child.DataDir != root.DataDir {
		t.Errorf("DataDir = %q", child.DataDir)
	}
	if _, ok := child.sections["memory.mongo"]; !ok {
		t.Error("child lost the module sections")
	}

	// A grandchild is scoped to its own ID only.
	buf.Reset()
	child.ForModule("memory.sqlite").Logger.Info("opened")
	if strings.Contains(buf.String(), "memory.mongo") {
		t.Errorf("log line = %q, scoped twice", buf.String())
	}
}

func TestService(t *testing.T) {
	ctx := NewAppContext(nil, "")
	ctx.ForModule("memory.elasticsearch").RegisterService(ServiceLongStore, 42)

	if got, ok := Service[int](ctx, ServiceLongStore); !ok || got != 42 {
		t.Errorf("Service[int] = %v, %v", got, ok)
	}
	if _, ok := Service[string](ctx, ServiceLongStore); ok {
		t.Error("Service with the wrong type should report false")
	}
	if _, ok := Service[int](ctx, "missing"); ok {
		t.Error("Service(missing) should report false")
	}
}
