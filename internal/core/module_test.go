package core

import "testing"

func TestModuleID_Parts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		id        ModuleID
		namespace string
		name      string
	}{
		{"memory.mongo", "memory", "mongo"},
		{"channel.telegram", "channel", "telegram"},
		{"gateway.http", "gateway", "http"},
		{"dispatch", "dispatch", "dispatch"},
		{"a.b.c", "a", "b.c"},
	}
	for _, tt := range tests {
		t.Run(string(tt.id), func(t *testing.T) {
			t.Parallel()
			if got := tt.id.Namespace(); got != tt.namespace {
				t.Errorf("Namespace() = %q, want %q", got, tt.namespace)
			}
			if got := tt.id.Name(); got != tt.name {
				t.Errorf("Name() = %q, want %q", got, tt.name)
			}
		})
	}
}
