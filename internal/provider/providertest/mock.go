// Package providertest provides test helpers for the provider package.
package providertest

import (
	"context"
	"sync"

	"github.com/flemzord/almond/internal/provider"
)

// Call records the arguments of one GetResponse invocation.
type Call struct {
	History      []provider.Message
	UserInput    string
	SystemPrompt string
}

// MockDelegate is a configurable test double for provider.Delegate.
// When GetResponseFunc is nil it returns Reply. Safe for concurrent use.
type MockDelegate struct {
	GetResponseFunc func(ctx context.Context, history []provider.Message, userInput, systemPrompt string) (string, error)
	Reply           string

	mu    sync.Mutex
	calls []Call
}

// GetResponse records the call and delegates to GetResponseFunc.
func (m *MockDelegate) GetResponse(ctx context.Context, history []provider.Message, userInput, systemPrompt string) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, Call{
		History:      append([]provider.Message(nil), history...),
		UserInput:    userInput,
		SystemPrompt: systemPrompt,
	})
	m.mu.Unlock()

	if m.GetResponseFunc != nil {
		return m.GetResponseFunc(ctx, history, userInput, systemPrompt)
	}
	return m.Reply, nil
}

// Calls returns a copy of all recorded calls.
func (m *MockDelegate) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

// CallCount returns the number of GetResponse invocations.
func (m *MockDelegate) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Interface guard.
var _ provider.Delegate = (*MockDelegate)(nil)
