package ctxengine_test

import (
	"fmt"
	"time"

	"github.com/flemzord/almond/internal/memory"
)

// mockEstimator counts one token per byte.
type mockEstimator struct{}

func (mockEstimator) Estimate(text string) int { return len(text) }

// makeTurns creates n alternating user/assistant turns.
func makeTurns(n int) []memory.Turn {
	turns := make([]memory.Turn, n)
	for i := range turns {
		role := memory.RoleUser
		if i%2 == 1 {
			role = memory.RoleAssistant
		}
		turns[i] = memory.Turn{Role: role, Content: fmt.Sprintf("msg-%d", i), Timestamp: time.Unix(int64(i), 0)}
	}
	return turns
}

func historyOf(turns []memory.Turn) *memory.History {
	h := memory.NewHistory(50)
	for _, t := range turns {
		h.Append(t)
	}
	return h
}
