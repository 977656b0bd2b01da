package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/flemzord/almond/internal/memory"
	"github.com/flemzord/almond/internal/memory/memorytest"
)

type retrievalFixture struct {
	short    *memorytest.FaultyShortStore
	long     *memorytest.FaultyLongStore
	rewriter *memorytest.MockRewriter
	usage    *memory.UsageTracker
	r        *memory.Retriever
}

func newRetrievalFixture(t *testing.T, cfg memory.RetrieverConfig) *retrievalFixture {
	t.Helper()
	fx := &retrievalFixture{
		short:    memorytest.NewFaultyShortStore(),
		long:     memorytest.NewFaultyLongStore(),
		rewriter: &memorytest.MockRewriter{},
		usage:    memory.NewUsageTracker(),
	}
	router := newRouter(t, fx.short, fx.long, memory.RouterConfig{})
	fx.r = memory.NewRetriever(router, fx.usage, fx.rewriter, cfg, nil, nil)
	return fx
}

func (fx *retrievalFixture) addLong(t *testing.T, conv, content string) {
	t.Helper()
	if _, err := fx.long.BulkInsert(context.Background(), []memory.Fragment{
		{ConversationID: conv, Role: memory.RoleUser, Content: content},
	}); err != nil {
		t.Fatalf("BulkInsert: %v", err)
	}
}

func (fx *retrievalFixture) addShort(t *testing.T, conv, content string) {
	t.Helper()
	if _, err := fx.short.Insert(context.Background(), memory.Fragment{
		ConversationID: conv, Role: memory.RoleUser, Content: content,
	}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
}

func TestRetriever_LongStageHit(t *testing.T) {
	t.Parallel()

	fx := newRetrievalFixture(t, memory.RetrieverConfig{})
	fx.addLong(t, "g1", "Alice organised the hiking trip to the Alps last June")
	fx.addLong(t, "g2", "hiking trip in another group")

	f, ok, err := fx.r.Retrieve(context.Background(), "g1", "hiking trip")
	if err != nil || !ok {
		t.Fatalf("Retrieve = %v, %v; want hit", ok, err)
	}
	if f.Role != memory.RoleSystem {
		t.Errorf("Role = %q, want system", f.Role)
	}
	if want := memory.AdvisoryPrefix + "Alice organised the hiking trip to the Alps last June"; f.Content != want {
		t.Errorf("Content = %q, want %q", f.Content, want)
	}
	if fx.rewriter.Calls() != 0 {
		t.Errorf("rewriter called %d times after a long-stage hit", fx.rewriter.Calls())
	}

	snap := fx.usage.Snapshot()
	if len(snap) != 1 || snap[0].Frequency != 1 || snap[0].Fragment.ConversationID != "g1" {
		t.Errorf("usage = %+v, want one g1 stat with frequency 1", snap)
	}
	if snap[0].Fragment.Role != memory.RoleUser {
		t.Error("usage should track the stored fragment, not the advisory")
	}
}

func TestRetriever_ShortStageAfterLongMiss(t *testing.T) {
	t.Parallel()

	fx := newRetrievalFixture(t, memory.RetrieverConfig{})
	fx.addShort(t, "g1", "bob: the hiking trip photos are up")

	f, ok, err := fx.r.Retrieve(context.Background(), "g1", "hiking trip")
	if err != nil || !ok {
		t.Fatalf("Retrieve = %v, %v; want short-stage hit", ok, err)
	}
	if f.Tier != memory.TierShort {
		t.Errorf("Tier = %q, want short", f.Tier)
	}
	if fx.long.Searches() != 1 {
		t.Errorf("long searches = %d, want 1", fx.long.Searches())
	}
}

func TestRetriever_ShortStageSearchesStaging(t *testing.T) {
	t.Parallel()

	fx := newRetrievalFixture(t, memory.RetrieverConfig{})
	fx.short.Stage(context.Background(), memory.Fragment{ConversationID: "g1", Role: memory.RoleUser, Content: "hiking trip next week"})

	f, ok, err := fx.r.Retrieve(context.Background(), "g1", "hiking trip")
	if err != nil || !ok {
		t.Fatalf("Retrieve = %v, %v; want staged hit", ok, err)
	}
	if f.Tier != memory.TierStaged {
		t.Errorf("Tier = %q, want staged", f.Tier)
	}
}

func TestRetriever_LongFailureDegradesToShort(t *testing.T) {
	t.Parallel()

	fx := newRetrievalFixture(t, memory.RetrieverConfig{})
	fx.long.SearchErr = errors.New("es unavailable")
	fx.addShort(t, "g1", "hiking trip")

	if _, ok, err := fx.r.Retrieve(context.Background(), "g1", "hiking trip"); err != nil || !ok {
		t.Fatalf("Retrieve = %v, %v; want degraded hit", ok, err)
	}
}

func TestRetriever_RewriteStage(t *testing.T) {
	t.Parallel()

	fx := newRetrievalFixture(t, memory.RetrieverConfig{})
	fx.rewriter.Terms = []string{"alps", "vacation"}
	fx.addLong(t, "g1", "the alps vacation was in june")

	f, ok, err := fx.r.Retrieve(context.Background(), "g1", "hiking trip")
	if err != nil || !ok {
		t.Fatalf("Retrieve = %v, %v; want rewrite-stage hit", ok, err)
	}
	if f.Content != memory.AdvisoryPrefix+"the alps vacation was in june" {
		t.Errorf("Content = %q", f.Content)
	}
	if fx.rewriter.Calls() != 1 {
		t.Errorf("rewriter calls = %d, want 1", fx.rewriter.Calls())
	}
	if fx.long.Searches() != 2 {
		t.Errorf("long searches = %d, want 2", fx.long.Searches())
	}
}

func TestRetriever_MissAfterEveryStage(t *testing.T) {
	t.Parallel()

	fx := newRetrievalFixture(t, memory.RetrieverConfig{})
	fx.rewriter.Terms = []string{"nothing"}
	fx.addLong(t, "g1", "unrelated content about cooking")

	f, ok, err := fx.r.Retrieve(context.Background(), "g1", "hiking trip")
	if err != nil {
		t.Fatalf("Retrieve error = %v, want nil", err)
	}
	if ok {
		t.Fatalf("Retrieve = %+v, want miss", f)
	}
	if fx.rewriter.Calls() != 1 || fx.long.Searches() != 2 {
		t.Errorf("rewriter calls = %d, long searches = %d; want every stage attempted", fx.rewriter.Calls(), fx.long.Searches())
	}
	if fx.usage.Len() != 0 {
		t.Errorf("usage = %d, want 0 after a miss", fx.usage.Len())
	}
}

func TestRetriever_RewriteFailureIsAMiss(t *testing.T) {
	t.Parallel()

	fx := newRetrievalFixture(t, memory.RetrieverConfig{})
	fx.rewriter.Err = errors.New("llm down")

	if _, ok, err := fx.r.Retrieve(context.Background(), "g1", "hiking trip"); err != nil || ok {
		t.Errorf("Retrieve = %v, %v; want clean miss", ok, err)
	}
}

func TestRetriever_DisableRewrite(t *testing.T) {
	t.Parallel()

	fx := newRetrievalFixture(t, memory.RetrieverConfig{DisableRewrite: true})
	fx.rewriter.Terms = []string{"alps"}
	fx.addLong(t, "g1", "alps")

	if _, ok, _ := fx.r.Retrieve(context.Background(), "g1", "hiking trip"); ok {
		t.Error("Retrieve hit through a disabled rewrite stage")
	}
	if fx.rewriter.Calls() != 0 {
		t.Errorf("rewriter calls = %d, want 0", fx.rewriter.Calls())
	}
}

func TestRetriever_AllStoresFailing(t *testing.T) {
	t.Parallel()

	fx := newRetrievalFixture(t, memory.RetrieverConfig{DisableRewrite: true})
	fx.long.SearchErr = errors.New("es unavailable")
	fx.short.SetFindErr(errors.New("mongo unavailable"))

	if _, ok, err := fx.r.Retrieve(context.Background(), "g1", "hiking trip"); err == nil || ok {
		t.Errorf("Retrieve = %v, %v; want error", ok, err)
	}
}

func TestRetriever_CanceledContext(t *testing.T) {
	t.Parallel()

	fx := newRetrievalFixture(t, memory.RetrieverConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, _, err := fx.r.Retrieve(ctx, "g1", "hiking trip"); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if fx.rewriter.Calls() != 0 {
		t.Error("rewrite should not run on a canceled context")
	}
}

func TestRetriever_RetrieveN(t *testing.T) {
	t.Parallel()

	fx := newRetrievalFixture(t, memory.RetrieverConfig{MaxFragments: 2})
	fx.addLong(t, "g1", "hiking trip in the alps")
	fx.addLong(t, "g1", "hiking trip planning thread")
	fx.addLong(t, "g1", "hiking")

	got, err := fx.r.RetrieveN(context.Background(), "g1", "hiking trip", 5)
	if err != nil {
		t.Fatalf("RetrieveN: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2 (capped by MaxFragments)", len(got))
	}
	if fx.usage.Len() != 2 {
		t.Errorf("usage = %d, want 2", fx.usage.Len())
	}
}

func TestRetriever_RepeatedHitsIncrementFrequency(t *testing.T) {
	t.Parallel()

	fx := newRetrievalFixture(t, memory.RetrieverConfig{})
	fx.addLong(t, "g1", "hiking trip")

	for range 3 {
		fx.r.Retrieve(context.Background(), "g1", "hiking trip")
	}
	snap := fx.usage.Snapshot()
	if len(snap) != 1 || snap[0].Frequency != 3 {
		t.Fatalf("usage = %+v, want one stat with frequency 3", snap)
	}
	if time.Since(snap[0].LastUsed) > time.Minute {
		t.Errorf("LastUsed = %v, want recent", snap[0].LastUsed)
	}
}
