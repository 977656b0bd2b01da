package cron

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// simpleJob is a minimal Job for scheduler tests.
type simpleJob struct {
	name     string
	schedule string
	runFunc  func(ctx context.Context) error
	calls    atomic.Int32
}

func (j *simpleJob) Name() string     { return j.name }
func (j *simpleJob) Schedule() string { return j.schedule }
func (j *simpleJob) Run(ctx context.Context) error {
	j.calls.Add(1)
	if j.runFunc != nil {
		return j.runFunc(ctx)
	}
	return nil
}

func TestScheduler_RegisterJob_DuplicateName(t *testing.T) {
	t.Parallel()

	s := NewScheduler(nil)
	if err := s.RegisterJob(&simpleJob{name: "test", schedule: "* * * * *"}); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	if err := s.RegisterJob(&simpleJob{name: "test", schedule: "* * * * *"}); err == nil {
		t.Fatal("duplicate registration should fail")
	}
}

func TestScheduler_Start_InvalidSchedule(t *testing.T) {
	t.Parallel()

	s := NewScheduler(nil)
	_ = s.RegisterJob(&simpleJob{name: "bad", schedule: "invalid"})
	if err := s.Start(); err == nil {
		t.Fatal("expected error for invalid schedule")
	}
}

func TestScheduler_StartStop(t *testing.T) {
	t.Parallel()

	s := NewScheduler(nil)
	_ = s.RegisterJob(&simpleJob{name: "b", schedule: "* * * * *"})
	_ = s.RegisterJob(&simpleJob{name: "a", schedule: "0 3 * * *"})

	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := s.Jobs(); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("Jobs() = %v, want [a b]", got)
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestScheduler_StopWithoutStart(t *testing.T) {
	t.Parallel()

	if err := NewScheduler(nil).Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestScheduler_RunNow(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	ok := &simpleJob{name: "ok", schedule: "0 3 * * *"}
	bad := &simpleJob{name: "bad", schedule: "0 3 * * *", runFunc: func(context.Context) error { return boom }}

	s := NewScheduler(nil)
	_ = s.RegisterJob(ok)
	_ = s.RegisterJob(bad)

	if ran, err := s.RunNow("ok"); !ran || err != nil {
		t.Errorf("RunNow(ok) = %v, %v", ran, err)
	}
	if ran, err := s.RunNow("bad"); !ran || !errors.Is(err, boom) {
		t.Errorf("RunNow(bad) = %v, %v", ran, err)
	}
	if ran, _ := s.RunNow("missing"); ran {
		t.Error("RunNow(missing) ran")
	}
	if ok.calls.Load() != 1 || bad.calls.Load() != 1 {
		t.Errorf("calls ok=%d bad=%d", ok.calls.Load(), bad.calls.Load())
	}
}

func TestScheduler_NoParallelRuns(t *testing.T) {
	t.Parallel()

	var inFlight, peak atomic.Int32
	release := make(chan struct{})
	s := NewScheduler(nil)
	_ = s.RegisterJob(&simpleJob{
		name:     "slow",
		schedule: "0 3 * * *",
		runFunc: func(context.Context) error {
			cur := inFlight.Add(1)
			for {
				old := peak.Load()
				if cur <= old || peak.CompareAndSwap(old, cur) {
					break
				}
			}
			<-release
			inFlight.Add(-1)
			return nil
		},
	})

	var (
		wg   sync.WaitGroup
		runs atomic.Int32
	)
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ran, _ := s.RunNow("slow"); ran {
				runs.Add(1)
			}
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if peak.Load() != 1 {
		t.Errorf("peak concurrent runs = %d, want 1", peak.Load())
	}
	if runs.Load() < 1 {
		t.Error("no run happened")
	}
}

func TestScheduler_StopCancelsJobs(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	s := NewScheduler(nil)
	_ = s.RegisterJob(&simpleJob{
		name:     "blocking",
		schedule: "0 3 * * *",
		runFunc: func(ctx context.Context) error {
			close(started)
			<-ctx.Done()
			return ctx.Err()
		},
	})
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := s.RunNow("blocking")
		done <- err
	}()
	<-started

	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("job err = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("job was not cancelled by Stop")
	}
}

func TestValidateSchedule(t *testing.T) {
	t.Parallel()

	tests := []struct {
		expr    string
		wantErr bool
	}{
		{"0 3 * * *", false},
		{"*/5 * * * *", false},
		{"@every 1m", true},
		{"", true},
		{"* * * *", true},
		{"0 0 3 * * *", true},
		{"not a schedule", true},
	}
	for _, tt := range tests {
		err := ValidateSchedule(tt.expr)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateSchedule(%q) error = %v, wantErr %v", tt.expr, err, tt.wantErr)
		}
	}
}
