package proactive

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type sendRecorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *sendRecorder) send(ctx context.Context, platform, chatID, ref string, extra map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, platform+"/"+chatID+"/"+ref)
	return nil
}

func (r *sendRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func TestScheduler_AddListRemove(t *testing.T) {
	rec := &sendRecorder{}
	s := NewScheduler(rec.send, testLogger())

	s.AddTask(Task{ID: "t1", Name: "digest", Ref: "!daily", IntervalS: 60, Platform: "telegram", ChatID: "42", Enabled: true})
	s.AddTask(Task{ID: "t2", Name: "ping", Ref: "#text", IntervalS: 30, Platform: "web", ChatID: "lobby", Enabled: false})

	tasks := s.ListTasks()
	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(tasks))
	}

	s.RemoveTask("t1")
	if len(s.ListTasks()) != 1 {
		t.Fatal("task not removed")
	}
}

func TestScheduler_NextRunSet(t *testing.T) {
	rec := &sendRecorder{}
	s := NewScheduler(rec.send, testLogger())

	before := time.Now()
	s.AddTask(Task{ID: "t1", Ref: "#text", IntervalS: 60, Enabled: true})

	task := s.ListTasks()[0]
	if task.NextRun.Before(before.Add(59 * time.Second)) {
		t.Fatalf("next run should be about a minute out, got %v", task.NextRun)
	}
}

func TestScheduler_FiresDueTask(t *testing.T) {
	rec := &sendRecorder{}
	s := NewScheduler(rec.send, testLogger())

	s.AddTask(Task{ID: "t1", Ref: "#text", IntervalS: 3600, Platform: "web", ChatID: "lobby", Enabled: true})
	// Force the task due.
	s.mu.Lock()
	s.tasks["t1"].NextRun = time.Now().Add(-time.Second)
	s.mu.Unlock()

	s.checkAndFire(context.Background(), time.Now())

	if rec.count() != 1 {
		t.Fatalf("expected 1 send, got %d", rec.count())
	}
	rec.mu.Lock()
	got := rec.calls[0]
	rec.mu.Unlock()
	if got != "web/lobby/#text" {
		t.Fatalf("unexpected send target: %s", got)
	}

	// The next run moved forward, so an immediate re-check fires nothing.
	s.checkAndFire(context.Background(), time.Now())
	if rec.count() != 1 {
		t.Fatalf("task fired again before its interval, count %d", rec.count())
	}
}

func TestScheduler_DisabledTaskNeverFires(t *testing.T) {
	rec := &sendRecorder{}
	s := NewScheduler(rec.send, testLogger())

	s.AddTask(Task{ID: "t1", Ref: "#text", IntervalS: 1, Enabled: false})
	s.mu.Lock()
	s.tasks["t1"].NextRun = time.Now().Add(-time.Minute)
	s.mu.Unlock()

	s.checkAndFire(context.Background(), time.Now())
	if rec.count() != 0 {
		t.Fatalf("disabled task fired %d times", rec.count())
	}
}

func TestScheduler_StopIsIdempotent(t *testing.T) {
	rec := &sendRecorder{}
	s := NewScheduler(rec.send, testLogger())

	done := make(chan struct{})
	go func() {
		s.Start(context.Background())
		close(done)
	}()

	s.Stop()
	s.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
