// Package proactive schedules content sends that are not replies to any
// incoming message: reminders, digests, announcements.
package proactive

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// SendFunc dispatches one proactive send. Wired to the sender's SendTo.
type SendFunc func(ctx context.Context, platform, chatID, ref string, extra map[string]any) error

// Task is one recurring proactive send.
type Task struct {
	ID        string
	Name      string
	Ref       string // renderer or content reference, e.g. "!daily-digest"
	IntervalS int    // interval in seconds
	Platform  string
	ChatID    string
	Data      map[string]any // extra render context
	Enabled   bool
	LastRun   time.Time
	NextRun   time.Time
}

// Scheduler fires tasks at their intervals with a one second tick.
type Scheduler struct {
	tasks    map[string]*Task
	send     SendFunc
	logger   *slog.Logger
	mu       sync.RWMutex
	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewScheduler(send SendFunc, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		tasks:  make(map[string]*Task),
		send:   send,
		logger: logger,
		stopCh: make(chan struct{}),
	}
}

func (s *Scheduler) AddTask(task Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task.NextRun = time.Now().Add(time.Duration(task.IntervalS) * time.Second)
	s.tasks[task.ID] = &task
	s.logger.Info("proactive task added", "id", task.ID, "name", task.Name, "ref", task.Ref, "interval", task.IntervalS)
}

func (s *Scheduler) RemoveTask(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tasks, id)
	s.logger.Info("proactive task removed", "id", id)
}

func (s *Scheduler) ListTasks() []Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tasks := make([]Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		tasks = append(tasks, *t)
	}
	return tasks
}

func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("proactive scheduler started")
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("proactive scheduler stopping")
			return
		case <-s.stopCh:
			return
		case now := <-ticker.C:
			s.checkAndFire(ctx, now)
		}
	}
}

// Stop halts the scheduler. Safe to call multiple times.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
}

func (s *Scheduler) checkAndFire(ctx context.Context, now time.Time) {
	s.mu.Lock()
	var due []Task
	for _, task := range s.tasks {
		if !task.Enabled || now.Before(task.NextRun) {
			continue
		}
		task.LastRun = now
		task.NextRun = now.Add(time.Duration(task.IntervalS) * time.Second)
		due = append(due, *task)
	}
	s.mu.Unlock()

	// Sends run outside the lock: a slow delivery sequence must not stall
	// task bookkeeping or other tasks' due checks.
	for _, task := range due {
		s.logger.Info("firing proactive task", "id", task.ID, "name", task.Name, "ref", task.Ref)
		if err := s.send(ctx, task.Platform, task.ChatID, task.Ref, task.Data); err != nil {
			s.logger.Error("proactive send failed", "id", task.ID, "ref", task.Ref, "error", err)
		}
	}
}
