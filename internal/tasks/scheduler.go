package tasks

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/robfig/cron/v3"
)

// Scheduler runs jobs on standard five-field cron schedules.
type Scheduler struct {
	cron   *cron.Cron
	logger *log.Logger

	mu      sync.Mutex
	entries map[string]cron.EntryID
}

// NewScheduler creates a stopped [Scheduler]. A nil logger discards output.
func NewScheduler(logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = log.New(nil)
	}
	logger = logger.WithPrefix("cron")
	return &Scheduler{
		cron:    cron.New(cron.WithLogger(cronLogger{logger}), cron.WithChain(cron.Recover(cronLogger{logger}))),
		logger:  logger,
		entries: make(map[string]cron.EntryID),
	}
}

// Add registers fn under name to run on schedule. Names are unique.
func (s *Scheduler) Add(name, schedule string, fn func(ctx context.Context)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[name]; exists {
		return fmt.Errorf("job %s is already scheduled", name)
	}

	id, err := s.cron.AddFunc(schedule, func() {
		s.logger.Debug("job triggered", "job", name)
		fn(context.Background())
	})
	if err != nil {
		return fmt.Errorf("failed to schedule %s with %q: %w", name, schedule, err)
	}
	s.entries[name] = id

	s.logger.Info("job scheduled", "job", name, "schedule", schedule)
	return nil
}

// Remove unregisters the job named name.
func (s *Scheduler) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, exists := s.entries[name]
	if !exists {
		return fmt.Errorf("job %s is not scheduled", name)
	}
	s.cron.Remove(id)
	delete(s.entries, name)
	return nil
}

// Jobs returns the names of scheduled jobs.
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	return names
}

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops the scheduler and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ScheduleRetention registers a purge with policy on schedule.
func (e *NoteEngine) ScheduleRetention(s *Scheduler, schedule string, policy RetentionPolicy) error {
	return s.Add("retention", schedule, func(ctx context.Context) {
		if _, err := e.Purge(ctx, policy, nil); err != nil {
			e.logger.Error("scheduled retention purge failed", "error", err)
		}
	})
}

// cronLogger adapts a charmbracelet logger to cron.Logger.
type cronLogger struct {
	logger *log.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
