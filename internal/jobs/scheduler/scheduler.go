package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/yungbote/diveops-backend/internal/modules/integrity"
	"github.com/yungbote/diveops-backend/internal/observability"
	"github.com/yungbote/diveops-backend/internal/pkg/logger"
)

// ErrAuditInProgress is returned by RunNow while another audit holds the slot.
var ErrAuditInProgress = errors.New("integrity audit already in progress")

const DefaultInterval = 24 * time.Hour

type Runner interface {
	Run(ctx context.Context, opts integrity.Options) (integrity.Summary, error)
}

type Config struct {
	Interval  time.Duration
	OnStartup bool
	// Options are used for the startup run and every tick.
	Options integrity.Options
}

// DefaultOptions repairs, regenerates and alerts.
func DefaultOptions() integrity.Options {
	return integrity.Options{AutoRepair: true, RegenerateMedia: true, SendAlerts: true}
}

// Scheduler runs audits in the background, one at a time.
type Scheduler struct {
	log    *logger.Logger
	runner Runner
	cfg    Config

	running sync.Mutex

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	last   *integrity.Summary
}

func New(log *logger.Logger, runner Runner, cfg Config) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	return &Scheduler{
		log:    log.With("component", "IntegrityScheduler"),
		runner: runner,
		cfg:    cfg,
	}
}

// Start launches the loop. Calling Start twice is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)
		if s.cfg.OnStartup {
			s.tick(ctx, integrity.TriggerStartup)
		}
		ticker := time.NewTicker(s.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.tick(ctx, integrity.TriggerScheduled)
			}
		}
	}(s.done)
	s.log.Info("Integrity scheduler started", "interval", s.cfg.Interval.String(), "on_startup", s.cfg.OnStartup)
}

// Stop cancels the loop and waits for an in-flight audit to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.log.Info("Integrity scheduler stopped")
}

// RunNow runs one audit immediately unless another is running.
func (s *Scheduler) RunNow(ctx context.Context, opts integrity.Options) (integrity.Summary, error) {
	if !s.running.TryLock() {
		return integrity.Summary{}, ErrAuditInProgress
	}
	defer s.running.Unlock()
	if opts.Trigger == "" {
		opts.Trigger = integrity.TriggerManual
	}
	return s.run(ctx, opts)
}

// Last returns the most recent successful summary.
func (s *Scheduler) Last() (integrity.Summary, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return integrity.Summary{}, false
	}
	return *s.last, true
}

func (s *Scheduler) tick(ctx context.Context, trigger string) {
	if !s.running.TryLock() {
		s.log.Warn("Skipping integrity tick; previous audit still running", "trigger", trigger)
		observability.Current().IncAuditSkipped()
		return
	}
	defer s.running.Unlock()

	opts := s.cfg.Options
	opts.Trigger = trigger
	if _, err := s.run(ctx, opts); err != nil && ctx.Err() == nil {
		s.log.Error("Scheduled integrity audit failed", "trigger", trigger, "error", err)
	}
}

func (s *Scheduler) run(ctx context.Context, opts integrity.Options) (summary integrity.Summary, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("Integrity audit panic", "trigger", opts.Trigger, "panic", r)
			err = fmt.Errorf("integrity audit panic: %v", r)
		}
	}()
	summary, err = s.runner.Run(ctx, opts)
	if err != nil {
		return summary, err
	}
	s.mu.Lock()
	s.last = &summary
	s.mu.Unlock()
	return summary, nil
}
