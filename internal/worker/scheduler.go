// Package worker runs the background jobs: automatic invoice generation
// and the export of paid invoices to a spreadsheet.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"financas/internal/log"
	"financas/internal/services"
)

// InvoiceGenerator is implemented by *services.InvoiceService.
type InvoiceGenerator interface {
	AutoGenerate(ctx context.Context, uid string, now time.Time) (services.AutoGenerateResult, error)
}

// UserLister is implemented by *storage.Repository.
type UserLister interface {
	UserIDs(ctx context.Context) ([]string, error)
}

// SchedulerConfig holds configuration for the auto-invoice scheduler
type SchedulerConfig struct {
	// Interval between two runs (default: 1h)
	Interval time.Duration

	// Concurrency bounds how many users are processed at once (default: 4)
	Concurrency int
}

// DefaultSchedulerConfig returns sensible defaults
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Interval:    time.Hour,
		Concurrency: 4,
	}
}

// RunSummary aggregates one scheduler run over all users.
type RunSummary struct {
	Users     int
	Generated int
	Empty     int
	Failed    int
	UserErrs  int
}

// AutoInvoiceScheduler periodically generates the invoices of every user
// whose card closing day has passed.
type AutoInvoiceScheduler struct {
	users    UserLister
	invoices InvoiceGenerator
	config   SchedulerConfig
	logger   *log.Logger
	now      func() time.Time

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewAutoInvoiceScheduler(users UserLister, invoices InvoiceGenerator, config SchedulerConfig, logger *log.Logger) *AutoInvoiceScheduler {
	if config.Interval <= 0 {
		config.Interval = DefaultSchedulerConfig().Interval
	}
	if config.Concurrency <= 0 {
		config.Concurrency = DefaultSchedulerConfig().Concurrency
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &AutoInvoiceScheduler{
		users:    users,
		invoices: invoices,
		config:   config,
		logger:   logger.WithComponent(log.ComponentWorker),
		now:      time.Now,
	}
}

// Start begins the scheduling loop. Returns an error if already running.
func (s *AutoInvoiceScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("auto-invoice scheduler is already running")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	go s.runLoop(ctx)

	s.logger.InfoContext(ctx, "Auto-invoice scheduler started",
		"interval", s.config.Interval,
		"concurrency", s.config.Concurrency)
	return nil
}

// Stop signals the loop and waits for the current run to finish.
func (s *AutoInvoiceScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	stopCh, doneCh := s.stopCh, s.doneCh
	s.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		s.logger.InfoContext(ctx, "Auto-invoice scheduler stopped gracefully")
	case <-ctx.Done():
		s.logger.WarnContext(ctx, "Auto-invoice scheduler stop timed out")
		return ctx.Err()
	}

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	return nil
}

func (s *AutoInvoiceScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *AutoInvoiceScheduler) runLoop(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	// Run immediately on startup
	s.runAndLog(ctx)

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runAndLog(ctx)
		}
	}
}

func (s *AutoInvoiceScheduler) runAndLog(ctx context.Context) {
	sum, err := s.RunOnce(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Auto-invoice run failed", log.FieldError, err)
		return
	}
	s.logger.DebugContext(ctx, "Auto-invoice run complete",
		"users", sum.Users,
		"generated", sum.Generated,
		"empty", sum.Empty,
		"failed", sum.Failed+sum.UserErrs)
}

// RunOnce generates the due invoices of every stored user. A failing user
// is logged and counted; it never stops the others.
func (s *AutoInvoiceScheduler) RunOnce(ctx context.Context) (RunSummary, error) {
	uids, err := s.users.UserIDs(ctx)
	if err != nil {
		return RunSummary{}, fmt.Errorf("list users: %w", err)
	}
	now := s.now()

	var (
		mu  sync.Mutex
		sum = RunSummary{Users: len(uids)}
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.Concurrency)
	for _, uid := range uids {
		g.Go(func() error {
			res, err := s.invoices.AutoGenerate(gctx, uid, now)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				sum.UserErrs++
				s.logger.ErrorContext(gctx, "Auto-invoice failed for user",
					log.FieldUserID, uid,
					log.FieldOperation, log.OpAutoInvoke,
					log.FieldError, err)
				return nil
			}
			sum.Generated += len(res.Generated)
			sum.Empty += res.Empty
			sum.Failed += res.Failed
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return sum, err
	}
	return sum, ctx.Err()
}
