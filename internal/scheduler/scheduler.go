package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"quotearchiver/internal/model"
	"quotearchiver/internal/notifier"
)

// ErrBusy is returned when a harvest is requested while one is running.
var ErrBusy = errors.New("harvest already running")

// Harvester performs one archive run.
type Harvester interface {
	Collect(ctx context.Context, now time.Time) (*model.RunSummary, error)
}

// Scheduler runs the harvester on a cron schedule and on demand.
type Scheduler struct {
	Cron      *cron.Cron
	Harvester Harvester
	Ctx       context.Context
	Now       func() time.Time

	runMu  sync.Mutex
	lastMu sync.Mutex
	last   *model.RunSummary
}

// NewScheduler creates a new Scheduler. Runs never overlap: a tick that
// fires while the previous run is still going is skipped.
func NewScheduler(ctx context.Context, h Harvester) *Scheduler {
	logger := cron.PrintfLogger(log.Default())
	return &Scheduler{
		Cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		Harvester: h,
		Ctx:       ctx,
		Now:       time.Now,
	}
}

// Register adds the harvest task under the given six-field cron spec.
func (s *Scheduler) Register(spec string) error {
	if _, err := s.Cron.AddFunc(spec, s.harvestTask); err != nil {
		return fmt.Errorf("register harvest task: %w", err)
	}
	log.Printf("[INFO] harvest scheduled at %q", spec)
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Println("[INFO] scheduler started")
}

// Stop stops the cron scheduler and waits for a running harvest to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	log.Println("[INFO] scheduler stopped")
}

// RunNow executes the harvest immediately and returns its error. It returns
// ErrBusy without running when another harvest is in progress.
func (s *Scheduler) RunNow() error {
	if !s.runMu.TryLock() {
		return ErrBusy
	}
	defer s.runMu.Unlock()

	run, err := s.Harvester.Collect(s.Ctx, s.Now())
	if run != nil {
		s.lastMu.Lock()
		s.last = run
		s.lastMu.Unlock()
	}
	return err
}

// LastRun returns the summary of the most recent harvest, or nil.
func (s *Scheduler) LastRun() *model.RunSummary {
	s.lastMu.Lock()
	defer s.lastMu.Unlock()
	return s.last
}

// HandleCommand processes a chat command and returns a reply.
func (s *Scheduler) HandleCommand(command string) string {
	switch command {
	case "/run":
		// The harvester reports the outcome itself.
		if err := s.RunNow(); errors.Is(err, ErrBusy) {
			return "A harvest is already running."
		}
		return ""
	case "/last":
		run := s.LastRun()
		if run == nil {
			return "No harvest has run yet."
		}
		return notifier.FormatRunReport(run)
	default:
		return "Available commands:\n• /run - harvest now\n• /last - report of the latest harvest"
	}
}

func (s *Scheduler) harvestTask() {
	if s.Ctx.Err() != nil {
		return
	}
	log.Println("[INFO] running scheduled harvest")
	err := s.RunNow()
	switch {
	case errors.Is(err, ErrBusy):
		log.Println("[INFO] harvest already running, tick skipped")
	case err != nil:
		log.Printf("[ERROR] scheduled harvest: %v", err)
	}
}
