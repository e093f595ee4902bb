// Package scheduler runs periodic full re-discovery so that accounts and meters
// added upstream appear without a restart.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/tejusbharadwaj/energosync/internal/orchestrator"
)

const (
	DefaultSchedule = "0 */6 * * *"
	refreshTimeout  = 10 * time.Minute
)

// Refresher runs a full refresh cycle; satisfied by *orchestrator.Entry.
type Refresher interface {
	Refresh(ctx context.Context) (*orchestrator.CycleReport, error)
}

type Scheduler struct {
	ctx       context.Context
	refresher Refresher
	schedule  string
	logger    *logrus.Logger
	cron      *cron.Cron
}

func NewScheduler(ctx context.Context, refresher Refresher, schedule string, logger *logrus.Logger) *Scheduler {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	return &Scheduler{
		ctx:       ctx,
		refresher: refresher,
		schedule:  schedule,
		logger:    logger,
		cron:      cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
	}
}

// Start the scheduler
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.refresh); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.WithField("schedule", s.schedule).Info("Re-discovery scheduler started")
	return nil
}

// refresh runs one full refresh cycle
func (s *Scheduler) refresh() {
	ctx, cancel := context.WithTimeout(s.ctx, refreshTimeout)
	defer cancel()

	if _, err := s.refresher.Refresh(ctx); err != nil {
		s.logger.WithError(err).Error("Scheduled refresh failed")
	}
}

// Stop the scheduler and wait for a running refresh to finish
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
