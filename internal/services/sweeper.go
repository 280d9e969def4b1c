package services

import (
	"context"
	"fmt"
	"time"

	"github.com/GlebTut/Auction-System-Project/internal/domain"
	"github.com/GlebTut/Auction-System-Project/pkg/logger"

	"github.com/robfig/cron/v3"
)

// SweepScheduler periodically invokes SweepExpired. Closing is idempotent, so
// overlapping sweeps from multiple instances are harmless; the leader gate
// only avoids duplicate work across a fleet.
type SweepScheduler struct {
	cron       *cron.Cron
	lifecycle  *AuctionLifecycleService
	leader     domain.LeaderElection
	instanceID string
	interval   time.Duration
	log        logger.Logger
}

func NewSweepScheduler(lifecycle *AuctionLifecycleService, leader domain.LeaderElection,
	instanceID string, interval time.Duration, log logger.Logger) *SweepScheduler {
	return &SweepScheduler{
		cron:       cron.New(cron.WithSeconds()),
		lifecycle:  lifecycle,
		leader:     leader,
		instanceID: instanceID,
		interval:   interval,
		log:        log,
	}
}

func (s *SweepScheduler) Start(ctx context.Context) error {
	s.log.Info("Starting sweep scheduler", "interval", s.interval)

	_, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.interval), func() {
		s.runSweep(ctx)
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

func (s *SweepScheduler) Stop() error {
	s.log.Info("Stopping sweep scheduler")
	s.cron.Stop()
	return nil
}

func (s *SweepScheduler) runSweep(ctx context.Context) {
	if s.leader != nil {
		isLeader, err := s.leader.IsLeader(ctx, s.instanceID)
		if err != nil {
			s.log.Error("Leader check failed, sweeping anyway", "error", err)
		} else if !isLeader {
			return
		}
	}

	closed, errs := s.lifecycle.SweepExpired(ctx)
	for _, err := range errs {
		s.log.Error("Sweep error", "error", err)
	}
	if closed > 0 {
		s.log.Info("Sweep closed auctions", "count", closed)
	}
}
