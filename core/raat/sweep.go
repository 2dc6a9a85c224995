package raat

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"condor-raat/config"
	"condor-raat/core/utils"
)

// Sweeper periodically persists the overdue escalation so notification
// counters and external reports stay correct even when nobody is reading
// the incidents. Reads never depend on it; it only makes the lazy state
// durable.
type Sweeper struct {
	cfg    config.SchedulerConfig
	svc    *Service
	logger *utils.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

func NewSweeper(cfg config.SchedulerConfig, svc *Service, logger *utils.Logger) *Sweeper {
	return &Sweeper{cfg: cfg, svc: svc, logger: logger}
}

func (s *Sweeper) Start(ctx context.Context) error {
	if s == nil || s.svc == nil || !s.cfg.Enabled {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	interval := s.cfg.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	c := cron.New()
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", interval), func() {
		if _, err := s.svc.SweepOverdue(ctx); err != nil {
			s.logger.Errorf("raat: overdue sweep failed: %v", err)
		}
	}); err != nil {
		return err
	}
	c.Start()
	s.cron = c
	s.running = true
	s.logger.Infof("raat: overdue sweep scheduled every %s", interval)
	return nil
}

func (s *Sweeper) Stop(ctx context.Context) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	wasRunning := s.running
	s.running = false
	s.mu.Unlock()
	if !wasRunning || c == nil {
		return nil
	}
	stopped := c.Stop()
	select {
	case <-stopped.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
