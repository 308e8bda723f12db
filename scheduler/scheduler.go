// Package scheduler drives the periodic notification cycle, either on a
// cron expression or a fixed interval.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"flatwatch/config"
)

// Runner is the unit of scheduled work, one notification cycle.
type Runner interface {
	RunCycle(ctx context.Context) error
}

type Scheduler struct {
	cfg    *config.Config
	runner Runner
	cron   *cron.Cron
	ticker *time.Ticker
	stopCh chan struct{}
}

func New(cfg *config.Config, runner Runner) *Scheduler {
	return &Scheduler{
		cfg:    cfg,
		runner: runner,
		cron:   cron.New(),
		stopCh: make(chan struct{}),
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	if s.cfg.Scheduler.Cron != "" {
		log.Printf("Starting scheduler with cron: %s", s.cfg.Scheduler.Cron)
		_, err := s.cron.AddFunc(s.cfg.Scheduler.Cron, func() {
			if err := s.runner.RunCycle(ctx); err != nil {
				log.Printf("Scheduled cycle error: %v", err)
			}
		})
		if err != nil {
			return fmt.Errorf("invalid cron expression: %w", err)
		}
		s.cron.Start()
		return nil
	}

	interval := s.cfg.Scheduler.Interval
	if interval <= 0 {
		interval = time.Hour
	}
	log.Printf("Starting scheduler with interval: %s", interval)
	s.ticker = time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-s.ticker.C:
				if err := s.runner.RunCycle(ctx); err != nil {
					log.Printf("Scheduled cycle error: %v", err)
				}
			case <-s.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
	if s.ticker != nil {
		s.ticker.Stop()
	}
	close(s.stopCh)
}

// TriggerNow runs one cycle immediately, outside the schedule.
func (s *Scheduler) TriggerNow(ctx context.Context) error {
	return s.runner.RunCycle(ctx)
}
