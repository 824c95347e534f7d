package monitor

import (
	"context"
	"errors"
	"log"
	"sync/atomic"
	"time"

	"github.com/warrantyeye/internal/alert"
	"github.com/warrantyeye/internal/settings"
)

// Runner is the evaluation entrypoint the scheduler drives.
type Runner interface {
	Evaluate(ctx context.Context) (*alert.PassResult, error)
}

// Scheduler triggers evaluation passes on a fixed interval. A tick that
// arrives while a pass is still running is skipped; the unique index on open
// alerts makes overlap harmless, but there is no point stacking passes.
type Scheduler struct {
	runner   Runner
	interval time.Duration
	stopChan chan struct{}
	running  atomic.Bool
}

func NewScheduler(runner Runner, interval time.Duration) *Scheduler {
	return &Scheduler{
		runner:   runner,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

func (s *Scheduler) Start() {
	// Initial pass
	s.runOnce()

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.runOnce()
			case <-s.stopChan:
				return
			}
		}
	}()
}

func (s *Scheduler) Stop() {
	close(s.stopChan)
}

func (s *Scheduler) runOnce() {
	if !s.running.CompareAndSwap(false, true) {
		log.Printf("evaluation pass still running, skipping tick")
		return
	}
	defer s.running.Store(false)

	if _, err := s.runner.Evaluate(context.Background()); err != nil {
		if errors.Is(err, settings.ErrConfigurationMissing) {
			log.Printf("evaluation aborted: %v", err)
			return
		}
		log.Printf("evaluation pass failed: %v", err)
	}
}
