package sim

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs the simulator on a fixed interval. Ticks are
// unconditional for the lifetime of the process; there is no backpressure
// and no coalescing.
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
}

// NewScheduler wires the simulator's Tick onto an @every cron schedule.
func NewScheduler(simulator *Simulator, interval time.Duration, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}

	c := cron.New()
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", interval), simulator.Tick); err != nil {
		return nil, fmt.Errorf("sim: scheduling price ticks: %w", err)
	}

	logger.Info("price simulation scheduled", "interval", interval.String())
	return &Scheduler{cron: c, logger: logger}, nil
}

// Start begins ticking in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("price simulation started")
}

// Stop halts the schedule and waits for an in-flight tick to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("price simulation stopped")
}
