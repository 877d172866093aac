// Package sim drives the stochastic price simulation: one shared step
// counter, one tick across the whole universe, on a fixed wall-clock
// cadence for the lifetime of the process.
package sim

import (
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/boersenspiel/market-engine/internal/metrics"
)

// PriceTicker is anything whose price advances once per simulation step.
type PriceTicker interface {
	Name() string
	UpdatePrice(step int64, rng *rand.Rand)
}

// Simulator advances every stock by one step per tick. Ticks run
// sequentially; the simulator owns the step counter and the randomness
// source.
type Simulator struct {
	mu      sync.Mutex
	stocks  []PriceTicker
	rng     *rand.Rand
	step    int64
	logger  *slog.Logger
	onTick  func(step int64)
}

// NewSimulator creates a simulator over the given stocks. The rand source
// is injectable so tests can run deterministic trajectories.
func NewSimulator(stocks []PriceTicker, rng *rand.Rand, logger *slog.Logger) *Simulator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Simulator{
		stocks: stocks,
		rng:    rng,
		logger: logger,
	}
}

// OnTick registers a hook invoked after each completed tick, outside the
// per-stock update path. Used to publish quotes to the WebSocket feed and
// price gauges.
func (s *Simulator) OnTick(fn func(step int64)) {
	s.onTick = fn
}

// Step returns the current step counter.
func (s *Simulator) Step() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step
}

// Tick increments the shared step counter once, then updates every stock.
// A failure in one stock's update is isolated so it cannot halt price
// updates for the rest of the universe.
func (s *Simulator) Tick() {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	s.step++
	for _, stock := range s.stocks {
		s.tickOne(stock)
	}

	metrics.PriceTicksTotal.Inc()
	metrics.TickDuration.Observe(time.Since(start).Seconds())

	if s.onTick != nil {
		s.onTick(s.step)
	}
}

func (s *Simulator) tickOne(stock PriceTicker) {
	defer func() {
		if r := recover(); r != nil {
			metrics.TickErrorsTotal.Inc()
			s.logger.Error("price update failed", "stock", stock.Name(), "panic", r)
		}
	}()
	stock.UpdatePrice(s.step, s.rng)
}
