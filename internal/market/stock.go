// Package market owns the simulated stock universe: per-stock quoted prices,
// the stochastic price model that drives them, and the market-wide share
// inventory that trades settle against.
package market

import (
	"errors"
	"math/rand/v2"
	"sync"

	"github.com/boersenspiel/market-engine/internal/model"
)

var (
	// ErrStockNotFound is returned when a stock name does not resolve.
	ErrStockNotFound = errors.New("market: stock not found")

	// ErrInsufficientSupply is returned when a purchase would drive the
	// market-wide availability of a stock negative.
	ErrInsufficientSupply = errors.New("market: not enough shares available in the market")
)

const (
	initialPrice     = 500
	initialAvailable = 100000
)

// Stock is one tradable security. Price and inventory are guarded by the
// stock's own lock, so trades on different stocks never contend and a price
// tick can never produce a torn read against a concurrent settlement.
type Stock struct {
	name string

	mu        sync.RWMutex
	price     float64
	available int
	wave      waveform
}

// NewStock creates a stock with the fixed initial price and issuance and
// randomized waveform parameters.
func NewStock(name string, rng *rand.Rand) *Stock {
	return &Stock{
		name:      name,
		price:     initialPrice,
		available: initialAvailable,
		wave:      newWaveform(rng),
	}
}

// Name returns the immutable stock name.
func (s *Stock) Name() string { return s.name }

// Price returns the current quoted price.
func (s *Stock) Price() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.price
}

// Quote returns a consistent snapshot of the stock's public fields.
func (s *Stock) Quote() model.Quote {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return model.Quote{
		Name:            s.name,
		Price:           s.price,
		NumberAvailable: s.available,
	}
}

// Buy adjusts market-wide availability by the signed number: positive
// removes shares from the market, negative returns them. A purchase
// exceeding availability fails with ErrInsufficientSupply and leaves the
// inventory unchanged. Returned shares are accepted without an upper bound.
//
// Buy does not price the trade: the notional is computed by the caller at
// the quote its funds check ran against, so a tick landing mid-settlement
// cannot charge more than was checked.
func (s *Stock) Buy(number int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if number > 0 && s.available < number {
		return ErrInsufficientSupply
	}
	s.available -= number
	return nil
}

// UpdatePrice advances the stock's price by one simulation step: the
// waveform parameters drift stochastically, then the quoted price is
// recomputed from the sinusoid plus noise.
func (s *Stock) UpdatePrice(step int64, rng *rand.Rand) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.wave.drift(rng)
	noise := 4 - rng.Float64()*2 // uniform in (2, 4]
	s.price = s.wave.priceAt(step, noise)
}
