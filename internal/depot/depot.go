// Package depot implements the per-user securities ledger: one position per
// stock in the universe, valuation, and the inventory-plus-position leg of
// trade settlement.
//
// A Depot is owned by exactly one user and is only read or written while
// that user's lock is held; it carries no lock of its own. The stocks it
// references are shared and guard themselves.
package depot

import (
	"errors"

	"github.com/boersenspiel/market-engine/internal/market"
	"github.com/boersenspiel/market-engine/internal/model"
)

var (
	// ErrInsufficientHoldings is returned when a sale would drive a
	// position's share count negative.
	ErrInsufficientHoldings = errors.New("depot: not enough shares held for sale")

	// ErrNoPosition is returned when a depot has no position for the given
	// stock. Cannot happen for stocks resolved from the same universe the
	// depot was built from.
	ErrNoPosition = errors.New("depot: no position for stock")
)

// Position is one user's holding of one stock.
type Position struct {
	stock  *market.Stock
	number int
}

// Stock returns the referenced stock.
func (p *Position) Stock() *market.Stock { return p.stock }

// Number returns the held share count.
func (p *Position) Number() int { return p.number }

// Value returns the position's mark-to-market value at the current quote.
func (p *Position) Value() float64 {
	return p.stock.Price() * float64(p.number)
}

// View snapshots the position for read-only account queries.
func (p *Position) View() model.PositionView {
	return model.PositionView{
		Stock:  p.stock.Quote(),
		Number: p.number,
	}
}

// Depot holds the full set of positions for one user.
type Depot struct {
	positions []*Position
}

// New creates a depot with a zero position for every stock in the universe,
// in roster order.
func New(universe *market.Universe) *Depot {
	stocks := universe.Stocks()
	d := &Depot{positions: make([]*Position, len(stocks))}
	for i, s := range stocks {
		d.positions[i] = &Position{stock: s}
	}
	return d
}

// TotalValue returns the sum of all position values at current quotes.
func (d *Depot) TotalValue() float64 {
	var total float64
	for _, p := range d.positions {
		total += p.Value()
	}
	return total
}

// Views snapshots all positions in roster order.
func (d *Depot) Views() []model.PositionView {
	views := make([]model.PositionView, len(d.positions))
	for i, p := range d.positions {
		views[i] = p.View()
	}
	return views
}

// Holdings returns the current share count for the given stock.
func (d *Depot) Holdings(stock *market.Stock) int {
	for _, p := range d.positions {
		if p.stock == stock {
			return p.number
		}
	}
	return 0
}

// Buy applies a signed trade to the matching position: positive buys,
// negative sells. The holdings check runs first, then the market inventory
// adjustment (which may fail), and only then is the position mutated, so a
// failure at any step leaves both inventory and position untouched.
//
// price is the quote the caller's funds check ran against; the returned
// signed notional is number * price, so the trade settles at exactly the
// checked quote even if a tick lands mid-settlement.
func (d *Depot) Buy(stock *market.Stock, number int, price float64) (float64, error) {
	for _, p := range d.positions {
		if p.stock != stock {
			continue
		}

		if p.number+number < 0 {
			return 0, ErrInsufficientHoldings
		}

		if err := stock.Buy(number); err != nil {
			return 0, err
		}

		p.number += number
		return float64(number) * price, nil
	}
	return 0, ErrNoPosition
}
