package market

import (
	"math/rand/v2"

	"github.com/boersenspiel/market-engine/internal/model"
)

// DefaultStockNames is the fixed roster of the simulated exchange.
var DefaultStockNames = []string{
	"adidas",
	"Allianz",
	"BASF",
	"Bayer",
	"Beiersdorf",
	"BMW",
	"Continental",
	"Covestro",
	"Daimler",
	"Delivery Hero",
	"Deutsche Bank",
	"Deutsche Börse",
	"Deutsche Post",
	"Deutsche Telekom",
	"Deutsche Wohnen",
}

// Universe is the set of all tradable stocks. The set is fixed at startup;
// only the stocks themselves mutate, each under its own lock, so the
// universe needs no lock of its own.
type Universe struct {
	stocks []*Stock
	byName map[string]*Stock
}

// NewUniverse creates one stock per name, in order.
func NewUniverse(names []string, rng *rand.Rand) *Universe {
	u := &Universe{
		stocks: make([]*Stock, 0, len(names)),
		byName: make(map[string]*Stock, len(names)),
	}
	for _, name := range names {
		s := NewStock(name, rng)
		u.stocks = append(u.stocks, s)
		u.byName[name] = s
	}
	return u
}

// Find resolves a stock by name.
func (u *Universe) Find(name string) (*Stock, error) {
	s, ok := u.byName[name]
	if !ok {
		return nil, ErrStockNotFound
	}
	return s, nil
}

// Stocks returns all stocks in roster order.
func (u *Universe) Stocks() []*Stock {
	return u.stocks
}

// Quotes snapshots the full universe in roster order.
func (u *Universe) Quotes() []model.Quote {
	quotes := make([]model.Quote, len(u.stocks))
	for i, s := range u.stocks {
		quotes[i] = s.Quote()
	}
	return quotes
}
