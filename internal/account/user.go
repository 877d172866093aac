// Package account implements users: balance, depot ownership, trade history,
// and the funds-checked entry point for settling a trade against one user.
package account

import (
	"errors"
	"sync"

	"github.com/boersenspiel/market-engine/internal/depot"
	"github.com/boersenspiel/market-engine/internal/market"
	"github.com/boersenspiel/market-engine/internal/model"
)

// TransactionCostRate is the fixed surcharge/fee applied to trade notionals:
// buyers pay notional * (1 + rate), sellers receive notional * (1 - rate).
const TransactionCostRate = 0.05

var (
	// ErrUserNotFound is returned when a user name does not resolve.
	ErrUserNotFound = errors.New("account: user not found")

	// ErrInsufficientFunds is returned when a purchase's total cost
	// including the transaction surcharge exceeds the user's balance.
	ErrInsufficientFunds = errors.New("account: not enough balance for stock purchase")
)

// User is one market participant. All mutable state (balance, depot, sales,
// inbox) is guarded by the user's own lock, so trades by different users
// proceed independently while trades on the same user serialize.
type User struct {
	name   string
	passwd string

	mu       sync.Mutex
	balance  float64
	depot    *depot.Depot
	sales    []model.Sale
	messages []model.Message
}

// NewUser creates a user with the given starting balance and a zero
// position for every stock in the universe.
func NewUser(name, passwd string, balance float64, universe *market.Universe) *User {
	return &User{
		name:    name,
		passwd:  passwd,
		balance: balance,
		depot:   depot.New(universe),
	}
}

// Name returns the immutable user name.
func (u *User) Name() string { return u.name }

// Balance returns the current cash balance.
func (u *User) Balance() float64 {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.balance
}

// Buy settles a signed trade for this user end to end: funds check, depot
// and inventory application, then the fee-adjusted balance mutation. The
// quote is read exactly once, so the trade settles at the price the funds
// check approved; concurrent price ticks cannot overdraw the balance.
//
// The funds check runs against cost * (1 + TransactionCostRate) before the
// holdings and inventory checks. This ordering is observable: an order
// violating both funds and holdings constraints reports the funds error.
// Because the cost of a sale is negative, the check only ever binds on
// purchases.
//
// Returns the signed notional the depot settled at.
func (u *User) Buy(stock *market.Stock, number int) (float64, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	price := stock.Price()
	cost := price * float64(number)
	totalCost := cost * (1 + TransactionCostRate)
	if totalCost > u.balance {
		return 0, ErrInsufficientFunds
	}

	actualCost, err := u.depot.Buy(stock, number, price)
	if err != nil {
		return 0, err
	}

	if actualCost > 0 {
		// Purchase: buyer pays the notional plus the surcharge.
		u.balance -= (1 + TransactionCostRate) * actualCost
	} else {
		// Sale: actualCost is negative, so this credits the proceeds
		// minus the fee.
		u.balance -= actualCost * (1 - TransactionCostRate)
	}
	return actualCost, nil
}

// PortfolioSum returns balance plus depot value, the leaderboard figure.
func (u *User) PortfolioSum() float64 {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.balance + u.depot.TotalValue()
}

// AccountView snapshots the depot positions and their total value.
func (u *User) AccountView() ([]model.PositionView, float64) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.depot.Views(), u.depot.TotalValue()
}

// Holdings returns the user's current share count for the given stock.
func (u *User) Holdings(stock *market.Stock) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.depot.Holdings(stock)
}

// RecordSale appends a settled trade to the user's sales history.
func (u *User) RecordSale(sale model.Sale) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.sales = append(u.sales, sale)
}

// Sales returns a copy of the sales history, oldest first.
func (u *User) Sales() []model.Sale {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]model.Sale, len(u.sales))
	copy(out, u.sales)
	return out
}

// Deliver appends a message to the user's inbox.
func (u *User) Deliver(msg model.Message) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.messages = append(u.messages, msg)
}

// Messages returns a copy of the inbox, oldest first.
func (u *User) Messages() []model.Message {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]model.Message, len(u.messages))
	copy(out, u.messages)
	return out
}
