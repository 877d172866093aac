// Package model defines the core domain types shared across the market engine.
package model

import (
	"time"

	"github.com/google/uuid"
)

// Quote is the public view of one stock at a point in time.
type Quote struct {
	Name            string  `json:"name"`
	Price           float64 `json:"price"`
	NumberAvailable int     `json:"numberAvailable"`
}

// Sale is an immutable record of a settled trade. The embedded quote is a
// value snapshot taken at settlement time; later price ticks or trades do
// not change it.
type Sale struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"timestamp"` // ms since epoch, 13 digits
	Stock     Quote  `json:"stock"`
	Number    int    `json:"number"` // signed: +buy, -sell
}

// NewSale snapshots the given quote into a sale record.
func NewSale(stock Quote, number int) Sale {
	return Sale{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UnixMilli(),
		Stock:     stock,
		Number:    number,
	}
}

// NewsItem is one entry of the global append-only news feed.
type NewsItem struct {
	Timestamp int64  `json:"timestamp"` // ms since epoch, 13 digits
	Time      string `json:"time"`      // human-readable "H:MM"
	Text      string `json:"text"`
}

// PositionView is the read-only account view of one depot position.
type PositionView struct {
	Stock  Quote `json:"stock"`
	Number int   `json:"number"`
}
