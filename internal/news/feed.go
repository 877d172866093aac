// Package news implements the global append-only trade news feed.
package news

import (
	"fmt"
	"sync"
	"time"

	"github.com/boersenspiel/market-engine/internal/model"
)

// Feed is the shared news list. Entries are only ever appended.
type Feed struct {
	mu    sync.RWMutex
	items []model.NewsItem
}

// NewFeed creates an empty feed.
func NewFeed() *Feed {
	return &Feed{}
}

// Add appends a timestamped entry and returns it.
func (f *Feed) Add(text string) model.NewsItem {
	now := time.Now()
	item := model.NewsItem{
		Timestamp: now.UnixMilli(),
		Time:      fmt.Sprintf("%d:%02d", now.Hour(), now.Minute()),
		Text:      text,
	}

	f.mu.Lock()
	f.items = append(f.items, item)
	f.mu.Unlock()
	return item
}

// Since returns all entries strictly newer than the given ms timestamp.
func (f *Feed) Since(lastTime int64) []model.NewsItem {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make([]model.NewsItem, 0)
	for _, item := range f.items {
		if item.Timestamp > lastTime {
			out = append(out, item)
		}
	}
	return out
}

// Head returns the first n entries of the feed, fewer if it is shorter.
func (f *Feed) Head(n int) []model.NewsItem {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if n > len(f.items) {
		n = len(f.items)
	}
	out := make([]model.NewsItem, n)
	copy(out, f.items[:n])
	return out
}

// Len returns the number of entries.
func (f *Feed) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.items)
}
