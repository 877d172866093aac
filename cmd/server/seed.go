package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/boersenspiel/market-engine/internal/account"
	"github.com/boersenspiel/market-engine/internal/market"
)

// rosterEntry is the JSON shape for one user record in a seed file.
type rosterEntry struct {
	Name   string `json:"name"`
	Passwd string `json:"passwd"`
}

// defaultRoster is the classic four-user demo roster used when no seed
// file is configured.
var defaultRoster = []rosterEntry{
	{Name: "max", Passwd: "max"},
	{Name: "moritz", Passwd: "moritz"},
	{Name: "lempel", Passwd: "lempel"},
	{Name: "bolte", Passwd: "bolte"},
}

// loadRoster reads a JSON array of user definitions and creates each user
// with the starting balance and a zero position per stock. With an empty
// path the default roster is used.
//
// Example seed file format:
//
//	[
//	  { "name": "alice", "passwd": "secret" },
//	  { "name": "bob",   "passwd": "hunter2" }
//	]
func loadRoster(path string, balance float64, universe *market.Universe) ([]*account.User, error) {
	entries := defaultRoster

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("users file: %w", err)
		}
		entries = nil
		if err := json.Unmarshal(raw, &entries); err != nil {
			return nil, fmt.Errorf("users file parse error: %w", err)
		}
	}

	users := make([]*account.User, 0, len(entries))
	seen := make(map[string]bool, len(entries))
	for i, e := range entries {
		if e.Name == "" {
			return nil, fmt.Errorf("users file entry %d: name is required", i)
		}
		if seen[e.Name] {
			return nil, fmt.Errorf("users file entry %d (%q): duplicate name", i, e.Name)
		}
		seen[e.Name] = true
		users = append(users, account.NewUser(e.Name, e.Passwd, balance, universe))
	}
	return users, nil
}
