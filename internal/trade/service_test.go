package trade_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/boersenspiel/market-engine/internal/account"
	"github.com/boersenspiel/market-engine/internal/auth"
	"github.com/boersenspiel/market-engine/internal/market"
	"github.com/boersenspiel/market-engine/internal/model"
	"github.com/boersenspiel/market-engine/internal/news"
	"github.com/boersenspiel/market-engine/internal/trade"
)

type testEnv struct {
	universe *market.Universe
	registry *account.Registry
	feed     *news.Feed
	svc      *trade.Service
	router   chi.Router
}

// newTestEnv wires a service over a fresh market with the default roster
// and mounts it the way cmd/server does, basic auth included.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	rng := rand.New(rand.NewPCG(11, 13))
	universe := market.NewUniverse(market.DefaultStockNames, rng)
	registry := account.NewRegistry([]*account.User{
		account.NewUser("max", "max", 10000, universe),
		account.NewUser("moritz", "moritz", 10000, universe),
	})
	feed := news.NewFeed()
	svc := trade.NewService(registry, universe, feed, nil)

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Use(auth.Basic(registry))
		r.Get("/stocks", svc.ListStocks)
		r.Get("/stocks/{name}", svc.GetStock)
		r.Get("/user", svc.GetUser)
		r.Get("/user/everybody", svc.Leaderboard)
		r.Get("/account", svc.GetAccount)
		r.Post("/account/positions", svc.PlaceOrder)
		r.Get("/news", svc.GetNews)
		r.Get("/messages", svc.GetMessages)
		r.Post("/messages", svc.PostMessage)
	})

	return &testEnv{
		universe: universe,
		registry: registry,
		feed:     feed,
		svc:      svc,
		router:   r,
	}
}

func (e *testEnv) do(t *testing.T, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.SetBasicAuth(user, user)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func orderBody(stock string, number any) map[string]any {
	return map[string]any{
		"stock":  map[string]any{"name": stock},
		"number": number,
	}
}

// --- Market queries ---

func TestListStocks(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, "GET", "/api/stocks", "max", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var quotes []model.Quote
	json.Unmarshal(w.Body.Bytes(), &quotes)
	if len(quotes) != 15 {
		t.Fatalf("expected 15 quotes, got %d", len(quotes))
	}
	if quotes[0].Name != "adidas" || quotes[0].Price != 500 || quotes[0].NumberAvailable != 100000 {
		t.Errorf("unexpected first quote: %+v", quotes[0])
	}
}

func TestGetStock(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, "GET", "/api/stocks/adidas", "max", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	// Names with spaces arrive URL-escaped.
	w = env.do(t, "GET", "/api/stocks/Deutsche%20Bank", "max", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for escaped name, got %d: %s", w.Code, w.Body.String())
	}
	var quote model.Quote
	json.Unmarshal(w.Body.Bytes(), &quote)
	if quote.Name != "Deutsche Bank" {
		t.Errorf("expected Deutsche Bank, got %q", quote.Name)
	}

	w = env.do(t, "GET", "/api/stocks/Wirecard", "max", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown stock, got %d", w.Code)
	}
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, "GET", "/api/stocks", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without credentials, got %d", w.Code)
	}
}

// --- Order settlement ---

func TestPlaceOrder_Buy(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, "POST", "/api/account/positions", "max", orderBody("adidas", 10))
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Success string     `json:"success"`
		Sales   model.Sale `json:"sales"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)

	if resp.Success != "KAUF: max: 10 adidas" {
		t.Errorf("unexpected success text: %q", resp.Success)
	}
	if resp.Sales.ID == "" {
		t.Error("expected non-empty sale id")
	}
	if resp.Sales.Number != 10 {
		t.Errorf("expected sale number 10, got %d", resp.Sales.Number)
	}
	// The snapshot is taken after settlement: availability already reduced.
	if resp.Sales.Stock.NumberAvailable != 99990 {
		t.Errorf("expected snapshot availability 99990, got %d", resp.Sales.Stock.NumberAvailable)
	}

	// Balance reflects cost plus the 5% surcharge: 10000 - 500*10*1.05.
	w = env.do(t, "GET", "/api/user", "max", nil)
	var user struct {
		Name    string  `json:"name"`
		Balance float64 `json:"balance"`
	}
	json.Unmarshal(w.Body.Bytes(), &user)
	if user.Balance != 4750 {
		t.Errorf("expected balance 4750, got %v", user.Balance)
	}

	// Account view shows the new position.
	w = env.do(t, "GET", "/api/account", "max", nil)
	var acct struct {
		Positions []model.PositionView `json:"positions"`
		Value     float64              `json:"value"`
	}
	json.Unmarshal(w.Body.Bytes(), &acct)
	if len(acct.Positions) != 15 {
		t.Fatalf("expected 15 positions, got %d", len(acct.Positions))
	}
	if acct.Positions[0].Number != 10 {
		t.Errorf("expected 10 adidas shares, got %d", acct.Positions[0].Number)
	}
	if acct.Value != 5000 {
		t.Errorf("expected depot value 5000, got %v", acct.Value)
	}
}

func TestPlaceOrder_SellRoundTrip(t *testing.T) {
	env := newTestEnv(t)

	env.do(t, "POST", "/api/account/positions", "max", orderBody("adidas", 10))
	w := env.do(t, "POST", "/api/account/positions", "max", orderBody("adidas", -10))
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Success string `json:"success"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Success != "VERKAUF: max: 10 adidas" {
		t.Errorf("unexpected success text: %q", resp.Success)
	}

	// Proceeds minus the 5% fee: 4750 + 500*10*0.95 = 9500.
	w = env.do(t, "GET", "/api/user", "max", nil)
	var user struct {
		Balance float64 `json:"balance"`
	}
	json.Unmarshal(w.Body.Bytes(), &user)
	if user.Balance != 9500 {
		t.Errorf("expected balance 9500, got %v", user.Balance)
	}

	stock, _ := env.universe.Find("adidas")
	if avail := stock.Quote().NumberAvailable; avail != 100000 {
		t.Errorf("expected availability back at 100000, got %d", avail)
	}
}

func TestPlaceOrder_Rejections(t *testing.T) {
	env := newTestEnv(t)

	cases := []struct {
		name       string
		body       map[string]any
		wantStatus int
	}{
		{"insufficient funds", orderBody("adidas", 20), http.StatusUnprocessableEntity},
		{"insufficient holdings", orderBody("adidas", -1), http.StatusUnprocessableEntity},
		{"unknown stock", orderBody("Wirecard", 1), http.StatusNotFound},
		{"non-integer quantity", orderBody("adidas", 1.5), http.StatusUnprocessableEntity},
		{"non-numeric quantity", orderBody("adidas", "viele"), http.StatusUnprocessableEntity},
		{"quoted non-integer quantity", orderBody("adidas", "1.5"), http.StatusUnprocessableEntity},
		{"boolean quantity", orderBody("adidas", true), http.StatusUnprocessableEntity},
		{"missing quantity", map[string]any{"stock": map[string]any{"name": "adidas"}}, http.StatusUnprocessableEntity},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			w := env.do(t, "POST", "/api/account/positions", "max", c.body)
			if w.Code != c.wantStatus {
				t.Fatalf("expected %d, got %d: %s", c.wantStatus, w.Code, w.Body.String())
			}
		})
	}

	// No rejection mutated anything.
	w := env.do(t, "GET", "/api/user", "max", nil)
	var user struct {
		Balance float64 `json:"balance"`
	}
	json.Unmarshal(w.Body.Bytes(), &user)
	if user.Balance != 10000 {
		t.Errorf("expected untouched balance 10000, got %v", user.Balance)
	}
	if env.feed.Len() != 0 {
		t.Errorf("expected empty news feed, got %d entries", env.feed.Len())
	}
}

func TestSettleOrder_UnknownUser(t *testing.T) {
	env := newTestEnv(t)

	_, _, err := env.svc.SettleOrder("witwe", "adidas", 1)
	if err == nil {
		t.Fatal("expected error for unknown user")
	}
}

// --- News feed ---

func TestNews_AppendedBySettlement(t *testing.T) {
	env := newTestEnv(t)

	env.do(t, "POST", "/api/account/positions", "max", orderBody("adidas", 10))
	env.do(t, "POST", "/api/account/positions", "moritz", orderBody("BMW", 5))

	w := env.do(t, "GET", "/api/news", "max", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var items []model.NewsItem
	json.Unmarshal(w.Body.Bytes(), &items)
	if len(items) != 2 {
		t.Fatalf("expected 2 news items, got %d", len(items))
	}
	if items[0].Text != "KAUF: max: 10 adidas" {
		t.Errorf("unexpected first news text: %q", items[0].Text)
	}
	if items[1].Text != "KAUF: moritz: 5 BMW" {
		t.Errorf("unexpected second news text: %q", items[1].Text)
	}
}

func TestNews_LastTimeFilter(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, "POST", "/api/account/positions", "max", orderBody("adidas", 1))

	// Far-future timestamp filters everything out.
	w := env.do(t, "GET", "/api/news?lastTime=9999999999999", "max", nil)
	var items []model.NewsItem
	json.Unmarshal(w.Body.Bytes(), &items)
	if len(items) != 0 {
		t.Errorf("expected no items, got %d", len(items))
	}

	// Distant past returns everything.
	w = env.do(t, "GET", "/api/news?lastTime=1000000000000", "max", nil)
	json.Unmarshal(w.Body.Bytes(), &items)
	if len(items) != 1 {
		t.Errorf("expected 1 item, got %d", len(items))
	}

	// Anything that is not exactly 13 digits is rejected.
	for _, bad := range []string{"123", "12345678901234", "123456789012x", "-123456789012"} {
		w = env.do(t, "GET", "/api/news?lastTime="+bad, "max", nil)
		if w.Code != http.StatusUnprocessableEntity {
			t.Errorf("lastTime=%q: expected 422, got %d", bad, w.Code)
		}
	}
}

// --- Leaderboard ---

func TestLeaderboard(t *testing.T) {
	env := newTestEnv(t)

	env.do(t, "POST", "/api/account/positions", "max", orderBody("adidas", 10))

	w := env.do(t, "GET", "/api/user/everybody", "moritz", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var entries []struct {
		Name string  `json:"name"`
		Sum  float64 `json:"sum"`
	}
	json.Unmarshal(w.Body.Bytes(), &entries)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	// max paid the 250 surcharge; moritz is untouched.
	if entries[0].Name != "max" || entries[0].Sum != 9750 {
		t.Errorf("unexpected max entry: %+v", entries[0])
	}
	if entries[1].Name != "moritz" || entries[1].Sum != 10000 {
		t.Errorf("unexpected moritz entry: %+v", entries[1])
	}
}

// --- Messages ---

func TestMessages_SendAndReceive(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, "POST", "/api/messages", "max", map[string]any{
		"recipient": "moritz",
		"message":   "Kaufe BMW",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var msg model.Message
	json.Unmarshal(w.Body.Bytes(), &msg)
	if msg.Sender != "max" || msg.Recipient != "moritz" || msg.Text != "Kaufe BMW" {
		t.Errorf("unexpected message: %+v", msg)
	}

	// The message lands in both inboxes.
	for _, who := range []string{"max", "moritz"} {
		w = env.do(t, "GET", "/api/messages", who, nil)
		var inbox []model.Message
		json.Unmarshal(w.Body.Bytes(), &inbox)
		if len(inbox) != 1 {
			t.Errorf("%s: expected 1 message, got %d", who, len(inbox))
		}
	}
}

func TestMessages_Rejections(t *testing.T) {
	env := newTestEnv(t)

	cases := []struct {
		name string
		body map[string]any
	}{
		{"invalid recipient format", map[string]any{"recipient": "mo ritz", "message": "hi"}},
		{"unknown recipient", map[string]any{"recipient": "witwe", "message": "hi"}},
		{"invalid characters", map[string]any{"recipient": "moritz", "message": "geht das?"}},
		{"too long", map[string]any{"recipient": "moritz", "message": strings.Repeat("a", 201)}},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			w := env.do(t, "POST", "/api/messages", "max", c.body)
			if w.Code != http.StatusUnprocessableEntity {
				t.Fatalf("expected 422, got %d: %s", w.Code, w.Body.String())
			}
		})
	}

	w := env.do(t, "GET", "/api/messages", "moritz", nil)
	var inbox []model.Message
	json.Unmarshal(w.Body.Bytes(), &inbox)
	if len(inbox) != 0 {
		t.Errorf("expected empty inbox after rejections, got %d", len(inbox))
	}
}

func TestMessages_FirstTwentyWithoutLastTime(t *testing.T) {
	env := newTestEnv(t)

	for i := 0; i < 25; i++ {
		w := env.do(t, "POST", "/api/messages", "max", map[string]any{
			"recipient": "moritz",
			"message":   fmt.Sprintf("Nachricht %d", i),
		})
		if w.Code != http.StatusOK {
			t.Fatalf("message %d: expected 200, got %d", i, w.Code)
		}
	}

	w := env.do(t, "GET", "/api/messages", "moritz", nil)
	var inbox []model.Message
	json.Unmarshal(w.Body.Bytes(), &inbox)
	if len(inbox) != 20 {
		t.Errorf("expected first 20 messages, got %d", len(inbox))
	}

	w = env.do(t, "GET", "/api/messages?lastTime=1000000000000", "moritz", nil)
	json.Unmarshal(w.Body.Bytes(), &inbox)
	if len(inbox) != 25 {
		t.Errorf("expected all 25 messages with past lastTime, got %d", len(inbox))
	}
}
