// Package trade provides the HTTP handlers and business logic for quoting
// stocks, settling buy/sell orders, and serving the news and message feeds.
package trade

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/boersenspiel/market-engine/internal/account"
	"github.com/boersenspiel/market-engine/internal/auth"
	"github.com/boersenspiel/market-engine/internal/depot"
	"github.com/boersenspiel/market-engine/internal/market"
	"github.com/boersenspiel/market-engine/internal/metrics"
	"github.com/boersenspiel/market-engine/internal/model"
	"github.com/boersenspiel/market-engine/internal/news"
)

// ErrInvalidQuantity is returned when an order quantity is missing or not
// an integer.
var ErrInvalidQuantity = errors.New("trade: invalid order quantity")

// lastTimePattern is the required shape of the lastTime query parameter:
// a 13-digit millisecond epoch timestamp.
var lastTimePattern = regexp.MustCompile(`^\d{13}$`)

// recipientPattern restricts message recipient names to alphanumerics and
// German umlauts.
var recipientPattern = regexp.MustCompile(`^[A-Za-z0-9äöüÄÖÜ]+$`)

// Service handles market queries and order settlement. Per-user and
// per-stock locks live on the entities themselves, so the service holds no
// lock: trades on different users and stocks proceed independently.
type Service struct {
	registry *account.Registry
	universe *market.Universe
	feed     *news.Feed
	wsHub    *WSHub // optional hub for real-time broadcasts
}

// NewService creates a new trade service.
// Pass nil for hub if WebSocket broadcasting is not needed.
func NewService(registry *account.Registry, universe *market.Universe, feed *news.Feed, hub *WSHub) *Service {
	return &Service{
		registry: registry,
		universe: universe,
		feed:     feed,
		wsHub:    hub,
	}
}

// SettleOrder executes a signed order end to end: resolve user and stock,
// run the funds/holdings/inventory checks, mutate balance and positions,
// then record the sale and publish a news entry. Any failure leaves all
// state unchanged.
func (s *Service) SettleOrder(userName, stockName string, number int) (model.Sale, model.NewsItem, error) {
	user, err := s.registry.Find(userName)
	if err != nil {
		metrics.TradeRejections.WithLabelValues(rejectionReason(err)).Inc()
		return model.Sale{}, model.NewsItem{}, err
	}
	stock, err := s.universe.Find(stockName)
	if err != nil {
		metrics.TradeRejections.WithLabelValues(rejectionReason(err)).Inc()
		return model.Sale{}, model.NewsItem{}, err
	}

	if _, err := user.Buy(stock, number); err != nil {
		metrics.TradeRejections.WithLabelValues(rejectionReason(err)).Inc()
		return model.Sale{}, model.NewsItem{}, err
	}

	sale := model.NewSale(stock.Quote(), number)
	user.RecordSale(sale)

	var text string
	if number > 0 {
		text = fmt.Sprintf("KAUF: %s: %d %s", user.Name(), number, stock.Name())
	} else {
		text = fmt.Sprintf("VERKAUF: %s: %d %s", user.Name(), -number, stock.Name())
	}
	item := s.feed.Add(text)

	side := "buy"
	if number < 0 {
		side = "sell"
	}
	metrics.TradesTotal.WithLabelValues(side).Inc()

	slog.Info("trade settled",
		"user", user.Name(),
		"stock", stock.Name(),
		"number", number,
		"price", sale.Stock.Price,
		"balance", user.Balance(),
	)

	if s.wsHub != nil {
		s.wsHub.Broadcast(WSMessage{
			Type:   "trade",
			User:   user.Name(),
			Stock:  stock.Name(),
			Number: number,
			Price:  sale.Stock.Price,
			Text:   text,
		})
	}

	return sale, item, nil
}

// --- Request/Response types ---

// orderRequest is the JSON body for POST /api/account/positions. Number is
// kept raw so that string-typed quantities fail quantity validation rather
// than body decoding.
type orderRequest struct {
	Stock struct {
		Name string `json:"name"`
	} `json:"stock"`
	Number json.RawMessage `json:"number"` // signed: +buy, -sell
}

type orderResponse struct {
	Success string     `json:"success"`
	Sales   model.Sale `json:"sales"`
}

type userResponse struct {
	Name    string  `json:"name"`
	Balance float64 `json:"balance"`
}

type leaderboardEntry struct {
	Name string  `json:"name"`
	Sum  float64 `json:"sum"`
}

type accountResponse struct {
	Positions []model.PositionView `json:"positions"`
	Value     float64              `json:"value"`
}

type messageRequest struct {
	Recipient string `json:"recipient"`
	Message   string `json:"message"`
}

// --- HTTP Handlers ---

// ListStocks handles GET /api/stocks
func (s *Service) ListStocks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.universe.Quotes())
}

// GetStock handles GET /api/stocks/{name}
func (s *Service) GetStock(w http.ResponseWriter, r *http.Request) {
	name, err := url.PathUnescape(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, "invalid stock name", http.StatusBadRequest)
		return
	}

	stock, err := s.universe.Find(name)
	if err != nil {
		writeError(w, fmt.Sprintf("stock %q not found", name), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, stock.Quote())
}

// GetUser handles GET /api/user
func (s *Service) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.registry.Find(auth.UserName(r.Context()))
	if err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{Name: user.Name(), Balance: user.Balance()})
}

// Leaderboard handles GET /api/user/everybody
// Returns balance plus depot value for every user.
func (s *Service) Leaderboard(w http.ResponseWriter, r *http.Request) {
	users := s.registry.All()
	entries := make([]leaderboardEntry, len(users))
	for i, u := range users {
		entries[i] = leaderboardEntry{Name: u.Name(), Sum: u.PortfolioSum()}
	}
	writeJSON(w, http.StatusOK, entries)
}

// GetAccount handles GET /api/account
func (s *Service) GetAccount(w http.ResponseWriter, r *http.Request) {
	user, err := s.registry.Find(auth.UserName(r.Context()))
	if err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	positions, value := user.AccountView()
	writeJSON(w, http.StatusOK, accountResponse{Positions: positions, Value: value})
}

// PlaceOrder handles POST /api/account/positions
// Settles a signed buy/sell order for the authenticated user.
func (s *Service) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	number, err := parseQuantity(req.Number)
	if err != nil {
		metrics.TradeRejections.WithLabelValues(rejectionReason(err)).Inc()
		writeError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	sale, item, err := s.SettleOrder(auth.UserName(r.Context()), req.Stock.Name, number)
	if err != nil {
		writeError(w, err.Error(), orderStatus(err))
		return
	}

	writeJSON(w, http.StatusCreated, orderResponse{Success: item.Text, Sales: sale})
}

// GetNews handles GET /api/news
// Without lastTime, returns the first 20 entries; with a 13-digit lastTime,
// returns entries strictly newer than it.
func (s *Service) GetNews(w http.ResponseWriter, r *http.Request) {
	lastTime, ok, err := parseLastTime(r)
	if err != nil {
		writeError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	if !ok {
		writeJSON(w, http.StatusOK, s.feed.Head(20))
		return
	}
	writeJSON(w, http.StatusOK, s.feed.Since(lastTime))
}

// GetMessages handles GET /api/messages
// Same lastTime contract as the news feed, applied to the user's inbox.
func (s *Service) GetMessages(w http.ResponseWriter, r *http.Request) {
	user, err := s.registry.Find(auth.UserName(r.Context()))
	if err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	lastTime, ok, err := parseLastTime(r)
	if err != nil {
		writeError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	all := user.Messages()
	if !ok {
		if len(all) > 20 {
			all = all[:20]
		}
		writeJSON(w, http.StatusOK, all)
		return
	}

	filtered := make([]model.Message, 0)
	for _, m := range all {
		if m.Date > lastTime {
			filtered = append(filtered, m)
		}
	}
	writeJSON(w, http.StatusOK, filtered)
}

// PostMessage handles POST /api/messages
// Sends a message from the authenticated user to a roster user; the
// message lands in both inboxes.
func (s *Service) PostMessage(w http.ResponseWriter, r *http.Request) {
	sender, err := s.registry.Find(auth.UserName(r.Context()))
	if err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if !recipientPattern.MatchString(req.Recipient) {
		writeError(w, "invalid recipient format, only alphanumeric characters and umlauts are allowed", http.StatusUnprocessableEntity)
		return
	}

	recipient, err := s.registry.Find(req.Recipient)
	if err != nil {
		writeError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	msg, err := model.NewMessage(sender.Name(), recipient.Name(), req.Message)
	if err != nil {
		writeError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	recipient.Deliver(msg)
	sender.Deliver(msg)

	slog.Info("message sent", "sender", sender.Name(), "recipient", recipient.Name())
	writeJSON(w, http.StatusOK, msg)
}

// --- helpers ---

// parseQuantity converts the raw JSON quantity into a signed share count.
// Missing, non-integer, and string-typed values fail with
// ErrInvalidQuantity.
func parseQuantity(raw json.RawMessage) (int, error) {
	s := strings.TrimSpace(string(raw))
	if strings.HasPrefix(s, `"`) {
		unquoted, err := strconv.Unquote(s)
		if err != nil {
			return 0, ErrInvalidQuantity
		}
		s = unquoted
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, ErrInvalidQuantity
	}
	return int(n), nil
}

// parseLastTime extracts the optional lastTime query parameter. ok is false
// when the parameter is absent.
func parseLastTime(r *http.Request) (lastTime int64, ok bool, err error) {
	raw := r.URL.Query().Get("lastTime")
	if raw == "" {
		return 0, false, nil
	}
	if !lastTimePattern.MatchString(raw) {
		return 0, false, errors.New("invalid lastTime parameter, must be exactly 13 digits")
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, errors.New("invalid lastTime parameter, must be exactly 13 digits")
	}
	return v, true, nil
}

// orderStatus maps settlement error kinds to HTTP statuses: resolution
// failures are 404, order violations 422.
func orderStatus(err error) int {
	switch {
	case errors.Is(err, account.ErrUserNotFound), errors.Is(err, market.ErrStockNotFound):
		return http.StatusNotFound
	default:
		return http.StatusUnprocessableEntity
	}
}

// rejectionReason maps settlement error kinds to metric labels.
func rejectionReason(err error) string {
	switch {
	case errors.Is(err, account.ErrUserNotFound):
		return "unknown_user"
	case errors.Is(err, market.ErrStockNotFound):
		return "unknown_stock"
	case errors.Is(err, account.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, depot.ErrInsufficientHoldings):
		return "insufficient_holdings"
	case errors.Is(err, market.ErrInsufficientSupply):
		return "insufficient_supply"
	case errors.Is(err, ErrInvalidQuantity):
		return "invalid_quantity"
	default:
		return "other"
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
