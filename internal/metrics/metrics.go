// Package metrics provides Prometheus instrumentation for the market engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TradesTotal counts settled trades, partitioned by side (buy/sell).
	TradesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "boersenspiel_trades_total",
		Help: "Total number of trades settled",
	}, []string{"side"})

	// TradeRejections counts orders rejected at settlement, by reason.
	TradeRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "boersenspiel_trade_rejections_total",
		Help: "Orders rejected at settlement",
	}, []string{"reason"})

	// PriceTicksTotal counts completed price simulation ticks.
	PriceTicksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "boersenspiel_price_ticks_total",
		Help: "Completed price simulation ticks",
	})

	// TickErrorsTotal counts per-stock price updates that failed and were
	// isolated by the simulator.
	TickErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "boersenspiel_tick_errors_total",
		Help: "Per-stock price updates that failed",
	})

	// TickDuration tracks how long one full-universe tick takes.
	TickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "boersenspiel_tick_duration_seconds",
		Help:    "Duration of one full price simulation tick",
		Buckets: []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01},
	})

	// StockPrice tracks the current quoted price per stock.
	StockPrice = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "boersenspiel_stock_price",
		Help: "Current quoted price per stock",
	}, []string{"stock"})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "boersenspiel_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "boersenspiel_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "boersenspiel_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the raw path for the label; the API surface is small and
		// fixed, so cardinality stays bounded.
		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
