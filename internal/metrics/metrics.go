// Package metrics provides Prometheus instrumentation for the game server.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TurnsStarted counts turns opened across all games.
	TurnsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tradegame_turns_started_total",
		Help: "Total number of turns started",
	})

	// TurnsResolved counts turns settled, partitioned by market condition.
	TurnsResolved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradegame_turns_resolved_total",
		Help: "Total number of turns resolved",
	}, []string{"condition"})

	// TradesTotal counts executed trades, partitioned by side.
	TradesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradegame_trades_total",
		Help: "Total number of trades executed",
	}, []string{"side"})

	// BlockTrades counts trades large enough to move the price.
	BlockTrades = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradegame_block_trades_total",
		Help: "Trades that triggered block-trade price impact",
	}, []string{"side"})

	// TradeRejections counts rejected player actions by reason.
	TradeRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradegame_action_rejections_total",
		Help: "Player actions rejected by game rules",
	}, []string{"action", "reason"})

	// LoansIssued and LoansRepaid track bank activity.
	LoansIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tradegame_loans_issued_total",
		Help: "Number of loans taken",
	})
	LoansRepaid = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tradegame_loans_repaid_total",
		Help: "Number of loan repayments",
	})

	// Bankruptcies, Splits and DividendPayouts count corporate actions.
	Bankruptcies = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tradegame_bankruptcies_total",
		Help: "Instruments that went bankrupt",
	})
	Splits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradegame_splits_total",
		Help: "Stock splits by ratio",
	}, []string{"ratio"})
	DividendPayouts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tradegame_dividend_payouts_total",
		Help: "Per-player dividend credits",
	})

	// ActiveGames tracks sessions loaded in memory that have not ended.
	ActiveGames = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tradegame_active_games",
		Help: "Number of games in progress",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tradegame_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, route, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradegame_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and route.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tradegame_http_request_duration_seconds",
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

		path := routePattern(r)
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// routePattern labels by chi route pattern so game ids stay out of label values.
func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
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

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// Hijack passes through so WebSocket upgrades work behind the middleware.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("metrics: response writer does not support hijacking")
	}
	return h.Hijack()
}
