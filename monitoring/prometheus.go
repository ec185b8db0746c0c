package monitoring

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Risk monitor scan metrics
	scanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "posengine_risk_scan_duration_milliseconds",
			Help:    "Duration of one risk monitor scan pass",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		},
	)

	positionsScanned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "posengine_positions_scanned_total",
			Help: "Total positions repriced across all scan passes",
		},
	)

	riskAlertsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "posengine_risk_alerts_total",
			Help: "Total risk alerts emitted by symbol",
		},
		[]string{"symbol"},
	)

	liquidationsNominated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "posengine_liquidations_nominated_total",
			Help: "Total liquidation orders nominated by symbol",
		},
		[]string{"symbol"},
	)

	oracleSymbolsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "posengine_oracle_symbols_skipped_total",
			Help: "Total scan passes a symbol was skipped due to an oracle failure or implausible quote",
		},
		[]string{"symbol"},
	)

	// WebSocket metrics
	wsConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "posengine_websocket_connections",
			Help: "Current number of active WebSocket connections",
		},
	)

	wsMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "posengine_websocket_messages_total",
			Help: "Total WebSocket messages fanned out by stream",
		},
		[]string{"stream"},
	)

	// Position metrics
	activePositions = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "posengine_active_positions",
			Help: "Number of open positions by symbol and side",
		},
		[]string{"symbol", "side"},
	)

	// Settlement coordinator metrics
	settlementRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "posengine_settlement_requests_total",
			Help: "Total settlement coordinator requests by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	settlementDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "posengine_settlement_duration_milliseconds",
			Help:    "Duration of a settlement coordinator request once it starts executing",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"operation"},
	)

	// API request metrics
	apiRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "posengine_api_requests_total",
			Help: "Total API requests by endpoint and status",
		},
		[]string{"endpoint", "method", "status"},
	)

	apiRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "posengine_api_request_duration_milliseconds",
			Help:    "API request duration in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"endpoint", "method"},
	)

	// Database and relayer metrics
	dbQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "posengine_db_query_duration_milliseconds",
			Help:    "Database query duration in milliseconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 25, 50, 100, 250},
		},
		[]string{"operation", "table"},
	)

	relayerLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "posengine_relayer_latency_milliseconds",
			Help:    "On-chain relay latency in milliseconds",
			Buckets: []float64{10, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"operation"},
	)

	relayerErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "posengine_relayer_errors_total",
			Help: "Total relayer errors by operation",
		},
		[]string{"operation"},
	)
)

// MetricsCollector handles metrics collection and exposure.
type MetricsCollector struct {
	registry *prometheus.Registry
	mu       sync.RWMutex
}

// NewMetricsCollector creates a new metrics collector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		registry: prometheus.DefaultRegisterer.(*prometheus.Registry),
	}
}

// Handler returns the HTTP handler for /metrics.
func (mc *MetricsCollector) Handler() http.Handler {
	return promhttp.Handler()
}

// RecordScan records one risk monitor scan pass.
func RecordScan(durationMs float64, scanned int, skippedSymbols []string) {
	scanDuration.Observe(durationMs)
	positionsScanned.Add(float64(scanned))
	for _, symbol := range skippedSymbols {
		oracleSymbolsSkipped.WithLabelValues(symbol).Inc()
	}
}

// RecordRiskAlert records a risk alert emitted for symbol.
func RecordRiskAlert(symbol string) {
	riskAlertsEmitted.WithLabelValues(symbol).Inc()
}

// RecordLiquidationNomination records a liquidation nominated for symbol.
func RecordLiquidationNomination(symbol string) {
	liquidationsNominated.WithLabelValues(symbol).Inc()
}

// SetWebSocketConnections sets the current WebSocket connection count.
func SetWebSocketConnections(count int) {
	wsConnections.Set(float64(count))
}

// RecordWebSocketMessage records one event fanned out on stream.
func RecordWebSocketMessage(stream string) {
	wsMessagesTotal.WithLabelValues(stream).Inc()
}

// SetActivePositions sets the open position count for symbol/side.
func SetActivePositions(symbol, side string, count int) {
	activePositions.WithLabelValues(symbol, side).Set(float64(count))
}

// RecordSettlement records a settlement coordinator request outcome.
func RecordSettlement(operation, outcome string, durationMs float64) {
	settlementRequestsTotal.WithLabelValues(operation, outcome).Inc()
	settlementDuration.WithLabelValues(operation).Observe(durationMs)
}

// RecordAPIRequest records API request metrics.
func RecordAPIRequest(endpoint, method, status string, durationMs float64) {
	apiRequestsTotal.WithLabelValues(endpoint, method, status).Inc()
	apiRequestDuration.WithLabelValues(endpoint, method).Observe(durationMs)
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(operation, table string, durationMs float64) {
	dbQueryDuration.WithLabelValues(operation, table).Observe(durationMs)
}

// RecordRelayerCall records relayer call latency and, on failure, an error.
func RecordRelayerCall(operation string, latencyMs float64, err error) {
	relayerLatency.WithLabelValues(operation).Observe(latencyMs)
	if err != nil {
		relayerErrors.WithLabelValues(operation).Inc()
	}
}

// APIRequestMiddleware wraps an HTTP handler to record request metrics.
func APIRequestMiddleware(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		handler(wrapped, r)

		duration := float64(time.Since(start).Milliseconds())
		RecordAPIRequest(endpoint, r.Method, http.StatusText(wrapped.statusCode), duration)
	}
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
