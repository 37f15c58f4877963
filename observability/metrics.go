package observability

import (
	"fmt"
	"math"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type moduleMetrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

// LedgerMetrics tracks engine operations and value flowing through vaults.
type LedgerMetrics struct {
	operations *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	attributed *prometheus.CounterVec
	claimed    *prometheus.CounterVec
	fees       *prometheus.CounterVec
	rejections *prometheus.CounterVec
	paused     *prometheus.GaugeVec
}

var (
	moduleMetricsOnce sync.Once
	moduleRegistry    *moduleMetrics

	ledgerMetricsOnce sync.Once
	ledgerRegistry    *LedgerMetrics
)

// ModuleMetrics returns the lazily-initialised registry recording gateway
// request activity per module.
func ModuleMetrics() *moduleMetrics {
	moduleMetricsOnce.Do(func() {
		moduleRegistry = &moduleMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "ledger",
				Subsystem: "gateway",
				Name:      "requests_total",
				Help:      "Total gateway requests segmented by module and method.",
			}, []string{"module", "method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "ledger",
				Subsystem: "gateway",
				Name:      "errors_total",
				Help:      "Total gateway errors segmented by module, method, and status code.",
			}, []string{"module", "method", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "ledger",
				Subsystem: "gateway",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for gateway handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"module", "method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "ledger",
				Subsystem: "gateway",
				Name:      "throttles_total",
				Help:      "Count of gateway requests rejected due to throttling policies.",
			}, []string{"module", "reason"}),
		}
		prometheus.MustRegister(
			moduleRegistry.requests,
			moduleRegistry.errors,
			moduleRegistry.latency,
			moduleRegistry.throttles,
		)
	})
	return moduleRegistry
}

// Observe records the outcome of a request. The status code should be the
// HTTP status that was ultimately written to the response writer.
func (m *moduleMetrics) Observe(module, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if status >= 400 {
		outcome = "error"
	}
	m.requests.WithLabelValues(module, method, outcome).Inc()
	if status >= 400 {
		m.errors.WithLabelValues(module, method, fmt.Sprintf("%d", status)).Inc()
	}
	m.latency.WithLabelValues(module, method).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter for the supplied module and
// reason. Reasons should be stable strings such as "rate_limit".
func (m *moduleMetrics) RecordThrottle(module, reason string) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(module, reason).Inc()
}

// Ledger returns the engine metrics registry.
func Ledger() *LedgerMetrics {
	ledgerMetricsOnce.Do(func() {
		ledgerRegistry = &LedgerMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "ledger",
				Subsystem: "engine",
				Name:      "operations_total",
				Help:      "Engine operations segmented by module, operation and outcome.",
			}, []string{"module", "operation", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "ledger",
				Subsystem: "engine",
				Name:      "operation_duration_seconds",
				Help:      "Latency of engine operations including commit.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"module", "operation"}),
			attributed: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "ledger",
				Subsystem: "vault",
				Name:      "attributed_units_total",
				Help:      "Units debited from project budgets by attribution, per currency.",
			}, []string{"currency"}),
			claimed: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "ledger",
				Subsystem: "vault",
				Name:      "claimed_units_total",
				Help:      "Units paid out to recipients by claims, per currency.",
			}, []string{"currency"}),
			fees: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "ledger",
				Subsystem: "vault",
				Name:      "fees_total",
				Help:      "Fees credited to collectors, per currency and receiver.",
			}, []string{"currency", "receiver"}),
			rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "ledger",
				Subsystem: "claims",
				Name:      "rate_limit_rejections_total",
				Help:      "Claims rejected by the per-currency window limit.",
			}, []string{"currency"}),
			paused: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "ledger",
				Subsystem: "system",
				Name:      "pause_engaged",
				Help:      "Indicates whether a module circuit breaker is engaged (1) or not (0).",
			}, []string{"module"}),
		}
		prometheus.MustRegister(
			ledgerRegistry.operations,
			ledgerRegistry.latency,
			ledgerRegistry.attributed,
			ledgerRegistry.claimed,
			ledgerRegistry.fees,
			ledgerRegistry.rejections,
			ledgerRegistry.paused,
		)
	})
	return ledgerRegistry
}

// ObserveOperation records one engine call and its duration.
func (m *LedgerMetrics) ObserveOperation(module, operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.operations.WithLabelValues(module, operation, outcome).Inc()
	m.latency.WithLabelValues(module, operation).Observe(duration.Seconds())
}

func (m *LedgerMetrics) RecordAttributed(currency string, units *big.Int) {
	if m == nil {
		return
	}
	m.attributed.WithLabelValues(labelCurrency(currency)).Add(bigToFloat(units))
}

func (m *LedgerMetrics) RecordClaimed(currency string, units *big.Int) {
	if m == nil {
		return
	}
	m.claimed.WithLabelValues(labelCurrency(currency)).Add(bigToFloat(units))
}

// RecordFee adds a fee share; receiver is one of protocol, client or
// attributor.
func (m *LedgerMetrics) RecordFee(currency, receiver string, amount *big.Int) {
	if m == nil {
		return
	}
	m.fees.WithLabelValues(labelCurrency(currency), receiver).Add(bigToFloat(amount))
}

func (m *LedgerMetrics) RecordRateLimited(currency string) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(labelCurrency(currency)).Inc()
}

func (m *LedgerMetrics) SetPause(module string, engaged bool) {
	if m == nil {
		return
	}
	value := 0.0
	if engaged {
		value = 1
	}
	m.paused.WithLabelValues(strings.ToLower(strings.TrimSpace(module))).Set(value)
}

func labelCurrency(currency string) string {
	normalized := strings.ToLower(strings.TrimSpace(currency))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}

func bigToFloat(value *big.Int) float64 {
	if value == nil || value.Sign() <= 0 {
		return 0
	}
	f, _ := new(big.Float).SetInt(value).Float64()
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return math.MaxFloat64
	}
	return f
}
