package metrics

import (
	"math/big"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// HarbergerMetrics tracks the bonded-ownership ledger.
type HarbergerMetrics struct {
	operations   *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	feesReaped   prometheus.Counter
	refunds      *prometheus.CounterVec
	liquidations prometheus.Counter
	saleVolume   prometheus.Counter
	keeperRuns   *prometheus.CounterVec
	keeperLag    prometheus.Gauge
}

var (
	harbergerOnce     sync.Once
	harbergerRegistry *HarbergerMetrics
)

// Harberger returns the lazily registered ledger metrics.
func Harberger() *HarbergerMetrics {
	harbergerOnce.Do(func() {
		harbergerRegistry = &HarbergerMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "paco_operations_total",
				Help: "Ledger operations by name and outcome code.",
			}, []string{"operation", "outcome"}),
			duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "paco_operation_duration_seconds",
				Help:    "Latency of ledger operations including commit.",
				Buckets: prometheus.DefBuckets,
			}, []string{"operation"}),
			feesReaped: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "paco_fees_reaped_total",
				Help: "Fees moved from the vault to the treasury, in token base units.",
			}),
			refunds: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "paco_refunds_total",
				Help: "Displaced bond refunds by direction (credited or withdrawn), in token base units.",
			}, []string{"direction"}),
			liquidations: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "paco_liquidations_started_total",
				Help: "Listings whose bond was exhausted.",
			}),
			saleVolume: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "paco_sale_volume_total",
				Help: "Forced purchase volume paid to previous owners, in token base units.",
			}),
			keeperRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "paco_keeper_runs_total",
				Help: "Keeper sweeps by outcome.",
			}, []string{"outcome"}),
			keeperLag: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "paco_keeper_last_run_timestamp",
				Help: "Unix time of the last completed keeper sweep.",
			}),
		}
		prometheus.MustRegister(
			harbergerRegistry.operations,
			harbergerRegistry.duration,
			harbergerRegistry.feesReaped,
			harbergerRegistry.refunds,
			harbergerRegistry.liquidations,
			harbergerRegistry.saleVolume,
			harbergerRegistry.keeperRuns,
			harbergerRegistry.keeperLag,
		)
	})
	return harbergerRegistry
}

// ObserveOperation records one ledger operation. outcome is "ok" or an error
// code.
func (m *HarbergerMetrics) ObserveOperation(operation, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	if outcome == "" {
		outcome = "ok"
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
	m.duration.WithLabelValues(operation).Observe(d.Seconds())
}

func (m *HarbergerMetrics) AddFeesReaped(amount *big.Int) {
	if m == nil {
		return
	}
	m.feesReaped.Add(toFloat(amount))
}

func (m *HarbergerMetrics) AddRefund(direction string, amount *big.Int) {
	if m == nil {
		return
	}
	m.refunds.WithLabelValues(direction).Add(toFloat(amount))
}

func (m *HarbergerMetrics) IncLiquidations() {
	if m == nil {
		return
	}
	m.liquidations.Inc()
}

func (m *HarbergerMetrics) AddSaleVolume(amount *big.Int) {
	if m == nil {
		return
	}
	m.saleVolume.Add(toFloat(amount))
}

func (m *HarbergerMetrics) ObserveKeeperRun(outcome string, at time.Time) {
	if m == nil {
		return
	}
	m.keeperRuns.WithLabelValues(outcome).Inc()
	m.keeperLag.Set(float64(at.Unix()))
}

func toFloat(amount *big.Int) float64 {
	if amount == nil || amount.Sign() <= 0 {
		return 0
	}
	f, _ := new(big.Float).SetInt(amount).Float64()
	return f
}
