// Copyright (C) 2025, Govmarkets Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package metric

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all engine metrics on a dedicated registry so tests can
// create instances without colliding on the global default.
type Metrics struct {
	registry *prometheus.Registry

	// Trading metrics
	SwapsExecuted  *prometheus.CounterVec
	SwapVolume     *prometheus.CounterVec
	LiquidityOps   *prometheus.CounterVec
	ProtocolFees   *prometheus.CounterVec
	SlippageAborts prometheus.Counter

	// Arbitrage metrics
	ArbAttempts prometheus.Counter
	ArbExecuted *prometheus.CounterVec
	ArbProfit   prometheus.Counter
	ArbDuration prometheus.Histogram

	// Proposal metrics
	ProposalsCreated   prometheus.Counter
	ProposalsFinalized *prometheus.CounterVec
	ExecutionTimeouts  prometheus.Counter
	ActiveProposals    prometheus.Gauge

	// Oracle metrics
	TwapObservations prometheus.Counter
}

// New creates a metrics instance on its own registry.
func New(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	factory := func(name, help string) prometheus.Counter {
		c := prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: name, Help: help,
		})
		reg.MustRegister(c)
		return c
	}
	vecFactory := func(name, help string, labels ...string) *prometheus.CounterVec {
		c := prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: name, Help: help,
		}, labels)
		reg.MustRegister(c)
		return c
	}

	m := &Metrics{registry: reg}

	m.SwapsExecuted = vecFactory("swaps_executed_total", "Swaps executed by venue and direction", "venue", "direction")
	m.SwapVolume = vecFactory("swap_volume_total", "Input volume swapped by venue", "venue")
	m.LiquidityOps = vecFactory("liquidity_ops_total", "Liquidity operations by kind", "kind")
	m.ProtocolFees = vecFactory("protocol_fees_total", "Protocol fee take by coin side", "side")
	m.SlippageAborts = factory("slippage_aborts_total", "Swaps aborted on slippage")

	m.ArbAttempts = factory("arb_attempts_total", "Arbitrage quotes evaluated")
	m.ArbExecuted = vecFactory("arb_executed_total", "Arbitrage trades executed by direction", "direction")
	m.ArbProfit = factory("arb_profit_total", "Cumulative arbitrage profit donated to the spot pool")
	m.ArbDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "arb_duration_seconds",
		Help:      "Wall time spent per arbitrage evaluation",
		Buckets:   prometheus.ExponentialBuckets(1e-6, 10, 8),
	})
	reg.MustRegister(m.ArbDuration)

	m.ProposalsCreated = factory("proposals_created_total", "Proposal markets created")
	m.ProposalsFinalized = vecFactory("proposals_finalized_total", "Proposal markets finalized by resolution", "resolution")
	m.ExecutionTimeouts = factory("execution_timeouts_total", "Accept outcomes forcibly rejected on execution timeout")
	m.ActiveProposals = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_proposals",
		Help:      "Proposals currently between review and finalization",
	})
	reg.MustRegister(m.ActiveProposals)

	m.TwapObservations = factory("twap_observations_total", "TWAP oracle observations written")

	return m
}

// Handler exposes the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }
