package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the engine's Prometheus collectors. Each Registry owns its
// own prometheus.Registry so tests can build as many as they like.
type Registry struct {
	reg *prometheus.Registry

	CyclesTotal      *prometheus.CounterVec
	CycleDuration    prometheus.Histogram
	AutomationRuns   *prometheus.CounterVec
	PriceRejections  *prometheus.CounterVec
	OrdersTotal      *prometheus.CounterVec
	RiskDenials      *prometheus.CounterVec
	ProviderRequests *prometheus.CounterVec
	PositionsClosed  *prometheus.CounterVec
	HTTPThrottled    *prometheus.CounterVec
	EngineRunning    prometheus.Gauge
}

func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		CyclesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "options_engine_cycles_total",
			Help: "Automation cycles run, by trigger and status",
		}, []string{"trigger", "status"}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "options_engine_cycle_duration_seconds",
			Help:    "Wall time of one automation cycle",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		AutomationRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "options_engine_automation_runs_total",
			Help: "Per automation pipeline outcomes",
		}, []string{"outcome"}),
		PriceRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "options_engine_price_rejections_total",
			Help: "Prices rejected by the validation guard",
		}, []string{"codepath", "expected_kind"}),
		OrdersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "options_engine_orders_total",
			Help: "Orders submitted, by action and result",
		}, []string{"action", "result"}),
		RiskDenials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "options_engine_risk_denials_total",
			Help: "Trades denied by the risk manager, by check",
		}, []string{"check"}),
		ProviderRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "options_engine_provider_requests_total",
			Help: "Market data provider calls, by endpoint and result",
		}, []string{"endpoint", "result"}),
		PositionsClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "options_engine_positions_closed_total",
			Help: "Positions closed, by exit reason",
		}, []string{"reason"}),
		HTTPThrottled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "options_engine_http_throttled_total",
			Help: "API requests rejected by the rate limiter, by route",
		}, []string{"route"}),
		EngineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "options_engine_running",
			Help: "1 while the scheduler is running",
		}),
	}

	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.CyclesTotal,
		r.CycleDuration,
		r.AutomationRuns,
		r.PriceRejections,
		r.OrdersTotal,
		r.RiskDenials,
		r.ProviderRequests,
		r.PositionsClosed,
		r.HTTPThrottled,
		r.EngineRunning,
	)
	return r
}

func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}
