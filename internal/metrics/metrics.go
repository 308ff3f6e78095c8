package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Rate limit decision labels
const (
	DecisionAllowed  = "allowed"
	DecisionDenied   = "denied"
	DecisionFailOpen = "fail_open"
)

// Registry owns the service's Prometheus collectors. A nil *Registry is a
// valid no-op recorder.
type Registry struct {
	reg                *prometheus.Registry
	Purchases          *prometheus.CounterVec
	PurchaseTxSeconds  prometheus.Histogram
	RateLimitDecisions *prometheus.CounterVec
	EventsPublished    *prometheus.CounterVec
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()

	purchases := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "flashsale_purchase_total",
		Help: "Purchase attempts by outcome.",
	}, []string{"status"})
	txSeconds := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "flashsale_purchase_tx_seconds",
		Help:    "Duration of the locked purchase transaction.",
		Buckets: prometheus.DefBuckets,
	})
	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "flashsale_ratelimit_decisions_total",
		Help: "Rate limiter decisions by tier.",
	}, []string{"tier", "decision"})
	published := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "flashsale_events_published_total",
		Help: "Purchase notifications by publish result.",
	}, []string{"result"})

	r.MustRegister(
		purchases,
		txSeconds,
		decisions,
		published,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Registry{
		reg:                r,
		Purchases:          purchases,
		PurchaseTxSeconds:  txSeconds,
		RateLimitDecisions: decisions,
		EventsPublished:    published,
	}
}

func (r *Registry) ObservePurchase(status string) {
	if r == nil {
		return
	}
	r.Purchases.WithLabelValues(status).Inc()
}

func (r *Registry) ObserveTx(d time.Duration) {
	if r == nil {
		return
	}
	r.PurchaseTxSeconds.Observe(d.Seconds())
}

func (r *Registry) ObserveRateLimit(tier, decision string) {
	if r == nil {
		return
	}
	r.RateLimitDecisions.WithLabelValues(tier, decision).Inc()
}

func (r *Registry) ObservePublish(err error) {
	if r == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.EventsPublished.WithLabelValues(result).Inc()
}

// Gatherer exposes the underlying registry for tests and exporters
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }
