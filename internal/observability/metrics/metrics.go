package metrics

import "github.com/prometheus/client_golang/prometheus"

// QuoteMetrics exposes counters/histograms for quote pricing flows.
type QuoteMetrics struct {
	pricedTotal      *prometheus.CounterVec
	secondPairTotal  *prometheus.CounterVec
	transitionsTotal *prometheus.CounterVec
	pricingDuration  *prometheus.HistogramVec
}

func NewQuoteMetrics(reg prometheus.Registerer) *QuoteMetrics {
	m := &QuoteMetrics{
		pricedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "visionpos",
			Subsystem: "quotes",
			Name:      "quotes_priced_total",
			Help:      "Quote layers priced, by layer",
		}, []string{"layer"}),
		secondPairTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "visionpos",
			Subsystem: "quotes",
			Name:      "second_pair_total",
			Help:      "Second pair checks and applications, by result",
		}, []string{"result"}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "visionpos",
			Subsystem: "quotes",
			Name:      "quote_transitions_total",
			Help:      "Quote status transitions, by target status",
		}, []string{"to"}),
		pricingDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "visionpos",
			Subsystem: "quotes",
			Name:      "pricing_duration_seconds",
			Help:      "Latency of pricing a full quote",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1},
		}, []string{"operation"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.pricedTotal, m.secondPairTotal, m.transitionsTotal, m.pricingDuration)
	return m
}

func (m *QuoteMetrics) ObservePriced(layer string) {
	if m == nil {
		return
	}
	m.pricedTotal.WithLabelValues(layer).Inc()
}

// ObserveSecondPair records a check or apply outcome such as "eligible",
// "not_eligible", "applied" or "rejected".
func (m *QuoteMetrics) ObserveSecondPair(result string) {
	if m == nil {
		return
	}
	m.secondPairTotal.WithLabelValues(result).Inc()
}

func (m *QuoteMetrics) ObserveTransition(to string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(to).Inc()
}

func (m *QuoteMetrics) ObservePricingDuration(operation string, seconds float64) {
	if m == nil {
		return
	}
	m.pricingDuration.WithLabelValues(operation).Observe(seconds)
}
