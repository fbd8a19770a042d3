package observability

import (
	"github.com/Zhima-Mochi/minishop-bookstore/internal/infrastructure/observability/prometrics"
	"github.com/Zhima-Mochi/minishop-bookstore/internal/observability"
)

type provider struct {
	tracer  observability.Tracer
	logger  observability.Logger
	metrics observability.Metrics
}

type registeredMetrics struct {
	counters   map[observability.MetricKey]observability.Counter
	histograms map[observability.MetricKey]observability.Histogram
	gauges     map[observability.MetricKey]observability.Gauge
}

func (m *registeredMetrics) Counter(name observability.MetricKey) observability.Counter {
	if c, ok := m.counters[name]; ok && c != nil {
		return c
	}
	return observability.NopCounter()
}

func (m *registeredMetrics) Histogram(name observability.MetricKey) observability.Histogram {
	if h, ok := m.histograms[name]; ok && h != nil {
		return h
	}
	return observability.NopHistogram()
}

func (m *registeredMetrics) Gauge(name observability.MetricKey) observability.Gauge {
	if g, ok := m.gauges[name]; ok && g != nil {
		return g
	}
	return observability.NopGauge()
}

// Instruments groups metric instruments by key.
type Instruments struct {
	Counters   map[observability.MetricKey]observability.Counter
	Histograms map[observability.MetricKey]observability.Histogram
	Gauges     map[observability.MetricKey]observability.Gauge
}

// New assembles an Observability provider backed by the supplied tracer, logger, and metric instruments.
func New(tracer observability.Tracer, logger observability.Logger, in Instruments) observability.Observability {
	if tracer == nil {
		tracer = observability.NopTracer()
	}
	if logger == nil {
		logger = observability.NopLogger()
	}

	m := &registeredMetrics{
		counters:   make(map[observability.MetricKey]observability.Counter, len(in.Counters)),
		histograms: make(map[observability.MetricKey]observability.Histogram, len(in.Histograms)),
		gauges:     make(map[observability.MetricKey]observability.Gauge, len(in.Gauges)),
	}
	for k, v := range in.Counters {
		if v != nil {
			m.counters[k] = v
		}
	}
	for k, v := range in.Histograms {
		if v != nil {
			m.histograms[k] = v
		}
	}
	for k, v := range in.Gauges {
		if v != nil {
			m.gauges[k] = v
		}
	}

	return &provider{
		tracer:  tracer,
		logger:  logger,
		metrics: m,
	}
}

// StandardInstruments registers every metric the bookstore emits on reg.
func StandardInstruments(reg prometrics.Registry) Instruments {
	return Instruments{
		Counters: map[observability.MetricKey]observability.Counter{
			observability.MUsecaseRequests: reg.Counter(string(observability.MUsecaseRequests),
				"Total number of use case invocations.", "use_case", "outcome"),
			observability.MHTTPRequests: reg.Counter(string(observability.MHTTPRequests),
				"Total number of HTTP requests.", "method", "route", "status"),
			observability.MExternalRequests: reg.Counter(string(observability.MExternalRequests),
				"Calls to peers such as the event bus or the data files.", "peer", "endpoint", "outcome"),
			observability.MStockAdjustments: reg.Counter(string(observability.MStockAdjustments),
				"Applied stock adjustments.", "direction"),
			observability.MOrderLifecycle: reg.Counter(string(observability.MOrderLifecycle),
				"Order lifecycle events observed by the order worker.", "event"),
			observability.MLowStockAlerts: reg.Counter(string(observability.MLowStockAlerts),
				"Stock adjustments that left a book at or below the low-stock threshold."),
		},
		Histograms: map[observability.MetricKey]observability.Histogram{
			observability.MUsecaseDuration: reg.Histogram(string(observability.MUsecaseDuration),
				"Duration of use case execution in seconds.", nil, "use_case"),
			observability.MHTTPRequestDuration: reg.Histogram(string(observability.MHTTPRequestDuration),
				"Duration of HTTP requests in seconds.", nil, "method", "route", "status"),
			observability.MExternalRequestDuration: reg.Histogram(string(observability.MExternalRequestDuration),
				"Duration of peer calls in seconds.", nil, "peer", "endpoint"),
		},
		Gauges: map[observability.MetricKey]observability.Gauge{
			observability.MBookStockLevel: reg.Gauge(string(observability.MBookStockLevel),
				"Stock level of a book after its latest adjustment.", "book_id"),
		},
	}
}

func (p *provider) Tracer() observability.Tracer {
	return p.tracer
}

func (p *provider) Logger() observability.Logger {
	return p.logger
}

func (p *provider) Metrics() observability.Metrics {
	if p.metrics == nil {
		return observability.NopMetrics()
	}
	return p.metrics
}
