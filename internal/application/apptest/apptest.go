// Package apptest holds fakes shared by the application service tests.
package apptest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	domoutbox "github.com/Zhima-Mochi/minishop-bookstore/internal/domain/outbox"
	infraobs "github.com/Zhima-Mochi/minishop-bookstore/internal/infrastructure/observability"
	"github.com/Zhima-Mochi/minishop-bookstore/internal/infrastructure/observability/prometrics"
	"github.com/Zhima-Mochi/minishop-bookstore/internal/infrastructure/observability/zaplogger"
	"github.com/Zhima-Mochi/minishop-bookstore/internal/observability"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap/zaptest"
)

const Namespace = "test"

// Telemetry is an Observability backed by a private Prometheus registry and
// a zap logger that writes to t.Log.
type Telemetry struct {
	observability.Observability
	Registry *prometheus.Registry
}

func NewTelemetry(t testing.TB) *Telemetry {
	reg := prometheus.NewRegistry()
	logger := zaplogger.Wrap(zaptest.NewLogger(t))
	tel := infraobs.New(observability.NopTracer(), logger,
		infraobs.StandardInstruments(prometrics.New(Namespace, "", reg)))
	return &Telemetry{Observability: tel, Registry: reg}
}

// Value sums every sample of the named metric whose labels include labels.
// Histograms contribute their sample count.
func (tel *Telemetry) Value(t testing.TB, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := tel.Registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var total float64
	for _, mf := range families {
		if mf.GetName() != Namespace+"_"+name {
			continue
		}
	metrics:
		for _, m := range mf.GetMetric() {
			have := make(map[string]string, len(m.GetLabel()))
			for _, lp := range m.GetLabel() {
				have[lp.GetName()] = lp.GetValue()
			}
			for k, v := range labels {
				if have[k] != v {
					continue metrics
				}
			}
			switch {
			case m.Counter != nil:
				total += m.GetCounter().GetValue()
			case m.Gauge != nil:
				total += m.GetGauge().GetValue()
			case m.Histogram != nil:
				total += float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	return total
}

// Publisher records published events.
type Publisher struct {
	mu     sync.Mutex
	events []domoutbox.Event
	Err    error
}

func (p *Publisher) Publish(_ context.Context, e domoutbox.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.events = append(p.events, e)
	return nil
}

// Events returns the recorded events, optionally filtered by name.
func (p *Publisher) Events(names ...string) []domoutbox.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(names) == 0 {
		return append([]domoutbox.Event(nil), p.events...)
	}
	var out []domoutbox.Event
	for _, e := range p.events {
		for _, n := range names {
			if e.EventName() == n {
				out = append(out, e)
			}
		}
	}
	return out
}

// Sequence issues prefix-1, prefix-2, ...
type Sequence struct {
	Prefix string

	mu sync.Mutex
	n  int
}

func (s *Sequence) NewID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("%s%d", s.Prefix, s.n)
}
