package otel

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/metric"

	authgate "github.com/casedock/authgate"
	"github.com/casedock/authgate/metrics/export/internaldefs"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

// Source is the read surface the exporter draws from on each collection
// cycle. A [*authgate.Gate] satisfies it.
type Source interface {
	MetricsSnapshot() authgate.MetricsSnapshot
	AuditDropped() uint64
}

var _ Source = (*authgate.Gate)(nil)

type boundCounter struct {
	id authgate.MetricID
	ob metric.Int64ObservableCounter
}

// The OTel API has no observable histogram, so each bucket becomes a gauge
// carrying the cumulative count, plus one gauge for the total.
type boundHistogram struct {
	id      authgate.MetricID
	buckets [8]metric.Int64ObservableGauge
	total   metric.Int64ObservableGauge
}

// Exporter mirrors gate metrics into OpenTelemetry instruments. One callback
// reads a single snapshot per collection cycle, so every observed value in a
// cycle is internally consistent.
type Exporter struct {
	source       Source
	registration metric.Registration

	counters     []boundCounter
	histograms   []boundHistogram
	auditDropped metric.Int64ObservableCounter
	observables  []metric.Observable
}

// NewExporter registers instruments for every gate metric on meter.
func NewExporter(meter metric.Meter, gate *authgate.Gate) (*Exporter, error) {
	if gate == nil {
		return nil, ErrNilSource
	}
	return NewExporterFromSource(meter, gate)
}

// NewExporterFromSource is NewExporter for a custom [Source].
func NewExporterFromSource(meter metric.Meter, source Source) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &Exporter{source: source}
	if err := e.buildCounters(meter); err != nil {
		return nil, err
	}
	if err := e.buildHistograms(meter); err != nil {
		return nil, err
	}
	if err := e.buildAuditDropped(meter); err != nil {
		return nil, err
	}

	registration, err := meter.RegisterCallback(e.observe, e.observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	e.registration = registration
	return e, nil
}

func (e *Exporter) buildCounters(meter metric.Meter) error {
	e.counters = make([]boundCounter, 0, len(internaldefs.CounterDefs))
	for _, def := range internaldefs.CounterDefs {
		ob, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return fmt.Errorf("create observable counter %s: %w", def.Name, err)
		}
		e.counters = append(e.counters, boundCounter{id: def.ID, ob: ob})
		e.observables = append(e.observables, ob)
	}
	return nil
}

func (e *Exporter) buildHistograms(meter metric.Meter) error {
	e.histograms = make([]boundHistogram, 0, len(internaldefs.HistogramDefs))
	for _, def := range internaldefs.HistogramDefs {
		bound := boundHistogram{id: def.ID}
		for i, suffix := range internaldefs.HistogramBoundSuffix {
			name := def.Name + "_bucket_le_" + suffix
			ob, err := meter.Int64ObservableGauge(name, metric.WithDescription("Cumulative histogram bucket count."))
			if err != nil {
				return fmt.Errorf("create histogram bucket gauge %s: %w", name, err)
			}
			bound.buckets[i] = ob
			e.observables = append(e.observables, ob)
		}

		name := def.Name + "_count"
		total, err := meter.Int64ObservableGauge(name, metric.WithDescription("Histogram total sample count."))
		if err != nil {
			return fmt.Errorf("create histogram count gauge %s: %w", name, err)
		}
		bound.total = total
		e.observables = append(e.observables, total)
		e.histograms = append(e.histograms, bound)
	}
	return nil
}

func (e *Exporter) buildAuditDropped(meter metric.Meter) error {
	ob, err := meter.Int64ObservableCounter(
		internaldefs.AuditDroppedName,
		metric.WithDescription(internaldefs.AuditDroppedHelp),
	)
	if err != nil {
		return fmt.Errorf("create audit dropped counter: %w", err)
	}
	e.auditDropped = ob
	e.observables = append(e.observables, ob)
	return nil
}

func (e *Exporter) observe(_ context.Context, observer metric.Observer) error {
	snapshot := e.source.MetricsSnapshot()
	for _, c := range e.counters {
		observer.ObserveInt64(c.ob, int64(snapshot.Counters[c.id]))
	}
	for _, h := range e.histograms {
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snapshot.Histograms[h.id]))
		for i, v := range cumulative {
			observer.ObserveInt64(h.buckets[i], int64(v))
		}
		observer.ObserveInt64(h.total, int64(cumulative[len(cumulative)-1]))
	}
	observer.ObserveInt64(e.auditDropped, int64(e.source.AuditDropped()))
	return nil
}

// Close unregisters the collection callback.
func (e *Exporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
