package otel

import (
	"context"
	"errors"
	"fmt"

	portalAuth "github.com/MrEthical07/portalAuth"
	"github.com/MrEthical07/portalAuth/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

type metricsSource interface {
	MetricsSnapshot() portalAuth.MetricsSnapshot
	AuditDropped() uint64
	IsAuthenticated() bool
}

// latencyGauges publishes one histogram as a cumulative gauge per bucket
// plus a count gauge.
type latencyGauges struct {
	id      portalAuth.MetricID
	buckets [len(internaldefs.HistogramBoundSuffix)]metric.Int64ObservableGauge
	count   metric.Int64ObservableGauge
}

// Exporter registers observable instruments on a caller-owned Meter and
// fills them from one snapshot per collection.
//
//	Docs: docs/metrics.md
type Exporter struct {
	source       metricsSource
	registration metric.Registration

	counters  map[portalAuth.MetricID]metric.Int64ObservableCounter
	latencies []latencyGauges
	dropped   metric.Int64ObservableCounter
	active    metric.Int64ObservableGauge

	observables []metric.Observable
}

// NewExporter reads from manager.
func NewExporter(meter metric.Meter, manager *portalAuth.Manager) (*Exporter, error) {
	if manager == nil {
		return nil, ErrNilSource
	}
	return NewExporterFromSource(meter, manager)
}

// NewExporterFromSource reads from any snapshot source.
func NewExporterFromSource(meter metric.Meter, source metricsSource) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &Exporter{
		source:   source,
		counters: make(map[portalAuth.MetricID]metric.Int64ObservableCounter, len(internaldefs.CounterDefs)),
	}
	for _, step := range []func(metric.Meter) error{e.addCounters, e.addLatencies, e.addSessionInstruments} {
		if err := step(meter); err != nil {
			return nil, err
		}
	}

	reg, err := meter.RegisterCallback(e.observe, e.observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	e.registration = reg
	return e, nil
}

func (e *Exporter) addCounters(meter metric.Meter) error {
	for _, def := range internaldefs.CounterDefs {
		c, err := meter.Int64ObservableCounter(def.Name,
			metric.WithDescription(def.Help),
			metric.WithUnit("{event}"))
		if err != nil {
			return fmt.Errorf("counter %s: %w", def.Name, err)
		}
		e.counters[def.ID] = c
		e.observables = append(e.observables, c)
	}
	return nil
}

func (e *Exporter) addLatencies(meter metric.Meter) error {
	for _, def := range internaldefs.HistogramDefs {
		g := latencyGauges{id: def.ID}
		for i, le := range internaldefs.HistogramBoundSuffix {
			name := def.Name + "_bucket_le_" + le
			b, err := meter.Int64ObservableGauge(name,
				metric.WithDescription("Calls in "+def.Name+" at or under "+le+" seconds."),
				metric.WithUnit("{call}"))
			if err != nil {
				return fmt.Errorf("bucket %s: %w", name, err)
			}
			g.buckets[i] = b
			e.observables = append(e.observables, b)
		}
		count, err := meter.Int64ObservableGauge(def.Name+"_count",
			metric.WithDescription(def.Help),
			metric.WithUnit("{call}"))
		if err != nil {
			return fmt.Errorf("count %s: %w", def.Name, err)
		}
		g.count = count
		e.observables = append(e.observables, count)
		e.latencies = append(e.latencies, g)
	}
	return nil
}

func (e *Exporter) addSessionInstruments(meter metric.Meter) error {
	var err error
	e.dropped, err = meter.Int64ObservableCounter(internaldefs.AuditDroppedName,
		metric.WithDescription("Audit events dropped because the dispatcher buffer was full."))
	if err != nil {
		return fmt.Errorf("counter %s: %w", internaldefs.AuditDroppedName, err)
	}
	e.active, err = meter.Int64ObservableGauge(internaldefs.SessionActiveName,
		metric.WithDescription("1 while an operator session is established."))
	if err != nil {
		return fmt.Errorf("gauge %s: %w", internaldefs.SessionActiveName, err)
	}
	e.observables = append(e.observables, e.dropped, e.active)
	return nil
}

func (e *Exporter) observe(_ context.Context, o metric.Observer) error {
	snap := e.source.MetricsSnapshot()
	for id, c := range e.counters {
		o.ObserveInt64(c, int64(snap.Counters[id]))
	}
	for _, g := range e.latencies {
		cum := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snap.Histograms[g.id]))
		for i, b := range g.buckets {
			o.ObserveInt64(b, int64(cum[i]))
		}
		o.ObserveInt64(g.count, int64(cum[len(cum)-1]))
	}
	o.ObserveInt64(e.dropped, int64(e.source.AuditDropped()))

	var active int64
	if e.source.IsAuthenticated() {
		active = 1
	}
	o.ObserveInt64(e.active, active)
	return nil
}

// Close unregisters the callback.
func (e *Exporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
