// Package observability builds the run logger and the Prometheus metrics of
// a batch run.
package observability

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/couchcryptid/flood-occurrence-etl/internal/domain"
)

const namespace = "flood_etl"

// Metrics holds the Prometheus counters, histograms, and gauges of one run.
// They live on a private registry that is dumped to a textfile when the run
// ends.
type Metrics struct {
	Registry *prometheus.Registry

	OccurrencesRead     prometheus.Counter
	OccurrencesRejected *prometheus.CounterVec // labels: reason
	RecordsSkipped      *prometheus.CounterVec // labels: reason={null_neighborhood,null_type,unknown_season}

	BoundariesProcessed prometheus.Counter
	BoundariesUnmatched prometheus.Counter
	OrphanOccurrences   prometheus.Counter
	AreaSource          *prometheus.CounterVec // labels: source={attribute,geometry,invalid,zero}

	SplitExcluded *prometheus.CounterVec // labels: reason={missing_date,unclassified,no_date_field}

	FeaturesWritten *prometheus.CounterVec // labels: output={enriched,season}, season
	CleanRepairs    *prometheus.CounterVec // labels: kind={empty_coordinates,empty_latitude,empty_longitude}

	PipelineDuration *prometheus.HistogramVec // labels: pipeline
	PipelineFailures *prometheus.CounterVec   // labels: pipeline
	LastSuccess      *prometheus.GaugeVec     // labels: pipeline
}

// NewMetrics creates all run metrics and registers them with a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		OccurrencesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "occurrences_read_total",
			Help:      "Occurrence features read from the input collection.",
		}),
		OccurrencesRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "occurrences_rejected_total",
			Help:      "Occurrence features dropped during sanitisation, by reason.",
		}, []string{"reason"}),
		RecordsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_skipped_total",
			Help:      "Records left out of a count table, by reason.",
		}, []string{"reason"}),
		BoundariesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "boundaries_processed_total",
			Help:      "Boundary features enriched.",
		}),
		BoundariesUnmatched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "boundaries_unmatched_total",
			Help:      "Boundaries whose name matched no occurrence.",
		}),
		OrphanOccurrences: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orphan_occurrences_total",
			Help:      "Occurrences whose neighbourhood matched no boundary.",
		}),
		AreaSource: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "boundary_area_total",
			Help:      "Boundary areas by where they came from.",
		}, []string{"source"}),
		SplitExcluded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "split_excluded_total",
			Help:      "Features left out of every season extract, by reason.",
		}, []string{"reason"}),
		FeaturesWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "features_written_total",
			Help:      "Features written per output.",
		}, []string{"output", "season"}),
		CleanRepairs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clean_repairs_total",
			Help:      "Repairs made to raw collections, by kind.",
		}, []string{"kind"}),
		PipelineDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_duration_seconds",
			Help:      "Wall time of a pipeline run.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"pipeline"}),
		PipelineFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_failures_total",
			Help:      "Pipeline runs that ended with a fatal error.",
		}, []string{"pipeline"}),
		LastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful pipeline run.",
		}, []string{"pipeline"}),
	}

	reg.MustRegister(
		m.OccurrencesRead,
		m.OccurrencesRejected,
		m.RecordsSkipped,
		m.BoundariesProcessed,
		m.BoundariesUnmatched,
		m.OrphanOccurrences,
		m.AreaSource,
		m.SplitExcluded,
		m.FeaturesWritten,
		m.CleanRepairs,
		m.PipelineDuration,
		m.PipelineFailures,
		m.LastSuccess,
	)

	return m
}

// NewMetricsForTesting creates Metrics on their own registry so every test
// starts from zero.
func NewMetricsForTesting() *Metrics {
	return NewMetrics()
}

// RecordSanitize adds the outcome of occurrence sanitisation.
func (m *Metrics) RecordSanitize(s domain.SanitizeStats) {
	m.OccurrencesRead.Add(float64(s.Total))
	for _, reason := range domain.RejectReasons {
		if n := s.Rejected[reason]; n > 0 {
			m.OccurrencesRejected.WithLabelValues(string(reason)).Add(float64(n))
		}
	}
}

// RecordAggregate adds the records the count tables left out.
func (m *Metrics) RecordAggregate(s domain.AggregateStats) {
	m.RecordsSkipped.WithLabelValues("null_neighborhood").Add(float64(s.NullNeighborhood))
	m.RecordsSkipped.WithLabelValues("null_type").Add(float64(s.NullType))
	m.RecordsSkipped.WithLabelValues("unknown_season").Add(float64(s.UnknownSeason))
}

// RecordEnrich adds the join and area outcome of an enrichment.
func (m *Metrics) RecordEnrich(s domain.EnrichStats) {
	m.BoundariesProcessed.Add(float64(s.Boundaries))
	m.BoundariesUnmatched.Add(float64(s.Unmatched))
	m.OrphanOccurrences.Add(float64(s.OrphanOccurrences))
	m.AreaSource.WithLabelValues("attribute").Add(float64(s.AreaFromAttribute))
	m.AreaSource.WithLabelValues("geometry").Add(float64(s.AreaFromGeometry))
	m.AreaSource.WithLabelValues("invalid").Add(float64(s.AreaInvalid))
	m.AreaSource.WithLabelValues("zero").Add(float64(s.ZeroArea))
}

// RecordSplit adds the features the season split excluded.
func (m *Metrics) RecordSplit(s domain.SplitStats) {
	m.SplitExcluded.WithLabelValues("missing_date").Add(float64(s.MissingDate))
	m.SplitExcluded.WithLabelValues("unclassified").Add(float64(s.Unclassified))
	if s.NoDateField {
		m.SplitExcluded.WithLabelValues("no_date_field").Add(float64(s.Total))
	}
}

// RecordClean adds the repairs made by the raw cleaner.
func (m *Metrics) RecordClean(s domain.CleanStats) {
	m.CleanRepairs.WithLabelValues("empty_coordinates").Add(float64(s.EmptyCoordinates))
	m.CleanRepairs.WithLabelValues("empty_latitude").Add(float64(s.EmptyLatitude))
	m.CleanRepairs.WithLabelValues("empty_longitude").Add(float64(s.EmptyLongitude))
}

// RecordWritten adds n features written to an output. season is empty for
// outputs that are not split by season.
func (m *Metrics) RecordWritten(output, season string, n int) {
	m.FeaturesWritten.WithLabelValues(output, season).Add(float64(n))
}

// WriteTextfile dumps the registry in the node-exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
