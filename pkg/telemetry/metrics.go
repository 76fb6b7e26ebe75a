package telemetry

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/soundprediction/ontoweave/pkg/issues"
)

// Batch results used as metric labels.
const (
	ResultAccepted = "accepted"
	ResultRejected = "rejected"
	ResultError    = "error"
)

// Metrics records engine activity. A nil *Metrics records nothing.
type Metrics struct {
	batches       *prometheus.CounterVec
	issues        *prometheus.CounterVec
	batchDuration *prometheus.HistogramVec
	operations    *prometheus.CounterVec
	classes       prometheus.Gauge
	clusters      prometheus.Gauge
	triplets      prometheus.Gauge
}

// NewMetrics registers the engine metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		batches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ontoweave_batches_total",
			Help: "Validated batches by operation and result",
		}, []string{"op", "result"}),

		issues: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ontoweave_issues_total",
			Help: "Validation issues by code",
		}, []string{"code"}),

		batchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ontoweave_batch_duration_seconds",
			Help:    "Batch validation duration",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.1, 1},
		}, []string{"op"}),

		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ontoweave_stitch_operations_total",
			Help: "Stitching operations by kind and result",
		}, []string{"kind", "result"}),

		classes: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ontoweave_ontology_classes",
			Help: "Classes in the committed ontology",
		}),

		clusters: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ontoweave_ontology_clusters",
			Help: "Connected clusters in the committed ontology",
		}),

		triplets: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ontoweave_kg_triplets",
			Help: "Committed knowledge graph triplets",
		}),
	}
}

// ObserveBatch records one validated batch. Issues carried by an
// *issues.Error are counted by code.
func (m *Metrics) ObserveBatch(op string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.batchDuration.WithLabelValues(op).Observe(elapsed.Seconds())
	m.batches.WithLabelValues(op, resultOf(err)).Inc()
	m.countIssues(err)
}

// ObserveOperation records one stitching operation.
func (m *Metrics) ObserveOperation(kind string, err error) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(kind, resultOf(err)).Inc()
	m.countIssues(err)
}

// SetOntology records the size of the committed ontology.
func (m *Metrics) SetOntology(classes, clusters int) {
	if m == nil {
		return
	}
	m.classes.Set(float64(classes))
	m.clusters.Set(float64(clusters))
}

// SetTriplets records the size of the committed knowledge graph.
func (m *Metrics) SetTriplets(n int) {
	if m == nil {
		return
	}
	m.triplets.Set(float64(n))
}

func (m *Metrics) countIssues(err error) {
	var ierr *issues.Error
	if !errors.As(err, &ierr) {
		return
	}
	for _, i := range ierr.Issues {
		m.issues.WithLabelValues(string(i.Code)).Inc()
	}
}

func resultOf(err error) string {
	var ierr *issues.Error
	switch {
	case err == nil:
		return ResultAccepted
	case errors.As(err, &ierr):
		return ResultRejected
	default:
		return ResultError
	}
}
