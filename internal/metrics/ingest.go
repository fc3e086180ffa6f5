// Package metrics exposes prometheus counters for the ingest loop.
// A nil *IngestMetrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type IngestMetrics struct {
	registry *prometheus.Registry

	pagesTotal    *prometheus.CounterVec
	recordsTotal  *prometheus.CounterVec
	flushesTotal  *prometheus.CounterVec
	uploadsTotal  *prometheus.CounterVec
	reauthTotal   *prometheus.CounterVec
	flushDuration *prometheus.HistogramVec
}

func NewIngestMetrics(runID string) *IngestMetrics {
	registry := prometheus.NewRegistry()
	constLabels := prometheus.Labels{"run_id": runID}

	pagesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "mevzuat",
			Subsystem:   "ingest",
			Name:        "pages_total",
			Help:        "List pages requested by outcome.",
			ConstLabels: constLabels,
		},
		[]string{"document_type", "status"},
	)
	recordsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "mevzuat",
			Subsystem:   "ingest",
			Name:        "records_total",
			Help:        "Records seen by stage (fetched, enriched, failed).",
			ConstLabels: constLabels,
		},
		[]string{"document_type", "stage"},
	)
	flushesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "mevzuat",
			Subsystem:   "ingest",
			Name:        "flushes_total",
			Help:        "Batches flushed to local storage.",
			ConstLabels: constLabels,
		},
		[]string{"document_type"},
	)
	uploadsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "mevzuat",
			Subsystem:   "ingest",
			Name:        "uploads_total",
			Help:        "Batch uploads and archive writes by sink and status.",
			ConstLabels: constLabels,
		},
		[]string{"sink", "status"},
	)
	reauthTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "mevzuat",
			Subsystem:   "ingest",
			Name:        "reauth_total",
			Help:        "Session re-authentications after a rejected page.",
			ConstLabels: constLabels,
		},
		[]string{"document_type"},
	)
	flushDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   "mevzuat",
			Subsystem:   "ingest",
			Name:        "flush_duration_seconds",
			Help:        "Time spent fetching texts and persisting one batch.",
			Buckets:     []float64{1, 5, 15, 30, 60, 120, 300, 600},
			ConstLabels: constLabels,
		},
		[]string{"document_type"},
	)

	registry.MustRegister(pagesTotal, recordsTotal, flushesTotal, uploadsTotal, reauthTotal, flushDuration)

	return &IngestMetrics{
		registry:      registry,
		pagesTotal:    pagesTotal,
		recordsTotal:  recordsTotal,
		flushesTotal:  flushesTotal,
		uploadsTotal:  uploadsTotal,
		reauthTotal:   reauthTotal,
		flushDuration: flushDuration,
	}
}

func (m *IngestMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *IngestMetrics) ObservePage(documentType, status string, records int) {
	if m == nil {
		return
	}

	m.pagesTotal.WithLabelValues(documentType, status).Inc()
	if records > 0 {
		m.recordsTotal.WithLabelValues(documentType, "fetched").Add(float64(records))
	}
}

func (m *IngestMetrics) ObserveFlush(documentType string, enriched, failed int, duration time.Duration) {
	if m == nil {
		return
	}

	m.flushesTotal.WithLabelValues(documentType).Inc()
	m.recordsTotal.WithLabelValues(documentType, "enriched").Add(float64(enriched))
	m.recordsTotal.WithLabelValues(documentType, "failed").Add(float64(failed))
	m.flushDuration.WithLabelValues(documentType).Observe(duration.Seconds())
}

func (m *IngestMetrics) ObserveSink(sink string, err error) {
	if m == nil {
		return
	}

	status := "success"
	if err != nil {
		status = "error"
	}

	m.uploadsTotal.WithLabelValues(sink, status).Inc()
}

func (m *IngestMetrics) ObserveReauth(documentType string) {
	if m == nil {
		return
	}

	m.reauthTotal.WithLabelValues(documentType).Inc()
}
