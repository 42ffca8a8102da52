package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RelayRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_requests_total",
		Help: "Transcription relay requests by outcome",
	}, []string{"outcome"})

	UpstreamDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "relay_upstream_duration_seconds",
		Help:    "Latency of the upstream speech-to-text call",
		Buckets: []float64{0.2, 0.5, 1.0, 2.0, 3.0, 5.0, 8.0, 13.0, 20.0, 30.0},
	})

	UploadBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "relay_upload_bytes",
		Help:    "Size of audio segments accepted by the relay",
		Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
	})

	StreamsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dictation_streams_active",
		Help: "Currently open websocket dictation streams",
	})

	StreamsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dictation_streams_total",
		Help: "Total websocket dictation streams accepted",
	})

	SegmentsDispatched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "recorder_segments_dispatched_total",
		Help: "Closed segments handed to the relay",
	})

	SegmentsDiscarded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "recorder_segments_discarded_total",
		Help: "Closed segments dropped for being below the minimum viable size",
	})

	SegmentFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "recorder_segment_failures_total",
		Help: "Segments whose relay round-trip failed",
	})

	EntryOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "journal_entry_operations_total",
		Help: "Entry store operations by op and result",
	}, []string{"op", "result"})

	AuditDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_audit_dropped_total",
		Help: "Audit records dropped because the writer queue was full",
	})
)
