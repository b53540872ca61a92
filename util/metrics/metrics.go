package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Redraw modes
const (
	ModeFull   = "full"
	ModeLabels = "labels"
)

var (
	// TelemetryRecordsTotal tracks the telemetry records seen by kind and result (applied, rejected)
	TelemetryRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dtnview_telemetry_records_total",
			Help: "Total number of telemetry records received from the relay",
		},
		[]string{"kind", "result"},
	)

	// RedrawsTotal tracks the pipeline runs by mode (full, labels)
	RedrawsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dtnview_redraws_total",
			Help: "Total number of scene updates by mode",
		},
		[]string{"mode"},
	)

	// PipelineDuration tracks how long a scene update takes in seconds
	PipelineDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dtnview_pipeline_duration_seconds",
			Help:    "Duration of scene updates in seconds by mode",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.1, 1},
		},
		[]string{"mode"},
	)

	// SceneNodes tracks the number of nodes in the last scene
	SceneNodes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dtnview_scene_nodes",
			Help: "Number of nodes in the current scene",
		},
	)

	// SceneWires tracks the number of wires in the last scene
	SceneWires = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dtnview_scene_wires",
			Help: "Number of wires in the current scene",
		},
	)

	// SSEClients tracks the number of connected event stream clients
	SSEClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dtnview_sse_clients",
			Help: "Number of browsers subscribed to the scene event stream",
		},
	)

	// TelemetryConnected is 1 while the relay telemetry socket is open
	TelemetryConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dtnview_telemetry_connected",
			Help: "Whether the telemetry feed from the relay is connected",
		},
	)

	// TelemetryReconnectsTotal tracks reconnect attempts to the relay
	TelemetryReconnectsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dtnview_telemetry_reconnects_total",
			Help: "Total number of reconnect attempts to the relay telemetry feed",
		},
	)

	// HistoryPointsTotal tracks rate points written to the history store
	HistoryPointsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dtnview_history_points_total",
			Help: "Total number of rate points written to the history store",
		},
		[]string{"backend"},
	)

	// HistoryWriteErrorsTotal tracks failed history writes
	HistoryWriteErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dtnview_history_write_errors_total",
			Help: "Total number of failed history writes",
		},
		[]string{"backend"},
	)

	// IngestPushesTotal tracks telemetry pushed over gRPC by status
	IngestPushesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dtnview_ingest_pushes_total",
			Help: "Total number of telemetry records pushed over gRPC",
		},
		[]string{"status"},
	)
)

// RecordTelemetryRecord counts one received record of the given kind
func RecordTelemetryRecord(kind string, applied bool) {
	if kind == "" {
		kind = "unknown"
	}
	result := "applied"
	if !applied {
		result = "rejected"
	}
	TelemetryRecordsTotal.WithLabelValues(kind, result).Inc()
}

// RecordRedraw counts a scene update and observes its duration
func RecordRedraw(mode string, durationSeconds float64) {
	RedrawsTotal.WithLabelValues(mode).Inc()
	PipelineDuration.WithLabelValues(mode).Observe(durationSeconds)
}

// SetSceneSize sets the node and wire gauges
func SetSceneSize(nodes, wires int) {
	SceneNodes.Set(float64(nodes))
	SceneWires.Set(float64(wires))
}

// RecordSSEClientConnected increments the event stream client gauge
func RecordSSEClientConnected() {
	SSEClients.Inc()
}

// RecordSSEClientDisconnected decrements the event stream client gauge
func RecordSSEClientDisconnected() {
	SSEClients.Dec()
}

// SetTelemetryConnected sets the telemetry connection gauge
func SetTelemetryConnected(connected bool) {
	if connected {
		TelemetryConnected.Set(1)
	} else {
		TelemetryConnected.Set(0)
	}
}

// RecordTelemetryReconnect increments the reconnect counter
func RecordTelemetryReconnect() {
	TelemetryReconnectsTotal.Inc()
}

// RecordHistoryPoints adds written points for a backend
func RecordHistoryPoints(backend string, count int) {
	if count > 0 {
		HistoryPointsTotal.WithLabelValues(backend).Add(float64(count))
	}
}

// RecordHistoryWriteError increments the write error counter for a backend
func RecordHistoryWriteError(backend string) {
	HistoryWriteErrorsTotal.WithLabelValues(backend).Inc()
}

// RecordIngestPush counts a gRPC push with its status (ok, invalid, rejected)
func RecordIngestPush(status string) {
	IngestPushesTotal.WithLabelValues(status).Inc()
}
