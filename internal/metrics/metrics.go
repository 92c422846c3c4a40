package metrics

import (
	"fmt"
	"net/http"
	"sync/atomic"
)

var (
	ReadingsReceived  atomic.Int64
	ReadingsAccepted  atomic.Int64
	ReadingsRejected  atomic.Int64
	ReadingWarnings   atomic.Int64
	StateChannelDrops atomic.Int64
	AlertChannelDrops atomic.Int64
	AuditChannelDrops atomic.Int64
	AuditWriteFails   atomic.Int64
	AlertsCreated     atomic.Int64
	AlertsResolved    atomic.Int64
	SweepFailures     atomic.Int64
)

func HandleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	fmt.Fprintf(w, "monitor_readings_received_total %d\n", ReadingsReceived.Load())
	fmt.Fprintf(w, "monitor_readings_accepted_total %d\n", ReadingsAccepted.Load())
	fmt.Fprintf(w, "monitor_readings_rejected_total %d\n", ReadingsRejected.Load())
	fmt.Fprintf(w, "monitor_reading_warnings_total %d\n", ReadingWarnings.Load())
	fmt.Fprintf(w, "monitor_state_channel_drops_total %d\n", StateChannelDrops.Load())
	fmt.Fprintf(w, "monitor_alert_channel_drops_total %d\n", AlertChannelDrops.Load())
	fmt.Fprintf(w, "monitor_audit_channel_drops_total %d\n", AuditChannelDrops.Load())
	fmt.Fprintf(w, "monitor_audit_write_failures_total %d\n", AuditWriteFails.Load())
	fmt.Fprintf(w, "monitor_alerts_created_total %d\n", AlertsCreated.Load())
	fmt.Fprintf(w, "monitor_alerts_resolved_total %d\n", AlertsResolved.Load())
	fmt.Fprintf(w, "monitor_sweep_failures_total %d\n", SweepFailures.Load())
}
