package pipeline

import (
	"dryer-fleet/monitor/internal/domain"
	"dryer-fleet/monitor/internal/metrics"
)

// AlertJob carries the device row as seen at ingest time so the evaluation
// worker does not re-read it.
type AlertJob struct {
	Device *domain.Device
}

type Dispatcher struct {
	StateChan chan *domain.SensorReading
	AlertChan chan *AlertJob
	AuditChan chan *domain.RejectedReading
}

func NewDispatcher(stateSize, alertSize, auditSize int) *Dispatcher {
	return &Dispatcher{
		StateChan: make(chan *domain.SensorReading, stateSize),
		AlertChan: make(chan *AlertJob, alertSize),
		AuditChan: make(chan *domain.RejectedReading, auditSize),
	}
}

// Dispatch fans an accepted reading out to the live-state and alert workers.
// Never blocks the ingest path: full channels drop and count.
func (d *Dispatcher) Dispatch(device *domain.Device, reading *domain.SensorReading) {
	select {
	case d.StateChan <- reading:
	default:
		metrics.StateChannelDrops.Add(1)
	}

	select {
	case d.AlertChan <- &AlertJob{Device: device}:
	default:
		metrics.AlertChannelDrops.Add(1)
	}
}

// DispatchRejection queues a validation failure for forensic archival.
func (d *Dispatcher) DispatchRejection(rr *domain.RejectedReading) {
	select {
	case d.AuditChan <- rr:
	default:
		metrics.AuditChannelDrops.Add(1)
	}
}
