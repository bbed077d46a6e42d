package events

import (
	"time"

	"github.com/apex/log"

	"waterlog/geo"
	"waterlog/metrics"
	"waterlog/models"
)

// CellLevel is the s2 level of the cell token attached to events, about 600m
// across, so subscribers can follow a neighbourhood.
const CellLevel = 14

// Sink delivers report events somewhere outside the process.
type Sink interface {
	Name() string
	Send(evt models.ReportEvent) error
}

// Dispatcher sends every event to each sink. Delivery is best-effort: a
// failing sink is logged and counted, never reported to the caller.
type Dispatcher struct {
	sinks []Sink
	now   func() time.Time
}

func NewDispatcher(sinks ...Sink) *Dispatcher {
	d := &Dispatcher{now: func() time.Time { return time.Now().UTC() }}
	for _, s := range sinks {
		if s != nil {
			d.sinks = append(d.sinks, s)
		}
	}
	return d
}

func (d *Dispatcher) Notify(eventType string, r *models.Report) {
	if d == nil || r == nil {
		return
	}
	evt := models.ReportEvent{
		Type:      eventType,
		Report:    r,
		Cell:      geo.CellToken(r.Lat, r.Lng, CellLevel),
		Timestamp: d.now(),
	}
	for _, s := range d.sinks {
		if err := s.Send(evt); err != nil {
			metrics.EventPublishErrorsTotal.Inc()
			log.WithFields(log.Fields{
				"sink":      s.Name(),
				"event":     eventType,
				"report_id": r.ID,
			}).Warnf("Failed to deliver event: %v", err)
		}
	}
}
