package attendance

import (
	"context"
	"encoding/json"
	"log"

	"staffattend/internal/metrics"
	"staffattend/internal/queue"
)

// EventSink stores audit events.
type EventSink interface {
	InsertEvent(ctx context.Context, evt Event) (Event, error)
}

// Drain stores every attendance event received on msgs until the channel
// closes. A nil sink only logs the events.
func Drain(ctx context.Context, msgs <-chan queue.Message, sink EventSink) {
	for msg := range msgs {
		if msg.Type != EventType {
			continue
		}
		var evt Event
		if err := json.Unmarshal(msg.Body, &evt); err != nil {
			log.Printf("drop malformed event: %v", err)
			metrics.EventsStored.WithLabelValues("malformed").Inc()
			continue
		}
		if sink == nil {
			log.Printf("event %s: %s %s %s", evt.ID, evt.StaffID, evt.Action, evt.Status)
			metrics.EventsStored.WithLabelValues("logged").Inc()
			continue
		}
		if _, err := sink.InsertEvent(ctx, evt); err != nil {
			log.Printf("store event %s failed: %v", evt.ID, err)
			metrics.EventsStored.WithLabelValues("failed").Inc()
			continue
		}
		metrics.EventsStored.WithLabelValues("stored").Inc()
	}
}
