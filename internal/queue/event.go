// Package queue carries request lifecycle events to RabbitMQ and consumes
// payment confirmations from the payment processor.
package queue

import (
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"servicehub/internal/domain"
)

const (
	// RoutingStatusChanged prefixes every lifecycle routing key, e.g. request.accepted.
	RoutingStatusChanged = "request.status_changed"
	eventSchemaVersion   = 1
)

// StatusChangedEvent is the wire form of a committed request transition.
type StatusChangedEvent struct {
	SchemaVersion  int                  `json:"schema_version"`
	Type           string               `json:"type"`
	RequestID      string               `json:"request_id"`
	Status         domain.RequestStatus `json:"status"`
	PreviousStatus domain.RequestStatus `json:"previous_status,omitempty"`
	ClientID       string               `json:"client_id"`
	ProviderID     *string              `json:"provider_id,omitempty"`
	Reason         string               `json:"reason,omitempty"`
	OccurredAt     time.Time            `json:"occurred_at"`
}

func newStatusChangedEvent(ev domain.RequestEvent) StatusChangedEvent {
	return StatusChangedEvent{
		SchemaVersion:  eventSchemaVersion,
		Type:           ev.Type,
		RequestID:      ev.RequestID,
		Status:         ev.Status,
		PreviousStatus: ev.PreviousStatus,
		ClientID:       ev.ClientID,
		ProviderID:     ev.ProviderID,
		Reason:         ev.Reason,
		OccurredAt:     ev.OccurredAt,
	}
}

func encode(ev domain.RequestEvent) (amqp.Publishing, error) {
	body, err := json.Marshal(newStatusChangedEvent(ev))
	if err != nil {
		return amqp.Publishing{}, err
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.RequestID + ":" + ev.Type + ":" + ev.OccurredAt.UTC().Format(time.RFC3339Nano),
		Type:         RoutingStatusChanged,
		Timestamp:    ev.OccurredAt.UTC(),
		Body:         body,
	}, nil
}
