package domain

import "time"

const (
	EventRequestSubmitted  = "request.submitted"
	EventRequestAccepted   = "request.accepted"
	EventRequestReassigned = "request.reassigned"
	EventRequestCompleted  = "request.completed"
	EventRequestCancelled  = "request.cancelled"
)

// RequestEvent describes one committed lifecycle transition.
type RequestEvent struct {
	Type           string        `json:"type"`
	RequestID      string        `json:"request_id"`
	Status         RequestStatus `json:"status"`
	PreviousStatus RequestStatus `json:"previous_status,omitempty"`
	ClientID       string        `json:"client_id"`
	ProviderID     *string       `json:"provider_id,omitempty"`
	Reason         string        `json:"reason,omitempty"`
	OccurredAt     time.Time     `json:"occurred_at"`

	// Recipients are the user ids (client and provider accounts) to notify live.
	Recipients []string `json:"-"`
}
