package ledger

type RecordPaymentRequest struct {
	RequestID string  `json:"request_id" binding:"required" validate:"required"`
	Amount    float64 `json:"amount" binding:"required" validate:"gt=0"`
	Kind      string  `json:"kind" validate:"omitempty,oneof=standard cancellation"`
}

type ConfirmPaymentRequest struct {
	RequestID  string  `json:"request_id" binding:"required" validate:"required"`
	Amount     float64 `json:"amount" validate:"gte=0"`
	Status     string  `json:"status" validate:"omitempty,oneof=succeeded failed"`
	ExternalID string  `json:"external_id" validate:"max=128"`
}
