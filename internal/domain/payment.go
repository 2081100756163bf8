package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PaymentStatus string

const (
	PaymentPending        PaymentStatus = "PENDING"
	PaymentCompleted      PaymentStatus = "COMPLETED"
	PaymentFailed         PaymentStatus = "FAILED"
	PaymentRefunded       PaymentStatus = "REFUNDED"
	PaymentPaidToProvider PaymentStatus = "PAID_TO_PROVIDER"
)

// Payment amounts are in the marketplace currency with two decimals.
// Amount == PlatformFee + ProviderAmount holds for every row.
type Payment struct {
	ID               string        `json:"id" gorm:"type:varchar(36);primaryKey"`
	ServiceRequestID string        `json:"service_request_id" gorm:"type:varchar(36);not null;uniqueIndex"`
	ProviderID       string        `json:"provider_id" gorm:"type:varchar(36);not null;index"`
	ClientID         string        `json:"client_id" gorm:"type:varchar(64);not null;index"`
	Amount           float64       `json:"amount" gorm:"not null"`
	PlatformFee      float64       `json:"platform_fee" gorm:"not null"`
	ProviderAmount   float64       `json:"provider_amount" gorm:"not null"`
	FeeRateBps       int           `json:"fee_rate_bps" gorm:"not null"`
	ProviderPenalty  float64       `json:"provider_penalty" gorm:"not null;default:0"`
	Status           PaymentStatus `json:"status" gorm:"type:varchar(20);not null;index"`
	CreatedAt        time.Time     `json:"created_at"`
	PaidToProviderAt *time.Time    `json:"paid_to_provider_at,omitempty"`
	RefundedAt       *time.Time    `json:"refunded_at,omitempty"`
}

func (Payment) TableName() string {
	return "payments"
}

func (p *Payment) BeforeCreate(_ *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
