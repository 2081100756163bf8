package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ProviderStatus string

const (
	ProviderPending   ProviderStatus = "PENDING"
	ProviderApproved  ProviderStatus = "APPROVED"
	ProviderRejected  ProviderStatus = "REJECTED"
	ProviderSuspended ProviderStatus = "SUSPENDED"
)

type ServiceProvider struct {
	ID           string         `json:"id" gorm:"type:varchar(36);primaryKey"`
	UserID       string         `json:"user_id" gorm:"type:varchar(64);not null;uniqueIndex"`
	CategoryID   string         `json:"category_id" gorm:"type:varchar(36);not null;index:idx_providers_category_status"`
	Status       ProviderStatus `json:"status" gorm:"type:varchar(16);not null;default:PENDING;index:idx_providers_category_status"`
	BusinessName string         `json:"business_name" gorm:"type:varchar(200)"`
	Description  string         `json:"description,omitempty" gorm:"type:text"`
	Price        float64        `json:"price" gorm:"not null;default:0"`

	// Rating is the running mean of all ratings; 0 while TotalRatings is 0.
	Rating       float64 `json:"rating" gorm:"not null;default:0"`
	TotalRatings int64   `json:"total_ratings" gorm:"not null;default:0"`

	ReviewedBy      *string    `json:"reviewed_by,omitempty" gorm:"type:varchar(64)"`
	ReviewedAt      *time.Time `json:"reviewed_at,omitempty"`
	RejectionReason string     `json:"rejection_reason,omitempty" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (ServiceProvider) TableName() string {
	return "service_providers"
}

func (p *ServiceProvider) BeforeCreate(_ *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// Availability is one weekly recurring window of a provider.
// DayOfWeek follows time.Weekday: 0 is Sunday.
type Availability struct {
	ID           int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	ProviderID   string    `json:"provider_id" gorm:"type:varchar(36);not null;index:idx_availability_provider_day"`
	DayOfWeek    int       `json:"day_of_week" gorm:"not null;index:idx_availability_provider_day"`
	StartTime    string    `json:"start_time" gorm:"type:varchar(5);not null"`
	EndTime      string    `json:"end_time" gorm:"type:varchar(5);not null"`
	SlotDuration int       `json:"slot_duration" gorm:"not null;default:60"`
	IsAvailable  bool      `json:"is_available" gorm:"not null"`
	CreatedAt    time.Time `json:"created_at"`
}

func (Availability) TableName() string {
	return "availabilities"
}
