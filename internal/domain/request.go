package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RequestStatus string

const (
	RequestPending   RequestStatus = "PENDING"
	RequestAccepted  RequestStatus = "ACCEPTED"
	RequestCompleted RequestStatus = "COMPLETED"
	RequestCancelled RequestStatus = "CANCELLED"
)

// OpenRequestStatuses are the statuses that hold a provider's capacity and slots.
var OpenRequestStatuses = []RequestStatus{RequestPending, RequestAccepted}

func (s RequestStatus) IsTerminal() bool {
	return s == RequestCompleted || s == RequestCancelled
}

const CancelReasonNoProviders = "no providers available"

// ProviderSet is an ordered, duplicate-free list of provider ids stored as a JSON array.
type ProviderSet []string

func (s ProviderSet) Contains(id string) bool {
	for _, v := range s {
		if v == id {
			return true
		}
	}
	return false
}

// With returns a copy of s with id appended unless already present.
func (s ProviderSet) With(id string) ProviderSet {
	out := make(ProviderSet, 0, len(s)+1)
	out = append(out, s...)
	if !s.Contains(id) {
		out = append(out, id)
	}
	return out
}

func (s ProviderSet) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(s))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (s *ProviderSet) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*s = ProviderSet{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("provider set: unsupported type %T", src)
	}
	if len(raw) == 0 || string(raw) == "null" {
		*s = ProviderSet{}
		return nil
	}
	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return err
	}
	*s = ProviderSet(ids)
	return nil
}

type ServiceRequest struct {
	ID         string        `json:"id" gorm:"type:varchar(36);primaryKey"`
	ClientID   string        `json:"client_id" gorm:"type:varchar(64);not null;index"`
	CategoryID string        `json:"category_id" gorm:"type:varchar(36);not null;index"`
	ProviderID *string       `json:"provider_id" gorm:"type:varchar(36);index:idx_requests_provider_status"`
	Status     RequestStatus `json:"status" gorm:"type:varchar(16);not null;index:idx_requests_provider_status"`
	Price      float64       `json:"price" gorm:"not null;default:0"`

	// ScheduledDate is a timezone-naive YYYY-MM-DD; nil means an immediate request.
	ScheduledDate *string `json:"scheduled_date" gorm:"type:varchar(10);index"`
	ScheduledTime *string `json:"scheduled_time" gorm:"type:varchar(5)"`

	RejectedBy   ProviderSet `json:"rejected_by" gorm:"type:text;not null"`
	Rating       *int        `json:"rating,omitempty"`
	Feedback     *string     `json:"feedback,omitempty" gorm:"type:text"`
	CancelReason *string     `json:"cancel_reason,omitempty" gorm:"type:text"`

	Version   int64     `json:"version" gorm:"not null;default:1"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (ServiceRequest) TableName() string {
	return "service_requests"
}

func (r *ServiceRequest) BeforeCreate(_ *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.RejectedBy == nil {
		r.RejectedBy = ProviderSet{}
	}
	if r.Version == 0 {
		r.Version = 1
	}
	return nil
}

func (r *ServiceRequest) IsScheduled() bool {
	return r.ScheduledDate != nil
}

func (r *ServiceRequest) AssignedTo(providerID string) bool {
	return r.ProviderID != nil && *r.ProviderID == providerID
}
