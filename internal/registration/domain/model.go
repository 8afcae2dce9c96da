package domain

import (
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Status is the lifecycle state of a registration. A record starts pending
// and moves to exactly one terminal state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSuccess   Status = "success"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
	StatusTimedOut  Status = "timed_out"
)

// Terminal reports whether no further transitions are allowed from s.
func (s Status) Terminal() bool {
	switch s {
	case StatusSuccess, StatusFailed, StatusCancelled, StatusTimedOut:
		return true
	}
	return false
}

func ParseStatus(value string) (Status, error) {
	switch Status(value) {
	case StatusPending, StatusSuccess, StatusFailed, StatusCancelled, StatusTimedOut:
		return Status(value), nil
	}
	return "", fmt.Errorf("unknown status %q", value)
}

// Registration is a single camp application together with its payment state.
type Registration struct {
	ID      snowflake.ID `gorm:"primaryKey" json:"id"`
	UUID    string       `gorm:"column:uuid;not null;uniqueIndex" json:"uuid"`
	TrackID int          `gorm:"not null;index" json:"track_id"`

	FullName         string    `gorm:"not null" json:"full_name"`
	PlaceOfBirth     string    `json:"place_of_birth"`
	DateOfBirth      time.Time `json:"date_of_birth"`
	MothersName      string    `json:"mothers_name"`
	Email            string    `gorm:"not null;index" json:"email"`
	Nationality      string    `json:"nationality"`
	Phone            string    `json:"phone"`
	Postcode         string    `json:"postcode"`
	City             string    `json:"city"`
	Street           string    `json:"street"`
	Major            string    `json:"major"`
	Campus           string    `json:"campus"`
	EmergencyContact string    `json:"emergency_contact"`
	Allergy          string    `json:"allergy"`
	Meal             string    `json:"meal"`
	TShirtSize       string    `gorm:"column:t_shirt_size" json:"t_shirt_size"`
	Stay             string    `json:"stay"`
	StayUntil        string    `json:"stay_until"`

	AcceptNationality    bool `json:"accept_nationality"`
	AcceptExtras         bool `json:"accept_extras"`
	AcceptPhoto          bool `json:"accept_photo"`
	AcceptPrivacy        bool `json:"accept_privacy"`
	AcceptRules          bool `json:"accept_rules"`
	AcceptResponsibility bool `json:"accept_responsibility"`

	Amount        int64  `gorm:"not null" json:"amount"`
	Currency      string `gorm:"not null" json:"currency"`
	OrderRef      string `gorm:"not null;uniqueIndex" json:"order_ref"`
	TransactionID string `gorm:"index" json:"transaction_id,omitempty"`
	Salt          string `json:"-"`
	ApprovalCode  string `json:"approval_code,omitempty"`
	ProductCode   string `json:"product_code,omitempty"`

	Status     Status         `gorm:"not null;index" json:"status"`
	FailReason string         `json:"fail_reason,omitempty"`
	RawResult  datatypes.JSON `json:"-"`

	CreatedBy string    `json:"created_by,omitempty"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Registration) TableName() string {
	return "registrations"
}

// TrackLock is a one-row-per-track pessimistic lock. Submissions lock the
// row before counting, so capacity checks and inserts are serialized per
// track instead of racing.
type TrackLock struct {
	TrackID int `gorm:"primaryKey"`
}

func (TrackLock) TableName() string {
	return "track_locks"
}
