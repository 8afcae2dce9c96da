package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	gatewaydomain "github.com/camphq/camppay/internal/gateway/domain"
	"github.com/camphq/camppay/pkg/db/pagination"
)

var (
	ErrNotFound = errors.New("registration_not_found")

	// ErrRegistrationClosed is the umbrella error for any eligibility
	// denial at submission time. The concrete reason travels on
	// ClosedError.
	ErrRegistrationClosed = errors.New("registration_closed")

	// ErrGatewaySession is surfaced when the payment provider could not
	// open a session. No registration is persisted in that case.
	ErrGatewaySession = errors.New("payment_session_unavailable")

	// ErrStaleCallback marks a callback for an unknown record or one that
	// already reached a terminal state. Harmless; handled as a no-op.
	ErrStaleCallback = errors.New("stale_or_unknown_callback")

	// ErrDuplicateOrderRef marks an insert that collided with an existing
	// order_ref or uuid. Retriable: a fresh submission draws a new ref.
	ErrDuplicateOrderRef = errors.New("duplicate_order_ref")
)

// Eligibility denial reasons.
const (
	ReasonUnknownTrack = "unknown_track"
	ReasonNotOpenYet   = "not_open_yet"
	ReasonClosed       = "closed"
	ReasonFull         = "full"
)

// Decision is the outcome of an eligibility check.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// ClosedError carries the denial reason while matching
// ErrRegistrationClosed via errors.Is.
type ClosedError struct {
	Reason string
}

func (e *ClosedError) Error() string {
	return fmt.Sprintf("registration closed: %s", e.Reason)
}

func (e *ClosedError) Is(target error) bool {
	return target == ErrRegistrationClosed
}

// FieldError is a single per-field validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationError aggregates every failed field of a submission.
type ValidationError struct {
	Fields []FieldError `json:"errors"`
}

func (e *ValidationError) Error() string {
	codes := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		codes = append(codes, f.Field)
	}
	return "invalid submission: " + strings.Join(codes, ", ")
}

// SubmitRequest is a camp application as received from the public form.
type SubmitRequest struct {
	TrackID int `json:"track_id"`

	FullName         string `json:"full_name"`
	PlaceOfBirth     string `json:"place_of_birth"`
	DateOfBirth      string `json:"date_of_birth"`
	MothersName      string `json:"mothers_name"`
	Email            string `json:"email"`
	Nationality      string `json:"nationality"`
	Phone            string `json:"phone"`
	Postcode         string `json:"postcode"`
	City             string `json:"city"`
	Street           string `json:"street"`
	Major            string `json:"major"`
	Campus           string `json:"campus"`
	EmergencyContact string `json:"emergency_contact"`
	Allergy          string `json:"allergy"`
	Meal             string `json:"meal"`
	TShirtSize       string `json:"t_shirt_size"`
	Stay             string `json:"stay"`
	StayUntil        string `json:"stay_until"`

	AcceptNationality    bool `json:"accept_nationality"`
	AcceptExtras         bool `json:"accept_extras"`
	AcceptPhoto          bool `json:"accept_photo"`
	AcceptPrivacy        bool `json:"accept_privacy"`
	AcceptRules          bool `json:"accept_rules"`
	AcceptResponsibility bool `json:"accept_responsibility"`

	CreatedBy string `json:"-"`
}

// SubmitResponse returns the persisted pending record and the hosted payment
// page the applicant must be redirected to.
type SubmitResponse struct {
	Registration *Registration `json:"registration"`
	PaymentURL   string        `json:"payment_url"`
}

// ListRequest is the admin listing query. Name fields match
// case-insensitively anywhere in the applicant's full name; date bounds are
// inclusive on the creation date.
type ListRequest struct {
	Status     string `form:"status"`
	AmountFrom *int64 `form:"amount_from"`
	AmountTo   *int64 `form:"amount_to"`
	FirstName  string `form:"first_name"`
	LastName   string `form:"last_name"`
	StartDate  string `form:"start_date"`
	EndDate    string `form:"end_date"`
	SortBy     string `form:"sort_by"`
	SortDir    string `form:"sort_dir"`

	pagination.Pagination
}

type ListResponse struct {
	Registrations []*Registration     `json:"registrations"`
	PageInfo      pagination.PageInfo `json:"page_info"`
	TotalCount    int64               `json:"total_count"`
}

type Service interface {
	// CanRegister evaluates the track's application window and remaining
	// capacity at the given instant. Pure read; never mutates state.
	CanRegister(ctx context.Context, trackID int, now time.Time) (Decision, error)

	// Submit validates the application, reserves a slot, opens a payment
	// session and persists the pending record.
	Submit(ctx context.Context, req SubmitRequest) (*SubmitResponse, error)

	// ApplyGatewayResult folds a verified payment callback into the record
	// lifecycle. Safe to call repeatedly with the same result.
	ApplyGatewayResult(ctx context.Context, result gatewaydomain.Result) (*Registration, error)

	// List serves the admin listing with conjunctive filters.
	List(ctx context.Context, req ListRequest) (*ListResponse, error)
}
