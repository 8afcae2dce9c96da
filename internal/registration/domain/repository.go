package domain

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/camphq/camppay/pkg/db/pagination"
)

// ListFilter narrows the admin listing. All set fields are combined with AND.
type ListFilter struct {
	Status       Status
	AmountFrom   *int64
	AmountTo     *int64
	NameContains []string
	CreatedFrom  *time.Time
	CreatedTo    *time.Time
}

// Sort orders the admin listing. Column is validated by the repository
// against a fixed allowlist.
type Sort struct {
	Column string
	Desc   bool
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, reg *Registration) error
	FindByOrderRef(ctx context.Context, db *gorm.DB, orderRef string) (*Registration, error)
	FindByTransactionID(ctx context.Context, db *gorm.DB, transactionID string) (*Registration, error)

	// CountByTrackAndStatus counts registrations on a track in any of the
	// given statuses.
	CountByTrackAndStatus(ctx context.Context, db *gorm.DB, trackID int, statuses ...Status) (int64, error)

	// LockTrack takes the per-track lock row for the duration of the
	// surrounding transaction, creating it on first use.
	LockTrack(ctx context.Context, db *gorm.DB, trackID int) error

	// Finalize moves a pending record into a terminal state. It returns
	// false when the record was no longer pending, so concurrent callbacks
	// settle on exactly one winner.
	Finalize(ctx context.Context, db *gorm.DB, reg *Registration) (bool, error)

	List(ctx context.Context, db *gorm.DB, filter ListFilter, sort Sort, page pagination.Pagination) ([]*Registration, error)
	Count(ctx context.Context, db *gorm.DB, filter ListFilter) (int64, error)

	// FindStalePending returns pending records created before the cutoff,
	// oldest first.
	FindStalePending(ctx context.Context, db *gorm.DB, cutoff time.Time, limit int) ([]*Registration, error)
}
