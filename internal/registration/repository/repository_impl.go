package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/camphq/camppay/internal/registration/domain"
	pkgdb "github.com/camphq/camppay/pkg/db"
	"github.com/camphq/camppay/pkg/db/pagination"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, reg *domain.Registration) error {
	if err := db.WithContext(ctx).Create(reg).Error; err != nil {
		if pkgdb.IsDuplicateKeyErr(err) {
			return fmt.Errorf("%w: %v", domain.ErrDuplicateOrderRef, err)
		}
		return err
	}
	return nil
}

func (r *repo) FindByOrderRef(ctx context.Context, db *gorm.DB, orderRef string) (*domain.Registration, error) {
	return r.findOne(ctx, db, "order_ref = ?", orderRef)
}

func (r *repo) FindByTransactionID(ctx context.Context, db *gorm.DB, transactionID string) (*domain.Registration, error) {
	if transactionID == "" {
		return nil, nil
	}
	return r.findOne(ctx, db, "transaction_id = ?", transactionID)
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, query string, arg any) (*domain.Registration, error) {
	var reg domain.Registration
	err := db.WithContext(ctx).
		Where(query, arg).
		First(&reg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

func (r *repo) CountByTrackAndStatus(ctx context.Context, db *gorm.DB, trackID int, statuses ...domain.Status) (int64, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&domain.Registration{}).
		Where("track_id = ? AND status IN ?", trackID, statuses).
		Count(&count).Error
	return count, err
}

func (r *repo) LockTrack(ctx context.Context, db *gorm.DB, trackID int) error {
	// The row may not exist for a freshly configured track; insert-or-ignore
	// first, then take the row lock for the rest of the transaction.
	if err := db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&domain.TrackLock{TrackID: trackID}).Error; err != nil {
		return err
	}
	return db.WithContext(ctx).
		Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
		First(&domain.TrackLock{}, "track_id = ?", trackID).Error
}

func (r *repo) Finalize(ctx context.Context, db *gorm.DB, reg *domain.Registration) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.Registration{}).
		Where("id = ? AND status = ?", reg.ID, domain.StatusPending).
		Updates(map[string]any{
			"status":         reg.Status,
			"fail_reason":    reg.FailReason,
			"transaction_id": reg.TransactionID,
			"approval_code":  reg.ApprovalCode,
			"raw_result":     reg.RawResult,
			"updated_at":     reg.UpdatedAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// sortColumns is the allowlist for admin listing ordering.
var sortColumns = map[string]string{
	"id":      "id",
	"name":    "full_name",
	"amount":  "amount",
	"status":  "status",
	"created": "created_at",
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter, sort domain.Sort, page pagination.Pagination) ([]*domain.Registration, error) {
	var regs []*domain.Registration
	stmt := applyFilter(db.WithContext(ctx).Model(&domain.Registration{}), filter)

	column, ok := sortColumns[sort.Column]
	if !ok {
		column = "created_at"
	}
	direction := "asc"
	if sort.Desc {
		direction = "desc"
	}
	stmt = page.Apply(stmt).Order(fmt.Sprintf("%s %s, id %s", column, direction, direction))

	if err := stmt.Find(&regs).Error; err != nil {
		return nil, err
	}
	return regs, nil
}

func (r *repo) Count(ctx context.Context, db *gorm.DB, filter domain.ListFilter) (int64, error) {
	var count int64
	err := applyFilter(db.WithContext(ctx).Model(&domain.Registration{}), filter).
		Count(&count).Error
	return count, err
}

func applyFilter(stmt *gorm.DB, filter domain.ListFilter) *gorm.DB {
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.AmountFrom != nil {
		stmt = stmt.Where("amount >= ?", *filter.AmountFrom)
	}
	if filter.AmountTo != nil {
		stmt = stmt.Where("amount <= ?", *filter.AmountTo)
	}
	for _, fragment := range filter.NameContains {
		stmt = stmt.Where("LOWER(full_name) LIKE ?", "%"+fragment+"%")
	}
	if filter.CreatedFrom != nil {
		stmt = stmt.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		stmt = stmt.Where("created_at <= ?", *filter.CreatedTo)
	}
	return stmt
}

func (r *repo) FindStalePending(ctx context.Context, db *gorm.DB, cutoff time.Time, limit int) ([]*domain.Registration, error) {
	var regs []*domain.Registration
	err := db.WithContext(ctx).
		Where("status = ? AND created_at < ?", domain.StatusPending, cutoff).
		Order("created_at asc").
		Limit(limit).
		Find(&regs).Error
	if err != nil {
		return nil, err
	}
	return regs, nil
}
