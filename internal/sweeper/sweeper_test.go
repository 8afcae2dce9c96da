package sweeper_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/camphq/camppay/internal/clock"
	"github.com/camphq/camppay/internal/config"
	"github.com/camphq/camppay/internal/registration/domain"
	"github.com/camphq/camppay/internal/registration/repository"
	"github.com/camphq/camppay/internal/sweeper"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:sweep_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&domain.Registration{}, &domain.TrackLock{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seed(t *testing.T, db *gorm.DB, id int64, status domain.Status, createdAt time.Time) {
	t.Helper()
	reg := &domain.Registration{
		ID:        snowflake.ID(1000 + id),
		UUID:      fmt.Sprintf("sweep-%d", id),
		TrackID:   1,
		FullName:  "Sweep Test",
		Email:     "sweep@example.com",
		Amount:    3000,
		Currency:  "HUF",
		OrderRef:  fmt.Sprintf("CAMP-SWEEP-%d", id),
		Status:    status,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	if err := db.Create(reg).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func TestSweepOnce(t *testing.T) {
	db := setupDB(t)
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.Local)
	fake := clock.NewFakeClock(now)

	// Session timeout 600s plus the 5m default grace: anything pending for
	// more than 15 minutes is overdue.
	sw, err := sweeper.New(sweeper.Params{
		DB:    db,
		Repo:  repository.Provide(),
		Clock: fake,
		AppCfg: config.Config{
			Gateway: config.GatewayConfig{SessionTimeout: 600},
		},
		Log: zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("new sweeper: %v", err)
	}

	seed(t, db, 1, domain.StatusPending, now.Add(-20*time.Minute)) // overdue
	seed(t, db, 2, domain.StatusPending, now.Add(-5*time.Minute))  // still inside the window
	seed(t, db, 3, domain.StatusSuccess, now.Add(-1*time.Hour))    // settled, untouchable

	swept, err := sw.SweepOnce(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if swept != 1 {
		t.Fatalf("swept = %d, want 1", swept)
	}

	var statuses []domain.Status
	for _, id := range []string{"CAMP-SWEEP-1", "CAMP-SWEEP-2", "CAMP-SWEEP-3"} {
		var reg domain.Registration
		if err := db.First(&reg, "order_ref = ?", id).Error; err != nil {
			t.Fatalf("load %s: %v", id, err)
		}
		statuses = append(statuses, reg.Status)
	}
	want := []domain.Status{domain.StatusTimedOut, domain.StatusPending, domain.StatusSuccess}
	for i := range want {
		if statuses[i] != want[i] {
			t.Fatalf("statuses = %v, want %v", statuses, want)
		}
	}

	// Second pass finds nothing new.
	swept, err = sw.SweepOnce(context.Background())
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if swept != 0 {
		t.Fatalf("second sweep = %d, want 0", swept)
	}
}
