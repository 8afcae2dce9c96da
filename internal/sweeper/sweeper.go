// Package sweeper settles registrations whose payment session expired
// without any callback. The gateway promises a timeout notification but the
// browser may never come back; the sweep is the safety net that keeps
// reserved slots from leaking.
package sweeper

import (
	"context"
	"errors"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/camphq/camppay/internal/clock"
	"github.com/camphq/camppay/internal/config"
	"github.com/camphq/camppay/internal/observability/metrics"
	"github.com/camphq/camppay/internal/registration/domain"
)

var ErrInvalidConfig = errors.New("sweeper: invalid configuration")

type Params struct {
	fx.In

	DB      *gorm.DB
	Repo    domain.Repository
	Clock   clock.Clock
	AppCfg  config.Config
	Metrics *metrics.Metrics `optional:"true"`
	Config  Config           `optional:"true"`
	Log     *zap.Logger
}

type Sweeper struct {
	db             *gorm.DB
	repo           domain.Repository
	clock          clock.Clock
	cfg            Config
	sessionTimeout time.Duration
	metrics        *metrics.Metrics
	log            *zap.Logger
}

func New(p Params) (*Sweeper, error) {
	if p.DB == nil || p.Repo == nil || p.Clock == nil || p.Log == nil {
		return nil, ErrInvalidConfig
	}
	return &Sweeper{
		db:             p.DB,
		repo:           p.Repo,
		clock:          p.Clock,
		cfg:            p.Config.withDefaults(),
		sessionTimeout: time.Duration(p.AppCfg.Gateway.SessionTimeout) * time.Second,
		metrics:        p.Metrics,
		log:            p.Log.Named("sweeper"),
	}, nil
}

func (s *Sweeper) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := s.SweepOnce(ctx); err != nil {
				s.log.Error("sweep failed", zap.Error(err))
			} else if n > 0 {
				s.log.Info("swept stale registrations", zap.Int("count", n))
			}
		}
	}
}

// SweepOnce moves every pending registration older than the session timeout
// plus grace to timed_out. It returns how many records it settled.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	cutoff := s.clock.Now().Add(-(s.sessionTimeout + s.cfg.Grace))
	stale, err := s.repo.FindStalePending(ctx, s.db, cutoff, s.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, reg := range stale {
		reg.Status = domain.StatusTimedOut
		reg.FailReason = "payment window timed out"
		reg.UpdatedAt = s.clock.Now()

		settled, err := s.repo.Finalize(ctx, s.db, reg)
		if err != nil {
			return swept, err
		}
		if !settled {
			// A late callback settled it first; nothing to do.
			continue
		}
		swept++
		if s.metrics != nil {
			s.metrics.RecordCallback(ctx, string(domain.StatusTimedOut))
		}
		s.log.Info("registration timed out",
			zap.String("order_ref", reg.OrderRef),
			zap.Int("track_id", reg.TrackID))
	}
	return swept, nil
}
