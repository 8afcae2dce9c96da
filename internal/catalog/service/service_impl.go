package service

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/camphq/camppay/internal/catalog/domain"
	"github.com/camphq/camppay/internal/config"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

// rawTrack mirrors the settings file; dates stay strings until validated.
type rawTrack struct {
	ID          int      `mapstructure:"id"`
	Name        string   `mapstructure:"name"`
	Price       int64    `mapstructure:"price"`
	Currency    string   `mapstructure:"currency"`
	Capacity    int      `mapstructure:"capacity"`
	Location    string   `mapstructure:"location"`
	ProductCode string   `mapstructure:"product_code"`
	Campuses    []string `mapstructure:"campuses"`
	CampStart   string   `mapstructure:"camp_start"`
	CampEnd     string   `mapstructure:"camp_end"`
	ApplyStart  string   `mapstructure:"apply_start"`
	ApplyEnd    string   `mapstructure:"apply_end"`
}

type rawFile struct {
	Tracks   []rawTrack      `mapstructure:"tracks"`
	Settings domain.Settings `mapstructure:"settings"`
}

type Params struct {
	fx.In

	Cfg config.Config
	Log *zap.Logger
}

type Service struct {
	log *zap.Logger
	v   *viper.Viper

	mu       sync.RWMutex
	tracks   map[int]domain.Track
	order    []int
	settings domain.Settings
}

func New(p Params) (domain.Service, error) {
	v := viper.New()
	v.SetConfigFile(p.Cfg.SettingsFile)

	s := &Service{
		log:    p.Log.Named("catalog.service"),
		v:      v,
		tracks: map[int]domain.Track{},
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read settings file: %w", err)
	}
	if err := s.reload(); err != nil {
		return nil, err
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if err := s.reload(); err != nil {
			s.log.Warn("settings reload failed, keeping previous catalog",
				zap.String("file", e.Name),
				zap.Error(err),
			)
		}
	})
	v.WatchConfig()

	return s, nil
}

func (s *Service) reload() error {
	var raw rawFile
	if err := s.v.Unmarshal(&raw); err != nil {
		return fmt.Errorf("decode settings file: %w", err)
	}

	tracks := make(map[int]domain.Track, len(raw.Tracks))
	order := make([]int, 0, len(raw.Tracks))
	for _, rt := range raw.Tracks {
		track, err := s.buildTrack(rt)
		if err != nil {
			s.log.Warn("dropping invalid track",
				zap.Int("track_id", rt.ID),
				zap.String("name", rt.Name),
				zap.Error(err),
			)
			continue
		}
		if _, dup := tracks[track.ID]; dup {
			s.log.Warn("dropping duplicate track id", zap.Int("track_id", track.ID))
			continue
		}
		tracks[track.ID] = track
		order = append(order, track.ID)
	}
	sort.Ints(order)

	if missing := raw.Settings.Missing(); len(missing) > 0 {
		s.log.Warn("settings incomplete, registrations cannot reach the gateway until filled in",
			zap.Strings("missing", missing),
		)
	}

	s.mu.Lock()
	s.tracks = tracks
	s.order = order
	s.settings = raw.Settings
	s.mu.Unlock()

	s.log.Info("catalog loaded", zap.Int("tracks", len(tracks)))
	return nil
}

func (s *Service) buildTrack(rt rawTrack) (domain.Track, error) {
	if rt.ID <= 0 {
		return domain.Track{}, fmt.Errorf("id must be positive")
	}
	if strings.TrimSpace(rt.Name) == "" {
		return domain.Track{}, fmt.Errorf("name is required")
	}
	if rt.Price <= 0 {
		return domain.Track{}, fmt.Errorf("price must be positive")
	}
	if rt.Capacity < 0 {
		return domain.Track{}, fmt.Errorf("capacity must not be negative")
	}

	currency := strings.ToUpper(strings.TrimSpace(rt.Currency))
	if currency == "" {
		currency = "HUF"
	}

	track := domain.Track{
		ID:          rt.ID,
		Name:        strings.TrimSpace(rt.Name),
		Price:       rt.Price,
		Currency:    currency,
		Capacity:    rt.Capacity,
		Location:    strings.TrimSpace(rt.Location),
		ProductCode: strings.TrimSpace(rt.ProductCode),
		Campuses:    rt.Campuses,
	}

	var err error
	if track.CampStart, err = parseDate(rt.CampStart); err != nil {
		return domain.Track{}, fmt.Errorf("camp_start: %w", err)
	}
	if track.CampEnd, err = parseDate(rt.CampEnd); err != nil {
		return domain.Track{}, fmt.Errorf("camp_end: %w", err)
	}
	if track.ApplyStart, err = parseDate(rt.ApplyStart); err != nil {
		return domain.Track{}, fmt.Errorf("apply_start: %w", err)
	}
	if track.ApplyEnd, err = parseDate(rt.ApplyEnd); err != nil {
		return domain.Track{}, fmt.Errorf("apply_end: %w", err)
	}

	if track.HasApplyWindow() && track.ApplyEnd.Before(track.ApplyStart) {
		return domain.Track{}, fmt.Errorf("apply_end before apply_start")
	}

	return track, nil
}

func parseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	return time.ParseInLocation(dateLayout, value, time.Local)
}

func (s *Service) GetTrack(id int) (domain.Track, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	track, ok := s.tracks[id]
	if !ok {
		return domain.Track{}, domain.ErrUnknownTrack
	}
	return track, nil
}

func (s *Service) ListTracks() []domain.Track {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Track, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.tracks[id])
	}
	return out
}

func (s *Service) Settings() domain.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}
