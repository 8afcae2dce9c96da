package domain

import (
	"errors"
	"time"
)

// Track is one faculty camp offering. Prices are whole currency units; HUF
// has no minor unit and the gateway expects whole amounts.
type Track struct {
	ID          int      `json:"id" mapstructure:"id"`
	Name        string   `json:"name" mapstructure:"name"`
	Price       int64    `json:"price" mapstructure:"price"`
	Currency    string   `json:"currency" mapstructure:"currency"`
	Capacity    int      `json:"capacity" mapstructure:"capacity"`
	Location    string   `json:"location" mapstructure:"location"`
	ProductCode string   `json:"product_code" mapstructure:"product_code"`
	Campuses    []string `json:"campuses,omitempty" mapstructure:"campuses"`

	CampStart  time.Time `json:"camp_start"`
	CampEnd    time.Time `json:"camp_end"`
	ApplyStart time.Time `json:"apply_start"`
	ApplyEnd   time.Time `json:"apply_end"`
}

// HasApplyWindow reports whether both application dates are configured.
// Tracks without a window never accept registrations.
func (t Track) HasApplyWindow() bool {
	return !t.ApplyStart.IsZero() && !t.ApplyEnd.IsZero()
}

// ApplyWindow expands the configured dates to the full first and last day,
// [apply_start 00:00:00, apply_end 23:59:59] in the dates' location.
func (t Track) ApplyWindow() (time.Time, time.Time) {
	start := time.Date(t.ApplyStart.Year(), t.ApplyStart.Month(), t.ApplyStart.Day(), 0, 0, 0, 0, t.ApplyStart.Location())
	end := time.Date(t.ApplyEnd.Year(), t.ApplyEnd.Month(), t.ApplyEnd.Day(), 23, 59, 59, 0, t.ApplyEnd.Location())
	return start, end
}

// RequiresCampus reports whether the sub-location field is mandatory when
// registering for this track.
func (t Track) RequiresCampus() bool {
	return len(t.Campuses) > 0
}

// CallbackURLs are the absolute return URLs handed to the gateway, keyed by
// logical outcome.
type CallbackURLs struct {
	Success string `json:"success" mapstructure:"success"`
	Fail    string `json:"fail" mapstructure:"fail"`
	Cancel  string `json:"cancel" mapstructure:"cancel"`
	Timeout string `json:"timeout" mapstructure:"timeout"`
}

// Settings is the admin-editable part of the configuration surface.
type Settings struct {
	URLs              CallbackURLs `json:"urls" mapstructure:"urls"`
	NotificationEmail string       `json:"notification_email" mapstructure:"notification_email"`
	EmailSubject      string       `json:"email_subject" mapstructure:"email_subject"`
	EmailBody         string       `json:"email_body" mapstructure:"email_body"`
	Language          string       `json:"language" mapstructure:"language"`
}

// Missing returns the names of required settings that are not filled in.
// A non-empty result is surfaced as an admin notice, not a hard failure.
func (s Settings) Missing() []string {
	var missing []string
	if s.URLs.Success == "" {
		missing = append(missing, "urls.success")
	}
	if s.URLs.Fail == "" {
		missing = append(missing, "urls.fail")
	}
	if s.URLs.Cancel == "" {
		missing = append(missing, "urls.cancel")
	}
	if s.URLs.Timeout == "" {
		missing = append(missing, "urls.timeout")
	}
	if s.NotificationEmail == "" {
		missing = append(missing, "notification_email")
	}
	return missing
}

type Service interface {
	GetTrack(id int) (Track, error)
	ListTracks() []Track
	Settings() Settings
}

var ErrUnknownTrack = errors.New("unknown_track")
