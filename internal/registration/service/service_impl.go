package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	catalogdomain "github.com/camphq/camppay/internal/catalog/domain"
	"github.com/camphq/camppay/internal/clock"
	gatewaydomain "github.com/camphq/camppay/internal/gateway/domain"
	"github.com/camphq/camppay/internal/notify"
	"github.com/camphq/camppay/internal/observability/metrics"
	"github.com/camphq/camppay/internal/registration/domain"
	"github.com/camphq/camppay/pkg/db/pagination"
)

const orderRefPrefix = "CAMP-"

// defaultEmailBody is used when the settings file carries no template.
const defaultEmailBody = `<p>Dear {{.Name}},</p>
<p>Your registration for {{.TrackName}} is confirmed.
Order reference: {{.OrderRef}}, paid amount: {{.Amount}} {{.Currency}}.</p>`

type Params struct {
	fx.In

	DB       *gorm.DB
	Repo     domain.Repository
	Catalog  catalogdomain.Service
	Gateway  gatewaydomain.Client
	Notifier notify.Provider
	Clock    clock.Clock
	Node     *snowflake.Node
	Metrics  *metrics.Metrics `optional:"true"`
	Log      *zap.Logger
}

type Service struct {
	db       *gorm.DB
	repo     domain.Repository
	catalog  catalogdomain.Service
	gateway  gatewaydomain.Client
	notifier notify.Provider
	clock    clock.Clock
	node     *snowflake.Node
	metrics  *metrics.Metrics
	log      *zap.Logger
}

var _ domain.Service = (*Service)(nil)

func New(p Params) *Service {
	return &Service{
		db:       p.DB,
		repo:     p.Repo,
		catalog:  p.Catalog,
		gateway:  p.Gateway,
		notifier: p.Notifier,
		clock:    p.Clock,
		node:     p.Node,
		metrics:  p.Metrics,
		log:      p.Log.Named("registration.service"),
	}
}

func (s *Service) CanRegister(ctx context.Context, trackID int, now time.Time) (domain.Decision, error) {
	track, err := s.catalog.GetTrack(trackID)
	if errors.Is(err, catalogdomain.ErrUnknownTrack) {
		return s.denied(ctx, domain.ReasonUnknownTrack), nil
	}
	if err != nil {
		return domain.Decision{}, err
	}

	// The public gate only counts settled registrations; pending sessions do
	// not show a track as full. A full track reports full even outside its
	// apply window.
	count, err := s.repo.CountByTrackAndStatus(ctx, s.db, track.ID, domain.StatusSuccess)
	if err != nil {
		return domain.Decision{}, err
	}
	if count >= int64(track.Capacity) {
		return s.denied(ctx, domain.ReasonFull), nil
	}

	if reason := windowReason(track, now); reason != "" {
		return s.denied(ctx, reason), nil
	}
	return domain.Decision{Allowed: true}, nil
}

// windowReason returns the denial reason implied by the application window
// alone, or "" when the window is open. Tracks without configured dates are
// treated as closed.
func windowReason(track catalogdomain.Track, now time.Time) string {
	if !track.HasApplyWindow() {
		return domain.ReasonClosed
	}
	start, end := track.ApplyWindow()
	if now.Before(start) {
		return domain.ReasonNotOpenYet
	}
	if now.After(end) {
		return domain.ReasonClosed
	}
	return ""
}

func (s *Service) denied(ctx context.Context, reason string) domain.Decision {
	if s.metrics != nil {
		s.metrics.RecordEligibilityDenied(ctx, reason)
	}
	return domain.Decision{Allowed: false, Reason: reason}
}

func (s *Service) Submit(ctx context.Context, req domain.SubmitRequest) (*domain.SubmitResponse, error) {
	track, err := s.catalog.GetTrack(req.TrackID)
	if errors.Is(err, catalogdomain.ErrUnknownTrack) {
		return nil, &domain.ClosedError{Reason: domain.ReasonUnknownTrack}
	}
	if err != nil {
		return nil, err
	}

	dob, vErr := validateSubmit(&req, track)
	if vErr != nil {
		return nil, vErr
	}

	now := s.clock.Now()
	decision, err := s.CanRegister(ctx, track.ID, now)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return nil, &domain.ClosedError{Reason: decision.Reason}
	}

	settings := s.catalog.Settings()
	orderRef := s.newOrderRef(now)

	started, err := s.gateway.Start(ctx, gatewaydomain.StartRequest{
		OrderRef:      orderRef,
		Amount:        track.Price,
		Currency:      track.Currency,
		CustomerEmail: req.Email,
		Language:      language(settings),
		Methods:       []string{"CARD"},
		URLs: gatewaydomain.CallbackURLs{
			Success: settings.URLs.Success,
			Fail:    settings.URLs.Fail,
			Cancel:  settings.URLs.Cancel,
			Timeout: settings.URLs.Timeout,
		},
		Invoice: gatewaydomain.Invoice{
			Name:    req.FullName,
			Country: "HU",
			City:    req.City,
			Zip:     req.Postcode,
			Address: req.Street,
		},
	})
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordGatewaySession(ctx, "error")
		}
		s.log.Error("payment session start failed",
			zap.String("order_ref", orderRef),
			zap.Int("track_id", track.ID),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %v", domain.ErrGatewaySession, err)
	}
	if s.metrics != nil {
		s.metrics.RecordGatewaySession(ctx, "started")
	}

	reg := &domain.Registration{
		ID:      s.node.Generate(),
		UUID:    uuid.NewString(),
		TrackID: track.ID,

		FullName:         req.FullName,
		PlaceOfBirth:     req.PlaceOfBirth,
		DateOfBirth:      dob,
		MothersName:      req.MothersName,
		Email:            req.Email,
		Nationality:      req.Nationality,
		Phone:            req.Phone,
		Postcode:         req.Postcode,
		City:             req.City,
		Street:           req.Street,
		Major:            req.Major,
		Campus:           req.Campus,
		EmergencyContact: req.EmergencyContact,
		Allergy:          req.Allergy,
		Meal:             req.Meal,
		TShirtSize:       req.TShirtSize,
		Stay:             req.Stay,
		StayUntil:        req.StayUntil,

		AcceptNationality:    req.AcceptNationality,
		AcceptExtras:         req.AcceptExtras,
		AcceptPhoto:          req.AcceptPhoto,
		AcceptPrivacy:        req.AcceptPrivacy,
		AcceptRules:          req.AcceptRules,
		AcceptResponsibility: req.AcceptResponsibility,

		Amount:        track.Price,
		Currency:      track.Currency,
		OrderRef:      orderRef,
		TransactionID: started.TransactionID,
		Salt:          started.Salt,
		ProductCode:   track.ProductCode,

		Status:    domain.StatusPending,
		CreatedBy: req.CreatedBy,
		CreatedAt: now,
		UpdatedAt: now,
	}

	// Slot reservation happens under the per-track lock and counts pending
	// sessions as well, so two concurrent submissions cannot both squeeze
	// into the last slot. Abandoned pending slots are released by the
	// timeout sweep. The gateway session above is opened before the
	// reservation: a submission that loses the last slot leaves a session
	// nobody is redirected to, which expires unused at the gateway.
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.LockTrack(ctx, tx, track.ID); err != nil {
			return err
		}
		reserved, err := s.repo.CountByTrackAndStatus(ctx, tx, track.ID, domain.StatusSuccess, domain.StatusPending)
		if err != nil {
			return err
		}
		if reserved >= int64(track.Capacity) {
			return &domain.ClosedError{Reason: domain.ReasonFull}
		}
		return s.repo.Insert(ctx, tx, reg)
	})
	if err != nil {
		if errors.Is(err, domain.ErrRegistrationClosed) {
			if s.metrics != nil {
				s.metrics.RecordEligibilityDenied(ctx, domain.ReasonFull)
			}
			return nil, err
		}
		if errors.Is(err, domain.ErrDuplicateOrderRef) {
			s.log.Warn("order reference collision",
				zap.String("order_ref", orderRef),
				zap.Error(err))
			return nil, err
		}
		s.log.Error("registration insert failed",
			zap.String("order_ref", orderRef),
			zap.Error(err))
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordRegistration(ctx, track.ID)
	}
	s.log.Info("registration created",
		zap.String("order_ref", orderRef),
		zap.Int("track_id", track.ID),
		zap.String("uuid", reg.UUID))

	return &domain.SubmitResponse{Registration: reg, PaymentURL: started.PaymentURL}, nil
}

func (s *Service) newOrderRef(now time.Time) string {
	id := ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy())
	return orderRefPrefix + id.String()
}

func language(settings catalogdomain.Settings) string {
	if settings.Language != "" {
		return strings.ToUpper(settings.Language)
	}
	return "HU"
}

func (s *Service) ApplyGatewayResult(ctx context.Context, result gatewaydomain.Result) (*domain.Registration, error) {
	reg, err := s.repo.FindByOrderRef(ctx, s.db, result.OrderRef)
	if err != nil {
		return nil, err
	}
	if reg == nil {
		reg, err = s.repo.FindByTransactionID(ctx, s.db, result.TransactionID)
		if err != nil {
			return nil, err
		}
	}
	if reg == nil {
		s.log.Debug("callback for unknown order", zap.String("order_ref", result.OrderRef))
		return nil, domain.ErrStaleCallback
	}
	if reg.Status.Terminal() {
		s.log.Debug("callback for settled registration",
			zap.String("order_ref", reg.OrderRef),
			zap.String("status", string(reg.Status)))
		return nil, domain.ErrStaleCallback
	}

	status, failReason := outcome(result)
	reg.Status = status
	reg.FailReason = failReason
	reg.ApprovalCode = result.ApprovalCode
	if result.TransactionID != "" {
		reg.TransactionID = result.TransactionID
	}
	if len(result.Raw) > 0 {
		reg.RawResult = datatypes.JSON(result.Raw)
	}
	reg.UpdatedAt = s.clock.Now()

	settled, err := s.repo.Finalize(ctx, s.db, reg)
	if err != nil {
		return nil, err
	}
	if !settled {
		// A concurrent callback won the pending->terminal race.
		return nil, domain.ErrStaleCallback
	}

	if s.metrics != nil {
		s.metrics.RecordCallback(ctx, string(status))
	}
	s.log.Info("registration settled",
		zap.String("order_ref", reg.OrderRef),
		zap.String("status", string(status)),
		zap.String("transaction_id", reg.TransactionID))

	if status == domain.StatusSuccess {
		s.sendConfirmation(ctx, reg)
	}
	return reg, nil
}

func outcome(result gatewaydomain.Result) (domain.Status, string) {
	switch result.Event {
	case gatewaydomain.EventSuccess:
		return domain.StatusSuccess, ""
	case gatewaydomain.EventCancel:
		return domain.StatusCancelled, "cancelled by customer"
	case gatewaydomain.EventTimeout:
		return domain.StatusTimedOut, "payment window timed out"
	default:
		if result.FailReason != "" {
			return domain.StatusFailed, result.FailReason
		}
		return domain.StatusFailed, "declined by gateway"
	}
}

type confirmationData struct {
	Name      string
	TrackName string
	Location  string
	OrderRef  string
	Amount    int64
	Currency  string
}

// sendConfirmation is best effort; a mail failure never rolls back a settled
// payment.
func (s *Service) sendConfirmation(ctx context.Context, reg *domain.Registration) {
	settings := s.catalog.Settings()

	data := confirmationData{
		Name:     reg.FullName,
		OrderRef: reg.OrderRef,
		Amount:   reg.Amount,
		Currency: reg.Currency,
	}
	if track, err := s.catalog.GetTrack(reg.TrackID); err == nil {
		data.TrackName = track.Name
		data.Location = track.Location
	}

	body := settings.EmailBody
	if strings.TrimSpace(body) == "" {
		body = defaultEmailBody
	}
	tmpl, err := template.New("confirmation").Parse(body)
	if err != nil {
		s.log.Warn("confirmation template invalid", zap.Error(err))
		return
	}
	var rendered bytes.Buffer
	if err := tmpl.Execute(&rendered, data); err != nil {
		s.log.Warn("confirmation template failed", zap.Error(err))
		return
	}

	subject := settings.EmailSubject
	if subject == "" {
		subject = "Camp registration confirmed"
	}

	recipients := []string{reg.Email}
	if settings.NotificationEmail != "" {
		recipients = append(recipients, settings.NotificationEmail)
	}
	if err := s.notifier.Send(ctx, recipients, subject, rendered.String()); err != nil {
		s.log.Warn("confirmation email failed",
			zap.String("order_ref", reg.OrderRef),
			zap.Error(err))
	}
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) (*domain.ListResponse, error) {
	filter, err := buildFilter(req)
	if err != nil {
		return nil, err
	}

	sort := domain.Sort{
		Column: strings.ToLower(strings.TrimSpace(req.SortBy)),
		Desc:   strings.EqualFold(req.SortDir, "desc"),
	}
	page := req.Pagination.Normalize()

	filtered, err := s.repo.Count(ctx, s.db, filter)
	if err != nil {
		return nil, err
	}
	total, err := s.repo.Count(ctx, s.db, domain.ListFilter{})
	if err != nil {
		return nil, err
	}
	regs, err := s.repo.List(ctx, s.db, filter, sort, page)
	if err != nil {
		return nil, err
	}

	return &domain.ListResponse{
		Registrations: regs,
		PageInfo:      pagination.BuildPageInfo(page, filtered),
		TotalCount:    total,
	}, nil
}

func buildFilter(req domain.ListRequest) (domain.ListFilter, error) {
	filter := domain.ListFilter{
		AmountFrom: req.AmountFrom,
		AmountTo:   req.AmountTo,
	}

	if req.Status != "" {
		status, err := domain.ParseStatus(req.Status)
		if err != nil {
			return filter, &domain.ValidationError{Fields: []domain.FieldError{
				{Field: "status", Code: "invalid", Message: "unknown status"},
			}}
		}
		filter.Status = status
	}

	for _, name := range []string{req.FirstName, req.LastName} {
		if fragment := strings.ToLower(strings.TrimSpace(name)); fragment != "" {
			filter.NameContains = append(filter.NameContains, fragment)
		}
	}

	if req.StartDate != "" {
		from, err := time.ParseInLocation(dateLayout, req.StartDate, time.Local)
		if err != nil {
			return filter, &domain.ValidationError{Fields: []domain.FieldError{
				{Field: "start_date", Code: "invalid", Message: "start_date must be YYYY-MM-DD"},
			}}
		}
		filter.CreatedFrom = &from
	}
	if req.EndDate != "" {
		parsed, err := time.ParseInLocation(dateLayout, req.EndDate, time.Local)
		if err != nil {
			return filter, &domain.ValidationError{Fields: []domain.FieldError{
				{Field: "end_date", Code: "invalid", Message: "end_date must be YYYY-MM-DD"},
			}}
		}
		to := parsed.Add(24*time.Hour - time.Second)
		filter.CreatedTo = &to
	}
	return filter, nil
}
