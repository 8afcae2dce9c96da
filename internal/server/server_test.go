package server_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	catalogdomain "github.com/camphq/camppay/internal/catalog/domain"
	"github.com/camphq/camppay/internal/clock"
	"github.com/camphq/camppay/internal/config"
	gatewaydomain "github.com/camphq/camppay/internal/gateway/domain"
	"github.com/camphq/camppay/internal/observability"
	registrationdomain "github.com/camphq/camppay/internal/registration/domain"
	"github.com/camphq/camppay/internal/server"
)

type stubCatalog struct {
	tracks map[int]catalogdomain.Track
}

func (s *stubCatalog) GetTrack(id int) (catalogdomain.Track, error) {
	track, ok := s.tracks[id]
	if !ok {
		return catalogdomain.Track{}, catalogdomain.ErrUnknownTrack
	}
	return track, nil
}

func (s *stubCatalog) ListTracks() []catalogdomain.Track {
	var out []catalogdomain.Track
	for _, t := range s.tracks {
		out = append(out, t)
	}
	return out
}

func (s *stubCatalog) Settings() catalogdomain.Settings { return catalogdomain.Settings{} }

type stubRegistration struct {
	submitResp *registrationdomain.SubmitResponse
	submitErr  error
	applyResp  *registrationdomain.Registration
	applyErr   error
	listResp   *registrationdomain.ListResponse
	lastList   registrationdomain.ListRequest
}

func (s *stubRegistration) CanRegister(ctx context.Context, trackID int, now time.Time) (registrationdomain.Decision, error) {
	if trackID == 1 {
		return registrationdomain.Decision{Allowed: true}, nil
	}
	return registrationdomain.Decision{Allowed: false, Reason: registrationdomain.ReasonClosed}, nil
}

func (s *stubRegistration) Submit(ctx context.Context, req registrationdomain.SubmitRequest) (*registrationdomain.SubmitResponse, error) {
	return s.submitResp, s.submitErr
}

func (s *stubRegistration) ApplyGatewayResult(ctx context.Context, result gatewaydomain.Result) (*registrationdomain.Registration, error) {
	return s.applyResp, s.applyErr
}

func (s *stubRegistration) List(ctx context.Context, req registrationdomain.ListRequest) (*registrationdomain.ListResponse, error) {
	s.lastList = req
	return s.listResp, nil
}

type stubGateway struct {
	result    gatewaydomain.Result
	verifyErr error
}

func (s *stubGateway) Start(ctx context.Context, req gatewaydomain.StartRequest) (gatewaydomain.StartResponse, error) {
	return gatewaydomain.StartResponse{}, nil
}

func (s *stubGateway) VerifyCallback(ctx context.Context, r, sig string) (gatewaydomain.Result, error) {
	if s.verifyErr != nil {
		return gatewaydomain.Result{}, s.verifyErr
	}
	return s.result, nil
}

type harness struct {
	engine       *gin.Engine
	registration *stubRegistration
	gateway      *stubGateway
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	h := &harness{
		registration: &stubRegistration{},
		gateway:      &stubGateway{},
	}
	h.engine = server.NewEngine(observability.Config{})
	server.NewServer(server.ServerParams{
		Gin:   h.engine,
		Cfg:   config.Config{},
		Clock: clock.NewFakeClock(time.Date(2024, 6, 15, 12, 0, 0, 0, time.Local)),
		CatalogSvc: &stubCatalog{tracks: map[int]catalogdomain.Track{
			1: {ID: 1, Name: "Engineering Camp", Price: 3000, Currency: "HUF", Capacity: 120},
		}},
		RegistrationSvc: h.registration,
		Gateway:         h.gateway,
		Log:             zap.NewNop(),
	})
	return h
}

func (h *harness) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	h.engine.ServeHTTP(rec, req)
	return rec
}

func TestTrackEndpoints(t *testing.T) {
	h := newHarness(t)

	t.Run("get known track", func(t *testing.T) {
		rec := h.do(t, http.MethodGet, "/api/tracks/1", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Engineering Camp")
	})

	t.Run("unknown track is 404", func(t *testing.T) {
		rec := h.do(t, http.MethodGet, "/api/tracks/9", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("eligibility decision", func(t *testing.T) {
		rec := h.do(t, http.MethodGet, "/api/tracks/1/eligibility", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var decision registrationdomain.Decision
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decision))
		assert.True(t, decision.Allowed)
	})
}

func TestSubmitEndpoint(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		h := newHarness(t)
		h.registration.submitResp = &registrationdomain.SubmitResponse{
			Registration: &registrationdomain.Registration{OrderRef: "CAMP-1", Status: registrationdomain.StatusPending},
			PaymentURL:   "https://pay.example/session/CAMP-1",
		}

		rec := h.do(t, http.MethodPost, "/api/registrations", `{"track_id":1}`)
		require.Equal(t, http.StatusCreated, rec.Code)
		assert.Contains(t, rec.Body.String(), "payment_url")
	})

	t.Run("validation errors surface per field", func(t *testing.T) {
		h := newHarness(t)
		h.registration.submitErr = &registrationdomain.ValidationError{
			Fields: []registrationdomain.FieldError{
				{Field: "stay_until", Code: "required", Message: "stay_until is required for a partial stay"},
			},
		}

		rec := h.do(t, http.MethodPost, "/api/registrations", `{"track_id":1}`)
		require.Equal(t, http.StatusBadRequest, rec.Code)

		var resp struct {
			Error struct {
				Type   string `json:"type"`
				Errors []struct {
					Field string `json:"field"`
					Code  string `json:"code"`
				} `json:"errors"`
			} `json:"error"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "validation_error", resp.Error.Type)
		require.Len(t, resp.Error.Errors, 1)
		assert.Equal(t, "stay_until", resp.Error.Errors[0].Field)
	})

	t.Run("closed registration is a conflict with the reason", func(t *testing.T) {
		h := newHarness(t)
		h.registration.submitErr = &registrationdomain.ClosedError{Reason: registrationdomain.ReasonFull}

		rec := h.do(t, http.MethodPost, "/api/registrations", `{"track_id":1}`)
		require.Equal(t, http.StatusConflict, rec.Code)
		assert.Contains(t, rec.Body.String(), registrationdomain.ReasonFull)
	})

	t.Run("order reference collision asks for a retry", func(t *testing.T) {
		h := newHarness(t)
		h.registration.submitErr = registrationdomain.ErrDuplicateOrderRef

		rec := h.do(t, http.MethodPost, "/api/registrations", `{"track_id":1}`)
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Contains(t, rec.Body.String(), "duplicate_submission")
	})

	t.Run("gateway trouble is a generic upstream failure", func(t *testing.T) {
		h := newHarness(t)
		h.registration.submitErr = registrationdomain.ErrGatewaySession

		rec := h.do(t, http.MethodPost, "/api/registrations", `{"track_id":1}`)
		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.NotContains(t, rec.Body.String(), "secret")
	})

	t.Run("malformed body", func(t *testing.T) {
		h := newHarness(t)
		rec := h.do(t, http.MethodPost, "/api/registrations", `{"track_id":`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestPaymentCallbacks(t *testing.T) {
	t.Run("browser return reports the settled status", func(t *testing.T) {
		h := newHarness(t)
		h.gateway.result = gatewaydomain.Result{OrderRef: "CAMP-1", Event: gatewaydomain.EventSuccess}
		h.registration.applyResp = &registrationdomain.Registration{
			OrderRef: "CAMP-1",
			Status:   registrationdomain.StatusSuccess,
		}

		rec := h.do(t, http.MethodGet, "/payment/return?r=payload&s=sig", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "CAMP-1")
		assert.Contains(t, rec.Body.String(), "success")
	})

	t.Run("missing envelope params", func(t *testing.T) {
		h := newHarness(t)
		rec := h.do(t, http.MethodGet, "/payment/return", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("bad signature never leaks detail", func(t *testing.T) {
		h := newHarness(t)
		h.gateway.verifyErr = gatewaydomain.ErrInvalidSignature

		rec := h.do(t, http.MethodPost, "/payment/ipn?r=payload&s=bad", "")
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "callback rejected")
		assert.NotContains(t, rec.Body.String(), "signature")
	})

	t.Run("duplicate notification acknowledges without changes", func(t *testing.T) {
		h := newHarness(t)
		h.gateway.result = gatewaydomain.Result{OrderRef: "CAMP-1", Event: gatewaydomain.EventSuccess}
		h.registration.applyErr = registrationdomain.ErrStaleCallback

		rec := h.do(t, http.MethodPost, "/payment/ipn?r=payload&s=sig", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "duplicate")
	})
}

func TestAdminListing(t *testing.T) {
	h := newHarness(t)
	h.registration.listResp = &registrationdomain.ListResponse{TotalCount: 2}

	rec := h.do(t, http.MethodGet, "/admin/api/registrations?status=success&amount_from=1000&first_name=Anna&page=2&page_size=5&sort_by=amount&sort_dir=desc", "")
	require.Equal(t, http.StatusOK, rec.Code)

	got := h.registration.lastList
	assert.Equal(t, "success", got.Status)
	require.NotNil(t, got.AmountFrom)
	assert.Equal(t, int64(1000), *got.AmountFrom)
	assert.Equal(t, "Anna", got.FirstName)
	assert.Equal(t, 2, got.Page)
	assert.Equal(t, 5, got.PageSize)
	assert.Equal(t, "amount", got.SortBy)
}
