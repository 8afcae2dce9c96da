// Package simplepay implements the hosted-payment-page client. Sessions are
// opened with a signed JSON POST; callbacks arrive as a base64 payload plus a
// detached signature over the payload's financial fields.
package simplepay

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/camphq/camppay/internal/clock"
	"github.com/camphq/camppay/internal/config"
	"github.com/camphq/camppay/internal/gateway/domain"
	"github.com/camphq/camppay/internal/gateway/signature"
)

const (
	sandboxURL = "https://sandbox.simplepay.hu/payment/v2/start"
	liveURL    = "https://secure.simplepay.hu/payment/v2/start"

	requestTimeout = 15 * time.Second
)

type Params struct {
	fx.In

	Cfg   config.Config
	Clock clock.Clock
	Log   *zap.Logger
}

// Client posts session starts to the provider and authenticates callbacks.
type Client struct {
	cfg        config.GatewayConfig
	clock      clock.Clock
	httpClient *http.Client
	baseURL    string
	log        *zap.Logger
}

var _ domain.Client = (*Client)(nil)

func New(p Params) *Client {
	baseURL := liveURL
	if p.Cfg.Gateway.Sandbox() {
		baseURL = sandboxURL
	}
	return &Client{
		cfg:        p.Cfg.Gateway,
		clock:      p.Clock,
		httpClient: &http.Client{Timeout: requestTimeout},
		baseURL:    baseURL,
		log:        p.Log.Named("gateway.simplepay"),
	}
}

type startPayload struct {
	Merchant      string              `json:"merchant"`
	OrderRef      string              `json:"orderRef"`
	Currency      string              `json:"currency"`
	Total         string              `json:"total"`
	Salt          string              `json:"salt"`
	CustomerEmail string              `json:"customerEmail"`
	Language      string              `json:"language"`
	Methods       []string            `json:"methods"`
	Timeout       string              `json:"timeout"`
	Timestamp     string              `json:"timestamp"`
	URLs          domain.CallbackURLs `json:"urls"`
	Invoice       domain.Invoice      `json:"invoice"`
	Signature     string              `json:"signature"`
}

type startReply struct {
	PaymentURL    string   `json:"paymentUrl"`
	TransactionID string   `json:"transactionId"`
	ErrorCodes    []string `json:"errorCodes"`
}

func (c *Client) Start(ctx context.Context, req domain.StartRequest) (domain.StartResponse, error) {
	account, ok := c.cfg.Account(req.Currency)
	if !ok {
		return domain.StartResponse{}, fmt.Errorf("%w: no merchant for currency %s", domain.ErrMissingCredentials, req.Currency)
	}

	now := c.clock.Now()
	timeout := req.Timeout
	if timeout.IsZero() {
		timeout = now.Add(time.Duration(c.cfg.SessionTimeout) * time.Second)
	}

	salt, err := newSalt()
	if err != nil {
		return domain.StartResponse{}, fmt.Errorf("%w: %v", domain.ErrSessionFailed, err)
	}

	amount := signature.FormatAmount(req.Amount)
	timestamp := signature.FormatTimestamp(now)
	payload := startPayload{
		Merchant:      account.MerchantID,
		OrderRef:      req.OrderRef,
		Currency:      req.Currency,
		Total:         amount,
		Salt:          salt,
		CustomerEmail: req.CustomerEmail,
		Language:      req.Language,
		Methods:       req.Methods,
		Timeout:       timeout.Format(time.RFC3339),
		Timestamp:     timestamp,
		URLs:          req.URLs,
		Invoice:       req.Invoice,
		Signature:     signature.Compute(account.MerchantID, timestamp, amount, req.Currency, account.SecretKey),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return domain.StartResponse{}, fmt.Errorf("%w: %v", domain.ErrSessionFailed, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return domain.StartResponse{}, fmt.Errorf("%w: %v", domain.ErrSessionFailed, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.log.Warn("session start request failed", zap.String("order_ref", req.OrderRef), zap.Error(err))
		return domain.StartResponse{}, fmt.Errorf("%w: %v", domain.ErrSessionFailed, err)
	}
	defer resp.Body.Close()

	replyBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return domain.StartResponse{}, fmt.Errorf("%w: %v", domain.ErrSessionFailed, err)
	}
	if resp.StatusCode != http.StatusOK {
		c.log.Warn("session start rejected",
			zap.String("order_ref", req.OrderRef),
			zap.Int("status", resp.StatusCode))
		return domain.StartResponse{}, fmt.Errorf("%w: status %d", domain.ErrSessionFailed, resp.StatusCode)
	}

	var reply startReply
	if err := json.Unmarshal(replyBody, &reply); err != nil {
		return domain.StartResponse{}, fmt.Errorf("%w: %v", domain.ErrSessionFailed, err)
	}
	if len(reply.ErrorCodes) > 0 || reply.PaymentURL == "" {
		c.log.Warn("session start returned errors",
			zap.String("order_ref", req.OrderRef),
			zap.Strings("error_codes", reply.ErrorCodes))
		return domain.StartResponse{}, fmt.Errorf("%w: %s", domain.ErrSessionFailed, strings.Join(reply.ErrorCodes, ","))
	}

	return domain.StartResponse{
		PaymentURL:    reply.PaymentURL,
		TransactionID: reply.TransactionID,
		Salt:          salt,
	}, nil
}

type callbackPayload struct {
	Merchant      string `json:"merchant"`
	OrderRef      string `json:"orderRef"`
	TransactionID string `json:"transactionId"`
	Event         string `json:"event"`
	ApprovalCode  string `json:"approvalCode"`
	FailReason    string `json:"failReason"`
	Total         string `json:"total"`
	Currency      string `json:"currency"`
	FinishDate    string `json:"finishDate"`
}

func (c *Client) VerifyCallback(ctx context.Context, r, s string) (domain.Result, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(r))
	if err != nil {
		return domain.Result{}, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}

	var payload callbackPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return domain.Result{}, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}

	account, ok := c.cfg.Account(payload.Currency)
	if !ok || account.MerchantID != payload.Merchant {
		// An unknown merchant/currency pair can never verify; treat it as a
		// forged signature rather than leaking which part was wrong.
		return domain.Result{}, domain.ErrInvalidSignature
	}

	if !signature.Verify(s, payload.Merchant, payload.FinishDate, payload.Total, payload.Currency, account.SecretKey) {
		return domain.Result{}, domain.ErrInvalidSignature
	}

	amount, err := parseAmount(payload.Total)
	if err != nil {
		return domain.Result{}, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}

	event := strings.ToUpper(strings.TrimSpace(payload.Event))
	switch event {
	case domain.EventSuccess, domain.EventFail, domain.EventCancel, domain.EventTimeout:
	default:
		return domain.Result{}, fmt.Errorf("%w: unknown event %q", domain.ErrInvalidPayload, payload.Event)
	}

	finishedAt, err := signature.ParseTimestamp(payload.FinishDate)
	if err != nil {
		return domain.Result{}, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}

	return domain.Result{
		OrderRef:      payload.OrderRef,
		TransactionID: payload.TransactionID,
		Event:         event,
		ApprovalCode:  payload.ApprovalCode,
		FailReason:    payload.FailReason,
		Amount:        amount,
		Currency:      payload.Currency,
		FinishedAt:    finishedAt,
		Raw:           raw,
	}, nil
}

func newSalt() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func parseAmount(total string) (int64, error) {
	value, err := strconv.ParseFloat(strings.TrimSpace(total), 64)
	if err != nil {
		return 0, err
	}
	return int64(math.Round(value)), nil
}
