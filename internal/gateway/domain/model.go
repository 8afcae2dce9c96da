package domain

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrSessionFailed is returned when the provider refuses or fails to
	// open a hosted payment session.
	ErrSessionFailed = errors.New("gateway_session_failed")

	// ErrMissingCredentials is returned when no merchant account is
	// configured for the requested currency.
	ErrMissingCredentials = errors.New("gateway_missing_credentials")

	// ErrInvalidSignature is returned when a callback signature does not
	// match the recomputed value.
	ErrInvalidSignature = errors.New("gateway_invalid_signature")

	// ErrInvalidPayload is returned when a callback body cannot be decoded.
	ErrInvalidPayload = errors.New("gateway_invalid_payload")
)

// Callback event codes as reported by the provider.
const (
	EventSuccess = "SUCCESS"
	EventFail    = "FAIL"
	EventCancel  = "CANCEL"
	EventTimeout = "TIMEOUT"
)

// CallbackURLs are the per-outcome browser return targets advertised when a
// session is opened.
type CallbackURLs struct {
	Success string `json:"urlSuccess"`
	Fail    string `json:"urlFail"`
	Cancel  string `json:"urlCancel"`
	Timeout string `json:"urlTimeout"`
}

// Invoice carries the billing block the provider prints on its receipt.
type Invoice struct {
	Name    string `json:"name"`
	Country string `json:"country"`
	City    string `json:"city"`
	Zip     string `json:"zip"`
	Address string `json:"address"`
}

// StartRequest describes a hosted payment session to open. It is built once
// per submission and never mutated afterwards.
type StartRequest struct {
	OrderRef      string
	Amount        int64
	Currency      string
	CustomerEmail string
	Language      string
	Methods       []string
	Timeout       time.Time
	URLs          CallbackURLs
	Invoice       Invoice
}

// StartResponse is the provider's answer to a session start.
type StartResponse struct {
	PaymentURL    string
	TransactionID string
	Salt          string
}

// Result is a verified, decoded payment callback.
type Result struct {
	OrderRef      string
	TransactionID string
	Event         string
	ApprovalCode  string
	FailReason    string
	Amount        int64
	Currency      string
	FinishedAt    time.Time
	Raw           []byte
}

// Client talks to the payment provider.
type Client interface {
	// Start opens a hosted payment session and returns the redirect URL.
	Start(ctx context.Context, req StartRequest) (StartResponse, error)

	// VerifyCallback authenticates and decodes a callback. r is the
	// base64-encoded payload, s the signature that covers it. Both the
	// browser return and the server-to-server notification use the same
	// envelope.
	VerifyCallback(ctx context.Context, r, s string) (Result, error)
}
