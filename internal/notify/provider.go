// Package notify delivers registration confirmation mail. The body template
// comes from the admin-editable settings file, not from disk.
package notify

import "context"

type Provider interface {
	Send(ctx context.Context, to []string, subject string, htmlBody string) error
}

// NoOpProvider is used when no SMTP host is configured.
type NoOpProvider struct{}

func (p *NoOpProvider) Send(ctx context.Context, to []string, subject string, htmlBody string) error {
	return nil
}
