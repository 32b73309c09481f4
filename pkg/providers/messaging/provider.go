// Package messaging provides the outbound WhatsApp messaging boundary:
// free-form texts inside the 24-hour window, pre-approved templates
// outside it.
package messaging

import "context"

// Provider sends messages through the messaging platform. Both calls
// return the provider-assigned message id on success.
type Provider interface {
	SendFreeForm(ctx context.Context, phone, body string) (string, error)
	SendTemplate(ctx context.Context, phone, templateName, language string, variables map[string]string) (string, error)
}
