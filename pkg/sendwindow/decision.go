// Package sendwindow decides whether and how a message may be sent to a
// contact: free-form inside the 24-hour messaging window, template
// fallback outside it, or skip.
package sendwindow

import (
	"time"

	"github.com/loopmsg/journeyd/pkg/models"
)

// FreeFormWindow is how long after a customer's last inbound message
// free-form sends stay allowed.
const FreeFormWindow = 24 * time.Hour

// Mode is how a message should be delivered.
type Mode string

const (
	ModeFreeForm Mode = "free_form"
	ModeTemplate Mode = "template"
	ModeSkip     Mode = "skip"
)

// Skip reasons exposed in enrollment action records.
const (
	ReasonNoFallbackTemplate = "outside window, no fallback template"
	ReasonOutsideSendWindow  = "outside send window"
)

// Decision is the outcome of the window check.
type Decision struct {
	Mode   Mode
	Reason string
}

// Decide applies the window precedence chain, which controls real
// messaging cost and must not be reordered:
//
//  1. an explicit provider window expiry in the future allows free-form,
//  2. otherwise a last inbound message within 24 hours allows free-form,
//  3. otherwise a configured template name falls back to a template send,
//  4. otherwise the send is skipped.
func Decide(customer *models.Customer, templateName string, now time.Time) Decision {
	if customer.WindowExpiresAt != nil && customer.WindowExpiresAt.After(now) {
		return Decision{Mode: ModeFreeForm}
	}

	if customer.WindowExpiresAt == nil && customer.LastMessageAt != nil &&
		now.Sub(*customer.LastMessageAt) < FreeFormWindow {
		return Decision{Mode: ModeFreeForm}
	}

	if templateName != "" {
		return Decision{Mode: ModeTemplate}
	}

	return Decision{Mode: ModeSkip, Reason: ReasonNoFallbackTemplate}
}

// InDailyWindow checks the action's hour-of-day send window. This is
// distinct from the 24-hour check: it governs whether to send at all,
// not how.
func InDailyWindow(window *models.DailyWindow, now time.Time) bool {
	w := models.DefaultDailyWindow
	if window != nil {
		w = *window
	}

	return w.Contains(now)
}
