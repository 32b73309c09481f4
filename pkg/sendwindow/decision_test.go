package sendwindow

import (
	"testing"
	"time"

	"github.com/loopmsg/journeyd/pkg/models"
	"github.com/stretchr/testify/assert"
)

var baseTime = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

func customerWith(lastMessage, windowExpiry *time.Duration) *models.Customer {
	customer := &models.Customer{ID: "cust-1", Phone: "+5511999990000"}

	if lastMessage != nil {
		at := baseTime.Add(-*lastMessage)
		customer.LastMessageAt = &at
	}

	if windowExpiry != nil {
		at := baseTime.Add(*windowExpiry)
		customer.WindowExpiresAt = &at
	}

	return customer
}

func durationPtr(d time.Duration) *time.Duration { return &d }

func TestDecide_ExplicitExpiryBeatsStaleLastMessage(t *testing.T) {
	// Window expiry one hour out, last inbound message 3 days ago.
	customer := customerWith(durationPtr(72*time.Hour), durationPtr(time.Hour))

	decision := Decide(customer, "order_followup", baseTime)

	assert.Equal(t, ModeFreeForm, decision.Mode)
}

func TestDecide_ExplicitExpiryInPastOverridesRecentMessage(t *testing.T) {
	// Provider says the window closed, even though the heuristic would
	// still allow free-form.
	customer := customerWith(durationPtr(2*time.Hour), durationPtr(-time.Minute))

	decision := Decide(customer, "order_followup", baseTime)

	assert.Equal(t, ModeTemplate, decision.Mode)
}

func TestDecide_RecentLastMessageAllowsFreeForm(t *testing.T) {
	customer := customerWith(durationPtr(2*time.Hour), nil)

	decision := Decide(customer, "", baseTime)

	assert.Equal(t, ModeFreeForm, decision.Mode)
}

func TestDecide_StaleLastMessageFallsBackToTemplate(t *testing.T) {
	customer := customerWith(durationPtr(30*time.Hour), nil)

	decision := Decide(customer, "order_followup", baseTime)

	assert.Equal(t, ModeTemplate, decision.Mode)
}

func TestDecide_NoTemplateSkipsWithReason(t *testing.T) {
	customer := customerWith(durationPtr(30*time.Hour), nil)

	decision := Decide(customer, "", baseTime)

	assert.Equal(t, ModeSkip, decision.Mode)
	assert.Equal(t, ReasonNoFallbackTemplate, decision.Reason)
}

func TestDecide_NoHistoryAtAllSkips(t *testing.T) {
	customer := customerWith(nil, nil)

	decision := Decide(customer, "", baseTime)

	assert.Equal(t, ModeSkip, decision.Mode)
}

func TestInDailyWindow_Defaults(t *testing.T) {
	// Default window is 9-21 local.
	assert.True(t, InDailyWindow(nil, time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)))
	assert.True(t, InDailyWindow(nil, time.Date(2025, 6, 10, 20, 59, 0, 0, time.UTC)))
	assert.False(t, InDailyWindow(nil, time.Date(2025, 6, 10, 21, 0, 0, 0, time.UTC)))
	assert.False(t, InDailyWindow(nil, time.Date(2025, 6, 10, 8, 59, 0, 0, time.UTC)))
}

func TestInDailyWindow_Custom(t *testing.T) {
	window := &models.DailyWindow{StartHour: 18, EndHour: 22}

	assert.True(t, InDailyWindow(window, time.Date(2025, 6, 10, 19, 0, 0, 0, time.UTC)))
	assert.False(t, InDailyWindow(window, time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)))
}
