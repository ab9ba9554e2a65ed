package source

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BoranPatron/tradeboard/pkg/model"
)

func TestFromTradeWire(t *testing.T) {
	m := NewMapper()
	distance := 3.7
	unread := true

	rec := m.FromTradeWire(tradeWire{
		ID:                               12,
		Title:                            "Sanitary installation",
		Category:                         "plumbing",
		ProjectID:                        4,
		Status:                           "COST_ESTIMATE",
		CompletionStatus:                 " In_Progress ",
		PlannedDate:                      "2026-10-15",
		SubmissionDeadline:               "2026-09-30T12:00:00Z",
		DistanceKm:                       &distance,
		HasUnreadMessagesServiceProvider: &unread,
	})

	assert.Equal(t, int64(12), rec.ID)
	assert.Equal(t, model.TradeOpen, rec.Status)
	assert.Equal(t, "in_progress", rec.CompletionStatus)
	assert.Equal(t, time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC), rec.PlannedDate)
	assert.Equal(t, time.Date(2026, 9, 30, 12, 0, 0, 0, time.UTC), rec.SubmissionDeadline)
	require.NotNil(t, rec.DistanceKm)
	assert.Equal(t, 3.7, *rec.DistanceKm)
	require.NotNil(t, rec.Unread)
	assert.True(t, rec.Unread.ServiceProvider)
	assert.False(t, rec.Unread.ProjectOwner)
}

func TestFromTradeWireNoUnreadFlags(t *testing.T) {
	rec := NewMapper().FromTradeWire(tradeWire{ID: 1, Status: "open"})
	assert.Nil(t, rec.Unread)
}

func TestFromQuoteWire(t *testing.T) {
	rec := NewMapper().FromQuoteWire(quoteWire{
		ID:                9,
		MilestoneID:       7,
		ServiceProviderID: 3,
		Status:            "PENDING",
		TotalAmount:       decimal.RequireFromString("12500.50"),
		Currency:          " eur ",
		CreatedAt:         "2026-08-01T09:30:00Z",
	})

	assert.Equal(t, model.QuoteSubmitted, rec.Status)
	assert.Equal(t, "EUR", rec.Currency)
	assert.Equal(t, "12500.5", rec.TotalAmount.String())
	assert.Equal(t, int64(3), rec.ServiceProviderID.Int64())
}

func TestNormalizeQuoteStatus(t *testing.T) {
	cases := map[string]model.QuoteStatus{
		"PENDING":      model.QuoteSubmitted,
		"submitted":    model.QuoteSubmitted,
		"in_review":    model.QuoteUnderReview,
		"awarded":      model.QuoteAccepted,
		"declined":     model.QuoteRejected,
		"timeout":      model.QuoteExpired,
		"created":      model.QuoteDraft,
		"weird_status": model.QuoteStatus("weird_status"),
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeQuoteStatus(in), "input %q", in)
	}
}

func TestNormalizeTradeStatus(t *testing.T) {
	cases := map[string]model.TradeStatus{
		"TENDER":      model.TradeOpen,
		"published":   model.TradeOpen,
		"execution":   model.TradeInProgress,
		"done":        model.TradeCompleted,
		"canceled":    model.TradeCancelled,
		"draft":       model.TradePlanned,
		"bidding_closed": model.TradeAwarded,
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeTradeStatus(in), "input %q", in)
	}
}

func TestParseDateFallbacks(t *testing.T) {
	assert.True(t, parseDate("").IsZero())
	assert.True(t, parseDate("not-a-date").IsZero())
	assert.False(t, parseDate("2026-01-02").IsZero())
	assert.False(t, parseDate("2026-01-02T15:04:05Z").IsZero())
}
