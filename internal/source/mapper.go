package source

import (
	"strings"
	"time"

	"github.com/BoranPatron/tradeboard/pkg/model"
)

//
// ────────────────────────────────────────────────
//   Mapper – wire payloads to canonical records
// ────────────────────────────────────────────────
//

// Mapper translates marketplace wire payloads into canonical domain records.
// All identity and status normalization happens here, immediately after
// deserialization, so downstream components never branch on type.
type Mapper struct{}

// NewMapper constructs a Mapper instance.
func NewMapper() *Mapper { return &Mapper{} }

// FromTradeWire converts one wire tender into a canonical TradeRecord.
func (m *Mapper) FromTradeWire(w tradeWire) model.TradeRecord {
	rec := model.TradeRecord{
		ID:                 w.ID,
		Title:              w.Title,
		Category:           w.Category,
		ProjectID:          w.ProjectID,
		Status:             NormalizeTradeStatus(w.Status),
		CompletionStatus:   strings.ToLower(strings.TrimSpace(w.CompletionStatus)),
		PlannedDate:        parseDate(w.PlannedDate),
		SubmissionDeadline: parseDate(w.SubmissionDeadline),
		DistanceKm:         w.DistanceKm,
		QuoteStats:         model.QuoteStats{TotalQuotes: w.QuoteStats.TotalQuotes},
	}

	if w.HasUnreadMessagesServiceProvider != nil || w.HasUnreadMessagesProjectOwner != nil {
		flags := &model.UnreadFlags{}
		if w.HasUnreadMessagesServiceProvider != nil {
			flags.ServiceProvider = *w.HasUnreadMessagesServiceProvider
		}
		if w.HasUnreadMessagesProjectOwner != nil {
			flags.ProjectOwner = *w.HasUnreadMessagesProjectOwner
		}
		rec.Unread = flags
	}

	return rec
}

// FromTradeWires converts a wire tender list.
func (m *Mapper) FromTradeWires(ws []tradeWire) []model.TradeRecord {
	out := make([]model.TradeRecord, 0, len(ws))
	for _, w := range ws {
		out = append(out, m.FromTradeWire(w))
	}
	return out
}

// FromQuoteWire converts one wire bid into a canonical QuoteRecord.
func (m *Mapper) FromQuoteWire(w quoteWire) model.QuoteRecord {
	return model.QuoteRecord{
		ID:                w.ID,
		MilestoneID:       w.MilestoneID,
		ProjectID:         w.ProjectID,
		ServiceProviderID: w.ServiceProviderID,
		Status:            NormalizeQuoteStatus(w.Status),
		TotalAmount:       w.TotalAmount,
		Currency:          strings.ToUpper(strings.TrimSpace(w.Currency)),
		CreatedAt:         parseDate(w.CreatedAt),
		CompanyName:       w.CompanyName,
		TechnicalApproach: w.TechnicalApproach,
		EstimatedDuration: w.EstimatedDuration,
	}
}

// FromQuoteWires converts a wire bid list.
func (m *Mapper) FromQuoteWires(ws []quoteWire) []model.QuoteRecord {
	out := make([]model.QuoteRecord, 0, len(ws))
	for _, w := range ws {
		out = append(out, m.FromQuoteWire(w))
	}
	return out
}

// ToQuoteSubmitWire converts a canonical submission into the POST payload.
func (m *Mapper) ToQuoteSubmitWire(s model.QuoteSubmission) quoteSubmitWire {
	return quoteSubmitWire{
		MilestoneID:       s.MilestoneID,
		ProjectID:         s.ProjectID,
		TotalAmount:       s.TotalAmount,
		Currency:          strings.ToUpper(strings.TrimSpace(s.Currency)),
		CompanyName:       s.CompanyName,
		TechnicalApproach: s.TechnicalApproach,
		EstimatedDuration: s.EstimatedDuration,
	}
}

// parseDate accepts RFC3339 timestamps and bare dates; zero time on failure.
func parseDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t
	}
	return time.Time{}
}

//
// ────────────────────────────────────────────────
//   Status normalization
// ────────────────────────────────────────────────
//

// NormalizeQuoteStatus maps the backend's bid status spellings to canonical
// statuses. Unknown statuses pass through lowercased for debugging.
func NormalizeQuoteStatus(status string) model.QuoteStatus {
	s := strings.ToLower(strings.TrimSpace(status))

	switch s {
	case "draft", "created":
		return model.QuoteDraft
	case "submitted", "pending", "open":
		return model.QuoteSubmitted
	case "under_review", "in_review", "review", "reviewing":
		return model.QuoteUnderReview
	case "accepted", "awarded", "won":
		return model.QuoteAccepted
	case "rejected", "declined", "lost":
		return model.QuoteRejected
	case "expired", "timeout":
		return model.QuoteExpired
	default:
		return model.QuoteStatus(s)
	}
}

// NormalizeTradeStatus maps tender lifecycle spellings to canonical statuses.
func NormalizeTradeStatus(status string) model.TradeStatus {
	s := strings.ToLower(strings.TrimSpace(status))

	switch s {
	case "planned", "draft":
		return model.TradePlanned
	case "open", "published", "cost_estimate", "tender":
		return model.TradeOpen
	case "awarded", "bidding_closed":
		return model.TradeAwarded
	case "in_progress", "execution", "active":
		return model.TradeInProgress
	case "completed", "done", "finished":
		return model.TradeCompleted
	case "cancelled", "canceled", "archived":
		return model.TradeCancelled
	default:
		return model.TradeStatus(s)
	}
}
