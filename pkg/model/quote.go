package model

import (
	"bytes"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

//
// ────────────────────────────────────────────────
//   Canonical Quote (bid) records
// ────────────────────────────────────────────────
//

// QuoteStatus is the lifecycle status of a bid.
type QuoteStatus string

const (
	QuoteDraft       QuoteStatus = "draft"
	QuoteSubmitted   QuoteStatus = "submitted"
	QuoteUnderReview QuoteStatus = "under_review"
	QuoteAccepted    QuoteStatus = "accepted"
	QuoteRejected    QuoteStatus = "rejected"
	QuoteExpired     QuoteStatus = "expired"
)

// ActorID is a numeric identity that tolerates inconsistent upstream
// serialization: some endpoints emit service provider ids as JSON numbers,
// others as numeric strings. It always normalizes to int64; unparseable or
// missing values decode to zero, which no ownership check ever matches.
type ActorID int64

// UnmarshalJSON accepts 42, "42", and null.
func (a *ActorID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*a = 0
		return nil
	}
	if data[0] == '"' {
		s, err := strconv.Unquote(string(data))
		if err != nil {
			*a = 0
			return nil
		}
		data = []byte(s)
	}
	// Some upstreams serialize ids as floats ("42.0").
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		*a = 0
		return nil
	}
	*a = ActorID(int64(f))
	return nil
}

// Int64 returns the canonical numeric form.
func (a ActorID) Int64() int64 { return int64(a) }

// QuoteRecord is a bid submitted by a service provider against a trade.
// Rich fields (company name, technical approach) are only populated when the
// quote was fetched through the per-trade endpoint.
type QuoteRecord struct {
	ID                int64           `json:"id"`
	MilestoneID       int64           `json:"milestone_id"` // references TradeRecord.ID
	ProjectID         int64           `json:"project_id,omitempty"`
	ServiceProviderID ActorID         `json:"service_provider_id"`
	Status            QuoteStatus     `json:"status"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
	Currency          string          `json:"currency"`
	CreatedAt         time.Time       `json:"created_at"`

	// Rich fields, per-trade endpoint only.
	CompanyName       string `json:"company_name,omitempty"`
	TechnicalApproach string `json:"technical_approach,omitempty"`
	EstimatedDuration int    `json:"estimated_duration,omitempty"`
}

// QuoteSubmission is the payload for submitting a new bid upstream.
type QuoteSubmission struct {
	MilestoneID       int64           `json:"milestone_id"`
	ProjectID         int64           `json:"project_id,omitempty"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
	Currency          string          `json:"currency"`
	CompanyName       string          `json:"company_name,omitempty"`
	TechnicalApproach string          `json:"technical_approach,omitempty"`
	EstimatedDuration int             `json:"estimated_duration,omitempty"`
}
