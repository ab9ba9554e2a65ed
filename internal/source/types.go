package source

import (
	"github.com/shopspring/decimal"

	"github.com/BoranPatron/tradeboard/pkg/model"
)

//
// ────────────────────────────────────────────────
//   Wire payloads (marketplace backend JSON)
// ────────────────────────────────────────────────
//
// Field presence differs per endpoint: distance_km only appears on
// /trades/search results, the has_unread_messages_* flags only on
// /milestones/. Identity fields arrive as numbers or numeric strings
// depending on the endpoint; model.ActorID absorbs both.
//

// tradeWire mirrors the tender JSON shape shared by the geo-search and
// global list endpoints.
type tradeWire struct {
	ID                 int64          `json:"id"`
	Title              string         `json:"title"`
	Category           string         `json:"category"`
	ProjectID          int64          `json:"project_id"`
	Status             string         `json:"status"`
	CompletionStatus   string         `json:"completion_status,omitempty"`
	PlannedDate        string         `json:"planned_date,omitempty"`
	SubmissionDeadline string         `json:"submission_deadline,omitempty"`
	DistanceKm         *float64       `json:"distance_km,omitempty"`
	QuoteStats         quoteStatsWire `json:"quote_stats"`

	// Global list only.
	HasUnreadMessagesServiceProvider *bool `json:"has_unread_messages_service_provider,omitempty"`
	HasUnreadMessagesProjectOwner    *bool `json:"has_unread_messages_project_owner,omitempty"`
}

type quoteStatsWire struct {
	TotalQuotes int `json:"total_quotes"`
}

// quoteWire mirrors the bid JSON shape of /quotes and /quotes/milestone/{id}.
// The rich fields are only present on the per-trade endpoint.
type quoteWire struct {
	ID                int64           `json:"id"`
	MilestoneID       int64           `json:"milestone_id"`
	ProjectID         int64           `json:"project_id,omitempty"`
	ServiceProviderID model.ActorID   `json:"service_provider_id"`
	Status            string          `json:"status"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
	Currency          string          `json:"currency"`
	CreatedAt         string          `json:"created_at"`
	CompanyName       string          `json:"company_name,omitempty"`
	TechnicalApproach string          `json:"technical_approach,omitempty"`
	EstimatedDuration int             `json:"estimated_duration,omitempty"`
}

// quoteSubmitWire is the POST payload for submitting a bid.
type quoteSubmitWire struct {
	MilestoneID       int64           `json:"milestone_id"`
	ProjectID         int64           `json:"project_id,omitempty"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
	Currency          string          `json:"currency"`
	CompanyName       string          `json:"company_name,omitempty"`
	TechnicalApproach string          `json:"technical_approach,omitempty"`
	EstimatedDuration int             `json:"estimated_duration,omitempty"`
}

// appointmentResponseWire is the POST payload for answering an appointment.
type appointmentResponseWire struct {
	AppointmentID int64  `json:"appointment_id"`
	Response      string `json:"response"`
}

// errorWire is the generic error envelope returned by the backend.
type errorWire struct {
	Detail  string `json:"detail"`
	Message string `json:"message"`
}
