package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

//
// ────────────────────────────────────────────────
//   In-process domain events (closed set)
// ────────────────────────────────────────────────
//
// Fire-and-forget notifications published on the in-process event bus. The
// refresh scheduler subscribes to the subset it translates into source-scoped
// invalidations; UI-facing events (OpenTradeDetails, ScrollToBidding) pass
// through untouched.
//

// UserRole identifies which side of a trade conversation an actor is on.
type UserRole string

const (
	RoleServiceProvider UserRole = "service_provider"
	RoleProjectOwner    UserRole = "project_owner"
)

// OpenTradeDetails asks the view layer to open the detail panel for a trade.
type OpenTradeDetails struct {
	TradeID       int64  `json:"trade_id"`
	ShowQuoteForm bool   `json:"show_quote_form"`
	Source        string `json:"source"`
}

// QuoteSubmittedEvent fires after a bid was successfully submitted upstream.
type QuoteSubmittedEvent struct {
	Quote QuoteRecord  `json:"quote"`
	Trade *MergedTrade `json:"trade,omitempty"`
}

// MessagesMarkedAsRead fires when the viewer has read the chat of a trade.
type MessagesMarkedAsRead struct {
	TradeID int64    `json:"trade_id"`
	Role    UserRole `json:"user_type"`
}

// AppointmentUpdated fires after an appointment invitation was answered.
type AppointmentUpdated struct{}

// ScrollToBidding asks the view layer to scroll to the bidding section.
type ScrollToBidding struct{}

//
// ────────────────────────────────────────────────
//   Outbound event envelope (NATS)
// ────────────────────────────────────────────────
//

// Envelope is the canonical wrapper for events published to NATS.
type Envelope struct {
	ID            uuid.UUID       `json:"id"`
	CorrelationID uuid.UUID       `json:"correlation_id"`
	ActorID       int64           `json:"actor_id"`
	Topic         string          `json:"topic"`
	EventType     string          `json:"event_type"`
	Version       string          `json:"version"`
	Timestamp     time.Time       `json:"timestamp"`
	Payload       json.RawMessage `json:"payload"`
}
