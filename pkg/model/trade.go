package model

import "time"

//
// ────────────────────────────────────────────────
//   Canonical Trade (tender) records
// ────────────────────────────────────────────────
//

// TradeStatus is the lifecycle status of a tender.
type TradeStatus string

const (
	TradePlanned    TradeStatus = "planned"
	TradeOpen       TradeStatus = "open"
	TradeAwarded    TradeStatus = "awarded"
	TradeInProgress TradeStatus = "in_progress"
	TradeCompleted  TradeStatus = "completed"
	TradeCancelled  TradeStatus = "cancelled"
)

// QuoteStats carries aggregate bid counters returned by the upstream list endpoints.
type QuoteStats struct {
	TotalQuotes int `json:"total_quotes"`
}

// UnreadFlags holds the per-role unread chat message flags that only the
// global list source provides.
type UnreadFlags struct {
	ServiceProvider bool `json:"service_provider"`
	ProjectOwner    bool `json:"project_owner"`
}

// TradeRecord is an immutable snapshot of a tender as returned by one source.
// DistanceKm is only set by the geo-search source; Unread and CompletionStatus
// are authoritative only from the global list source.
type TradeRecord struct {
	ID                 int64        `json:"id"`
	Title              string       `json:"title"`
	Category           string       `json:"category"`
	ProjectID          int64        `json:"project_id"`
	Status             TradeStatus  `json:"status"`
	CompletionStatus   string       `json:"completion_status,omitempty"`
	PlannedDate        time.Time    `json:"planned_date,omitempty"`
	SubmissionDeadline time.Time    `json:"submission_deadline,omitempty"`
	DistanceKm         *float64     `json:"distance_km,omitempty"`
	Unread             *UnreadFlags `json:"unread,omitempty"`
	QuoteStats         QuoteStats   `json:"quote_stats"`
}

// MergedTrade is the reconciled canonical tender assembled from the geo-search
// and global list sources. A merge pass always produces a full new slice;
// entries are never mutated after being handed out.
type MergedTrade struct {
	TradeRecord

	// IsGeoResult marks entries that were present in the geo-search result set.
	IsGeoResult bool `json:"is_geo_result"`
}

// Location is the persisted geo-search input: the viewer's last known
// position and search radius.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	RadiusKm  float64 `json:"radius_km"`
}

// Valid reports whether the location carries usable coordinates.
func (l Location) Valid() bool {
	return l.RadiusKm > 0 && (l.Latitude != 0 || l.Longitude != 0)
}

// SearchFilters narrows a geo-radius trade search.
type SearchFilters struct {
	Category  string
	Status    string
	Priority  string
	MinBudget float64
	MaxBudget float64
	Limit     int
}

// OwnershipView is the per-trade derived record describing whether the acting
// service provider already has a bid on a tender, and its status.
type OwnershipView struct {
	HasQuote bool         `json:"has_quote"`
	Quote    *QuoteRecord `json:"quote,omitempty"`
	Status   QuoteStatus  `json:"status,omitempty"`
}
