package engine

import (
	"github.com/BoranPatron/tradeboard/pkg/model"
)

//
// ────────────────────────────────────────────────
//   Merger – multi-source trade reconciliation
// ────────────────────────────────────────────────
//

// Merge combines the geo-search and global list result sets into one
// de-duplicated slice keyed by trade id.
//
// Geo entries seed the mapping and are authoritative for location data
// (DistanceKm). Global entries overlay only list-exclusive fields (unread
// flags, lifecycle state, fields absent on the geo side) onto existing
// entries; ids not seen in the geo set are inserted as non-geo results.
//
// Merge is a pure function of its inputs: no side effects, stable output
// order (geo order first, then new global entries in input order), and
// running it again on its own output changes nothing. It never fails — an
// empty input (because its source failed) degrades to treating the other
// slice as the entire result set.
func Merge(geoResults, globalResults []model.TradeRecord) []model.MergedTrade {
	byID := make(map[int64]*model.MergedTrade, len(geoResults)+len(globalResults))
	order := make([]int64, 0, len(geoResults)+len(globalResults))

	for _, rec := range geoResults {
		if _, ok := byID[rec.ID]; ok {
			// Duplicate inside the geo set itself; first one wins.
			continue
		}
		mt := &model.MergedTrade{TradeRecord: rec, IsGeoResult: true}
		byID[rec.ID] = mt
		order = append(order, rec.ID)
	}

	for _, rec := range globalResults {
		existing, ok := byID[rec.ID]
		if !ok {
			mt := &model.MergedTrade{TradeRecord: rec, IsGeoResult: false}
			byID[rec.ID] = mt
			order = append(order, rec.ID)
			continue
		}
		overlayListFields(existing, rec)
	}

	out := make([]model.MergedTrade, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	return out
}

// overlayListFields applies the global list source's authoritative fields to
// an entry seeded from the geo set, without discarding geo-exclusive fields.
func overlayListFields(dst *model.MergedTrade, src model.TradeRecord) {
	// Only the global source carries messaging and lifecycle state.
	if src.Unread != nil {
		dst.Unread = src.Unread
	}
	if src.CompletionStatus != "" {
		dst.CompletionStatus = src.CompletionStatus
	}
	if src.Status != "" {
		dst.Status = src.Status
	}
	dst.QuoteStats = src.QuoteStats

	// Fill anything the geo entry was missing. DistanceKm is deliberately
	// never touched: it cannot be fabricated by the global source.
	if dst.Title == "" {
		dst.Title = src.Title
	}
	if dst.Category == "" {
		dst.Category = src.Category
	}
	if dst.ProjectID == 0 {
		dst.ProjectID = src.ProjectID
	}
	if dst.PlannedDate.IsZero() {
		dst.PlannedDate = src.PlannedDate
	}
	if dst.SubmissionDeadline.IsZero() {
		dst.SubmissionDeadline = src.SubmissionDeadline
	}
}
