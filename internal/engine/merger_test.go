package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BoranPatron/tradeboard/pkg/model"
)

func geoTrade(id int64, distance float64) model.TradeRecord {
	return model.TradeRecord{
		ID:         id,
		Title:      "Electrical rough-in",
		Category:   "electrical",
		ProjectID:  100 + id,
		Status:     model.TradeOpen,
		DistanceKm: &distance,
	}
}

func listTrade(id int64) model.TradeRecord {
	return model.TradeRecord{
		ID:               id,
		Title:            "Electrical rough-in",
		Category:         "electrical",
		ProjectID:        100 + id,
		Status:           model.TradeOpen,
		CompletionStatus: "in_progress",
		Unread:           &model.UnreadFlags{ServiceProvider: true},
		QuoteStats:       model.QuoteStats{TotalQuotes: 3},
	}
}

func TestMergeDeduplicatesById(t *testing.T) {
	merged := Merge(
		[]model.TradeRecord{geoTrade(1, 2.4), geoTrade(2, 8.1)},
		[]model.TradeRecord{listTrade(1), listTrade(3)},
	)

	require.Len(t, merged, 3)
	ids := map[int64]bool{}
	for _, m := range merged {
		assert.False(t, ids[m.ID], "duplicate id %d", m.ID)
		ids[m.ID] = true
	}
}

func TestMergeFieldPrecedence(t *testing.T) {
	geo := geoTrade(7, 5.0)
	list := listTrade(7)
	list.CompletionStatus = "completed"

	merged := Merge([]model.TradeRecord{geo}, []model.TradeRecord{list})
	require.Len(t, merged, 1)

	got := merged[0]
	// Geo-exclusive field survives the overlay.
	require.NotNil(t, got.DistanceKm)
	assert.Equal(t, 5.0, *got.DistanceKm)
	// List-authoritative fields win.
	assert.Equal(t, "completed", got.CompletionStatus)
	require.NotNil(t, got.Unread)
	assert.True(t, got.Unread.ServiceProvider)
	assert.Equal(t, 3, got.QuoteStats.TotalQuotes)
	assert.True(t, got.IsGeoResult)
}

func TestMergeListOnlyEntries(t *testing.T) {
	merged := Merge(nil, []model.TradeRecord{listTrade(9)})
	require.Len(t, merged, 1)
	assert.False(t, merged[0].IsGeoResult)
	assert.Nil(t, merged[0].DistanceKm)
}

func TestMergeGeoFillsMissingListFields(t *testing.T) {
	geo := geoTrade(4, 1.2)
	geo.PlannedDate = time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	list := model.TradeRecord{ID: 4, QuoteStats: model.QuoteStats{TotalQuotes: 1}}

	merged := Merge([]model.TradeRecord{geo}, []model.TradeRecord{list})
	require.Len(t, merged, 1)
	// Zero-valued list fields fall back to the geo values.
	assert.Equal(t, "Electrical rough-in", merged[0].Title)
	assert.Equal(t, geo.PlannedDate, merged[0].PlannedDate)
	assert.Equal(t, 1, merged[0].QuoteStats.TotalQuotes)
}

func TestMergeIdempotent(t *testing.T) {
	geo := []model.TradeRecord{geoTrade(1, 2.4), geoTrade(2, 8.1)}
	list := []model.TradeRecord{listTrade(1), listTrade(3)}

	first := Merge(geo, list)

	// Re-merging the merged output against the same list input must not
	// change any record.
	asRecords := make([]model.TradeRecord, len(first))
	for i, m := range first {
		asRecords[i] = m.TradeRecord
	}
	second := Merge(asRecords, list)

	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].TradeRecord, second[i].TradeRecord)
	}
}

func TestMergeDuplicateGeoIdsFirstWins(t *testing.T) {
	a := geoTrade(5, 1.0)
	b := geoTrade(5, 9.0)
	merged := Merge([]model.TradeRecord{a, b}, nil)
	require.Len(t, merged, 1)
	assert.Equal(t, 1.0, *merged[0].DistanceKm)
}

func TestMergeEmptyInputs(t *testing.T) {
	assert.Empty(t, Merge(nil, nil))
}
