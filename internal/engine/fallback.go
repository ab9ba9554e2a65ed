package engine

import (
	"go.uber.org/zap"

	"github.com/BoranPatron/tradeboard/pkg/model"
)

// fetchOutcome is the settled result of one source fetch within a cycle.
type fetchOutcome struct {
	records []model.TradeRecord
	err     error
}

// Fallback keeps the last successfully fetched snapshot per trade source and
// substitutes it when a fetch fails, so one slow or broken source degrades
// the view instead of emptying it. Stale data beats no data.
type Fallback struct {
	logger *zap.Logger

	lastGoodGeo  []model.TradeRecord
	geoEverGood  bool
	lastGoodList []model.TradeRecord
	listEverGood bool
}

// NewFallback constructs an empty fallback holder.
func NewFallback(logger *zap.Logger) *Fallback {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fallback{logger: logger}
}

// CycleResult is the fallback decision for one trades cycle.
type CycleResult struct {
	Geo            []model.TradeRecord
	List           []model.TradeRecord
	Degraded       bool
	AllUnavailable bool
	SourceErrors   map[string]string
}

// Apply folds one cycle's per-source outcomes into the snapshots to merge.
// A failed source is substituted with its last good snapshot; the view is
// degraded when the list source has never succeeded but geo data exists, and
// fully unavailable only when neither source has ever produced data.
//
// Not safe for concurrent use: the scheduler serializes trade cycles.
func (f *Fallback) Apply(geo, list fetchOutcome) CycleResult {
	res := CycleResult{SourceErrors: make(map[string]string)}

	if geo.err == nil {
		f.lastGoodGeo = geo.records
		f.geoEverGood = true
	} else {
		res.SourceErrors["geo_search"] = geo.err.Error()
		f.logger.Warn("engine.fallback_geo_stale",
			zap.Bool("have_snapshot", f.geoEverGood),
			zap.Error(geo.err))
	}
	if list.err == nil {
		f.lastGoodList = list.records
		f.listEverGood = true
	} else {
		res.SourceErrors["trade_list"] = list.err.Error()
		f.logger.Warn("engine.fallback_list_stale",
			zap.Bool("have_snapshot", f.listEverGood),
			zap.Error(list.err))
	}

	res.Geo = f.lastGoodGeo
	res.List = f.lastGoodList
	res.Degraded = !f.listEverGood && f.geoEverGood && len(f.lastGoodGeo) > 0
	res.AllUnavailable = !f.geoEverGood && !f.listEverGood &&
		geo.err != nil && list.err != nil
	return res
}

// Reset drops all retained snapshots. Called on engine teardown.
func (f *Fallback) Reset() {
	f.lastGoodGeo = nil
	f.geoEverGood = false
	f.lastGoodList = nil
	f.listEverGood = false
}
