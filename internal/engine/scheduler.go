package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BoranPatron/tradeboard/internal/metrics"
	"github.com/BoranPatron/tradeboard/pkg/eventbus"
	"github.com/BoranPatron/tradeboard/pkg/model"
)

// DefaultRefreshInterval is the periodic background refresh cadence.
const DefaultRefreshInterval = 15 * time.Second

// Sources is the read side of the marketplace API the scheduler pulls from.
type Sources interface {
	GeoTradeSearch(ctx context.Context, loc model.Location, filters model.SearchFilters) ([]model.TradeRecord, error)
	GlobalTradeList(ctx context.Context) ([]model.TradeRecord, error)
	GetTrade(ctx context.Context, id int64) (model.TradeRecord, error)
	QuoteList(ctx context.Context) ([]model.QuoteRecord, error)
	QuoteListForTrade(ctx context.Context, tradeID int64) ([]model.QuoteRecord, error)
}

// LocationProvider supplies the actor's persisted search location, or nil
// when none has been saved yet.
type LocationProvider interface {
	LoadLocation(ctx context.Context, actorID int64) (*model.Location, error)
}

// job serializes runs of one refresh kind. While a run is in flight, further
// triggers coalesce into a single pending rerun that starts when the current
// run settles, so a burst of triggers costs at most one extra fetch.
type job struct {
	mu       sync.Mutex
	name     string
	fetching bool
	rerun    bool
	gen      uint64
}

// request marks the job for running. Returns the generation to run, or 0 if
// the trigger coalesced into an already in-flight run. Mount and interval
// triggers coalesce silently (the in-flight run is fresh enough); user-action
// triggers set rerun so their effect is always observed by a fetch that
// started after them.
func (j *job) request(rerun bool) uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.fetching {
		if rerun {
			j.rerun = true
		}
		return 0
	}
	j.fetching = true
	j.gen++
	return j.gen
}

// settle clears the in-flight flag. Returns the next generation if a rerun
// was coalesced while fetching, or 0 if the job is idle.
func (j *job) settle() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.fetching = false
	if !j.rerun {
		return 0
	}
	j.rerun = false
	j.fetching = true
	j.gen++
	return j.gen
}

// Scheduler drives the refresh lifecycle: periodic interval ticks, mount
// triggers, and user-action triggers routed through the event bus, each
// funneled into per-job single-flight runs.
type Scheduler struct {
	logger    *zap.Logger
	sources   Sources
	cache     *Cache
	fallback  *Fallback
	locations LocationProvider
	bus       *eventbus.EventBus
	interval  time.Duration
	filters   model.SearchFilters

	// onAuthExpired busts the cached credential so the next run re-resolves.
	onAuthExpired func()
	// onRefreshed is notified after each applied trades cycle.
	onRefreshed func(ViewSnapshot)

	trades job
	quotes job

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	wg      sync.WaitGroup
}

// SchedulerOpts carries the optional scheduler collaborators.
type SchedulerOpts struct {
	Interval      time.Duration
	Filters       model.SearchFilters
	OnAuthExpired func()
	OnRefreshed   func(ViewSnapshot)
}

// NewScheduler wires a scheduler and subscribes it to the user-action events
// on the bus.
func NewScheduler(logger *zap.Logger, sources Sources, cache *Cache, fb *Fallback, locations LocationProvider, bus *eventbus.EventBus, opts SchedulerOpts) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultRefreshInterval
	}
	s := &Scheduler{
		logger:        logger,
		sources:       sources,
		cache:         cache,
		fallback:      fb,
		locations:     locations,
		bus:           bus,
		interval:      opts.Interval,
		filters:       opts.Filters,
		onAuthExpired: opts.OnAuthExpired,
		onRefreshed:   opts.OnRefreshed,
		stop:          make(chan struct{}),
	}
	s.trades.name = "trades"
	s.quotes.name = "quotes"
	if bus != nil {
		s.subscribe()
	}
	return s
}

func (s *Scheduler) subscribe() {
	s.bus.Subscribe(model.QuoteSubmittedEvent{}, func(evt interface{}) {
		e, ok := evt.(model.QuoteSubmittedEvent)
		if !ok {
			return
		}
		s.cache.ApplyQuoteSubmitted(e.Quote)
		s.RequestQuotes()
		s.RefreshTrade(e.Quote.MilestoneID)
	})
	s.bus.Subscribe(model.MessagesMarkedAsRead{}, func(evt interface{}) {
		e, ok := evt.(model.MessagesMarkedAsRead)
		if !ok {
			return
		}
		s.cache.ApplyMessagesRead(e.TradeID, e.Role)
		s.RequestTrades()
	})
	s.bus.Subscribe(model.AppointmentUpdated{}, func(evt interface{}) {
		s.RequestTrades()
	})
	s.bus.Subscribe(model.OpenTradeDetails{}, func(evt interface{}) {
		e, ok := evt.(model.OpenTradeDetails)
		if !ok {
			return
		}
		s.RefreshTradeQuotes(e.TradeID)
	})
}

// Start launches the periodic refresh loop and runs an initial cycle.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.logger.Info("engine.scheduler_start", zap.Duration("interval", s.interval))
	s.kickTrades()
	s.kickQuotes()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			case <-ticker.C:
				s.kickTrades()
				s.kickQuotes()
			}
		}
	}()
}

// Stop halts the loop, waits out in-flight runs, and resets derived state.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stop)
	s.mu.Unlock()

	s.wg.Wait()
	s.cache.Reset()
	s.fallback.Reset()
	s.logger.Info("engine.scheduler_stop")
}

// Mount triggers an immediate refresh for a newly attached view.
// Simultaneous mounts coalesce into one fetch per source; Start/Stop own the
// engine lifecycle itself.
func (s *Scheduler) Mount() {
	s.kickTrades()
	s.kickQuotes()
}

// RequestTrades triggers a trades cycle for a user action. If a cycle is in
// flight, a rerun is queued so the action's server-side effect is picked up.
func (s *Scheduler) RequestTrades() {
	if gen := s.trades.request(true); gen != 0 {
		s.spawnTrades(gen)
	}
}

// RequestQuotes triggers a quotes refresh for a user action, with rerun
// semantics as for RequestTrades.
func (s *Scheduler) RequestQuotes() {
	if gen := s.quotes.request(true); gen != 0 {
		s.spawnQuotes(gen)
	}
}

// kickTrades triggers a trades cycle from a mount or interval tick; an
// in-flight cycle fully absorbs the trigger.
func (s *Scheduler) kickTrades() {
	if gen := s.trades.request(false); gen != 0 {
		s.spawnTrades(gen)
	}
}

func (s *Scheduler) kickQuotes() {
	if gen := s.quotes.request(false); gen != 0 {
		s.spawnQuotes(gen)
	}
}

// RefreshTrade fetches one tender and patches it into the view without a
// full cycle.
func (s *Scheduler) RefreshTrade(tradeID int64) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		rec, err := s.sources.GetTrade(ctx, tradeID)
		if err != nil {
			s.logger.Warn("engine.trade_refresh_error",
				zap.Int64("trade_id", tradeID), zap.Error(err))
			s.handleSourceErr(err)
			return
		}
		s.cache.UpsertTrade(rec)
	}()
}

// RefreshTradeQuotes fetches the full bidder list for one tender.
func (s *Scheduler) RefreshTradeQuotes(tradeID int64) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		quotes, err := s.sources.QuoteListForTrade(ctx, tradeID)
		if err != nil {
			s.logger.Warn("engine.trade_quotes_refresh_error",
				zap.Int64("trade_id", tradeID), zap.Error(err))
			s.handleSourceErr(err)
			return
		}
		s.cache.SetTradeQuotes(tradeID, quotes)
	}()
}

func (s *Scheduler) spawnTrades(gen uint64) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for gen != 0 {
			s.runTradesCycle(gen)
			gen = s.trades.settle()
		}
	}()
}

func (s *Scheduler) spawnQuotes(gen uint64) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for gen != 0 {
			s.runQuotesCycle(gen)
			gen = s.quotes.settle()
		}
	}()
}

// runTradesCycle fetches the geo and list sources concurrently, waits for
// both to settle, substitutes last-known-good snapshots for failures, and
// applies the merged pair atomically.
func (s *Scheduler) runTradesCycle(gen uint64) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	var (
		geoOut  fetchOutcome
		listOut fetchOutcome
		wg      sync.WaitGroup
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		geoOut = s.fetchGeo(ctx)
	}()
	go func() {
		defer wg.Done()
		listOut.records, listOut.err = s.sources.GlobalTradeList(ctx)
	}()
	wg.Wait()

	if geoOut.err != nil {
		s.handleSourceErr(geoOut.err)
	}
	if listOut.err != nil {
		s.handleSourceErr(listOut.err)
	}

	res := s.fallback.Apply(geoOut, listOut)
	if res.AllUnavailable {
		s.logger.Error("engine.trades_cycle_unavailable",
			zap.Uint64("generation", gen),
			zap.Error(ErrAllSourcesUnavailable))
		s.cache.SetMergedTrades(nil, false, true)
		s.cache.ReplaceSourceErrors(res.SourceErrors)
		metrics.IncRefreshCycle("trades", "unavailable")
		return
	}

	merged := Merge(res.Geo, res.List)
	s.cache.SetMergedTrades(merged, res.Degraded, false)
	s.cache.ReplaceSourceErrors(res.SourceErrors)

	outcome := "ok"
	if len(res.SourceErrors) > 0 {
		outcome = "partial"
	}
	metrics.IncRefreshCycle("trades", outcome)
	metrics.SetLastRefresh("trades", time.Now())

	s.logger.Debug("engine.trades_cycle_done",
		zap.Uint64("generation", gen),
		zap.Int("geo_count", len(res.Geo)),
		zap.Int("list_count", len(res.List)),
		zap.Int("merged_count", len(merged)),
		zap.Bool("degraded", res.Degraded),
		zap.Duration("took", time.Since(start)))

	if s.onRefreshed != nil {
		s.onRefreshed(s.cache.Snapshot())
	}
}

// fetchGeo loads the saved location and runs the radius search. A missing
// location is not an error: the geo contribution is simply empty. A failed
// location load is one: reporting it as a geo outage keeps the last good geo
// snapshot in play instead of replacing it with an empty result.
func (s *Scheduler) fetchGeo(ctx context.Context) fetchOutcome {
	if s.locations == nil {
		return fetchOutcome{}
	}
	loc, err := s.locations.LoadLocation(ctx, s.cache.ActorID())
	if err != nil {
		s.logger.Warn("engine.location_load_error", zap.Error(err))
		return fetchOutcome{err: NewSourceUnavailable("geo_search", fmt.Errorf("load location: %w", err))}
	}
	if loc == nil || !loc.Valid() {
		return fetchOutcome{}
	}
	records, err := s.sources.GeoTradeSearch(ctx, *loc, s.filters)
	return fetchOutcome{records: records, err: err}
}

func (s *Scheduler) runQuotesCycle(gen uint64) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	quotes, err := s.sources.QuoteList(ctx)
	if err != nil {
		s.logger.Warn("engine.quotes_cycle_error",
			zap.Uint64("generation", gen), zap.Error(err))
		s.handleSourceErr(err)
		s.cache.SetSourceError("quote_list", err.Error())
		metrics.IncRefreshCycle("quotes", "error")
		return
	}
	s.cache.SetActorQuotes(quotes)
	metrics.IncRefreshCycle("quotes", "ok")
	metrics.SetLastRefresh("quotes", time.Now())
}

func (s *Scheduler) handleSourceErr(err error) {
	if IsAuthExpired(err) && s.onAuthExpired != nil {
		s.logger.Warn("engine.auth_expired_reset")
		s.onAuthExpired()
	}
}
