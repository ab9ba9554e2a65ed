package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BoranPatron/tradeboard/pkg/eventbus"
	"github.com/BoranPatron/tradeboard/pkg/model"
)

// fakeSources counts calls and can hold fetches open on a gate to provoke
// concurrent triggers.
type fakeSources struct {
	mu              sync.Mutex
	geoCalls        int
	listCalls       int
	quoteCalls      int
	tradeCalls      int
	tradeQuoteCalls int

	geo    []model.TradeRecord
	list   []model.TradeRecord
	quotes []model.QuoteRecord
	trade  model.TradeRecord

	geoErr    error
	listErr   error
	quotesErr error

	gate chan struct{}
}

func (f *fakeSources) wait() {
	if f.gate != nil {
		<-f.gate
	}
}

func (f *fakeSources) GeoTradeSearch(ctx context.Context, loc model.Location, filters model.SearchFilters) ([]model.TradeRecord, error) {
	f.mu.Lock()
	f.geoCalls++
	f.mu.Unlock()
	f.wait()
	return f.geo, f.geoErr
}

func (f *fakeSources) GlobalTradeList(ctx context.Context) ([]model.TradeRecord, error) {
	f.mu.Lock()
	f.listCalls++
	f.mu.Unlock()
	f.wait()
	return f.list, f.listErr
}

func (f *fakeSources) GetTrade(ctx context.Context, id int64) (model.TradeRecord, error) {
	f.mu.Lock()
	f.tradeCalls++
	f.mu.Unlock()
	return f.trade, nil
}

func (f *fakeSources) QuoteList(ctx context.Context) ([]model.QuoteRecord, error) {
	f.mu.Lock()
	f.quoteCalls++
	f.mu.Unlock()
	f.wait()
	return f.quotes, f.quotesErr
}

func (f *fakeSources) QuoteListForTrade(ctx context.Context, tradeID int64) ([]model.QuoteRecord, error) {
	f.mu.Lock()
	f.tradeQuoteCalls++
	f.mu.Unlock()
	return f.quotes, nil
}

func (f *fakeSources) counts() (geo, list, quotes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.geoCalls, f.listCalls, f.quoteCalls
}

type fakeLocations struct {
	mu  sync.Mutex
	loc *model.Location
	err error
}

func (f *fakeLocations) LoadLocation(ctx context.Context, actorID int64) (*model.Location, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loc, f.err
}

func (f *fakeLocations) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func newTestScheduler(t *testing.T, src *fakeSources, loc LocationProvider, bus *eventbus.EventBus, opts SchedulerOpts) (*Scheduler, *Cache) {
	t.Helper()
	cache := newTestCache(3)
	fb := NewFallback(zap.NewNop())
	s := NewScheduler(zap.NewNop(), src, cache, fb, loc, bus, opts)
	return s, cache
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestSchedulerMountCoalescesToSingleFetch(t *testing.T) {
	src := &fakeSources{
		list: []model.TradeRecord{listTrade(1)},
		gate: make(chan struct{}),
	}
	s, cache := newTestScheduler(t, src, nil, nil, SchedulerOpts{})

	// Two components mount while the first cycle is still in flight.
	s.Mount()
	waitFor(t, func() bool {
		_, list, _ := src.counts()
		return list == 1
	})
	s.Mount()
	close(src.gate)

	waitFor(t, func() bool {
		return len(cache.Snapshot().Trades) == 1
	})

	_, list, quotes := src.counts()
	assert.Equal(t, 1, list, "second mount must not start a second list fetch")
	assert.Equal(t, 1, quotes)
	s.wg.Wait()
}

func TestSchedulerUserActionRerunsAfterSettle(t *testing.T) {
	gate := make(chan struct{})
	src := &fakeSources{
		list: []model.TradeRecord{listTrade(1)},
		gate: gate,
	}
	s, _ := newTestScheduler(t, src, nil, nil, SchedulerOpts{})

	s.RequestTrades()
	waitFor(t, func() bool {
		_, list, _ := src.counts()
		return list == 1
	})

	// A user action lands while the cycle is in flight: exactly one rerun
	// starts after it settles, no matter how many actions arrived.
	s.RequestTrades()
	s.RequestTrades()
	close(gate)

	waitFor(t, func() bool {
		_, list, _ := src.counts()
		return list == 2
	})
	s.wg.Wait()
	_, list, _ := src.counts()
	assert.Equal(t, 2, list)
}

func TestSchedulerGeoPiggybacksOnLocation(t *testing.T) {
	src := &fakeSources{
		geo:  []model.TradeRecord{geoTrade(1, 3.0)},
		list: []model.TradeRecord{listTrade(1), listTrade(2)},
	}
	loc := &fakeLocations{loc: &model.Location{Latitude: 48.1, Longitude: 11.5, RadiusKm: 25}}
	s, cache := newTestScheduler(t, src, loc, nil, SchedulerOpts{})

	s.RequestTrades()
	waitFor(t, func() bool {
		return len(cache.Snapshot().Trades) == 2
	})
	s.wg.Wait()

	geoCalls, _, _ := src.counts()
	assert.Equal(t, 1, geoCalls)
	assert.True(t, cache.Snapshot().Trades[0].IsGeoResult)
}

func TestSchedulerNoLocationSkipsGeo(t *testing.T) {
	src := &fakeSources{list: []model.TradeRecord{listTrade(1)}}
	s, cache := newTestScheduler(t, src, &fakeLocations{}, nil, SchedulerOpts{})

	s.RequestTrades()
	waitFor(t, func() bool {
		return len(cache.Snapshot().Trades) == 1
	})
	s.wg.Wait()

	geoCalls, _, _ := src.counts()
	assert.Equal(t, 0, geoCalls)
	snap := cache.Snapshot()
	assert.False(t, snap.Degraded)
	assert.False(t, snap.Trades[0].IsGeoResult)
}

func TestSchedulerLocationLoadErrorKeepsGeoSnapshot(t *testing.T) {
	src := &fakeSources{
		geo:  []model.TradeRecord{geoTrade(1, 3.0)},
		list: []model.TradeRecord{listTrade(1)},
	}
	loc := &fakeLocations{loc: &model.Location{Latitude: 48.1, Longitude: 11.5, RadiusKm: 25}}
	s, cache := newTestScheduler(t, src, loc, nil, SchedulerOpts{})

	s.RequestTrades()
	s.wg.Wait()
	require.True(t, cache.Snapshot().Trades[0].IsGeoResult)

	// The location store goes down: the cycle must treat geo as failed and
	// keep the last good geo snapshot, not overwrite it with an empty one.
	loc.setErr(errors.New("redis down"))
	s.RequestTrades()
	s.wg.Wait()

	snap := cache.Snapshot()
	require.Len(t, snap.Trades, 1)
	assert.True(t, snap.Trades[0].IsGeoResult)
	require.NotNil(t, snap.Trades[0].DistanceKm)
	assert.Equal(t, 3.0, *snap.Trades[0].DistanceKm)
	assert.Contains(t, snap.SourceErrors, "geo_search")

	geoCalls, _, _ := src.counts()
	assert.Equal(t, 1, geoCalls, "no radius search without a loadable location")
}

func TestSchedulerQuoteErrorKeepsData(t *testing.T) {
	src := &fakeSources{
		quotes: []model.QuoteRecord{{ID: 1, MilestoneID: 1, ServiceProviderID: 3}},
	}
	s, cache := newTestScheduler(t, src, nil, nil, SchedulerOpts{})

	s.RequestQuotes()
	s.wg.Wait()
	require.Len(t, cache.QuotesFor(1), 1)

	src.quotesErr = errors.New("boom")
	s.RequestQuotes()
	s.wg.Wait()

	// The stale quote list survives, the failure surfaces as a source flag.
	assert.Len(t, cache.QuotesFor(1), 1)
	assert.Contains(t, cache.Snapshot().SourceErrors, "quote_list")
}

func TestSchedulerAuthExpiredCallback(t *testing.T) {
	var mu sync.Mutex
	busted := 0
	src := &fakeSources{
		listErr: NewAuthExpired("trade_list", errors.New("401")),
		geoErr:  NewAuthExpired("geo_search", errors.New("401")),
	}
	s, _ := newTestScheduler(t, src, nil, nil, SchedulerOpts{
		OnAuthExpired: func() {
			mu.Lock()
			busted++
			mu.Unlock()
		},
	})

	s.RequestTrades()
	s.wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.GreaterOrEqual(t, busted, 1)
}

func TestSchedulerBusEventsDriveRefreshes(t *testing.T) {
	bus := eventbus.New()
	src := &fakeSources{
		list:   []model.TradeRecord{listTrade(1)},
		trade:  listTrade(1),
		quotes: []model.QuoteRecord{{ID: 4, MilestoneID: 1, ServiceProviderID: 3}},
	}
	s, cache := newTestScheduler(t, src, nil, bus, SchedulerOpts{})
	s.RequestTrades()
	s.wg.Wait()

	bus.PublishSync(model.QuoteSubmittedEvent{
		Quote: model.QuoteRecord{ID: 4, MilestoneID: 1, ServiceProviderID: 3},
	})
	waitFor(t, func() bool {
		return cache.OwnershipFor(1).HasQuote
	})
	s.wg.Wait()

	src.mu.Lock()
	quoteCalls, tradeCalls := src.quoteCalls, src.tradeCalls
	src.mu.Unlock()
	assert.GreaterOrEqual(t, quoteCalls, 1)
	assert.GreaterOrEqual(t, tradeCalls, 1)

	bus.PublishSync(model.OpenTradeDetails{TradeID: 1})
	waitFor(t, func() bool {
		src.mu.Lock()
		defer src.mu.Unlock()
		return src.tradeQuoteCalls >= 1
	})
	s.wg.Wait()
}

func TestSchedulerStartStopLifecycle(t *testing.T) {
	src := &fakeSources{list: []model.TradeRecord{listTrade(1)}}
	s, cache := newTestScheduler(t, src, nil, nil, SchedulerOpts{Interval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	waitFor(t, func() bool {
		return len(cache.Snapshot().Trades) == 1
	})

	s.Stop()
	// Teardown resets derived state.
	assert.Empty(t, cache.Snapshot().Trades)
}
