package engine

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BoranPatron/tradeboard/internal/metrics"
	"github.com/BoranPatron/tradeboard/pkg/model"
)

//
// ────────────────────────────────────────────────
//   DerivedViewCache – the one mutable shared state
// ────────────────────────────────────────────────
//
// The cache is updated by replacement, never by mutation: every write swaps
// in freshly built slices/maps, and Snapshot hands out copies, so a reader
// can never observe a torn mid-merge state. It is an explicit, injectable
// container (constructed per engine instance, fresh per test) rather than
// ambient package state.
//

// ViewSnapshot is a consistent read of the derived view. Consumers must treat
// it as immutable.
type ViewSnapshot struct {
	Trades         []model.MergedTrade           `json:"trades"`
	Ownership      map[int64]model.OwnershipView `json:"ownership"`
	Degraded       bool                          `json:"degraded"`
	AllUnavailable bool                          `json:"all_unavailable"`
	SourceErrors   map[string]string             `json:"source_errors,omitempty"`
	LastTradesAt   time.Time                     `json:"last_trades_at,omitempty"`
	LastQuotesAt   time.Time                     `json:"last_quotes_at,omitempty"`
}

// tradePatch is an optimistic local patch pending server confirmation.
type tradePatch struct {
	tradeID int64
	apply   func(*model.MergedTrade)
}

// Cache holds the last successfully merged view, the known quote lists, and
// the derived per-trade ownership map.
type Cache struct {
	mu       sync.RWMutex
	logger   *zap.Logger
	resolver *OwnershipResolver
	actorID  int64

	trades      []model.MergedTrade
	actorQuotes []model.QuoteRecord
	tradeQuotes map[int64][]model.QuoteRecord
	ownership   map[int64]model.OwnershipView

	degraded       bool
	allUnavailable bool
	sourceErrors   map[string]string
	lastTradesAt   time.Time
	lastQuotesAt   time.Time

	// Optimistic state, confirmed (dropped) by the next successful fetch of
	// the corresponding source; the server value always wins on arrival.
	pendingTradePatches []tradePatch
	pendingQuotes       []model.QuoteRecord
}

// NewCache constructs an empty cache for the given acting identity.
func NewCache(logger *zap.Logger, resolver *OwnershipResolver, actorID int64) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		logger:       logger,
		resolver:     resolver,
		actorID:      actorID,
		tradeQuotes:  make(map[int64][]model.QuoteRecord),
		ownership:    make(map[int64]model.OwnershipView),
		sourceErrors: make(map[string]string),
	}
}

// ActorID returns the acting identity this cache resolves ownership for.
func (c *Cache) ActorID() int64 { return c.actorID }

// Reset clears all derived state. Called on engine teardown.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.trades = nil
	c.actorQuotes = nil
	c.tradeQuotes = make(map[int64][]model.QuoteRecord)
	c.ownership = make(map[int64]model.OwnershipView)
	c.degraded = false
	c.allUnavailable = false
	c.sourceErrors = make(map[string]string)
	c.pendingTradePatches = nil
	c.pendingQuotes = nil
	c.lastTradesAt = time.Time{}
	c.lastQuotesAt = time.Time{}
}

// SetMergedTrades atomically replaces the merged view. Pending optimistic
// trade patches are confirmed (dropped): the arriving server data is
// authoritative whether or not it matches what was patched in.
func (c *Cache) SetMergedTrades(trades []model.MergedTrade, degraded, allUnavailable bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.trades = trades
	c.degraded = degraded
	c.allUnavailable = allUnavailable
	c.pendingTradePatches = nil
	c.lastTradesAt = time.Now().UTC()
	c.recomputeOwnershipLocked()

	metrics.SetDegraded(degraded)
	metrics.MergedTrades.Set(float64(len(trades)))
}

// SetActorQuotes replaces the acting provider's own quote list. Pending
// optimistic quotes are confirmed (dropped).
func (c *Cache) SetActorQuotes(quotes []model.QuoteRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.actorQuotes = quotes
	c.pendingQuotes = nil
	c.lastQuotesAt = time.Now().UTC()
	delete(c.sourceErrors, "quote_list")
	c.recomputeOwnershipLocked()
}

// SetTradeQuotes replaces the per-trade quote list (all bidders) for one
// tender, fetched through the per-trade endpoint.
func (c *Cache) SetTradeQuotes(tradeID int64, quotes []model.QuoteRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := make(map[int64][]model.QuoteRecord, len(c.tradeQuotes)+1)
	for k, v := range c.tradeQuotes {
		next[k] = v
	}
	next[tradeID] = quotes
	c.tradeQuotes = next
	c.recomputeOwnershipLocked()
}

// SetSourceError records a source-scoped error flag for the UI to render as a
// retry affordance. Existing data for that source is left untouched.
func (c *Cache) SetSourceError(source, msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if msg == "" {
		delete(c.sourceErrors, source)
		return
	}
	c.sourceErrors[source] = msg
}

// ReplaceSourceErrors swaps in a trade cycle's full source error map.
func (c *Cache) ReplaceSourceErrors(errs map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	next := make(map[string]string, len(errs))
	for k, v := range errs {
		next[k] = v
	}
	// Quote errors are owned by the quotes job, keep them across trade cycles.
	if msg, ok := c.sourceErrors["quote_list"]; ok {
		if _, overridden := next["quote_list"]; !overridden {
			next["quote_list"] = msg
		}
	}
	c.sourceErrors = next
}

// UpsertTrade refreshes a single tender after a local mutation (the
// GET /milestones/{id} path). The entry is replaced in a freshly built slice;
// geo-exclusive fields of the previous entry are preserved since the single
// fetch comes from the list source.
func (c *Cache) UpsertTrade(rec model.TradeRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := make([]model.MergedTrade, 0, len(c.trades)+1)
	replaced := false
	for _, t := range c.trades {
		if t.ID != rec.ID {
			next = append(next, t)
			continue
		}
		merged := t
		overlayListFields(&merged, rec)
		next = append(next, merged)
		replaced = true
	}
	if !replaced {
		next = append(next, model.MergedTrade{TradeRecord: rec, IsGeoResult: false})
	}
	c.trades = next
	c.recomputeOwnershipLocked()
}

// ApplyMessagesRead optimistically flips the unread flag for a trade before
// the network refresh completes.
func (c *Cache) ApplyMessagesRead(tradeID int64, role model.UserRole) {
	patch := tradePatch{
		tradeID: tradeID,
		apply: func(t *model.MergedTrade) {
			if t.Unread == nil {
				return
			}
			flags := *t.Unread
			switch role {
			case model.RoleServiceProvider:
				flags.ServiceProvider = false
			case model.RoleProjectOwner:
				flags.ProjectOwner = false
			}
			t.Unread = &flags
		},
	}
	c.applyTradePatch(patch)
}

// ApplyQuoteSubmitted optimistically records a just-submitted bid: the quote
// appears in ownership immediately and the trade's bid counter is bumped,
// pending confirmation by the next quotes/trades fetch.
func (c *Cache) ApplyQuoteSubmitted(q model.QuoteRecord) {
	c.mu.Lock()
	c.pendingQuotes = append(c.pendingQuotes, q)
	c.recomputeOwnershipLocked()
	c.mu.Unlock()

	c.applyTradePatch(tradePatch{
		tradeID: q.MilestoneID,
		apply: func(t *model.MergedTrade) {
			t.QuoteStats.TotalQuotes++
		},
	})
}

// applyTradePatch applies an optimistic patch synchronously (by replacement)
// and queues it as pending until the next successful trades fetch.
func (c *Cache) applyTradePatch(p tradePatch) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := make([]model.MergedTrade, len(c.trades))
	copy(next, c.trades)
	for i := range next {
		if next[i].ID == p.tradeID {
			p.apply(&next[i])
			break
		}
	}
	c.trades = next
	c.pendingTradePatches = append(c.pendingTradePatches, p)
}

// PendingPatchCount reports how many optimistic patches await confirmation.
func (c *Cache) PendingPatchCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.pendingTradePatches) + len(c.pendingQuotes)
}

// QuotesFor returns the combined quote list for one trade in resolver order:
// per-trade list first, then the actor's own quotes, then optimistic pending
// quotes, de-duplicated by quote id.
func (c *Cache) QuotesFor(tradeID int64) []model.QuoteRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.quotesForLocked(tradeID)
}

func (c *Cache) quotesForLocked(tradeID int64) []model.QuoteRecord {
	var own []model.QuoteRecord
	for _, q := range c.actorQuotes {
		if q.MilestoneID == tradeID {
			own = append(own, q)
		}
	}
	for _, q := range c.pendingQuotes {
		if q.MilestoneID == tradeID {
			own = append(own, q)
		}
	}
	return CombineQuotes(c.tradeQuotes[tradeID], own)
}

// OwnershipFor returns the derived ownership view for one trade.
func (c *Cache) OwnershipFor(tradeID int64) model.OwnershipView {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ownership[tradeID]
}

// Snapshot returns a consistent copy of the derived view.
func (c *Cache) Snapshot() ViewSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	trades := make([]model.MergedTrade, len(c.trades))
	copy(trades, c.trades)

	ownership := make(map[int64]model.OwnershipView, len(c.ownership))
	for k, v := range c.ownership {
		ownership[k] = v
	}

	var errs map[string]string
	if len(c.sourceErrors) > 0 {
		errs = make(map[string]string, len(c.sourceErrors))
		for k, v := range c.sourceErrors {
			errs[k] = v
		}
	}

	return ViewSnapshot{
		Trades:         trades,
		Ownership:      ownership,
		Degraded:       c.degraded,
		AllUnavailable: c.allUnavailable,
		SourceErrors:   errs,
		LastTradesAt:   c.lastTradesAt,
		LastQuotesAt:   c.lastQuotesAt,
	}
}

// recomputeOwnershipLocked rebuilds the ownership map from the current quote
// lists. Runs whenever any contributing source updates.
func (c *Cache) recomputeOwnershipLocked() {
	next := make(map[int64]model.OwnershipView, len(c.trades))
	for _, t := range c.trades {
		next[t.ID] = c.resolver.View(c.quotesForLocked(t.ID), c.actorID)
	}
	// Quotes may reference trades not (yet) in the merged view; keep their
	// ownership derivable for the detail path.
	for _, q := range c.actorQuotes {
		if _, ok := next[q.MilestoneID]; !ok {
			next[q.MilestoneID] = c.resolver.View(c.quotesForLocked(q.MilestoneID), c.actorID)
		}
	}
	c.ownership = next
}
