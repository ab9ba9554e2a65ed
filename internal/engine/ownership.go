package engine

import (
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/BoranPatron/tradeboard/pkg/model"
)

//
// ────────────────────────────────────────────────
//   OwnershipResolver – whose bid is it?
// ────────────────────────────────────────────────
//
// serviceProviderId on a quote and the viewer's own identity may be
// serialized inconsistently (string vs number) by different endpoints. Both
// sides are normalized to one canonical int64 before comparison, and a match
// is rejected outright when either side normalizes to a non-positive value —
// missing identity data must never produce an accidental 0 == 0 match.
//

// NormalizeActorID coerces any identity representation to a canonical int64.
// Unparseable, non-finite and missing values normalize to 0.
func NormalizeActorID(v any) int64 {
	switch id := v.(type) {
	case nil:
		return 0
	case int64:
		return id
	case int:
		return int64(id)
	case int32:
		return int64(id)
	case model.ActorID:
		return id.Int64()
	case float64:
		if math.IsNaN(id) || math.IsInf(id, 0) {
			return 0
		}
		return int64(id)
	case float32:
		return NormalizeActorID(float64(id))
	case string:
		s := strings.TrimSpace(id)
		if s == "" {
			return 0
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0
		}
		return int64(f)
	default:
		return 0
	}
}

// IsOwnedBy reports whether the quote belongs to the given actor,
// insensitive to how either identity was serialized upstream.
func IsOwnedBy(quote model.QuoteRecord, actorID any) bool {
	provider := quote.ServiceProviderID.Int64()
	actor := NormalizeActorID(actorID)
	if provider <= 0 || actor <= 0 {
		return false
	}
	return provider == actor
}

// OwnershipResolver determines, per trade, whether the acting service
// provider already has a bid and what its status is.
type OwnershipResolver struct {
	logger *zap.Logger
}

// NewOwnershipResolver constructs a resolver.
func NewOwnershipResolver(logger *zap.Logger) *OwnershipResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OwnershipResolver{logger: logger}
}

// Resolve scans quotes in order and returns the first one owned by the actor,
// or nil. The input must already be in fetch order (per-trade list first, then
// the actor's own list); CombineQuotes produces exactly that order. Duplicate
// records for the same actor/trade are expected from overlapping sources and
// resolved by first-match; two *different* owned quotes for one trade are a
// data inconsistency and are logged, never raised.
func (r *OwnershipResolver) Resolve(quotes []model.QuoteRecord, actorID any) *model.QuoteRecord {
	var first *model.QuoteRecord
	for i := range quotes {
		if !IsOwnedBy(quotes[i], actorID) {
			continue
		}
		if first == nil {
			first = &quotes[i]
			continue
		}
		if quotes[i].ID != first.ID {
			r.logger.Warn("engine.ownership_ambiguous",
				zap.Int64("trade_id", first.MilestoneID),
				zap.Int64("kept_quote_id", first.ID),
				zap.Int64("dropped_quote_id", quotes[i].ID),
				zap.Int64("actor_id", NormalizeActorID(actorID)))
		}
	}
	if first == nil {
		return nil
	}
	out := *first
	return &out
}

// View derives the per-trade ownership record. Absence of a quote is the
// normal "no bid yet" state, not an error.
func (r *OwnershipResolver) View(quotes []model.QuoteRecord, actorID any) model.OwnershipView {
	q := r.Resolve(quotes, actorID)
	if q == nil {
		return model.OwnershipView{}
	}
	return model.OwnershipView{
		HasQuote: true,
		Quote:    q,
		Status:   q.Status,
	}
}

// CombineQuotes concatenates the per-trade quote list and the actor's own
// quote list, de-duplicated by quote id with per-trade entries first. The
// resulting order is the resolver's deterministic iteration order.
func CombineQuotes(perTrade, actorQuotes []model.QuoteRecord) []model.QuoteRecord {
	seen := make(map[int64]struct{}, len(perTrade)+len(actorQuotes))
	out := make([]model.QuoteRecord, 0, len(perTrade)+len(actorQuotes))

	for _, lists := range [][]model.QuoteRecord{perTrade, actorQuotes} {
		for _, q := range lists {
			if _, ok := seen[q.ID]; ok {
				continue
			}
			seen[q.ID] = struct{}{}
			out = append(out, q)
		}
	}
	return out
}
