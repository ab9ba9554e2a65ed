package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/BoranPatron/tradeboard/pkg/eventbus"
	"github.com/BoranPatron/tradeboard/pkg/model"
)

// Submitter is the write side of the marketplace API.
type Submitter interface {
	SubmitQuote(ctx context.Context, sub model.QuoteSubmission) (model.QuoteRecord, error)
	RespondAppointment(ctx context.Context, appointmentID int64, response string) error
}

// QuotePublisher fans a confirmed submission out to the message fabric.
type QuotePublisher interface {
	PublishQuoteSubmitted(ctx context.Context, quote model.QuoteRecord) error
}

// HistoryWriter persists confirmed submissions for audit. Implementations
// must tolerate being nil-configured out of the deployment.
type HistoryWriter interface {
	RecordQuote(ctx context.Context, quote model.QuoteRecord) error
}

// LocationStore persists the actor's search location.
type LocationStore interface {
	SaveLocation(ctx context.Context, actorID int64, loc model.Location) error
	LoadLocation(ctx context.Context, actorID int64) (*model.Location, error)
}

// Service is the write-path orchestrator: it pushes mutations to the
// marketplace, then fans the confirmation out to the bus (which drives the
// optimistic cache patches and refreshes), the event fabric, and history.
type Service struct {
	logger    *zap.Logger
	submitter Submitter
	scheduler *Scheduler
	cache     *Cache
	bus       *eventbus.EventBus
	publisher QuotePublisher
	history   HistoryWriter
	locations LocationStore
}

// NewService wires the orchestrator. publisher and history may be nil when
// the deployment runs without NATS or Postgres.
func NewService(logger *zap.Logger, submitter Submitter, scheduler *Scheduler, cache *Cache, bus *eventbus.EventBus, publisher QuotePublisher, history HistoryWriter, locations LocationStore) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		logger:    logger,
		submitter: submitter,
		scheduler: scheduler,
		cache:     cache,
		bus:       bus,
		publisher: publisher,
		history:   history,
		locations: locations,
	}
}

// SubmitQuote sends a bid to the marketplace and, on confirmation, publishes
// the submission event that drives the optimistic view update.
func (s *Service) SubmitQuote(ctx context.Context, sub model.QuoteSubmission) (model.QuoteRecord, error) {
	quote, err := s.submitter.SubmitQuote(ctx, sub)
	if err != nil {
		return model.QuoteRecord{}, fmt.Errorf("submit quote for trade %d: %w", sub.MilestoneID, err)
	}

	s.logger.Info("engine.quote_submitted",
		zap.Int64("quote_id", quote.ID),
		zap.Int64("trade_id", quote.MilestoneID),
		zap.String("amount", quote.TotalAmount.String()),
		zap.String("currency", quote.Currency))

	// Synchronous so the optimistic patch is in the cache before the caller
	// gets its response back.
	s.bus.PublishSync(model.QuoteSubmittedEvent{Quote: quote})

	if s.publisher != nil {
		if err := s.publisher.PublishQuoteSubmitted(ctx, quote); err != nil {
			s.logger.Error("engine.quote_publish_error",
				zap.Int64("quote_id", quote.ID), zap.Error(err))
		}
	}
	if s.history != nil {
		if err := s.history.RecordQuote(ctx, quote); err != nil {
			s.logger.Error("engine.quote_history_error",
				zap.Int64("quote_id", quote.ID), zap.Error(err))
		}
	}
	return quote, nil
}

// SetLocation persists the actor's search location and triggers a trades
// cycle so the geo contribution reflects it immediately.
func (s *Service) SetLocation(ctx context.Context, loc model.Location) error {
	if !loc.Valid() {
		return fmt.Errorf("invalid location: lat=%f lon=%f radius=%f",
			loc.Latitude, loc.Longitude, loc.RadiusKm)
	}
	if err := s.locations.SaveLocation(ctx, s.cache.ActorID(), loc); err != nil {
		return fmt.Errorf("save location: %w", err)
	}
	s.scheduler.RequestTrades()
	return nil
}

// MarkMessagesRead flips the unread indicator for a trade. The bus event
// drives the optimistic patch and the confirming refresh.
func (s *Service) MarkMessagesRead(tradeID int64, role model.UserRole) {
	s.bus.PublishSync(model.MessagesMarkedAsRead{TradeID: tradeID, Role: role})
}

// RespondAppointment forwards an appointment response to the marketplace and
// triggers the confirming refresh.
func (s *Service) RespondAppointment(ctx context.Context, appointmentID int64, response string) error {
	if err := s.submitter.RespondAppointment(ctx, appointmentID, response); err != nil {
		return fmt.Errorf("respond appointment %d: %w", appointmentID, err)
	}
	s.bus.PublishSync(model.AppointmentUpdated{})
	return nil
}

// OpenTrade signals that a trade's detail view is being shown, pulling the
// full bidder list for it.
func (s *Service) OpenTrade(tradeID int64, showQuoteForm bool, source string) {
	s.bus.Publish(model.OpenTradeDetails{TradeID: tradeID, ShowQuoteForm: showQuoteForm, Source: source})
}

// View returns the current derived view snapshot.
func (s *Service) View() ViewSnapshot { return s.cache.Snapshot() }

// TradeQuotes returns the combined bidder list known for one trade.
func (s *Service) TradeQuotes(tradeID int64) []model.QuoteRecord {
	return s.cache.QuotesFor(tradeID)
}

// Ownership returns the derived ownership view for one trade.
func (s *Service) Ownership(tradeID int64) model.OwnershipView {
	return s.cache.OwnershipFor(tradeID)
}
