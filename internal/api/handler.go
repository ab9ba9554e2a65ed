package api

import (
	"context"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/BoranPatron/tradeboard/internal/engine"
	"github.com/BoranPatron/tradeboard/pkg/model"
)

// EngineService defines the engine operations needed by the handler.
type EngineService interface {
	View() engine.ViewSnapshot
	TradeQuotes(tradeID int64) []model.QuoteRecord
	Ownership(tradeID int64) model.OwnershipView
	SubmitQuote(ctx context.Context, sub model.QuoteSubmission) (model.QuoteRecord, error)
	SetLocation(ctx context.Context, loc model.Location) error
	MarkMessagesRead(tradeID int64, role model.UserRole)
	RespondAppointment(ctx context.Context, appointmentID int64, response string) error
	OpenTrade(tradeID int64, showQuoteForm bool, source string)
}

// Refresher triggers refresh cycles on demand.
type Refresher interface {
	RequestTrades()
	RequestQuotes()
}

// TradeHandler handles HTTP API requests for the merged trade view.
type TradeHandler struct {
	logger    *zap.Logger
	service   EngineService
	refresher Refresher
}

// NewTradeHandler creates a new TradeHandler.
func NewTradeHandler(logger *zap.Logger, service EngineService, refresher Refresher) *TradeHandler {
	return &TradeHandler{
		logger:    logger,
		service:   service,
		refresher: refresher,
	}
}

// tradeView is a merged trade joined with its ownership record.
type tradeView struct {
	model.MergedTrade
	Ownership model.OwnershipView `json:"ownership"`
}

// ListTrades returns the current merged view with per-trade ownership.
func (h *TradeHandler) ListTrades(c *fiber.Ctx) error {
	snap := h.service.View()

	if snap.AllUnavailable {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error":         "all trade sources unavailable",
			"source_errors": snap.SourceErrors,
		})
	}

	views := make([]tradeView, len(snap.Trades))
	for i, t := range snap.Trades {
		views[i] = tradeView{MergedTrade: t, Ownership: snap.Ownership[t.ID]}
	}

	return c.JSON(fiber.Map{
		"trades":        views,
		"degraded":      snap.Degraded,
		"source_errors": snap.SourceErrors,
		"last_refresh":  snap.LastTradesAt,
	})
}

// GetTrade returns one trade with its ownership view and known bidder list.
func (h *TradeHandler) GetTrade(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid trade id"})
	}

	snap := h.service.View()
	for _, t := range snap.Trades {
		if t.ID == id {
			h.service.OpenTrade(id, false, "api")
			return c.JSON(fiber.Map{
				"trade":     t,
				"ownership": snap.Ownership[id],
				"quotes":    h.service.TradeQuotes(id),
			})
		}
	}
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "trade not found"})
}

// Refresh triggers an immediate refresh of both jobs.
func (h *TradeHandler) Refresh(c *fiber.Ctx) error {
	h.refresher.RequestTrades()
	h.refresher.RequestQuotes()
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "refresh scheduled"})
}

// SetLocation saves the search location and schedules a geo-aware refresh.
func (h *TradeHandler) SetLocation(c *fiber.Ctx) error {
	var req LocationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	loc := model.Location{Latitude: req.Latitude, Longitude: req.Longitude, RadiusKm: req.RadiusKm}
	if err := h.service.SetLocation(c.Context(), loc); err != nil {
		h.logger.Error("api.set_location_failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "location saved"})
}

// SubmitQuote submits a bid for a trade.
func (h *TradeHandler) SubmitQuote(c *fiber.Ctx) error {
	var req QuoteSubmitRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	quote, err := h.service.SubmitQuote(c.Context(), req.toSubmission())
	if err != nil {
		h.logger.Error("api.submit_quote_failed",
			zap.Int64("trade_id", req.MilestoneID),
			zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
	}

	return c.Status(fiber.StatusCreated).JSON(quote)
}

// MarkMessagesRead flips the unread flag for a trade's chat.
func (h *TradeHandler) MarkMessagesRead(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid trade id"})
	}

	var req MessagesReadRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	h.service.MarkMessagesRead(id, req.Role)
	return c.SendStatus(fiber.StatusNoContent)
}

// RespondAppointment answers an appointment invitation.
func (h *TradeHandler) RespondAppointment(c *fiber.Ctx) error {
	var req AppointmentResponseRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	if err := h.service.RespondAppointment(c.Context(), req.AppointmentID, req.Response); err != nil {
		h.logger.Error("api.appointment_response_failed",
			zap.Int64("appointment_id", req.AppointmentID),
			zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
	}
	return c.SendStatus(fiber.StatusNoContent)
}
