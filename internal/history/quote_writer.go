package history

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/BoranPatron/tradeboard/pkg/model"
)

// QuoteWriter persists confirmed bid submissions into the audit.t_quote_history
// table. It is a write-behind audit trail: a failed write is logged and
// reported but never blocks the submission flow.
type QuoteWriter struct {
	db      *pgxpool.Pool
	logger  *zap.Logger
	service string
}

// NewQuoteWriter constructs a writer for the quote history table.
// service identifies the component writing the record.
func NewQuoteWriter(db *pgxpool.Pool, logger *zap.Logger, service string) *QuoteWriter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuoteWriter{
		db:      db,
		logger:  logger,
		service: service,
	}
}

// RecordQuote inserts or updates the history row for a submitted bid.
func (w *QuoteWriter) RecordQuote(ctx context.Context, quote model.QuoteRecord) error {
	if w == nil || w.db == nil {
		return nil
	}

	const query = `
		INSERT INTO audit.t_quote_history (
			n_id_quote,
			n_id_milestone,
			n_id_project,
			n_id_service_provider,
			s_status,
			dec_total_amount,
			s_currency,
			s_company_name,
			dt_created,
			s_source
		)
		VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		)
		ON CONFLICT (n_id_quote)
		DO UPDATE SET
			s_status = EXCLUDED.s_status,
			dec_total_amount = EXCLUDED.dec_total_amount,
			s_currency = EXCLUDED.s_currency,
			s_company_name = EXCLUDED.s_company_name,
			dt_created = EXCLUDED.dt_created,
			s_source = EXCLUDED.s_source;
	`

	_, err := w.db.Exec(ctx, query,
		quote.ID,                  // n_id_quote
		quote.MilestoneID,         // n_id_milestone
		quote.ProjectID,           // n_id_project
		quote.ServiceProviderID,   // n_id_service_provider
		string(quote.Status),      // s_status
		quote.TotalAmount,         // dec_total_amount
		quote.Currency,            // s_currency
		quote.CompanyName,         // s_company_name
		quote.CreatedAt,           // dt_created
		w.service,                 // s_source
	)
	if err != nil {
		w.logger.Error("history.quote_record_failed",
			zap.Int64("quote_id", quote.ID),
			zap.Int64("trade_id", quote.MilestoneID),
			zap.Error(err),
		)
		return err
	}

	w.logger.Info("history.quote_recorded",
		zap.Int64("quote_id", quote.ID),
		zap.Int64("trade_id", quote.MilestoneID),
		zap.String("status", string(quote.Status)),
		zap.String("amount", quote.TotalAmount.String()),
	)

	return nil
}
