package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"cashflow/internal/amqp"
	"cashflow/internal/log"
	"cashflow/internal/services"
	"cashflow/internal/storage"
)

// ReportCalculator is the part of the report service the worker drives.
type ReportCalculator interface {
	CalculateReport(ctx context.Context, userID uuid.UUID) (storage.StoredReport, error)
}

// CalculationWorker turns queued calculation requests into stored, signed
// reports.
type CalculationWorker struct {
	reports ReportCalculator
	logger  *log.Logger
}

func NewCalculationWorker(reports ReportCalculator, logger *log.Logger) *CalculationWorker {
	return &CalculationWorker{
		reports: reports,
		logger:  logger.WithComponent(log.ComponentWorker),
	}
}

// HandleCalculation processes one request. Failures that a retry cannot fix
// wrap amqp.ErrDiscard so the message is dropped instead of requeued.
func (w *CalculationWorker) HandleCalculation(ctx context.Context, req *amqp.CalculationRequest) error {
	start := time.Now()
	fields := log.NewFields().
		WithOperation(log.OpCalculate).
		WithUser(req.UserID.String())
	fields[log.FieldRequestID] = req.RequestID.String()

	w.logger.InfoContext(ctx, "Processing calculation request", fields.ToSlice()...)

	stored, err := w.reports.CalculateReport(ctx, req.UserID)
	duration := time.Since(start).Milliseconds()
	if err != nil {
		fields.WithError(err).WithResult(duration, false)
		if services.IsPermanent(err) {
			w.logger.ErrorContext(ctx, "Calculation failed permanently", fields.WithErrorType(log.ErrorTypeValidation).ToSlice()...)
			return fmt.Errorf("%w: %w", amqp.ErrDiscard, err)
		}
		w.logger.ErrorContext(ctx, "Calculation failed", fields.ToSlice()...)
		return err
	}

	fields.WithReport(stored.Report.ID.String(), stored.Report.TransactionsSize).WithResult(duration, true)
	w.logger.InfoContext(ctx, "Calculation request completed", fields.ToSlice()...)
	return nil
}
