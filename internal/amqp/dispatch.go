package amqp

import (
	"context"
	"errors"
	"log/slog"

	"github.com/rabbitmq/amqp091-go"
)

// ErrDiscard marks a handler failure that retrying cannot fix. The message
// is rejected without requeue.
var ErrDiscard = errors.New("discard message")

// CalculationHandler processes one request. Errors wrapping ErrDiscard drop
// the message; any other error requeues it.
type CalculationHandler func(ctx context.Context, req *CalculationRequest) error

// Dispatcher starts fn without queueing it, or returns an error when no
// worker is free.
type Dispatcher interface {
	TrySubmit(fn func()) error
}

func dispatch(ctx context.Context, d amqp091.Delivery, pool Dispatcher, handler CalculationHandler) {
	req, err := CalculationRequestFromJSON(d.Body)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to unmarshal message", "error", err, "delivery_tag", d.DeliveryTag)
		d.Nack(false, false) // reject and don't requeue
		return
	}

	err = pool.TrySubmit(func() {
		settle(ctx, d, req, handler(ctx, req))
	})
	if err != nil {
		slog.WarnContext(ctx, "No free worker, returning request to queue",
			"error", err,
			"request_id", req.RequestID,
			"user_id", req.UserID)
		d.Nack(false, true)
	}
}

func settle(ctx context.Context, d amqp091.Delivery, req *CalculationRequest, err error) {
	switch {
	case err == nil:
		if ackErr := d.Ack(false); ackErr != nil {
			slog.ErrorContext(ctx, "Failed to ack message", "error", ackErr, "request_id", req.RequestID)
			return
		}
		slog.InfoContext(ctx, "Successfully processed calculation request",
			"request_id", req.RequestID,
			"user_id", req.UserID)
	case errors.Is(err, ErrDiscard):
		slog.ErrorContext(ctx, "Dropping calculation request",
			"error", err,
			"request_id", req.RequestID,
			"user_id", req.UserID)
		d.Nack(false, false)
	default:
		slog.ErrorContext(ctx, "Failed to handle message",
			"error", err,
			"request_id", req.RequestID,
			"user_id", req.UserID)
		d.Nack(false, true) // reject and requeue
	}
}
