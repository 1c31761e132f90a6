// Package security describes security-relevant events and the alerters that
// report them.
package security

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"cashflow/internal/log"
)

type Kind string

const (
	// KindInvalidSignature is raised when a stored report fails verification.
	KindInvalidSignature Kind = "INVALID_SIGNATURE"
	// KindPublicKeyMismatch is raised when the stored bytes of a public key
	// differ from the key held by the secret store.
	KindPublicKeyMismatch Kind = "PUBLIC_KEY_MISMATCH"
)

type Event struct {
	Kind       Kind
	OccurredAt time.Time
	UserID     uuid.UUID
	ReportID   uuid.UUID
	KeyID      uuid.UUID
	KeyName    string
	Message    string
}

// Alerter reports security events. Implementations must be safe for
// concurrent use.
type Alerter interface {
	Alert(ctx context.Context, ev Event) error
}

// AlerterFunc adapts a function to Alerter.
type AlerterFunc func(ctx context.Context, ev Event) error

func (f AlerterFunc) Alert(ctx context.Context, ev Event) error { return f(ctx, ev) }

// LogAlerter writes events to the security log at error level.
type LogAlerter struct {
	logger *log.Logger
}

func NewLogAlerter(logger *log.Logger) *LogAlerter {
	return &LogAlerter{logger: logger.WithComponent(log.ComponentSecurity)}
}

func (a *LogAlerter) Alert(ctx context.Context, ev Event) error {
	fields := log.NewFields().WithKey(ev.KeyID.String(), ev.KeyName)
	fields[log.FieldEventKind] = string(ev.Kind)
	if ev.UserID != uuid.Nil {
		fields.WithUser(ev.UserID.String())
	}
	if ev.ReportID != uuid.Nil {
		fields[log.FieldReportID] = ev.ReportID.String()
	}
	a.logger.ErrorContext(ctx, "Security event: "+ev.Message, fields.ToSlice()...)
	return nil
}

// Alerters fans an event out to every alerter and joins their errors.
type Alerters []Alerter

func (as Alerters) Alert(ctx context.Context, ev Event) error {
	var errs []error
	for _, a := range as {
		if a == nil {
			continue
		}
		if err := a.Alert(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
