// Package keyregistry keeps the history of public keys so that reports
// signed with a retired key stay verifiable.
package keyregistry

import (
	"bytes"
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"cashflow/internal/cache"
	"cashflow/internal/core"
	"cashflow/internal/log"
	"cashflow/internal/secrets"
	"cashflow/internal/security"
	"cashflow/internal/storage"
)

// ErrKeyNotFound is returned when no public key was ever recorded for an id.
var ErrKeyNotFound = errors.New("public key not found")

// KeyStore persists public key records. GetPublicKey returns an error
// wrapping storage.ErrNotFound for unknown ids.
type KeyStore interface {
	GetPublicKey(ctx context.Context, keyID uuid.UUID) (core.PublicKeyRecord, error)
	InsertPublicKey(ctx context.Context, rec core.PublicKeyRecord) error
}

// Registry reconciles active keys with the stored history once at startup
// and serves public key lookups afterwards.
type Registry struct {
	store   KeyStore
	alerter security.Alerter
	keys    *cache.LRUCache[*rsa.PublicKey]
	logger  *log.Logger
}

func New(store KeyStore, alerter security.Alerter, keys *cache.LRUCache[*rsa.PublicKey], logger *log.Logger) *Registry {
	return &Registry{
		store:   store,
		alerter: alerter,
		keys:    keys,
		logger:  logger.WithComponent(log.ComponentKeyRegistry),
	}
}

// Reconcile records every active key that has no stored record yet. A
// stored record whose bytes differ from the active key raises a
// PublicKeyMismatch event and reconciliation carries on; the stored record
// is left untouched. Storage failures abort.
func (r *Registry) Reconcile(ctx context.Context, active []secrets.ActiveKey, now time.Time) error {
	for _, k := range active {
		rec, err := r.store.GetPublicKey(ctx, k.ID)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			err = r.store.InsertPublicKey(ctx, core.PublicKeyRecord{
				KeyID:       k.ID,
				CreatedDate: now,
				PublicKey:   k.Public,
			})
			if err != nil {
				return fmt.Errorf("insert public key %s: %w", k.ID, err)
			}
			r.logger.InfoContext(ctx, "Recorded new public key",
				log.NewFields().WithKey(k.ID.String(), k.Name).WithOperation(log.OpReconcile).ToSlice()...)
		case err != nil:
			return fmt.Errorf("get public key %s: %w", k.ID, err)
		case !bytes.Equal(rec.PublicKey, k.Public):
			r.raiseMismatch(ctx, k, now)
		default:
			r.logger.DebugContext(ctx, "Public key matches stored record", log.FieldKeyID, k.ID, log.FieldKeyName, k.Name)
		}
	}
	return nil
}

func (r *Registry) raiseMismatch(ctx context.Context, k secrets.ActiveKey, now time.Time) {
	r.logger.WarnContext(ctx, "Active public key differs from stored record",
		log.NewFields().WithKey(k.ID.String(), k.Name).WithOperation(log.OpReconcile).ToSlice()...)
	if r.alerter == nil {
		return
	}
	err := r.alerter.Alert(ctx, security.Event{
		Kind:       security.KindPublicKeyMismatch,
		OccurredAt: now,
		KeyID:      k.ID,
		KeyName:    k.Name,
		Message:    "public key in secret store differs from stored record",
	})
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to raise security alert", log.FieldError, err, log.FieldKeyID, k.ID)
	}
}

// PublicKey returns the public key recorded for keyID.
func (r *Registry) PublicKey(ctx context.Context, keyID uuid.UUID) (*rsa.PublicKey, error) {
	cacheKey := keyID.String()
	if r.keys != nil {
		if pub, ok := r.keys.Get(cacheKey); ok {
			return pub, nil
		}
	}

	rec, err := r.store.GetPublicKey(ctx, keyID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, keyID)
	}
	if err != nil {
		return nil, fmt.Errorf("get public key %s: %w", keyID, err)
	}
	pub, err := secrets.ParsePublicKey(rec.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("public key %s: %w", keyID, err)
	}

	if r.keys != nil {
		r.keys.Set(cacheKey, pub)
	}
	return pub, nil
}
