package keyregistry

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"cashflow/internal/cache"
	"cashflow/internal/core"
	"cashflow/internal/log"
	"cashflow/internal/secrets"
	"cashflow/internal/security"
	"cashflow/internal/storage"
)

type memStore struct {
	mu      sync.Mutex
	records map[uuid.UUID]core.PublicKeyRecord
	gets    int
	failGet error
}

func newMemStore() *memStore {
	return &memStore{records: make(map[uuid.UUID]core.PublicKeyRecord)}
}

func (s *memStore) GetPublicKey(_ context.Context, id uuid.UUID) (core.PublicKeyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++
	if s.failGet != nil {
		return core.PublicKeyRecord{}, s.failGet
	}
	rec, ok := s.records[id]
	if !ok {
		return core.PublicKeyRecord{}, fmt.Errorf("public key %s: %w", id, storage.ErrNotFound)
	}
	return rec, nil
}

func (s *memStore) InsertPublicKey(_ context.Context, rec core.PublicKeyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.KeyID] = rec
	return nil
}

type recordingAlerter struct {
	events []security.Event
}

func (a *recordingAlerter) Alert(_ context.Context, ev security.Event) error {
	a.events = append(a.events, ev)
	return nil
}

func activeKey(t *testing.T, name string) (secrets.ActiveKey, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	der, err := secrets.MarshalPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("MarshalPublicKey: %v", err)
	}
	return secrets.ActiveKey{ID: uuid.New(), Name: name, Public: der}, key
}

func newRegistry(store KeyStore, alerter security.Alerter) *Registry {
	return New(store, alerter, cache.NewLRUCache[*rsa.PublicKey](8, time.Hour), log.New(log.DefaultConfig()))
}

func TestReconcile_InsertsMissingKeys(t *testing.T) {
	store := newMemStore()
	alerter := &recordingAlerter{}
	report, _ := activeKey(t, secrets.ReportSigningKey)
	jwt, _ := activeKey(t, secrets.JWTSigningKey)
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	if err := newRegistry(store, alerter).Reconcile(context.Background(), []secrets.ActiveKey{report, jwt}, now); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(store.records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(store.records))
	}
	rec := store.records[report.ID]
	if !rec.CreatedDate.Equal(now) || !bytes.Equal(rec.PublicKey, report.Public) {
		t.Fatalf("unexpected record %+v", rec)
	}
	if len(alerter.events) != 0 {
		t.Fatalf("no alert expected, got %v", alerter.events)
	}
}

func TestReconcile_MismatchAlertsAndContinues(t *testing.T) {
	store := newMemStore()
	alerter := &recordingAlerter{}
	report, _ := activeKey(t, secrets.ReportSigningKey)
	other, _ := activeKey(t, secrets.ReportSigningKey)
	jwt, _ := activeKey(t, secrets.JWTSigningKey)

	created := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	store.records[report.ID] = core.PublicKeyRecord{KeyID: report.ID, CreatedDate: created, PublicKey: other.Public}

	err := newRegistry(store, alerter).Reconcile(context.Background(), []secrets.ActiveKey{report, jwt}, time.Now())
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(alerter.events) != 1 || alerter.events[0].Kind != security.KindPublicKeyMismatch || alerter.events[0].KeyID != report.ID {
		t.Fatalf("unexpected events %+v", alerter.events)
	}
	if !bytes.Equal(store.records[report.ID].PublicKey, other.Public) {
		t.Fatalf("stored record must not be overwritten")
	}
	if _, ok := store.records[jwt.ID]; !ok {
		t.Fatalf("reconciliation should continue after a mismatch")
	}
}

func TestReconcile_StorageFailure(t *testing.T) {
	store := newMemStore()
	store.failGet = errors.New("disk I/O error")
	report, _ := activeKey(t, secrets.ReportSigningKey)

	err := newRegistry(store, nil).Reconcile(context.Background(), []secrets.ActiveKey{report}, time.Now())
	if err == nil || errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected storage error, got %v", err)
	}
}

func TestPublicKey(t *testing.T) {
	store := newMemStore()
	report, priv := activeKey(t, secrets.ReportSigningKey)
	store.records[report.ID] = core.PublicKeyRecord{KeyID: report.ID, PublicKey: report.Public}
	r := newRegistry(store, nil)

	for i := 0; i < 3; i++ {
		pub, err := r.PublicKey(context.Background(), report.ID)
		if err != nil {
			t.Fatalf("PublicKey: %v", err)
		}
		if !pub.Equal(&priv.PublicKey) {
			t.Fatalf("wrong key returned")
		}
	}
	if store.gets != 1 {
		t.Fatalf("expected one store lookup thanks to the cache, got %d", store.gets)
	}

	if _, err := r.PublicKey(context.Background(), uuid.New()); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}
}
