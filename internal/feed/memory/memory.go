package memory

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"cashflow/internal/feed"
	"cashflow/internal/feed/file"
)

// Store keeps account data in memory. It backs tests and local runs.
type Store struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]feed.AccountData
	pending  map[uuid.UUID]int
}

func New() *Store {
	return &Store{
		accounts: map[uuid.UUID]feed.AccountData{},
		pending:  map[uuid.UUID]int{},
	}
}

// Put stores the data returned for userID.
func (s *Store) Put(userID uuid.UUID, data feed.AccountData) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[userID] = data
}

// Delay makes the next n fetches of userID fail with feed.ErrNotReady.
func (s *Store) Delay(userID uuid.UUID, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[userID] = n
}

func (s *Store) Fetch(_ context.Context, userID uuid.UUID) (feed.AccountData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending[userID] > 0 {
		s.pending[userID]--
		return feed.AccountData{}, feed.ErrNotReady
	}
	data, ok := s.accounts[userID]
	if !ok {
		return feed.AccountData{}, fmt.Errorf("user %s: %w", userID, feed.ErrUserNotFound)
	}
	data.Transactions = append(data.Transactions[:0:0], data.Transactions...)
	data.Cycles = append(data.Cycles[:0:0], data.Cycles...)
	return data, nil
}

// LoadDirectory seeds the store from <user id>.json documents in dir and
// returns how many accounts were loaded. A missing directory loads nothing.
func (s *Store) LoadDirectory(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	loaded := 0
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || filepath.Ext(name) != ".json" {
			continue
		}
		userID, err := uuid.Parse(strings.TrimSuffix(name, ".json"))
		if err != nil {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return loaded, err
		}
		data, err := file.Decode(raw)
		if err != nil {
			return loaded, fmt.Errorf("decode %s: %w", name, err)
		}
		s.Put(userID, data)
		loaded++
	}
	return loaded, nil
}
