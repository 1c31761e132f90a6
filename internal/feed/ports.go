// Package feed is the port to upstream bank data. Adapters live in the
// file and memory subpackages.
package feed

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"cashflow/internal/core"
)

var (
	// ErrUserNotFound means upstream holds no data for the user.
	ErrUserNotFound = errors.New("user not found in feed")
	// ErrNotReady means upstream has not finished fetching the user's
	// transactions yet. Callers may retry later.
	ErrNotReady = errors.New("feed data not ready")
	// ErrInvalidData means upstream delivered data that cannot be decoded.
	// Fetching it again returns the same data.
	ErrInvalidData = errors.New("invalid feed data")
)

// AccountData is everything upstream delivers for one user's account.
type AccountData struct {
	Account      core.AccountSnapshot
	Transactions []core.Transaction
	Cycles       []core.CycleRecord
}

// Source fetches the account data of one user.
type Source interface {
	Fetch(ctx context.Context, userID uuid.UUID) (AccountData, error)
}
