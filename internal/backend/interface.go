package backend

import (
	"context"

	"cashflow/internal/feed"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// Result contains the feed source and optional cleanup function
type Result struct {
	Source  feed.Source
	Cleanup CleanupFunc
}

// Factory creates feed sources based on configuration
type Factory interface {
	CreateSource(ctx context.Context, config Config) (*Result, error)
}

// Config holds configuration for feed source creation
type Config struct {
	Type BackendType

	// Directory holding one <user id>.json document per user. The memory
	// backend loads it once at startup, the file backend reads it per fetch.
	Directory string
}

// BackendType represents the type of feed backend
type BackendType string

const (
	FileBackend   BackendType = "file"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case FileBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
