package backend

import (
	"context"
	"fmt"
	"log/slog"

	"cashflow/internal/feed/file"
	"cashflow/internal/feed/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new feed source factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateSource implements Factory.CreateSource
func (f *DefaultFactory) CreateSource(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case FileBackend:
		f.logger.InfoContext(ctx, "Initialized file feed backend", "directory", config.Directory)
		return &Result{Source: file.New(config.Directory)}, nil
	case MemoryBackend:
		return f.createMemorySource(ctx, config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createMemorySource(ctx context.Context, config Config) (*Result, error) {
	store := memory.New()
	loaded := 0
	if config.Directory != "" {
		n, err := store.LoadDirectory(config.Directory)
		if err != nil {
			return nil, fmt.Errorf("seed memory feed: %w", err)
		}
		loaded = n
	}

	f.logger.InfoContext(ctx, "Initialized memory feed backend",
		"directory", config.Directory,
		"accounts", loaded)

	return &Result{Source: store}, nil
}
