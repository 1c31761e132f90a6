package backend

import (
	"fmt"

	"cashflow/internal/config"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.FeedBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid feed backend %q: must be one of %v", appConfig.FeedBackend, GetBackendTypes())
	}

	return Config{
		Type:      backendType,
		Directory: appConfig.FeedDirectory,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type %q: must be one of %v", c.Type, GetBackendTypes())
	}
	if c.Type == FileBackend && c.Directory == "" {
		return fmt.Errorf("feed directory is required for file backend")
	}
	return nil
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{FileBackend, MemoryBackend}
}
