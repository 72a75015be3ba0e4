package factory

import (
	"fmt"

	"github.com/novaconsult/nova-backend/internal/config"
	"github.com/novaconsult/nova-backend/internal/providers"
	"github.com/novaconsult/nova-backend/internal/providers/openai"
	"github.com/novaconsult/nova-backend/internal/providers/stub"
)

// CreateProvider creates a provider instance based on configuration
func CreateProvider(cfg config.ModelConfig) (providers.Provider, error) {
	switch cfg.Provider {
	case "openai":
		return openai.NewProvider(cfg)
	case "stub":
		return stub.NewProvider(), nil
	default:
		return nil, fmt.Errorf("unknown provider type: %s", cfg.Provider)
	}
}
