package services

import (
	"github.com/novaconsult/nova-backend/internal/config"
	"github.com/novaconsult/nova-backend/internal/database"
	"github.com/novaconsult/nova-backend/internal/llm"
	"github.com/novaconsult/nova-backend/internal/prompts"
	"github.com/novaconsult/nova-backend/internal/providers"
	"github.com/novaconsult/nova-backend/internal/repository/sqlstore"
	"github.com/sirupsen/logrus"
)

// Services holds all service instances
type Services struct {
	// Primary orchestrator - all clients should use this
	Orchestrator *OrchestrationService

	Summary *SummaryService
	LLM     *llm.Service
	Health  *HealthMonitor

	Log *logrus.Logger
}

// NewServices creates all service instances over an open, migrated database.
func NewServices(
	db *database.DB,
	provider providers.Provider,
	catalog *prompts.Catalog,
	cfg *config.Config,
	log *logrus.Logger,
) *Services {
	turns := sqlstore.NewTurnStore(db)
	summaries := sqlstore.NewSummaryStore(db)

	llmService := llm.NewService(provider, cfg.Model, log)
	summary := NewSummaryService(llmService, summaries, catalog, cfg.Memory.Window, log)
	orchestrator := NewOrchestrationService(turns, summary, llmService, catalog, log)

	log.WithFields(logrus.Fields{
		"provider": provider.Name(),
		"model":    cfg.Model.Name,
		"window":   summary.Window(),
	}).Info("Services initialized")

	return &Services{
		Orchestrator: orchestrator,
		Summary:      summary,
		LLM:          llmService,
		Health:       NewHealthMonitor(db, llmService.Metrics()),
		Log:          log,
	}
}
