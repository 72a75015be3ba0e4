package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/novaconsult/nova-backend/internal/api"
	"github.com/novaconsult/nova-backend/internal/config"
	"github.com/novaconsult/nova-backend/internal/database"
	"github.com/novaconsult/nova-backend/internal/logging"
	"github.com/novaconsult/nova-backend/internal/prompts"
	"github.com/novaconsult/nova-backend/internal/providers/factory"
	"github.com/novaconsult/nova-backend/internal/services"
	"github.com/sirupsen/logrus"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}

	log := logging.New(cfg.Log)

	// Connect to database
	db, err := database.Open(cfg.Database, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	// Run migrations
	if err := db.Migrate(); err != nil {
		log.WithError(err).Fatal("Failed to run migrations")
	}

	catalog, err := prompts.Load(cfg.Prompts.File)
	if err != nil {
		log.WithError(err).Fatal("Failed to load prompts")
	}

	provider, err := factory.CreateProvider(cfg.Model)
	if err != nil {
		log.WithError(err).Fatal("Failed to create model provider")
	}

	svc := services.NewServices(db, provider, catalog, cfg, log)
	app := api.NewApp(svc, cfg.Server)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit

		log.Info("Shutting down server")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.WithError(err).Error("Server shutdown failed")
		}
	}()

	log.WithFields(logrus.Fields{
		"addr":     cfg.Server.Addr(),
		"driver":   db.Driver(),
		"provider": provider.Name(),
	}).Info("Nova backend starting")

	if err := app.Listen(cfg.Server.Addr()); err != nil {
		log.WithError(err).Fatal("Failed to start server")
	}
}
