package main

import (
	"fmt"
	"os"

	"github.com/veyra/fleet-collections/internal/auth"
	"github.com/veyra/fleet-collections/internal/config"
	"github.com/veyra/fleet-collections/internal/db"
	"github.com/veyra/fleet-collections/internal/excel"
	httphandler "github.com/veyra/fleet-collections/internal/http"
	"github.com/veyra/fleet-collections/internal/http/middleware"
	"github.com/veyra/fleet-collections/internal/logger"
	"github.com/veyra/fleet-collections/internal/pdf"
	"github.com/veyra/fleet-collections/internal/repository"
	"github.com/veyra/fleet-collections/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Environment)

	database, err := db.New(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect database")
	}

	agreementRepo := repository.NewAgreementRepository(database)
	vehicleRepo := repository.NewVehicleRepository(database)
	addressRepo := repository.NewAddressRepository(database)
	historyRepo := repository.NewHistoryRepository(database)

	excelGenerator := excel.NewGenerator()
	pdfGenerator := pdf.NewGenerator(cfg.Collections.Currency)

	negotiationService := service.NewNegotiationService(agreementRepo, vehicleRepo, addressRepo, log)
	historyService := service.NewHistoryService(
		agreementRepo, vehicleRepo, addressRepo, historyRepo,
		excelGenerator, pdfGenerator, log,
	)

	tokenParser := auth.NewParser(cfg.Auth.AccessSecret)
	handler := httphandler.NewHandler(negotiationService, historyService, log)
	authMiddleware := middleware.Auth(tokenParser)
	router := httphandler.NewRouter(handler, authMiddleware, cfg.Environment, cfg.Collections.AllowedOrigins)

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	log.Info().Str("addr", addr).Msg("starting collections service")

	if err := router.Run(addr); err != nil {
		log.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
}
