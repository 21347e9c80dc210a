package main

import (
	"log"

	"github.com/joho/godotenv"

	"expstat/adapters/report"
	"expstat/adapters/stats/engine"
	"expstat/app"
	"expstat/internal/api"
	"expstat/internal/config"
	"expstat/internal/policy"
)

func main() {
	// Load .env if present; real deployments set env vars directly.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	dist := engine.NewDistributions()
	service := app.NewAnalysisService(
		engine.NewSRMChecker(cfg.Engine.SRMThreshold),
		engine.NewSignificanceAnalyzer(cfg.Engine.Alpha),
		policy.NewDecisionPolicy(cfg.Engine.SeverityMultiplier, 0, cfg.Engine.Alpha, cfg.Engine.Power, dist),
	)

	server := api.NewServer(
		api.Config{Port: cfg.Server.Port},
		service,
		engine.NewSampleSizeCalculator(),
		report.NewRenderer(cfg.Report.Dir),
	)

	if err := server.Start(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
