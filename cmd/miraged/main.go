package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/TFMV/mirage/pkg/mirage/config"
	"github.com/TFMV/mirage/pkg/mirage/crypto"
	"github.com/TFMV/mirage/pkg/mirage/cycle"
	"github.com/TFMV/mirage/pkg/mirage/decoy"
	"github.com/TFMV/mirage/pkg/mirage/detect"
	"github.com/TFMV/mirage/pkg/mirage/gather"
	"github.com/TFMV/mirage/pkg/mirage/ingest"
	"github.com/TFMV/mirage/pkg/mirage/monitor"
	"github.com/TFMV/mirage/pkg/mirage/oracle"
	"github.com/TFMV/mirage/pkg/mirage/pattern"
	"github.com/TFMV/mirage/pkg/mirage/telemetry"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to config file")
	once := flag.Bool("once", false, "Run a single cycle and exit")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Set up logging using the config package
	if err := config.SetupLogging(&cfg.Logging); err != nil {
		log.Fatal().Err(err).Msg("Failed to set up logging")
	}

	// Unseal the decision-service credential before anything else; a
	// missing or wrong passphrase is fatal here, before any oracle call
	// is possible.
	passphrase := os.Getenv(cfg.Oracle.PassphraseEnv)
	credential, err := crypto.Open(cfg.Oracle.SealedCredential, passphrase)
	if err != nil {
		log.Fatal().Err(err).Str("passphrase_env", cfg.Oracle.PassphraseEnv).Msg("Failed to unseal decision-service credential")
	}

	// Metrics
	var metrics *telemetry.Metrics
	if cfg.Telemetry.Enabled {
		metrics = telemetry.New(cfg.Telemetry.Namespace)
		metrics.Serve(cfg.Telemetry.Addr)
	}

	// Decision-service client with the placeholder default heuristic
	seed := cfg.Oracle.HeuristicSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	client, err := oracle.NewClient(&oracle.ClientConfig{
		Endpoint:       cfg.Oracle.Endpoint,
		RequestTimeout: cfg.Oracle.RequestTimeout,
		MaxRetries:     cfg.Oracle.MaxRetries,
	}, credential, oracle.NewCoinFlipSeeded(seed), metrics.OracleHooks())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create decision-service client")
	}

	// Assemble the pipeline
	eventLog := cycle.NewEventLog()
	detector := detect.New(client)
	orch := cycle.New(
		gather.NewSource(cfg.Oracle.TelemetrySourceAddr),
		detector,
		decoy.NewSynthesizer(client),
		decoy.NewValidator(client),
		decoy.NewRegistry(),
		monitor.New(client),
		monitor.NewDispatcher(nil, eventLog),
		pattern.New(client, cfg.Cycle.HistoryLimit),
		eventLog,
		metrics,
	)

	// Ingestion endpoint shares the detector with the cycle loop
	ingestServer := ingest.NewServer(cfg.Ingest, detector, metrics)
	ingestServer.Start()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().Dur("interval", cfg.Cycle.Interval).Msg("Mirage started")

	runCycle := func() {
		summary := orch.Run(ctx)
		log.Info().Str("status", summary.Status).Int("log_entries", len(summary.Log)).Msg("Cycle summary")
	}

	runCycle()
	if !*once {
		ticker := time.NewTicker(cfg.Cycle.Interval)
		defer ticker.Stop()
	loop:
		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("Shutdown signal received, stopping...")
				break loop
			case <-ticker.C:
				runCycle()
			}
		}
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ingestServer.Stop(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("Ingestion endpoint shutdown failed")
	}
	if err := metrics.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("Metrics endpoint shutdown failed")
	}
	log.Info().Msg("Stopped, goodbye!")
}
