package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/diario/internal/app"
	"github.com/ternarybob/diario/internal/common"
	"github.com/ternarybob/diario/internal/models"
	"github.com/ternarybob/diario/internal/server"
	"github.com/ternarybob/diario/internal/validation"
)

// configPaths is a custom flag type that allows multiple -config flags
type configPaths []string

func (c *configPaths) String() string {
	return fmt.Sprintf("%v", *c)
}

func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

var (
	configFiles  configPaths
	serverPort   = flag.Int("port", 0, "Server port (overrides config)")
	serverHost   = flag.String("host", "", "Server host (overrides config)")
	showVersion  = flag.Bool("version", false, "Print version information")
	validateMode = flag.String("validate", "", "Run the validation harness once and exit (full, sample, platform, single, regression)")
	validateIDs  = flag.String("cities", "", "Comma-separated spider ids for -validate single")
	validatePlat = flag.String("platform", "", "Platform filter for -validate platform")
)

func init() {
	flag.Var(&configFiles, "config", "Configuration file path (can be specified multiple times, later files override earlier ones)")
}

func main() {
	flag.Parse()

	common.LoadVersionFromFile()
	if *showVersion {
		fmt.Printf("diario version %s\n", common.GetFullVersion())
		os.Exit(0)
	}

	// Startup sequence: config (defaults -> files -> env -> flags), then
	// logger, then banner.
	if len(configFiles) == 0 {
		if _, err := os.Stat("diario.toml"); err == nil {
			configFiles = append(configFiles, "diario.toml")
		} else if _, err := os.Stat("configs/diario.toml"); err == nil {
			configFiles = append(configFiles, "configs/diario.toml")
		}
	}

	config, err := common.LoadFromFiles(configFiles...)
	if err != nil {
		arbor.NewLogger().Fatal().Err(err).Msg("Failed to load configuration")
		os.Exit(1)
	}
	common.ApplyFlagOverrides(config, *serverPort, *serverHost)

	logger := common.InitLogger(config)
	common.PrintBanner(common.GetVersion())

	logger.Info().
		Strs("config_files", configFiles).
		Int("port", config.Server.Port).
		Str("host", config.Server.Host).
		Str("cities_dir", config.Cities.Dir).
		Msg("Application configuration loaded")

	application, err := app.New(config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize application")
	}
	defer application.Close()

	if *validateMode != "" {
		os.Exit(runValidation(application, config, logger))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	application.Start(ctx)

	srv := server.New(application)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	logger.Info().
		Str("url", fmt.Sprintf("http://%s:%d", config.Server.Host, config.Server.Port)).
		Msg("Server ready - Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	logger.Info().Msg("Interrupt signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server shutdown failed")
	}
}

// runValidation executes one harness pass, prints the console report and
// writes the file renditions. Non-zero exit when any city failed.
func runValidation(application *app.App, config *common.Config, logger arbor.ILogger) int {
	req := validation.Request{
		Mode:     validation.Mode(*validateMode),
		Platform: models.SpiderType(*validatePlat),
	}
	if *validateIDs != "" {
		for _, id := range strings.Split(*validateIDs, ",") {
			if id = strings.TrimSpace(id); id != "" {
				req.SpiderIDs = append(req.SpiderIDs, id)
			}
		}
	}

	report, err := application.Harness.Run(context.Background(), req)
	if err != nil {
		logger.Error().Err(err).Msg("Validation run failed")
		return 1
	}

	report.Console(os.Stdout)

	if config.Validation.OutputDir != "" {
		paths, err := report.WriteFiles(config.Validation.OutputDir)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to write validation reports")
		} else {
			logger.Info().Strs("paths", paths).Msg("Validation reports written")
		}
	}

	if report.Summary.Failed > 0 {
		return 1
	}
	return 0
}
