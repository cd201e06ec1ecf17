// Package main is the entry point for the AI router.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/resumekit/airouter/internal/adapters"
	"github.com/resumekit/airouter/internal/config"
	"github.com/resumekit/airouter/internal/monitoring"
	"github.com/resumekit/airouter/internal/router"
	"github.com/resumekit/airouter/internal/server"
	"github.com/resumekit/airouter/internal/store"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

// loadEnvFiles loads environment files from the working directory.
// .env.local wins over .env so local overrides stay out of version control.
func loadEnvFiles() {
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load(".env")
}

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "serve", "start":
			runServer(os.Args[2:])
			return
		case "version", "-v", "--version":
			fmt.Printf("airouter %s\n", Version)
			return
		case "help", "-h", "--help":
			printHelp()
			return
		}
	}

	printHelp()
	os.Exit(2)
}

func runServer(args []string) {
	loadEnvFiles()

	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "configs/config.yaml", "path to config file")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(args) // ExitOnError handles errors

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("config", *configPath).Msg("failed to load configuration")
	}

	level := cfg.Logging.Level
	if *debug {
		level = "debug"
	}
	logger := monitoring.Setup(monitoring.LoggerConfig{
		Level:  level,
		Format: cfg.Logging.Format,
	})

	logger.Info().
		Str("version", Version).
		Str("config", *configPath).
		Msg("airouter starting")

	registry := adapters.NewRegistry(cfg.AdapterConfigs())
	if len(registry.Names()) == 0 {
		logger.Warn().Msg("no providers configured, every request will use the local fallback")
	}

	rt := router.New(registry.Adapters(), router.Options{
		DefaultProvider: cfg.Router.Default,
		FallbackOrder:   cfg.Router.FallbackOrder,
		FallbackEnabled: cfg.Router.Enabled(),
		Logger:          logger,
	})

	var st store.Store = store.NopStore{}
	if cfg.Store.Path != "" {
		sqlStore, err := store.NewSQLite(cfg.Store.Path)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.Store.Path).Msg("failed to open request store")
		}
		st = sqlStore
	}
	defer st.Close()

	logger.Info().
		Int("port", cfg.Server.Port).
		Strs("providers", registry.Names()).
		Str("default", cfg.Router.Default).
		Bool("fallback", cfg.Router.Enabled()).
		Msg("configuration loaded")

	srv := server.New(cfg, rt, registry, st, logger)

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info().Msg("shutdown signal received")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error().Err(err).Msg("server shutdown error")
		}
	}()

	if err := srv.Start(); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}

	logger.Info().Msg("airouter stopped")
}

func printHelp() {
	fmt.Println("airouter - multi-provider AI request router")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  airouter serve [options]")
	fmt.Println("  airouter version")
	fmt.Println("  airouter help")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --config FILE    Config file (default: configs/config.yaml)")
	fmt.Println("  --debug          Enable debug logging")
}
