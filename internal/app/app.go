package app

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"

	"jackdaw/internal/app/server"
	"jackdaw/internal/config"
	"jackdaw/internal/database"
	"jackdaw/internal/jobs/refresh"
	"jackdaw/internal/registry"
	"jackdaw/internal/support"
)

const (
	defaultAPIPort = 8082
	ledgerCacheDir = "data/cache"
)

func Run() error {
	if err := godotenv.Load(); err != nil {
		log.Warn("No .env file found. Falling back to system environment variables.")
	}

	portFlag := flag.Int("port", defaultAPIPort, "Port for the API server")
	onceFlag := flag.Bool("once", false, "Run a single refresh and exit")
	serveFlag := flag.Bool("serve", true, "Serve the HTTP API")
	countryFlag := flag.String("country", "", "Additional country code for filtered exports")
	logLevelFlag := flag.String("log-level", "info", "Log level: debug, info, warn or error")
	flag.Parse()

	applyLogLevel(*logLevelFlag)

	config.ReadSettings()
	if *countryFlag != "" {
		config.AddCountryFilter(*countryFlag)
	}

	if database.Configured() {
		if _, err := database.SetupDB(); err != nil {
			return fmt.Errorf("database setup failed: %w", err)
		}
		log.Info("Run archive enabled")
	}
	defer support.CloseRedisClient()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := registry.NewClient(ledgerCacheDir)
	if err != nil {
		return fmt.Errorf("registry client: %w", err)
	}
	job := refresh.NewJob(client)

	if *onceFlag {
		_, err := job.Run(ctx)
		return err
	}

	go watchReload(ctx)
	go refresh.StartRoutine(ctx, job)

	if !*serveFlag {
		<-ctx.Done()
		return nil
	}

	return server.OpenRoutes(ctx, resolvePort("PORT", *portFlag), job)
}

// watchReload re-reads the settings file on SIGHUP.
func watchReload(ctx context.Context) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			log.Info("Reloading settings")
			config.ReadSettings()
		}
	}
}

func applyLogLevel(flagValue string) {
	raw := flagValue
	if env := os.Getenv("LOG_LEVEL"); env != "" {
		raw = env
	}

	level, err := log.ParseLevel(strings.ToLower(raw))
	if err != nil {
		log.Warn("Invalid log level, keeping the default", "value", raw)
		return
	}
	log.SetLevel(level)
}

func resolvePort(envKey string, fallback int) int {
	if port := readPort(envKey); port != 0 {
		return port
	}
	return fallback
}

func readPort(envKey string) int {
	raw := os.Getenv(envKey)
	if raw == "" {
		return 0
	}
	port, err := strconv.Atoi(raw)
	if err != nil || port == 0 {
		log.Warn("invalid port override", "env", envKey, "value", raw)
		return 0
	}
	return port
}
