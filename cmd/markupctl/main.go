package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"prom-markup/internal/config"
	"prom-markup/internal/database"
	"prom-markup/internal/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	verbose   bool
	envFile   string
	cfg       *config.Config
	log       *zap.Logger
	dbService database.Service
)

var rootCmd = &cobra.Command{
	Use:   "markupctl",
	Short: "Operator tool for the price markup service",
	Long: `markupctl inspects seller catalog feeds, manages the database schema and
runs stored changes groups against the marketplace API without starting the HTTP service.`,
	SilenceUsage:       true,
	PersistentPreRunE:  persistentPreRun,
	PersistentPostRunE: persistentPostRun,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "load environment variables from this file before reading config")
}

// needsDatabase lists the commands that talk to PostgreSQL
var needsDatabase = map[string]bool{
	"up":     true,
	"down":   true,
	"status": true,
	"run":    true,
}

func persistentPreRun(cmd *cobra.Command, args []string) error {
	if cmd.Name() == "help" || cmd.Name() == "completion" {
		return nil
	}

	var err error
	log, err = logger.NewCLI(verbose)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("failed to load env file: %w", err)
		}
		log.Debug("Environment loaded", zap.String("file", envFile))
	}

	cfg = config.Load()

	if needsDatabase[cmd.Name()] {
		dbService, err = database.New(cfg.Database)
		if err != nil {
			return fmt.Errorf("database initialization failed: %w", err)
		}
		log.Debug("Database connected", zap.String("host", cfg.Database.Host))
	}

	return nil
}

func persistentPostRun(cmd *cobra.Command, args []string) error {
	if dbService != nil {
		if err := dbService.Close(); err != nil {
			return fmt.Errorf("failed to close database: %w", err)
		}
	}
	if log != nil {
		_ = log.Sync()
	}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
