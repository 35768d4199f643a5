package main

import (
	"fmt"

	"prom-markup/internal/prom"
	"prom-markup/internal/repository"
	"prom-markup/internal/service"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runCmd = &cobra.Command{
	Use:   "run <changes-group-id>",
	Short: "Push a stored changes group to the marketplace now",
	Long: `Re-send the stored price changes of a changes group to the marketplace API,
exactly as a scheduled automation would, and record the run in the changes log.`,
	Args: cobra.ExactArgs(1),
	RunE: runChangesGroup,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runChangesGroup(cmd *cobra.Command, args []string) error {
	groupID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid changes group id %q: %w", args[0], err)
	}

	db := dbService.DB()
	changesRepo := repository.NewChangesRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)

	client, err := prom.NewClient(prom.Config{
		BaseURL:           cfg.PromAPI.BaseURL,
		Timeout:           cfg.PromAPI.Timeout,
		RequestsPerSecond: cfg.PromAPI.RequestsPerSecond,
		BatchSize:         cfg.PromAPI.BatchSize,
	}, service.NewAPIKeySource(settingsRepo), log.Named("prom"))
	if err != nil {
		return fmt.Errorf("failed to create prom client: %w", err)
	}

	runner := service.NewChangesRunner(changesRepo, client, service.NewGroupLocks(), log)
	if err := runner.RunAutomation(cmd.Context(), groupID); err != nil {
		return err
	}

	log.Info("Changes group executed", zap.String("changes_group_id", groupID.String()))
	return nil
}
