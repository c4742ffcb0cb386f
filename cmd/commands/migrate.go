package commands

// Command to run store migrations without starting the bot.

import (
	"fmt"

	"github.com/spf13/cobra"

	"xsn-monitor/internal/infra/config"
	logging "xsn-monitor/internal/infra/log"
	"xsn-monitor/internal/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Initialize or upgrade the monitor store schema",
	RunE:  runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// NewPostgres pings and migrates on connect.
	st, err := store.NewPostgres(cfg.Store.DatabaseURL, cfg.Store.MaxRetries, logging.Logger)
	if err != nil {
		return err
	}
	defer st.Close()

	logging.LogSuccess("Store schema is up to date")
	return nil
}
