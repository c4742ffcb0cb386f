package commands

// Root command for Cobra CLI
// Registers all subcommands (bot, broadcast, migrate)

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "xsn-monitor",
	Short: "XSN Address Monitor - Telegram bot for watching XSN address activity",
	Long: `XSN Address Monitor is a Go-based Telegram bot that watches user-registered
XSN addresses, reconciles new transactions into running balances on a poll
interval, and notifies owners about every new transaction.`,
	Version: "1.0.0",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(botCmd)
	rootCmd.AddCommand(broadcastCmd)
	rootCmd.AddCommand(migrateCmd)
}
