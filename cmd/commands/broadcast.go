package commands

// Command to send a one-off announcement to every distinct monitor owner,
// e.g. after maintenance. Per-user delivery failures are logged and
// skipped.

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"xsn-monitor/internal/infra/config"
	logging "xsn-monitor/internal/infra/log"
	"xsn-monitor/internal/notify"
	"xsn-monitor/internal/store"
)

var broadcastCmd = &cobra.Command{
	Use:   "broadcast [message]",
	Short: "Send a message to every user with at least one monitor",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runBroadcast,
}

func runBroadcast(cmd *cobra.Command, args []string) error {
	message := strings.Join(args, " ")

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	st, err := store.NewPostgres(cfg.Store.DatabaseURL, cfg.Store.MaxRetries, logging.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize monitor store: %w", err)
	}
	defer st.Close()

	bot, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		return fmt.Errorf("failed to initialize bot: %w", err)
	}

	owners, err := st.DistinctOwners(context.Background())
	if err != nil {
		return fmt.Errorf("failed to list owners: %w", err)
	}

	channel := notify.NewTelegram(bot)
	delivered := 0
	for _, owner := range owners {
		if err := channel.Send(owner, message); err != nil {
			logging.LogWarn("Broadcast delivery failed", zap.Int64("owner_id", owner), zap.Error(err))
			continue
		}
		delivered++
	}

	logging.LogSuccess("Broadcast finished",
		zap.Int("owners", len(owners)),
		zap.Int("delivered", delivered))
	return nil
}
