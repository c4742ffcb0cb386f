package commands

// Command to run the bot: reconciliation crawler + Telegram menu handler
// and the optional status API. Implements graceful shutdown.

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"xsn-monitor/bots_monitor"
	"xsn-monitor/internal/api"
	"xsn-monitor/internal/crawler"
	"xsn-monitor/internal/infra/config"
	logging "xsn-monitor/internal/infra/log"
	"xsn-monitor/internal/notify"
	"xsn-monitor/internal/service"
	"xsn-monitor/internal/source"
	"xsn-monitor/internal/store"
)

var botCmd = &cobra.Command{
	Use:   "bot",
	Short: "Run the monitor bot (crawler + Telegram menu)",
	Long:  `Run the complete bot: the reconciliation crawler, the Telegram menu handler and the optional status API.`,
	RunE:  runBot,
}

func runBot(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		logging.LogError("Failed to load config", zap.Error(err))
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	src, closeSource, err := buildSource(cfg)
	if err != nil {
		logging.LogError("Failed to initialize transaction source", zap.Error(err))
		return err
	}
	defer closeSource()
	logging.LogSuccess("Transaction source ready", zap.String("variant", cfg.Source.Variant))

	st, err := store.NewPostgres(cfg.Store.DatabaseURL, cfg.Store.MaxRetries, logging.Logger)
	if err != nil {
		logging.LogError("Failed to initialize monitor store", zap.Error(err))
		return fmt.Errorf("failed to initialize monitor store: %w", err)
	}
	defer st.Close()

	if cfg.Telegram.BotToken == "" {
		return fmt.Errorf("no bot token provided: TELEGRAM_BOT_TOKEN is required")
	}
	bot, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		logging.LogError("Failed to initialize bot", zap.Error(err))
		return fmt.Errorf("failed to initialize bot: %w", err)
	}
	logging.LogSuccess("Bot authorized", zap.String("username", bot.Self.UserName))

	status := crawler.NewStatus()
	monitors, err := st.FindAll(ctx)
	if err != nil {
		logging.LogWarn("Failed to initialize statistics from store", zap.Error(err))
	} else {
		status.InitFromMonitors(monitors)
	}

	channel := notify.NewTelegram(bot)
	svc := service.New(st, src, status)
	crw := crawler.New(st, src, channel, status, crawler.Options{
		PollInterval:   time.Duration(cfg.App.PollInterval) * time.Second,
		MonitorDelay:   time.Duration(cfg.App.MonitorDelay * float64(time.Second)),
		HistoryEnabled: true,
	})

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		crw.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		bots_monitor.RunMenuHandler(ctx, bot, svc)
	}()

	var statusAPI *api.Server
	if cfg.App.StatusPort > 0 {
		statusAPI = api.NewServer(cfg.App.StatusPort, status)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := statusAPI.Start(); err != nil {
				logging.LogError("Status API stopped", zap.Error(err))
			}
		}()
	}

	logging.LogSuccess("Bot is running", zap.String("status", "active"))

	<-ctx.Done()
	logging.LogInfo("Shutdown signal received, gracefully stopping...")

	if statusAPI != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		statusAPI.Stop(shutdownCtx)
		shutdownCancel()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logging.LogSuccess("All components stopped gracefully")
	case <-time.After(2 * time.Duration(cfg.App.PollInterval) * time.Second):
		logging.LogWarn("Timeout waiting for components to stop, forcing shutdown")
	}

	return nil
}

// buildSource selects the transaction source variant from config.
func buildSource(cfg *config.Config) (source.TransactionSource, func(), error) {
	switch cfg.Source.Variant {
	case "chaindb":
		db, err := source.NewChainDB(cfg.Source.ChainDBURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect chain database: %w", err)
		}
		return db, func() { db.Close() }, nil
	case "explorer":
		client := source.NewExplorerClient(cfg.Source.ExplorerBaseURL,
			cfg.Source.RequestTimeout, cfg.Source.MaxRetries, cfg.App.MaxResponseSize)
		return client, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown source variant %q", cfg.Source.Variant)
	}
}
