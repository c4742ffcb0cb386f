package bots_monitor

// Telegram menu for managing address monitors: inline keyboard with
// add / list / stats / delete, plus the /chart command. The add flow walks
// the user through two force-reply prompts (name, then address).

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"xsn-monitor/internal/charts"
	"xsn-monitor/internal/infra/log"
	"xsn-monitor/internal/service"
	"xsn-monitor/internal/store"
)

const (
	addNameMessage    = "Enter monitor name"
	addAddressMessage = "Enter address for "
	menuMessage       = "XSN Address Monitoring Menu:"
)

var nameInPromptRe = regexp.MustCompile(`.*"(.*)".*`)

// RunMenuHandler consumes bot updates until the updates channel closes.
func RunMenuHandler(ctx context.Context, bot *tgbotapi.BotAPI, svc *service.MonitorService) {
	if bot == nil {
		log.LogWarn("Bot is nil, menu handler not started")
		return
	}

	log.LogInfo("Starting menu handler", zap.String("username", bot.Self.UserName))

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			bot.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			handleUpdate(ctx, bot, svc, update)
		}
	}
}

func handleUpdate(ctx context.Context, bot *tgbotapi.BotAPI, svc *service.MonitorService, update tgbotapi.Update) {
	if update.CallbackQuery != nil {
		handleCallback(ctx, bot, svc, update.CallbackQuery)
		return
	}

	if update.Message == nil {
		return
	}

	if update.Message.IsCommand() {
		switch update.Message.Command() {
		case "start":
			sendMenu(bot, update.Message.Chat.ID)
		case "chart":
			sendChartKeyboard(ctx, bot, svc, update.Message.Chat.ID)
		}
		return
	}

	handleReply(ctx, bot, svc, update.Message)
}

func sendMenu(bot *tgbotapi.BotAPI, chatID int64) {
	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("Add monitor", "add")),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("My monitors", "list")),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("Bot statistics", "stats")),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("Delete monitor", "delete")),
	)

	msg := tgbotapi.NewMessage(chatID, menuMessage)
	msg.ReplyMarkup = keyboard
	sendOrLog(bot, msg)
}

func handleCallback(ctx context.Context, bot *tgbotapi.BotAPI, svc *service.MonitorService, query *tgbotapi.CallbackQuery) {
	chatID := query.Message.Chat.ID
	data := query.Data

	switch {
	case data == "add":
		msg := tgbotapi.NewMessage(chatID, addNameMessage)
		msg.ReplyMarkup = tgbotapi.ForceReply{ForceReply: true}
		sendOrLog(bot, msg)

	case data == "list":
		monitors, err := svc.List(ctx, chatID)
		if err != nil {
			log.LogError("Failed to list monitors", zap.Int64("chat_id", chatID), zap.Error(err))
			sendOrLog(bot, tgbotapi.NewMessage(chatID, "Something went wrong, please try again later."))
			break
		}
		if len(monitors) == 0 {
			sendOrLog(bot, tgbotapi.NewMessage(chatID, "You don't have any monitors active."))
			break
		}
		sendOrLog(bot, tgbotapi.NewMessage(chatID, FormatStatusMessage(monitors, svc.Stats().LastChecked)))

	case data == "stats":
		sendOrLog(bot, tgbotapi.NewMessage(chatID, FormatStatsMessage(svc.Stats())))

	case data == "delete":
		sendDeleteKeyboard(ctx, bot, svc, chatID)

	case strings.HasPrefix(data, "del_monitor_"):
		monitorID := strings.TrimPrefix(data, "del_monitor_")
		err := svc.Delete(ctx, monitorID)
		switch {
		case err == nil:
			sendOrLog(bot, tgbotapi.NewMessage(chatID, "Monitor deleted!"))
		case errors.Is(err, store.ErrMonitorNotFound):
			sendOrLog(bot, tgbotapi.NewMessage(chatID, "This monitor doesn't exist anymore."))
		default:
			log.LogError("Failed to delete monitor", zap.String("monitor_id", monitorID), zap.Error(err))
			sendOrLog(bot, tgbotapi.NewMessage(chatID, "Something went wrong, please try again later."))
		}

	case strings.HasPrefix(data, "chart_"):
		monitorID := strings.TrimPrefix(data, "chart_")
		sendBalanceChart(ctx, bot, svc, chatID, monitorID)
	}

	// Acknowledge so the button stops spinning.
	if _, err := bot.Request(tgbotapi.NewCallback(query.ID, "")); err != nil {
		log.LogDebug("Failed to answer callback query", zap.Error(err))
	}
}

func sendDeleteKeyboard(ctx context.Context, bot *tgbotapi.BotAPI, svc *service.MonitorService, chatID int64) {
	monitors, err := svc.List(ctx, chatID)
	if err != nil {
		log.LogError("Failed to list monitors for delete", zap.Int64("chat_id", chatID), zap.Error(err))
		sendOrLog(bot, tgbotapi.NewMessage(chatID, "Something went wrong, please try again later."))
		return
	}
	if len(monitors) == 0 {
		sendOrLog(bot, tgbotapi.NewMessage(chatID, "You don't have any monitors active."))
		return
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, m := range monitors {
		label := fmt.Sprintf("%s (%s)", m.Name, m.Address)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, "del_monitor_"+m.ID)))
	}

	msg := tgbotapi.NewMessage(chatID, "Which monitor do you want to delete?")
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	sendOrLog(bot, msg)
}

// handleReply drives the two-step add flow through force-reply prompts.
func handleReply(ctx context.Context, bot *tgbotapi.BotAPI, svc *service.MonitorService, message *tgbotapi.Message) {
	if message.ReplyToMessage == nil {
		return
	}

	prompt := message.ReplyToMessage.Text

	if prompt == addNameMessage {
		reply := tgbotapi.NewMessage(message.Chat.ID,
			addAddressMessage+`"`+message.Text+`"`)
		reply.ReplyMarkup = tgbotapi.ForceReply{ForceReply: true}
		sendOrLog(bot, reply)
		return
	}

	if strings.HasPrefix(prompt, addAddressMessage) {
		// The name travels inside the prompt; a quote in the name breaks
		// the framing, so exactly two quotes are required.
		if strings.Count(prompt, `"`) != 2 {
			sendOrLog(bot, tgbotapi.NewMessage(message.Chat.ID, "Invalid character in monitor name."))
			return
		}
		name := nameInPromptRe.FindStringSubmatch(prompt)[1]
		address := strings.TrimSpace(message.Text)

		m, err := svc.Create(ctx, message.Chat.ID, name, address)
		switch {
		case errors.Is(err, service.ErrInvalidAddress):
			sendOrLog(bot, tgbotapi.NewMessage(message.Chat.ID, "Invalid Address."))
		case errors.Is(err, service.ErrInvalidName):
			sendOrLog(bot, tgbotapi.NewMessage(message.Chat.ID, "Invalid character in monitor name."))
		case err != nil:
			log.LogError("Failed to create monitor", zap.Int64("chat_id", message.Chat.ID), zap.Error(err))
			sendOrLog(bot, tgbotapi.NewMessage(message.Chat.ID, "Something went wrong, please try again later."))
		default:
			text := fmt.Sprintf("Added monitor %q for address %s", m.Name, m.Address)
			sendOrLog(bot, tgbotapi.NewMessage(message.Chat.ID, text))
		}
	}
}

func sendChartKeyboard(ctx context.Context, bot *tgbotapi.BotAPI, svc *service.MonitorService, chatID int64) {
	monitors, err := svc.List(ctx, chatID)
	if err != nil {
		log.LogError("Failed to list monitors for chart", zap.Int64("chat_id", chatID), zap.Error(err))
		return
	}
	if len(monitors) == 0 {
		sendOrLog(bot, tgbotapi.NewMessage(chatID, "You don't have any monitors active."))
		return
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, m := range monitors {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(m.Name, "chart_"+m.ID)))
	}
	msg := tgbotapi.NewMessage(chatID, "Which monitor do you want a balance chart for?")
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	sendOrLog(bot, msg)
}

func sendBalanceChart(ctx context.Context, bot *tgbotapi.BotAPI, svc *service.MonitorService, chatID int64, monitorID string) {
	m, err := svc.Get(ctx, monitorID)
	if err != nil {
		sendOrLog(bot, tgbotapi.NewMessage(chatID, "This monitor doesn't exist anymore."))
		return
	}

	points, err := svc.BalanceHistory(ctx, monitorID, charts.MaxPoints)
	if err != nil {
		log.LogError("Failed to load balance history", zap.String("monitor_id", monitorID), zap.Error(err))
		sendOrLog(bot, tgbotapi.NewMessage(chatID, "Something went wrong, please try again later."))
		return
	}
	if len(points) == 0 {
		sendOrLog(bot, tgbotapi.NewMessage(chatID, "No balance history yet, check back after the next crawl."))
		return
	}

	path, err := charts.GenerateBalanceChart(m.Name, points)
	if err != nil {
		log.LogError("Failed to render balance chart", zap.String("monitor_id", monitorID), zap.Error(err))
		sendOrLog(bot, tgbotapi.NewMessage(chatID, "Something went wrong, please try again later."))
		return
	}
	defer os.Remove(path)

	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FilePath(path))
	photo.Caption = fmt.Sprintf("Balance history for %q (%s)", m.Name, m.Address)
	if _, err := bot.Send(photo); err != nil {
		log.LogError("Failed to send balance chart", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func sendOrLog(bot *tgbotapi.BotAPI, msg tgbotapi.MessageConfig) {
	if _, err := bot.Send(msg); err != nil {
		log.LogWarn("Failed to send message", zap.Int64("chat_id", msg.ChatID), zap.Error(err))
	}
}
