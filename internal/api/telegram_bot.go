// Package api provides handlers for external APIs and interfaces
package api

import (
	"context"
	"fmt"

	"github.com/abelzeko/dwlr-dashboard/internal/log"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramBot handles interactions with the Telegram API
type TelegramBot struct {
	bot     *tgbotapi.BotAPI
	handler *CommandHandler
}

// NewTelegramBot creates a new Telegram bot handler
func NewTelegramBot(botToken string, handler *CommandHandler) (*TelegramBot, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	return &TelegramBot{
		bot:     bot,
		handler: handler,
	}, nil
}

// Start begins listening for and handling Telegram messages until ctx is done
func (t *TelegramBot) Start(ctx context.Context) {
	log.Infof("Authorized on Telegram account %s", t.bot.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := t.bot.GetUpdatesChan(u)
	log.Info("Bot is now listening for messages...")

	for {
		select {
		case <-ctx.Done():
			t.bot.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil {
				continue
			}

			log.Debugw("Received message",
				"user", senderName(update.Message),
				"chat", update.Message.Chat.ID,
				"text", update.Message.Text)

			go t.handleMessage(ctx, update)
		}
	}
}

// handleMessage processes a Telegram message update
func (t *TelegramBot) handleMessage(ctx context.Context, update tgbotapi.Update) {
	message := update.Message
	msg := tgbotapi.NewMessage(message.Chat.ID, "")

	switch {
	case message.IsCommand():
		log.Infow("Handling command", "command", message.Command(), "args", message.CommandArguments(), "chat", message.Chat.ID)
		msg.Text = t.handler.HandleCommand(message.Chat.ID, message.Command(), message.CommandArguments())
	default:
		msg.Text = t.handler.HandleText(ctx, message.Chat.ID, message.Text)
	}

	if _, err := t.bot.Send(msg); err != nil {
		log.Errorw("Error sending message", "chat", message.Chat.ID, "error", err)
	}
}

// senderName is empty for channel posts, which have no sender
func senderName(message *tgbotapi.Message) string {
	if message.From == nil {
		return ""
	}
	return message.From.UserName
}
