package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"kaptam/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// TelegramSender is the part of the bot API the notifier needs.
type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier posts reservation notices to admin chats.
type TelegramNotifier struct {
	bot     TelegramSender
	chatIDs []int64
	logger  *zerolog.Logger
}

// NewTelegramBot connects to the Bot API with the given token.
func NewTelegramBot(token string, debug bool) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	bot.Debug = debug
	return bot, nil
}

func NewTelegramNotifier(bot TelegramSender, chatIDs []int64, logger *zerolog.Logger) *TelegramNotifier {
	return &TelegramNotifier{bot: bot, chatIDs: chatIDs, logger: logger}
}

func (n *TelegramNotifier) Name() string { return "telegram" }

func (n *TelegramNotifier) NotifyReservation(ctx context.Context, kind string, r *models.Reservation) error {
	text := telegramText(kind, r)

	var errs []error
	for _, chatID := range n.chatIDs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		msg := tgbotapi.NewMessage(chatID, text)
		msg.DisableWebPagePreview = true
		if _, err := n.bot.Send(msg); err != nil {
			errs = append(errs, fmt.Errorf("chat %d: %w", chatID, err))
		}
	}
	return errors.Join(errs...)
}

func telegramText(kind string, r *models.Reservation) string {
	var b strings.Builder
	if kind == KindUpdated {
		b.WriteString("✏️ Reservation updated: ")
	} else {
		b.WriteString("🎮 New reservation: ")
	}
	b.WriteString(r.Code)
	b.WriteString("\n")
	fmt.Fprintf(&b, "Name: %s\n", r.Name)
	if r.Date != "" {
		fmt.Fprintf(&b, "Date: %s\n", r.Date)
	}
	fmt.Fprintf(&b, "Controller: %s\n", r.Controller)
	fmt.Fprintf(&b, "Games (%d):\n", len(r.Items))
	for _, it := range r.Items {
		fmt.Fprintf(&b, "• %s [%s]\n", it.Name, it.Type)
	}
	if r.AdditionalInfo != "" {
		fmt.Fprintf(&b, "Info: %s\n", r.AdditionalInfo)
	}
	return strings.TrimRight(b.String(), "\n")
}
