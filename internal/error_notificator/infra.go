package error_notificator

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// maxMessageLen is Telegram's limit for a text message.
const maxMessageLen = 4096

type messageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type TelegramInfra struct {
	bot         messageSender
	adminChatID int64
}

func NewTelegramInfra(token string, adminChatID int64) (*TelegramInfra, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}
	return &TelegramInfra{bot: bot, adminChatID: adminChatID}, nil
}

func (i *TelegramInfra) Notify(_ context.Context, err error, details string) error {
	text := fmt.Sprintf(
		"❗ Ошибка в sarvam_gateway\n\nОшибка: %v\n\nДетали: %s",
		err,
		details,
	)
	if r := []rune(text); len(r) > maxMessageLen {
		text = string(r[:maxMessageLen])
	}

	msg := tgbotapi.NewMessage(i.adminChatID, text)
	if _, sendErr := i.bot.Send(msg); sendErr != nil {
		return fmt.Errorf("telegram send: %w", sendErr)
	}
	return nil
}

// NopInfra is used when no admin chat is configured.
type NopInfra struct{}

func (NopInfra) Notify(context.Context, error, string) error { return nil }
