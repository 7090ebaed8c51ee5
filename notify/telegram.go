package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type TelegramOptions struct {
	Token  string `json:"-" yaml:"-"`
	ChatID int64  `json:"chat_id" yaml:"chat_id"`
	// Endpoint is a format string taking the token and method, as accepted
	// by tgbotapi. Empty means the public Bot API.
	Endpoint string `json:"endpoint" yaml:"endpoint"`
}

// Telegram posts notifications to one chat.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegram authenticates the bot (getMe) before returning.
func NewTelegram(opts TelegramOptions) (*Telegram, error) {
	if opts.Token == "" {
		return nil, fmt.Errorf("telegram token is required")
	}
	if opts.ChatID == 0 {
		return nil, fmt.Errorf("telegram chat_id is required")
	}
	endpoint := opts.Endpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	bot, err := tgbotapi.NewBotAPIWithAPIEndpoint(opts.Token, endpoint)
	if err != nil {
		return nil, fmt.Errorf("telegram login: %w", err)
	}
	return &Telegram{bot: bot, chatID: opts.ChatID}, nil
}

func (t *Telegram) Notify(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := t.bot.Send(tgbotapi.NewMessage(t.chatID, text)); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}
