package notify

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramSender delivers notifications via the Telegram Bot API.
type TelegramSender struct {
	bot        *tgbotapi.BotAPI
	chatID     int64
	maxRetries int
	retryDelay time.Duration
}

// TelegramConfig configures a TelegramSender. APIEndpoint defaults to the
// public Bot API.
type TelegramConfig struct {
	Token       string
	ChatID      string
	APIEndpoint string
	MaxRetries  int
	RetryDelay  time.Duration
}

// NewTelegramSender authenticates the bot and returns a sender for the chat.
func NewTelegramSender(cfg TelegramConfig) (*TelegramSender, error) {
	chatID, err := strconv.ParseInt(cfg.ChatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("telegram: invalid chat id %q: %w", cfg.ChatID, err)
	}
	endpoint := cfg.APIEndpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	bot, err := tgbotapi.NewBotAPIWithClient(cfg.Token, endpoint, &http.Client{Timeout: 10 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("telegram: create bot: %w", err)
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	return &TelegramSender{
		bot:        bot,
		chatID:     chatID,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
	}, nil
}

// Send posts a MarkdownV2 message with a bold title, retrying with a linear
// delay.
func (t *TelegramSender) Send(ctx context.Context, title, message string) error {
	text := fmt.Sprintf("*%s*\n%s",
		tgbotapi.EscapeText(tgbotapi.ModeMarkdownV2, title),
		tgbotapi.EscapeText(tgbotapi.ModeMarkdownV2, message),
	)
	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdownV2

	var lastErr error
	for i := 0; i < t.maxRetries; i++ {
		_, err := t.bot.Send(msg)
		if err == nil {
			return nil
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return fmt.Errorf("telegram: send: %w", ctx.Err())
		case <-time.After(t.retryDelay * time.Duration(i+1)):
		}
	}
	return fmt.Errorf("telegram: send failed after %d attempts: %w", t.maxRetries, lastErr)
}

// Name returns the sender identifier.
func (t *TelegramSender) Name() string {
	return "telegram"
}
