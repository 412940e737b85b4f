// Package notify delivers rendered simulation messages to the team's chat.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// ErrEmptyMessage is returned when there is nothing to send.
var ErrEmptyMessage = errors.New("message is empty")

// Sender delivers a message.
type Sender interface {
	Send(ctx context.Context, text string) error
}

// messageAPI is the part of *tgbotapi.BotAPI used here.
type messageAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramSender posts Markdown messages to one chat or channel.
type TelegramSender struct {
	api         messageAPI
	chatID      int64
	channel     string
	logger      *zap.Logger
	retryPolicy func() backoff.BackOff
}

// NewTelegramSender authenticates with token and targets chat, which is a
// numeric chat ID or an "@channel" username.
func NewTelegramSender(token, chat string, maxElapsed time.Duration, logger *zap.Logger) (*TelegramSender, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	sender, err := newTelegramSender(api, chat, logger)
	if err != nil {
		return nil, err
	}
	if maxElapsed > 0 {
		sender.retryPolicy = func() backoff.BackOff {
			policy := backoff.NewExponentialBackOff()
			policy.MaxElapsedTime = maxElapsed
			return policy
		}
	}
	return sender, nil
}

func newTelegramSender(api messageAPI, chat string, logger *zap.Logger) (*TelegramSender, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	sender := &TelegramSender{
		api:    api,
		logger: logger,
		retryPolicy: func() backoff.BackOff {
			policy := backoff.NewExponentialBackOff()
			policy.MaxElapsedTime = 30 * time.Second
			return policy
		},
	}

	chat = strings.TrimSpace(chat)
	switch {
	case strings.HasPrefix(chat, "@"):
		sender.channel = chat
	case chat != "":
		id, err := strconv.ParseInt(chat, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid telegram chat id %q: %w", chat, err)
		}
		sender.chatID = id
	default:
		return nil, errors.New("telegram chat id is empty")
	}
	return sender, nil
}

// Send posts text with Markdown parse mode, retrying transient failures.
func (s *TelegramSender) Send(ctx context.Context, text string) error {
	const operation = "notify.TelegramSender.Send"

	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}

	var msg tgbotapi.MessageConfig
	if s.channel != "" {
		msg = tgbotapi.NewMessageToChannel(s.channel, text)
	} else {
		msg = tgbotapi.NewMessage(s.chatID, text)
	}
	msg.ParseMode = tgbotapi.ModeMarkdown

	err := backoff.RetryNotify(
		func() error {
			_, err := s.api.Send(msg)
			return err
		},
		backoff.WithContext(s.retryPolicy(), ctx),
		func(err error, next time.Duration) {
			s.logger.Warn("telegram send failed, retrying",
				zap.String("op", operation),
				zap.Error(err),
				zap.Duration("next_attempt_in", next))
		},
	)
	if err != nil {
		return fmt.Errorf("%s: %w", operation, err)
	}

	s.logger.Info("message sent to telegram",
		zap.String("op", operation),
		zap.Int("length", len(text)),
	)
	return nil
}

// LogSender writes messages to the log instead of delivering them. It stands
// in when no chat is configured.
type LogSender struct {
	Logger *zap.Logger
}

func (s LogSender) Send(_ context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("telegram not configured, message logged only",
		zap.String("op", "notify.LogSender.Send"),
		zap.String("text", text),
	)
	return nil
}
