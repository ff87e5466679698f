package notifier

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"
)

// TelegramConfig configures the Telegram sink.
type TelegramConfig struct {
	Token    string
	ChatID   int64
	ThreadID int    // forum topic, 0 if none
	APIURL   string // default telebot.DefaultApiURL
	Timeout  time.Duration
}

// TelegramSink sends the plain-text rendition to a Telegram chat.
type TelegramSink struct {
	bot  *tele.Bot
	chat *tele.Chat
	opt  *tele.SendOptions
	tmpl Template
}

func NewTelegramSink(cfg TelegramConfig, tmpl Template) (*TelegramSink, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("telegram chat id is empty")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	// Offline skips getMe; this bot only sends.
	b, err := tele.NewBot(tele.Settings{
		URL:     cfg.APIURL,
		Token:   cfg.Token,
		Client:  &http.Client{Timeout: timeout},
		Offline: true,
	})
	if err != nil {
		return nil, err
	}
	return &TelegramSink{
		bot:  b,
		chat: &tele.Chat{ID: cfg.ChatID},
		opt:  &tele.SendOptions{ThreadID: cfg.ThreadID},
		tmpl: tmpl,
	}, nil
}

func (s *TelegramSink) Name() string { return "telegram" }

// Send delivers n. telebot has no context support, so cancellation is only
// observed before the call; the HTTP client timeout bounds the call itself.
func (s *TelegramSink) Send(ctx context.Context, n Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.bot.Send(s.chat, s.tmpl.FormatPlain(n), s.opt)
	return err
}
