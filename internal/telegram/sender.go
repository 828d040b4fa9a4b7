package telegram

import (
	"context"
	"errors"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Button is an inline keyboard button. Exactly one of Data and URL is set.
type Button struct {
	Text string
	Data string
	URL  string
}

type Message struct {
	ChatID int64
	Text   string
	HTML   bool
	// Keyboard rows, top to bottom.
	Keyboard [][]Button
}

// Sender delivers bot replies.
type Sender interface {
	SendMessage(ctx context.Context, m Message) error
	AnswerCallback(ctx context.Context, callbackID string) error
}

var ErrSenderUnavailable = errors.New("telegram sender unavailable")

// BotAPISender talks to the Bot API through a circuit breaker so a Telegram
// outage fails fast instead of tying up webhook handlers.
type BotAPISender struct {
	api *tgbotapi.BotAPI
	cb  *gobreaker.CircuitBreaker
}

func NewBotAPISender(api *tgbotapi.BotAPI, log *zap.Logger) *BotAPISender {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "telegram",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     20 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 5 && counts.TotalFailures*2 >= counts.Requests
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return &BotAPISender{api: api, cb: cb}
}

// NewBotAPI connects to Telegram and, when webhookURL is set, registers it
// together with the secret Telegram echoes back in every webhook call.
func NewBotAPI(token, webhookURL, secret string) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	if webhookURL != "" {
		params := tgbotapi.Params{"url": webhookURL}
		params.AddNonEmpty("secret_token", secret)
		if _, err := api.MakeRequest("setWebhook", params); err != nil {
			return nil, err
		}
	}
	return api, nil
}

func (s *BotAPISender) SendMessage(ctx context.Context, m Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.call(func() error {
		_, err := s.api.Send(toConfig(m))
		return err
	})
}

func (s *BotAPISender) AnswerCallback(ctx context.Context, callbackID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.call(func() error {
		_, err := s.api.Request(tgbotapi.NewCallback(callbackID, ""))
		return err
	})
}

func (s *BotAPISender) call(fn func() error) error {
	_, err := s.cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrSenderUnavailable
	}
	return err
}

func toConfig(m Message) tgbotapi.MessageConfig {
	cfg := tgbotapi.NewMessage(m.ChatID, m.Text)
	if m.HTML {
		cfg.ParseMode = tgbotapi.ModeHTML
	}
	if len(m.Keyboard) > 0 {
		rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(m.Keyboard))
		for _, row := range m.Keyboard {
			buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
			for _, b := range row {
				if b.URL != "" {
					buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonURL(b.Text, b.URL))
				} else {
					buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
				}
			}
			rows = append(rows, buttons)
		}
		cfg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	}
	return cfg
}
