package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/tap2go/tap2go/internal/ledger"
	"github.com/tap2go/tap2go/internal/metrics"
)

const (
	CallbackCheckBalance     = "check_balance"
	CallbackViewTransactions = "view_transactions"

	DefaultProfileURL = "https://tap2go.joshytheprogrammer.com/profile"
)

const (
	msgLinked       = "Your Telegram account has been successfully linked!"
	msgLinkFailed   = "Failed to link. Please try again through the app/website."
	msgNeedLink     = "You need to link your Tap2Go Account to your Telegram Number to continue:"
	msgNotLinked    = "User not linked. Please link your account first."
	msgNoTxs        = "No transactions found."
	msgInvalidOpt   = "Invalid option selected."
	msgStartError   = "An error occurred while processing your request. Please try again later."
	msgCallbackFail = "An error occurred. Please try again later."
)

type BotConfig struct {
	ProfileURL string
	// Location renders transaction dates.
	Location *time.Location
	Metrics  *metrics.Metrics
	Log      *zap.Logger
}

// Bot answers /start commands and inline keyboard callbacks.
type Bot struct {
	linker     *Linker
	ledger     *ledger.Service
	sender     Sender
	profileURL string
	loc        *time.Location
	metrics    *metrics.Metrics
	log        *zap.Logger
}

func NewBot(linker *Linker, svc *ledger.Service, sender Sender, cfg BotConfig) *Bot {
	b := &Bot{
		linker:     linker,
		ledger:     svc,
		sender:     sender,
		profileURL: cfg.ProfileURL,
		loc:        cfg.Location,
		metrics:    cfg.Metrics,
		log:        cfg.Log,
	}
	if b.profileURL == "" {
		b.profileURL = DefaultProfileURL
	}
	if b.loc == nil {
		b.loc = time.UTC
	}
	if b.metrics == nil {
		b.metrics = metrics.Nop()
	}
	if b.log == nil {
		b.log = zap.NewNop()
	}
	return b
}

// HandleUpdate dispatches one update. Updates that are neither /start nor a
// callback are ignored.
func (b *Bot) HandleUpdate(ctx context.Context, u tgbotapi.Update) error {
	var (
		kind string
		err  error
	)
	switch {
	case u.Message != nil && isStart(u.Message.Text):
		kind = "start"
		err = b.handleStart(ctx, u.Message)
	case u.CallbackQuery != nil:
		kind = "callback"
		err = b.handleCallback(ctx, u.CallbackQuery)
	default:
		b.metrics.BotUpdate("ignored", nil)
		return nil
	}
	b.metrics.BotUpdate(kind, err)
	return err
}

func isStart(text string) bool {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return false
	}
	return fields[0] == "/start" || strings.HasPrefix(fields[0], "/start@")
}

// startToken returns the second whitespace separated token of a /start text.
func startToken(text string) string {
	fields := strings.Fields(text)
	if len(fields) < 2 {
		return ""
	}
	return fields[1]
}

func externalID(u *tgbotapi.User) string {
	if u == nil {
		return ""
	}
	return strconv.FormatInt(u.ID, 10)
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil || msg.Chat == nil {
		return nil
	}
	chatID := msg.Chat.ID
	ext := externalID(msg.From)

	if _, ok, err := b.linker.ResolveAccount(ctx, ext); err != nil {
		return b.fail(ctx, chatID, msgStartError, err)
	} else if ok {
		return b.send(ctx, Message{
			ChatID: chatID,
			Text:   fmt.Sprintf("Welcome back, %s! What would you like to do?", msg.Chat.UserName),
			Keyboard: [][]Button{
				{{Text: "Check balance", Data: CallbackCheckBalance}},
				{{Text: "Check transaction history", Data: CallbackViewTransactions}},
			},
		})
	}

	token := startToken(msg.Text)
	if token == "" {
		return b.notLinked(ctx, chatID)
	}
	accountID, err := b.linker.LinkWithToken(ctx, token, ext)
	if err != nil {
		if ledger.KindOf(err) == ledger.KindUpstream {
			return b.fail(ctx, chatID, msgStartError, err)
		}
		b.log.Info("telegram link rejected", zap.String("external_id", ext), zap.String("reason", err.Error()))
		return b.notLinked(ctx, chatID)
	}
	b.log.Info("telegram account linked", zap.String("account_id", accountID), zap.String("external_id", ext))
	return b.send(ctx, Message{ChatID: chatID, Text: msgLinked})
}

func (b *Bot) notLinked(ctx context.Context, chatID int64) error {
	if err := b.send(ctx, Message{ChatID: chatID, Text: msgLinkFailed}); err != nil {
		return err
	}
	return b.send(ctx, Message{
		ChatID:   chatID,
		Text:     msgNeedLink,
		Keyboard: [][]Button{{{Text: "Link Profile", URL: b.profileURL}}},
	})
}

func (b *Bot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) error {
	defer func() {
		if err := b.sender.AnswerCallback(ctx, cq.ID); err != nil {
			b.log.Debug("answer callback failed", zap.Error(err))
		}
	}()
	if cq.Message == nil || cq.Message.Chat == nil {
		return nil
	}
	chatID := cq.Message.Chat.ID

	accountID, ok, err := b.linker.ResolveAccount(ctx, externalID(cq.From))
	if err != nil {
		return b.fail(ctx, chatID, msgCallbackFail, err)
	}
	if !ok {
		return b.send(ctx, Message{ChatID: chatID, Text: msgNotLinked})
	}

	switch cq.Data {
	case CallbackCheckBalance:
		balance, err := b.ledger.Balance(ctx, accountID)
		if err != nil {
			return b.fail(ctx, chatID, msgCallbackFail, err)
		}
		return b.send(ctx, Message{ChatID: chatID, Text: balanceText(balance), HTML: true})
	case CallbackViewTransactions:
		txs, err := b.ledger.Transactions(ctx, accountID)
		if err != nil {
			return b.fail(ctx, chatID, msgCallbackFail, err)
		}
		if len(txs) == 0 {
			return b.send(ctx, Message{ChatID: chatID, Text: msgNoTxs})
		}
		return b.send(ctx, Message{ChatID: chatID, Text: transactionsText(txs, b.loc), HTML: true})
	}
	return b.send(ctx, Message{ChatID: chatID, Text: msgInvalidOpt})
}

func (b *Bot) send(ctx context.Context, m Message) error {
	if err := b.sender.SendMessage(ctx, m); err != nil {
		return fmt.Errorf("send to chat %d: %w", m.ChatID, err)
	}
	return nil
}

// fail tells the chat something went wrong and returns cause for logging.
func (b *Bot) fail(ctx context.Context, chatID int64, text string, cause error) error {
	if err := b.send(ctx, Message{ChatID: chatID, Text: text}); err != nil {
		b.log.Warn("error reply not delivered", zap.Int64("chat_id", chatID), zap.Error(err))
	}
	return cause
}
