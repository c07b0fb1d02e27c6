// Package bot is the Telegram side of the service: it tells users about
// charges made on their behalf and answers balance and purchase commands.
package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"jobpilot-edge/internal/credits"
	"jobpilot-edge/internal/identity"
	"jobpilot-edge/internal/models"
	"jobpilot-edge/internal/payment"
	"jobpilot-edge/pkg/logger"
)

// Sender is the part of the Bot API used to reply.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type ChatResolver interface {
	ResolveTelegramChat(ctx context.Context, chatID int64) (*identity.Owner, error)
}

type Balances interface {
	Credits(ctx context.Context, userID string) (*models.UserCredits, error)
}

// Checkout starts a credit purchase. Optional.
type Checkout interface {
	Pack(key string) (payment.Pack, bool)
	Packs() []payment.Pack
	CreateCheckoutSession(userID string, pack payment.Pack) (string, string, error)
}

type Deps struct {
	Resolver ChatResolver
	Balances Balances
	Checkout Checkout
}

type TelegramBot struct {
	api    *tgbotapi.BotAPI
	sender Sender
	deps   Deps
	logger *logger.Logger

	inflight sync.WaitGroup
}

var _ credits.Notifier = (*TelegramBot)(nil)

func NewTelegramBot(token string, deps Deps, logger *logger.Logger) (*TelegramBot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	logger.Info("Authorized on Telegram", "username", api.Self.UserName)

	t := newBot(api, deps, logger)
	t.api = api
	return t, nil
}

func newBot(sender Sender, deps Deps, logger *logger.Logger) *TelegramBot {
	return &TelegramBot{sender: sender, deps: deps, logger: logger}
}

// Start begins long polling. Updates are handled until ctx is done or Stop
// is called.
func (t *TelegramBot) Start(ctx context.Context) error {
	if _, err := t.api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return fmt.Errorf("failed to delete webhook: %w", err)
	}

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := t.api.GetUpdatesChan(updateConfig)

	t.logger.Info("Started receiving Telegram updates")
	go t.handleUpdates(ctx, updates)
	return nil
}

func (t *TelegramBot) handleUpdates(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message != nil && update.Message.IsCommand() {
				t.dispatch(ctx, update.Message)
			}
		}
	}
}

func (t *TelegramBot) dispatch(ctx context.Context, message *tgbotapi.Message) {
	t.inflight.Add(1)
	go func() {
		defer t.inflight.Done()
		t.safeHandle(ctx, message)
	}()
}

func (t *TelegramBot) safeHandle(ctx context.Context, message *tgbotapi.Message) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("Recovered from panic while processing update", "error", r)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	t.handleCommand(ctx, message)
}

// Stop stops polling and waits for in-flight handlers until ctx is done.
func (t *TelegramBot) Stop(ctx context.Context) error {
	if t.api != nil {
		t.api.StopReceivingUpdates()
	}

	done := make(chan struct{})
	go func() {
		t.inflight.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// NotifyCharge tells the profile's Telegram chat about a completed charge.
// Profiles without a linked chat are skipped.
func (t *TelegramBot) NotifyCharge(_ context.Context, owner *identity.Owner, result *credits.Result) error {
	if owner.Profile == nil || owner.Profile.TelegramChatID == nil {
		return nil
	}
	chatID := *owner.Profile.TelegramChatID

	text := fmt.Sprintf("✅ %s\nCharged %s credits. Remaining balance: %s.",
		result.Description, result.Deducted.String(), result.NewBalance.String())
	if _, err := t.sender.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return fmt.Errorf("sending charge notice to chat %d: %w", chatID, err)
	}
	return nil
}
