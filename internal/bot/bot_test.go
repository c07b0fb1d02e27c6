package bot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobpilot-edge/internal/credits"
	"jobpilot-edge/internal/identity"
	"jobpilot-edge/internal/models"
	"jobpilot-edge/internal/payment"
	"jobpilot-edge/internal/testutil"
	"jobpilot-edge/pkg/logger"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []tgbotapi.MessageConfig
	err  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return tgbotapi.Message{}, f.err
	}
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, m)
	}
	return tgbotapi.Message{}, nil
}

type fakeCheckout struct {
	userID string
}

func (f *fakeCheckout) Pack(key string) (payment.Pack, bool) {
	if key != "starter" {
		return payment.Pack{}, false
	}
	return payment.Pack{Key: "starter", PriceID: "price_1", Credits: decimal.NewFromInt(25)}, true
}

func (f *fakeCheckout) Packs() []payment.Pack {
	p, _ := f.Pack("starter")
	return []payment.Pack{p}
}

func (f *fakeCheckout) CreateCheckoutSession(userID string, pack payment.Pack) (string, string, error) {
	f.userID = userID
	return "cs_1", "https://checkout.example/cs_1", nil
}

func chat(id int64) *int64 { return &id }

func setup(t *testing.T) (*TelegramBot, *fakeSender, *testutil.MemStore, *fakeCheckout) {
	t.Helper()
	store := testutil.NewMemStore()
	store.AddProfile(models.UserProfile{ID: "p1", UserID: "u1", TelegramChatID: chat(42)})
	store.SetCredits(models.UserCredits{
		UserID:             "u1",
		CurrentBalance:     decimal.RequireFromString("7.5"),
		AIInterviewCredits: decimal.NewFromInt(2),
	})

	sender := &fakeSender{}
	checkout := &fakeCheckout{}
	b := newBot(sender, Deps{
		Resolver: identity.NewResolver(store),
		Balances: store,
		Checkout: checkout,
	}, logger.NewNop())
	return b, sender, store, checkout
}

func TestBalanceCommand(t *testing.T) {
	b, _, _, _ := setup(t)

	text := b.reply(context.Background(), 42, "balance", "")
	assert.Contains(t, text, "7.5")
	assert.Contains(t, text, "AI interview credits: 2")
}

func TestBalanceForUnlinkedChat(t *testing.T) {
	b, _, _, _ := setup(t)

	text := b.reply(context.Background(), 99, "balance", "")
	assert.Contains(t, text, "not linked")
}

func TestBuyCommand(t *testing.T) {
	b, _, _, checkout := setup(t)

	text := b.reply(context.Background(), 42, "buy", "starter")
	assert.Contains(t, text, "https://checkout.example/cs_1")
	assert.Equal(t, "u1", checkout.userID)

	text = b.reply(context.Background(), 42, "buy", "")
	assert.Contains(t, text, "starter (25 credits)")
}

func TestBuyWithoutCheckout(t *testing.T) {
	b, _, _, _ := setup(t)
	b.deps.Checkout = nil

	assert.Contains(t, b.reply(context.Background(), 42, "buy", "starter"), "not available")
}

func TestUnknownCommandShowsHelp(t *testing.T) {
	b, _, _, _ := setup(t)
	assert.Contains(t, b.reply(context.Background(), 42, "dance", ""), "/balance")
}

func TestNotifyCharge(t *testing.T) {
	b, sender, _, _ := setup(t)
	owner := &identity.Owner{UserID: "u1", Profile: &models.UserProfile{ID: "p1", TelegramChatID: chat(42)}}

	err := b.NotifyCharge(context.Background(), owner, &credits.Result{
		Description: "Interview prep",
		Deducted:    decimal.NewFromInt(6),
		NewBalance:  decimal.RequireFromString("1.5"),
	})
	require.NoError(t, err)

	require.Len(t, sender.sent, 1)
	assert.Equal(t, int64(42), sender.sent[0].ChatID)
	assert.Contains(t, sender.sent[0].Text, "Charged 6 credits")
	assert.Contains(t, sender.sent[0].Text, "1.5")
}

func TestNotifyChargeWithoutChat(t *testing.T) {
	b, sender, _, _ := setup(t)
	owner := &identity.Owner{UserID: "u1", Profile: &models.UserProfile{ID: "p1"}}

	require.NoError(t, b.NotifyCharge(context.Background(), owner, &credits.Result{}))
	assert.Empty(t, sender.sent)
}

func TestNotifyChargeSendFailure(t *testing.T) {
	b, sender, _, _ := setup(t)
	sender.err = errors.New("chat blocked the bot")
	owner := &identity.Owner{UserID: "u1", Profile: &models.UserProfile{ID: "p1", TelegramChatID: chat(42)}}

	assert.Error(t, b.NotifyCharge(context.Background(), owner, &credits.Result{}))
}

type gatedSender struct {
	gate chan struct{}
	sent chan string
}

func (g *gatedSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	<-g.gate
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		g.sent <- m.Text
	}
	return tgbotapi.Message{}, nil
}

func command(chatID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Chat:     &tgbotapi.Chat{ID: chatID},
		Text:     text,
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(text)}},
	}}
}

func TestStopWaitsForInflightCommands(t *testing.T) {
	b, _, _, _ := setup(t)
	sender := &gatedSender{gate: make(chan struct{}), sent: make(chan string, 1)}
	b.sender = sender

	updates := make(chan tgbotapi.Update, 1)
	updates <- command(42, "/help")
	close(updates)
	b.handleUpdates(context.Background(), updates)

	short, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, b.Stop(short), context.DeadlineExceeded)

	close(sender.gate)
	require.NoError(t, b.Stop(context.Background()))

	select {
	case text := <-sender.sent:
		assert.Contains(t, text, "/balance")
	default:
		t.Fatal("reply was not sent before Stop returned")
	}
}
