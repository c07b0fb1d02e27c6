package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"jobpilot-edge/internal/apperror"
)

const helpText = `Commands:
/balance - show your credit balance
/buy <pack> - buy a credit pack
/help - show this message`

func (t *TelegramBot) handleCommand(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID
	command := message.Command()

	t.logger.Info("Handling command", "command", command, "chat_id", chatID)

	text := t.reply(ctx, chatID, command, strings.TrimSpace(message.CommandArguments()))
	if _, err := t.sender.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		t.logger.Error("Failed to send reply", "command", command, "chat_id", chatID, "error", err)
	}
}

func (t *TelegramBot) reply(ctx context.Context, chatID int64, command, args string) string {
	switch command {
	case "start", "help":
		return helpText
	case "balance":
		return t.balance(ctx, chatID)
	case "buy":
		return t.buy(ctx, chatID, args)
	default:
		return "Unknown command.\n\n" + helpText
	}
}

func (t *TelegramBot) balance(ctx context.Context, chatID int64) string {
	owner, err := t.deps.Resolver.ResolveTelegramChat(ctx, chatID)
	if err != nil {
		return t.lookupFailed(chatID, err)
	}

	row, err := t.deps.Balances.Credits(ctx, owner.UserID)
	if err != nil {
		t.logger.Error("Failed to read balance", "user_id", owner.UserID, "error", err)
		return "Could not read your balance right now. Please try again later."
	}

	text := fmt.Sprintf("Balance: %s credits", row.CurrentBalance.String())
	if row.AIInterviewCredits.IsPositive() {
		text += fmt.Sprintf("\nAI interview credits: %s", row.AIInterviewCredits.String())
	}
	return text
}

func (t *TelegramBot) buy(ctx context.Context, chatID int64, key string) string {
	if t.deps.Checkout == nil {
		return "Purchases are not available right now."
	}

	pack, ok := t.deps.Checkout.Pack(key)
	if !ok {
		var keys []string
		for _, p := range t.deps.Checkout.Packs() {
			keys = append(keys, fmt.Sprintf("%s (%s credits)", p.Key, p.Credits.String()))
		}
		return "Choose a pack: /buy <pack>\nAvailable: " + strings.Join(keys, ", ")
	}

	owner, err := t.deps.Resolver.ResolveTelegramChat(ctx, chatID)
	if err != nil {
		return t.lookupFailed(chatID, err)
	}

	_, url, err := t.deps.Checkout.CreateCheckoutSession(owner.UserID, pack)
	if err != nil {
		t.logger.Error("Failed to create checkout session", "user_id", owner.UserID, "pack", pack.Key, "error", err)
		return "Could not start checkout. Please try again later."
	}
	return fmt.Sprintf("Pay for %s credits here:\n%s", pack.Credits.String(), url)
}

func (t *TelegramBot) lookupFailed(chatID int64, err error) string {
	if errors.Is(err, apperror.ErrNotFound) {
		return "This chat is not linked to a JobPilot profile. Activate the bot from your profile settings first."
	}
	t.logger.Error("Failed to resolve chat", "chat_id", chatID, "error", err)
	return "Something went wrong. Please try again later."
}
