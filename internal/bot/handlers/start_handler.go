package handlers

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewStartHandler returns a handler for the /start command.
func NewStartHandler(deps HandlerDeps) bot.HandlerFunc {
	return startHandler{deps}.Handle
}

// startHandler greets the user. The greeting depends on whether any turn has
// ever been persisted for them, so the check runs before anything is stored.
type startHandler struct {
	deps HandlerDeps
}

func (h startHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "start")

	if update.Message == nil || update.Message.From == nil {
		log.WarnContext(ctx, "Start handler received update with nil message or sender", "update_id", update.ID)
		return
	}

	chatID := update.Message.Chat.ID
	userID := memoryUserID(update.Message.From)
	log.InfoContext(ctx, "Handling /start command", "chat_id", chatID, "user_id", userID)

	greeting, err := h.deps.Memory.GreetingFor(ctx, userID)
	if err != nil {
		// Degrade to the new-user greeting rather than failing the command.
		log.WarnContext(ctx, "Could not determine user history, greeting as new", "error", err, "user_id", userID)
		greeting = h.deps.Config.Telegram.Msgs.GreetingNewUser
	}

	if _, err := b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: greeting}); err != nil {
		log.ErrorContext(ctx, "Failed to send greeting", "error", err, "chat_id", chatID)
	}
}
