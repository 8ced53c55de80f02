package handlers

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewForgetHandler returns a handler for the /amy_forget command.
func NewForgetHandler(deps HandlerDeps) bot.HandlerFunc {
	return forgetHandler{deps}.Handle
}

// forgetHandler clears the chat's short-term buffer. Durable turns and facts
// are untouched; only conversational recency is dropped.
type forgetHandler struct {
	deps HandlerDeps
}

func (h forgetHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "forget")
	if update.Message == nil || update.Message.From == nil {
		log.ErrorContext(ctx, "Forget handler called with nil Message or From", "update_id", update.ID)
		return
	}

	chatID := update.Message.Chat.ID
	sessionID := memorySessionID(chatID)
	log.InfoContext(ctx, "Clearing session buffer", "chat_id", chatID, "session_id", sessionID)

	h.deps.Memory.ClearSession(sessionID)

	if _, err := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   h.deps.Config.Telegram.Msgs.SessionForgotten,
	}); err != nil {
		log.ErrorContext(ctx, "Failed to send confirmation", "error", err, "chat_id", chatID)
	}
}
