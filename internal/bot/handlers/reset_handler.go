package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewResetHandler returns a handler for the /amy_reset command.
func NewResetHandler(deps HandlerDeps) bot.HandlerFunc {
	return resetHandler{deps}.Handle
}

type resetHandler struct {
	deps HandlerDeps
}

func (h resetHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "reset")
	if update.Message == nil || update.Message.From == nil {
		log.ErrorContext(ctx, "Reset handler called with nil Message or From", "update_id", update.ID)
		return
	}

	chatID := update.Message.Chat.ID
	log.InfoContext(ctx, "Admin requested memory reset", "chat_id", chatID, "user_id", update.Message.From.ID)

	timeoutCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	err := h.deps.Memory.Reset(timeoutCtx)

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		log.WarnContext(ctx, "Reset operation timed out or was cancelled", "chat_id", chatID)
		h.send(ctx, b, chatID, h.deps.Config.Telegram.Msgs.GeneralError)
		return
	}
	if err != nil {
		log.ErrorContext(ctx, "Failed to reset memory", "error", err, "chat_id", chatID)
		h.send(ctx, b, chatID, h.deps.Config.Telegram.Msgs.GeneralError)
		return
	}

	log.InfoContext(ctx, "Successfully reset all memory", "chat_id", chatID)
	h.send(ctx, b, chatID, h.deps.Config.Telegram.Msgs.MemoryReset)
}

func (h resetHandler) send(ctx context.Context, b *bot.Bot, chatID int64, text string) {
	if _, err := b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: text}); err != nil {
		h.deps.Logger.With("handler", "reset").ErrorContext(ctx, "Failed to send message", "error", err, "chat_id", chatID)
	}
}
