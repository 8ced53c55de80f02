package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewDedupHandler returns a handler for the /amy_dedup command.
func NewDedupHandler(deps HandlerDeps) bot.HandlerFunc {
	return dedupHandler{deps}.Handle
}

// dedupHandler runs the fact deduplication sweep on demand. The same sweep
// also runs on the scheduler; the command exists for immediate cleanup.
type dedupHandler struct {
	deps HandlerDeps
}

func (h dedupHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "dedup")
	if update.Message == nil || update.Message.From == nil {
		log.ErrorContext(ctx, "Dedup handler called with nil Message or From", "update_id", update.ID)
		return
	}

	chatID := update.Message.Chat.ID
	log.InfoContext(ctx, "Admin requested fact dedup sweep", "chat_id", chatID)

	timeoutCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	removed, err := h.deps.Memory.DeduplicateAllUsers(timeoutCtx)
	if err != nil {
		log.ErrorContext(ctx, "Fact dedup sweep failed", "error", err, "chat_id", chatID)
		if _, sendErr := b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: chatID,
			Text:   h.deps.Config.Telegram.Msgs.GeneralError,
		}); sendErr != nil {
			log.ErrorContext(ctx, "Failed to send error message", "error", sendErr, "chat_id", chatID)
		}
		return
	}

	text := fmt.Sprintf("Deduplication removed %d fact(s).", removed)
	if _, err := b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: text}); err != nil {
		log.ErrorContext(ctx, "Failed to send dedup result", "error", err, "chat_id", chatID)
	}
}
