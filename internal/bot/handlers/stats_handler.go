package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/amy-assistant/amy/internal/database"
)

// NewStatsHandler returns a handler for the /amy_stats command.
func NewStatsHandler(deps HandlerDeps) bot.HandlerFunc {
	return statsHandler{deps}.Handle
}

type statsHandler struct {
	deps HandlerDeps
}

func (h statsHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "stats")
	if update.Message == nil || update.Message.From == nil {
		log.ErrorContext(ctx, "Stats handler called with nil Message or From", "update_id", update.ID)
		return
	}

	chatID := update.Message.Chat.ID
	log.InfoContext(ctx, "Admin requested memory stats", "chat_id", chatID)

	stats, err := h.deps.Memory.Stats(ctx)
	if err != nil {
		log.ErrorContext(ctx, "Failed to collect memory stats", "error", err, "chat_id", chatID)
		if _, sendErr := b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: chatID,
			Text:   h.deps.Config.Telegram.Msgs.GeneralError,
		}); sendErr != nil {
			log.ErrorContext(ctx, "Failed to send error message", "error", sendErr, "chat_id", chatID)
		}
		return
	}

	var sb strings.Builder
	sb.WriteString("Memory stats\n")
	fmt.Fprintf(&sb, "Turns: %d\n", stats.Store.TotalTurns)
	fmt.Fprintf(&sb, "Sessions: %d (%d active)\n", stats.Store.TotalSessions, stats.ActiveSessions)
	fmt.Fprintf(&sb, "Users: %d\n", stats.Store.TotalUsers)
	sb.WriteString("Facts:\n")
	for _, category := range database.Categories() {
		fmt.Fprintf(&sb, "  %s: %d\n", category, stats.Store.FactsByCategory[category])
	}

	if _, err := b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: sb.String()}); err != nil {
		log.ErrorContext(ctx, "Failed to send stats message", "error", err, "chat_id", chatID)
	}
}
