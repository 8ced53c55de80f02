package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/amy-assistant/amy/internal/database"
	apperrors "github.com/amy-assistant/amy/internal/errors"
)

const (
	aiProcessingTimeout = 2 * time.Minute
	sendMessageTimeout  = 10 * time.Second
	memoryWriteTimeout  = 5 * time.Second
)

type chatHandler struct {
	deps HandlerDeps
}

// NewChatHandler creates the default handler: every non-command message is a
// conversation turn. The message is absorbed into memory, a bounded context
// block is assembled, and the AI reply is sent and absorbed in turn.
func NewChatHandler(deps HandlerDeps) bot.HandlerFunc {
	return chatHandler{deps}.Handle
}

func (h chatHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	deps := h.deps
	log := deps.Logger.With("handler", "chat")

	msg := update.Message
	if msg == nil || msg.From == nil || strings.TrimSpace(msg.Text) == "" {
		log.DebugContext(ctx, "Ignoring update with nil message, empty text, or nil sender", "update_id", update.ID)
		return
	}
	if strings.HasPrefix(msg.Text, "/") {
		// Unrecognized commands are not conversation.
		log.DebugContext(ctx, "Ignoring unrecognized command", "chat_id", msg.Chat.ID, "text", msg.Text)
		return
	}

	chatID := msg.Chat.ID
	userID := memoryUserID(msg.From)
	sessionID := memorySessionID(chatID)

	writeCtx, cancel := context.WithTimeout(ctx, memoryWriteTimeout)
	_, err := deps.Memory.ProcessMessage(writeCtx, userID, sessionID, database.RoleUser, msg.Text, database.PlatformTelegram)
	cancel()
	if err != nil {
		if apperrors.IsValidation(err) {
			log.WarnContext(ctx, "Dropping invalid message", "error", err, "chat_id", chatID)
			return
		}
		// The turn was not persisted; answering would silently forget it.
		log.ErrorContext(ctx, "Failed to store incoming turn", "error", err, "chat_id", chatID)
		h.sendText(ctx, b, chatID, deps.Config.Telegram.Msgs.GeneralError)
		return
	}

	_, _ = b.SendChatAction(ctx, &bot.SendChatActionParams{ChatID: chatID, Action: models.ChatActionTyping})

	contextBlock := deps.Memory.ContextForQuery(ctx, userID, sessionID, msg.Text)

	aiCtx, cancel := context.WithTimeout(ctx, aiProcessingTimeout)
	reply, err := deps.GeminiClient.GenerateReply(aiCtx, contextBlock, msg.Text)
	cancel()
	if err != nil {
		log.ErrorContext(ctx, "AI generation failed", "error", err, "chat_id", chatID)
		h.sendText(ctx, b, chatID, deps.Config.Telegram.Msgs.GeneralError)
		return
	}
	if reply == "" {
		log.WarnContext(ctx, "Empty AI response received, using fallback", "chat_id", chatID)
		reply = deps.Config.Telegram.Msgs.GeneralError
	}

	if !h.sendText(ctx, b, chatID, reply) {
		return
	}

	writeCtx, cancel = context.WithTimeout(ctx, memoryWriteTimeout)
	_, err = deps.Memory.ProcessMessage(writeCtx, userID, sessionID, database.RoleAssistant, reply, database.PlatformTelegram)
	cancel()
	if err != nil {
		// The user already has the reply; only recall of it is lost.
		log.ErrorContext(ctx, "Failed to store assistant turn", "error", err, "chat_id", chatID)
	}
}

func (h chatHandler) sendText(ctx context.Context, b *bot.Bot, chatID int64, text string) bool {
	log := h.deps.Logger.With("handler", "chat")

	sendCtx, cancel := context.WithTimeout(ctx, sendMessageTimeout)
	defer cancel()

	if _, err := b.SendMessage(sendCtx, &bot.SendMessageParams{ChatID: chatID, Text: text}); err != nil {
		log.ErrorContext(ctx, "Failed to send message", "error", err, "chat_id", chatID)
		return false
	}
	return true
}
