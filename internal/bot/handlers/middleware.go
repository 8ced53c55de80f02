// Package handlers contains Telegram bot command and message handlers,
// along with their registration logic and middleware.
package handlers

import (
	"context"
	"strconv"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// AdminOnly creates a middleware that checks whether the sender is the
// configured admin. Unauthorized senders get a refusal and the handler
// never runs.
func AdminOnly(deps HandlerDeps) tgbot.Middleware {
	return func(next tgbot.HandlerFunc) tgbot.HandlerFunc {
		return func(ctx context.Context, bot *tgbot.Bot, update *models.Update) {
			if update.Message == nil || update.Message.From == nil {
				next(ctx, bot, update)
				return
			}

			userID := update.Message.From.ID
			if userID != deps.Config.Telegram.AdminID {
				chatID := update.Message.Chat.ID
				log := deps.Logger.With("middleware", "AdminOnly")
				log.WarnContext(ctx, "Unauthorized access attempt", "user_id", userID, "chat_id", chatID)

				_, err := bot.SendMessage(ctx, &tgbot.SendMessageParams{
					ChatID: chatID,
					Text:   deps.Config.Telegram.Msgs.NotAuthorized,
				})
				if err != nil {
					log.ErrorContext(ctx, "Failed to send unauthorized message", "error", err, "chat_id", chatID)
				}
				return
			}

			next(ctx, bot, update)
		}
	}
}

// memoryUserID maps a Telegram user to the memory core's user id space.
func memoryUserID(from *models.User) string {
	return strconv.FormatInt(from.ID, 10)
}

// memorySessionID maps a Telegram chat to a session id. One chat is one
// ongoing session; /amy_forget starts conversational recency over.
func memorySessionID(chatID int64) string {
	return "tg-" + strconv.FormatInt(chatID, 10)
}
