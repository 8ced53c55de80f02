package handlers

import (
	"log/slog"

	"github.com/amy-assistant/amy/internal/config"
	"github.com/amy-assistant/amy/internal/gemini"
	"github.com/amy-assistant/amy/internal/memory"
)

// HandlerDeps provides dependencies for Telegram command handlers.
type HandlerDeps struct {
	Logger       *slog.Logger
	Config       *config.Config
	Memory       *memory.Manager
	GeminiClient gemini.Client
}
