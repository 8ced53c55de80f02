// Package tasks implements scheduled background tasks: database maintenance
// and the fact deduplication sweep.
package tasks

import (
	"log/slog"

	"github.com/amy-assistant/amy/internal/config"
	"github.com/amy-assistant/amy/internal/database"
	"github.com/amy-assistant/amy/internal/memory"
)

// TaskDeps contains all dependencies required by scheduled tasks.
type TaskDeps struct {
	Logger *slog.Logger
	Store  database.Store
	Memory *memory.Manager
	Config *config.Config
}
