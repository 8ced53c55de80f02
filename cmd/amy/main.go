// Package main contains the entrypoint for the Amy assistant.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbot "github.com/go-telegram/bot"

	"github.com/amy-assistant/amy/internal/bot"
	"github.com/amy-assistant/amy/internal/bot/handlers"
	"github.com/amy-assistant/amy/internal/bot/tasks"
	"github.com/amy-assistant/amy/internal/config"
	"github.com/amy-assistant/amy/internal/database"
	"github.com/amy-assistant/amy/internal/gemini"
	"github.com/amy-assistant/amy/internal/logger"
	"github.com/amy-assistant/amy/internal/memory"
	"github.com/amy-assistant/amy/internal/telegram"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop()
	os.Exit(exitCode)
}

// run initializes and starts all application components, handles graceful
// shutdown, and returns an exit code.
func run(ctx context.Context) int {
	configPath := flag.String("config", "./config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Format == "json")
	slog.SetDefault(log)
	log.Info("Logger initialized", "level", cfg.Log.Level, "format", cfg.Log.Format)

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Error("Failed to connect to database", "path", cfg.Database.Path, "error", err)
		return 1
	}
	defer database.CloseDB(db)
	store := database.NewStore(db, log)

	gemClient, err := gemini.NewClient(ctx, cfg.Gemini, log)
	if err != nil {
		log.Error("Failed to initialize Gemini client", "error", err)
		return 1
	}

	var extractor memory.Extractor
	switch cfg.Memory.Extractor {
	case "gemini":
		extractor = memory.NewLLMExtractor(gemClient, log)
	default:
		extractor = memory.NewRuleExtractor()
	}
	log.Info("Fact extractor selected", "extractor", cfg.Memory.Extractor)

	mem := memory.NewManager(
		store,
		memory.NewBuffer(cfg.Memory.BufferCapacity),
		memory.NewFacts(store, cfg.Memory.SimilarityThreshold, cfg.Memory.MinRelevance, log),
		extractor,
		memory.NewSessionTracker(store, cfg.Telegram.Msgs.GreetingNewUser, cfg.Telegram.Msgs.GreetingReturningUser, log),
		memory.NewContextBuilder(cfg.Memory.ContextMaxChars, cfg.Memory.ContextRecentTurns, cfg.Memory.ContextFactLimit),
		log,
	)

	hDeps := handlers.HandlerDeps{
		Logger:       log,
		Config:       cfg,
		Memory:       mem,
		GeminiClient: gemClient,
	}
	tDeps := tasks.TaskDeps{
		Logger: log,
		Store:  store,
		Memory: mem,
		Config: cfg,
	}

	botOpts := []tgbot.Option{
		tgbot.WithMiddlewares(logger.Middleware(log)),
		tgbot.WithDefaultHandler(handlers.NewChatHandler(hDeps)),
	}
	tg, err := telegram.NewTelegramBot(cfg.Telegram.Token, log, botOpts...)
	if err != nil {
		log.Error("Failed to create Telegram bot", "error", err)
		return 1
	}

	cmdHandlers := handlers.RegisterAllCommands(hDeps)
	if err := telegram.RegisterHandlers(tg, log, cmdHandlers); err != nil {
		log.Error("Failed to register Telegram handlers", "error", err)
		return 1
	}

	sched, err := bot.NewScheduler(log, &cfg.Scheduler, tasks.RegisterAllTasks(tDeps))
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return 1
	}
	app := bot.NewBot(log, cfg, mem, tg, sched)

	log.Info("Starting bot...")
	runErr := app.Run(ctx)
	log.Info("Bot run loop finished. Initiating shutdown...")

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Bot stopped due to error", "error", runErr)
		time.Sleep(time.Second)
		return 1
	}

	log.Info("Bot stopped gracefully.")
	time.Sleep(time.Second)
	return 0
}
