// Copyright 2024-2026 Aiku AI

// Command pipebridge relays group chat messages between platform chats
// linked by pipes. Each configured platform account runs as one adapter
// bot; the pipe routing table decides which chats mirror which.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/rs/zerolog"
	"go.mau.fi/util/exzerolog"

	"github.com/aiku/pipebridge/pkg/adapters/discord"
	"github.com/aiku/pipebridge/pkg/adapters/matrix"
	"github.com/aiku/pipebridge/pkg/adapters/mattermost"
	"github.com/aiku/pipebridge/pkg/adapters/onebot"
	"github.com/aiku/pipebridge/pkg/adapters/telegram"
	"github.com/aiku/pipebridge/pkg/bridge"
	"github.com/aiku/pipebridge/pkg/bridge/database"
)

// These are filled at build time with -ldflags.
var (
	Tag       = "unknown"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the config file")
	showVersion := flag.Bool("version", false, "print the version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("pipebridge %s (%s) built at %s\n", Tag, Commit, BuildTime)
		return
	}

	cfg, err := bridge.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := setupLogging(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up logging: %v\n", err)
		os.Exit(1)
	}
	log.Info().Str("version", Tag).Str("commit", Commit).Msg("Starting pipebridge")

	ctx, cancel := signal.NotifyContext(log.WithContext(context.Background()), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	db, err := database.NewWithDialect(cfg.Database.URI, cfg.Database.Type, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer db.Close()
	if err := db.Upgrade(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to upgrade database schema")
	}

	pipeline := bridge.NewPipeline(db, log)
	for _, pipe := range cfg.Pipes {
		if err := db.Pipe.Create(ctx, pipe.Listen, pipe.Target); err != nil {
			log.Fatal().Err(err).Msg("Failed to seed pipe from config")
		}
	}

	var wg sync.WaitGroup
	start := func(name string, bot bridge.Bot, run func(context.Context) error) {
		pipeline.RegisterBot(bot)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := run(ctx); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Str("adapter", name).Msg("Adapter stopped with error")
				cancel()
			}
		}()
	}

	if cfg.OneBot.URL != "" {
		bot := onebot.NewBot(cfg.OneBot, pipeline, log)
		defer bot.Stop()
		start(onebot.AdapterName, bot, bot.Start)
	}
	if cfg.Telegram.Token != "" {
		bot, err := telegram.NewBot(cfg.Telegram, pipeline, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create Telegram bot")
		}
		start(telegram.AdapterName, bot, bot.Start)
	}
	if cfg.Discord.Token != "" {
		bot, err := discord.NewBot(cfg.Discord, pipeline, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create Discord bot")
		}
		start(discord.AdapterName, bot, bot.Start)
	}
	if cfg.Mattermost.ServerURL != "" {
		bot := mattermost.NewBot(cfg.Mattermost, pipeline, log)
		defer bot.Stop()
		start(mattermost.AdapterName, bot, bot.Start)
	}
	if cfg.Matrix.HomeserverURL != "" {
		bot, err := matrix.NewBot(cfg.Matrix, pipeline, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create Matrix bot")
		}
		start(matrix.AdapterName, bot, bot.Start)
	}

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	wg.Wait()
}

func setupLogging(cfg bridge.LoggingConfig) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
		With().Timestamp().Logger().Level(level)
	exzerolog.SetupDefaults(&log)
	return log, nil
}
