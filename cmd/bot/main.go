package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/wardenhq/warden/internal/bot"
	"github.com/wardenhq/warden/internal/ledger"
	"github.com/wardenhq/warden/internal/setup"
)

const (
	// BotLogDir specifies where bot log files are stored.
	BotLogDir = "logs/bot_logs"
)

func main() {
	// Initialize application with required dependencies
	app, err := setup.InitializeApp(BotLogDir)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}
	defer app.Cleanup()

	// Build the abuse ledger with configured thresholds, falling back to
	// defaults for anything unset
	ledgerCfg := ledger.DefaultConfig()
	if t := app.Config.Thresholds.Score; t > 0 {
		ledgerCfg.ScoreThreshold = t
	}

	if t := app.Config.Thresholds.EntityScore; t > 0 {
		ledgerCfg.EntityScoreThreshold = t
	}

	if t := app.Config.Thresholds.UserMessages; t > 0 {
		ledgerCfg.UserMessageThreshold = t
	}

	if t := app.Config.Thresholds.Keyword; t > 0 {
		ledgerCfg.KeywordThreshold = t
	}

	abuseLedger := ledger.New(ledgerCfg, app.Logger)

	// Create bot instance
	discordBot, err := bot.New(
		app.Config.Discord.Token,
		app.Config.Discord.ChannelSuffix,
		abuseLedger,
		app.Scorer,
		app.Extractor,
		app.Logger,
	)
	if err != nil {
		log.Printf("Failed to create bot: %v", err)
		return
	}

	// Start the bot and connect to Discord
	if err := discordBot.Start(context.Background()); err != nil {
		log.Printf("Failed to start bot: %v", err)
		return
	}

	log.Println("Bot has been started. Waiting for interrupt signal to gracefully shutdown...")

	// Wait for interrupt signal to gracefully shutdown the bot
	// This ensures all pending events are processed before closing
	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-sc

	// Cleanly close down the Discord session
	discordBot.Close()
}
