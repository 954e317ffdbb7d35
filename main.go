package main

import (
	"os"
	"os/signal"
	"syscall"

	logger "github.com/sirupsen/logrus"

	"metasol_bot/config"
	"metasol_bot/internal/engine"
	"metasol_bot/internal/flow"
	"metasol_bot/internal/oracle"
	"metasol_bot/internal/store"
	"metasol_bot/internal/telegram"
	"metasol_bot/internal/wallet"
)

func main() {
	logger.SetFormatter(&logger.TextFormatter{FullTimestamp: true})
	logger.Info("🚀 Starting MetaSol Bot...")

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("failed to load configuration")
	}

	st, err := store.NewFileStore(cfg.DataDir)
	if err != nil {
		logger.WithError(err).Fatal("failed to open data directory")
	}

	prices := oracle.NewClient(cfg.DexscreenerURL, cfg.CoingeckoURL)
	wallets := wallet.NewManager(cfg.DefaultBalanceSol)
	flows := flow.NewMachine(st, prices, wallets)

	triggers := engine.NewTriggerEngine(st, prices, cfg.LimitSweepPeriod, cfg.DcaSweepPeriod)

	bot, err := telegram.NewBot(cfg.TelegramToken, flows, st, wallets)
	if err != nil {
		logger.WithError(err).Fatal("failed to create Telegram bot")
	}
	triggers.SetNotifier(bot)

	triggers.Start()
	go bot.Start()

	logger.Info("✅ All systems initialized")
	logger.Info("📱 Telegram bot is ready")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("🛑 Shutting down...")
	triggers.Stop()
	bot.Stop()
	logger.Info("👋 Goodbye!")
}
