// ====================================
// File: cmd/bot/main.go
// ====================================
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	tgbot "github.com/go-telegram/bot"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nikola43/SPLTokenDeployer/internal/blockchain"
	"github.com/nikola43/SPLTokenDeployer/internal/bot"
	"github.com/nikola43/SPLTokenDeployer/internal/config"
	"github.com/nikola43/SPLTokenDeployer/internal/content"
	"github.com/nikola43/SPLTokenDeployer/internal/registry"
	"github.com/nikola43/SPLTokenDeployer/internal/session"
	"github.com/nikola43/SPLTokenDeployer/internal/utils"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := utils.InitLogger(cfg.DebugLogging, cfg.LogFile)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("Starting token deployer bot")

	clients := make(map[int64]blockchain.Client)
	rpcClients := make([]*blockchain.RPCClient, 0, len(cfg.Networks()))
	for _, network := range cfg.Networks() {
		client := blockchain.NewRPCClient(network.Endpoint, network.WSEndpoint, logger)
		clients[network.ID] = client
		rpcClients = append(rpcClients, client)
		logger.Info("Network configured",
			zap.String("network", network.Name),
			zap.String("endpoint", network.Endpoint))
	}
	defer func() {
		for _, client := range rpcClients {
			client.Close()
		}
	}()

	service := bot.NewService(bot.Deps{
		Config:   cfg,
		Sessions: session.NewStore(cfg.DefaultNetwork().ID),
		Ledger:   registry.NewLedger(cfg.DataDir, logger),
		Content:  content.NewStore(content.StoreConfig{APIKey: cfg.StorageAPIKey}, logger),
		Msgr:     nil, // set below, the messenger needs the API handle
		Clients:  clients,
		Logger:   logger,
	})

	api, err := tgbot.New(cfg.TelegramToken, tgbot.WithDefaultHandler(bot.Dispatch(service)))
	if err != nil {
		logger.Fatal("Failed to initialize telegram bot", zap.Error(err))
	}
	service.SetMessenger(bot.NewTelegramMessenger(api, logger))

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		api.Start(ctx)
		return nil
	})

	if err := group.Wait(); err != nil {
		logger.Fatal("Bot execution error", zap.Error(err))
	}
	logger.Info("Shutdown complete")
}
