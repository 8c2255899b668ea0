package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"chess-mint-rewards/client"
	"chess-mint-rewards/logging"
	"chess-mint-rewards/models"
	"chess-mint-rewards/realtime"
)

type agentConfig struct {
	ServerURL     string
	Token         string
	DeviceID      string
	PlayerAddress string
	BridgeURL     string
	Pause         time.Duration
	LogLevel      string
	Env           string
}

func loadAgentConfig() (agentConfig, error) {
	_ = godotenv.Load()

	cfg := agentConfig{
		ServerURL:     os.Getenv("MINT_SERVER_URL"),
		Token:         os.Getenv("MINT_TOKEN"),
		DeviceID:      os.Getenv("MINT_DEVICE_ID"),
		PlayerAddress: models.NormalizeAddress(os.Getenv("MINT_PLAYER_ADDRESS")),
		BridgeURL:     os.Getenv("WALLET_BRIDGE_URL"),
		Pause:         client.DefaultPause,
		LogLevel:      os.Getenv("LOG_LEVEL"),
		Env:           os.Getenv("ENV"),
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if v := os.Getenv("MINT_PAUSE"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("MINT_PAUSE: %w", err)
		}
		cfg.Pause = d
	}

	switch {
	case cfg.ServerURL == "":
		return cfg, fmt.Errorf("MINT_SERVER_URL is required")
	case cfg.Token == "":
		return cfg, fmt.Errorf("MINT_TOKEN is required")
	case !models.ValidAddress(cfg.PlayerAddress):
		return cfg, fmt.Errorf("MINT_PLAYER_ADDRESS is not a valid address")
	case cfg.BridgeURL == "":
		return cfg, fmt.Errorf("WALLET_BRIDGE_URL is required")
	}
	return cfg, nil
}

func main() {
	cfg, err := loadAgentConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	logger, err := logging.New(logging.Config{Level: cfg.LogLevel, Env: cfg.Env})
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess, err := client.Dial(ctx, client.Config{
		ServerURL:     cfg.ServerURL,
		Token:         cfg.Token,
		DeviceID:      cfg.DeviceID,
		PlayerAddress: cfg.PlayerAddress,
	}, logger)
	if err != nil {
		logger.Fatal("connect failed", zap.Error(err))
	}
	defer sess.Close()

	sess.OnNotice = func(n realtime.MintCompletedNotice) {
		if n.Success {
			logger.Info("collectible minted",
				zap.String("reward", n.RewardName),
				zap.String("object_id", n.ObjectID),
			)
			return
		}
		logger.Warn("mint failed", zap.String("reward", n.RewardName), zap.String("error", n.ErrorMessage))
	}

	logger.Info("mint agent running",
		zap.String("server", cfg.ServerURL),
		zap.String("player_address", cfg.PlayerAddress),
	)
	if err := sess.Run(ctx, client.NewHTTPSigner(cfg.BridgeURL), client.WithPause(cfg.Pause)); err != nil {
		logger.Error("session ended", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("mint agent stopped")
}
