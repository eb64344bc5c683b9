package main

import (
	"context"
	"log"
	"time"

	"github.com/Mejerab/Unoo-Chats-Server/internal/auth"
	"github.com/Mejerab/Unoo-Chats-Server/internal/broker"
	"github.com/Mejerab/Unoo-Chats-Server/internal/history"
	"github.com/Mejerab/Unoo-Chats-Server/internal/presence"
	"github.com/Mejerab/Unoo-Chats-Server/internal/server"
	"github.com/Mejerab/Unoo-Chats-Server/internal/storage"
	"github.com/caarlos0/env/v6"
	"go.uber.org/zap"
)

const tokenTTL = 7 * 24 * time.Hour

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("zap.NewDevelopment: %v", err)
	}
	defer logger.Sync()

	sugar := logger.Sugar()
	sugar.Info("Application is starting")

	cfg := server.EnvConfig{}
	if err := env.Parse(&cfg); err != nil {
		sugar.Fatalf("Cannot parse env config: %v", err)
	}

	storeCfg := storage.Config{}
	if err := env.Parse(&storeCfg); err != nil {
		sugar.Fatalf("Cannot parse store env config: %v", err)
	}

	ctx := context.Background()

	store, err := storage.New(ctx, sugar, storeCfg, storage.ConnectionTimeout(30*time.Second))
	if err != nil {
		sugar.Fatalf("Cannot create Store instance: %v", err)
	}

	if err := store.Migrate(ctx); err != nil {
		sugar.Fatalf("Cannot migrate schema: %v", err)
	}

	hub := broker.NewHub(sugar)
	authority := auth.New([]byte(cfg.TokenSecret), tokenTTL, cfg.Production)

	deps := server.Deps{
		Auth:     authority,
		Hub:      hub,
		History:  history.New(sugar, store, hub),
		Presence: presence.New(sugar, store, hub),
		Store:    store,
	}

	serverOpts := []server.Option{
		server.WithEnvConfig(cfg),
		server.ReadHeaderTimeout(5 * time.Second),
		server.RegisterAfterShutdown(func() {
			hub.Close()
			sugar.Info("Closing store")
			store.Close()
			sugar.Info("Store is closed")
		}),
	}

	srv, err := server.NewServer(sugar, deps, cfg.AdminKey, serverOpts...)
	if err != nil {
		sugar.Fatalf("Cannot create Server instance: %v", err)
	}

	if err := srv.Start(); err != nil {
		sugar.Fatalf("Cannot start http srv: %v", err)
	}
}
