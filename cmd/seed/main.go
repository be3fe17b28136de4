package main

import (
	"context"

	"go.uber.org/zap"

	"storefront/internal/config"
	"storefront/internal/db"
	"storefront/internal/logging"
	discountrepo "storefront/internal/repository/discount"
	settingsrepo "storefront/internal/repository/settings"
	variantrepo "storefront/internal/repository/variant"
	"storefront/internal/seed"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("load config: " + err.Error())
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		panic("init logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()
	logger = logger.With(zap.String("component", "seed"))

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DBConnString)
	if err != nil {
		logger.Fatal("connect db", zap.Error(err))
	}
	defer pool.Close()

	err = seed.Apply(ctx, seed.Stores{
		Settings:  settingsrepo.NewPostgres(pool),
		Variants:  variantrepo.NewPostgres(pool, logger),
		Discounts: discountrepo.NewPostgres(pool, logger),
	}, logger)
	if err != nil {
		logger.Fatal("seed apply", zap.Error(err))
	}
}
