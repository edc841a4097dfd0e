package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/hamza-javed/amm-settlement/internal/cache"
	"github.com/hamza-javed/amm-settlement/internal/models"
	"github.com/hamza-javed/amm-settlement/internal/storage"
)

// Tails the settlement firehose: connects to Redis, subscribes to the
// settlements channel and prints each record as it lands.
func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutting down subscriber")
		cancel()
	}()

	c, err := cache.NewRedisCache(ctx, cache.RedisConfig{Addr: redisAddr})
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to Redis")
	}
	defer c.Close()

	logger.WithField("addr", redisAddr).Info("subscriber running")

	var logRecord storage.SettlementHandler = func(rec *models.SettlementRecord) {
		logger.WithFields(logrus.Fields{
			"request_id": rec.RequestID,
			"pool":       rec.Pool,
			"pair":       rec.Pair,
			"amount_in":  rec.AmountIn,
			"amount_out": rec.AmountOut,
			"price":      rec.Price,
		}).Info("settlement")
	}

	if err := c.ConsumeSettlements(ctx, logRecord); err != nil && !errors.Is(err, context.Canceled) {
		logger.WithError(err).Fatal("consume loop failed")
	}
}
