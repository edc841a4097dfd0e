package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hamza-javed/amm-settlement/internal/models"
	"github.com/hamza-javed/amm-settlement/internal/storage"
)

// PublishSettlement publishes a record to the settlement fanout channels:
// the firehose, the pair-specific and pool-specific channels, and the price
// feed.
func (r *RedisCache) PublishSettlement(ctx context.Context, rec *models.SettlementRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal settlement: %w", err)
	}

	channels := []string{
		channelAll,
		channelPair + rec.Pair,
		channelPool + rec.Pool,
		channelPrices,
	}

	pipe := r.client.Pipeline()
	for _, channel := range channels {
		pipe.Publish(ctx, channel, data)
	}

	_, err = pipe.Exec(ctx)
	return err
}

// SubscribeSettlements subscribes to the firehose channel and delivers records
// until the context is canceled. Malformed payloads are skipped.
func (r *RedisCache) SubscribeSettlements(ctx context.Context) (<-chan *models.SettlementRecord, error) {
	pubsub := r.client.Subscribe(ctx, channelAll)

	// Confirm the subscription before handing out the channel.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", channelAll, err)
	}

	out := make(chan *models.SettlementRecord, subscribeBufSz)
	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var rec models.SettlementRecord
				if err := json.Unmarshal([]byte(msg.Payload), &rec); err != nil {
					r.logger.WithError(err).Warn("skipping malformed settlement message")
					continue
				}
				select {
				case out <- &rec:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// ConsumeSettlements subscribes to the firehose and invokes handler for each
// record, blocking until the context is canceled or the stream closes.
func (r *RedisCache) ConsumeSettlements(ctx context.Context, handler storage.SettlementHandler) error {
	stream, err := r.SubscribeSettlements(ctx)
	if err != nil {
		return err
	}
	for rec := range stream {
		handler(rec)
	}
	return ctx.Err()
}
