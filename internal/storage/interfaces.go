package storage

import (
	"context"
	"io"

	"github.com/hamza-javed/amm-settlement/internal/models"
)

// SettlementCache defines the interface for caching settlement data.
type SettlementCache interface {
	// AddRecentSettlement adds a record to the recent settlements list.
	AddRecentSettlement(ctx context.Context, rec *models.SettlementRecord) error

	// UpdatePrice updates the current spot price for a pool.
	UpdatePrice(ctx context.Context, pool string, price float64) error

	// GetRecentSettlements retrieves the most recent settlement records.
	GetRecentSettlements(ctx context.Context, limit int64) ([]*models.SettlementRecord, error)

	// GetPrice retrieves the current spot price for a pool.
	GetPrice(ctx context.Context, pool string) (float64, error)

	// PublishSettlement publishes a record to the pub/sub channels.
	PublishSettlement(ctx context.Context, rec *models.SettlementRecord) error

	// Ping checks if the cache is reachable.
	Ping(ctx context.Context) error

	// Close closes the cache connection.
	io.Closer
}

// SettlementStore defines the interface for persistent settlement storage.
type SettlementStore interface {
	// InsertSettlement inserts a settlement record into the store.
	InsertSettlement(ctx context.Context, rec *models.SettlementRecord) error

	// Ping checks if the store is reachable.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	io.Closer
}

// SettlementHandler is a function that processes settlement records.
type SettlementHandler func(*models.SettlementRecord)
