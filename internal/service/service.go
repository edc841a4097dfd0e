// Package service wires the ledger, pool registry, request guard and
// settlement adapter into one orchestrator behind the HTTP API and CLI.
package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hamza-javed/amm-settlement/internal/cache"
	"github.com/hamza-javed/amm-settlement/internal/engine"
	"github.com/hamza-javed/amm-settlement/internal/models"
	"github.com/hamza-javed/amm-settlement/internal/registry"
	"github.com/hamza-javed/amm-settlement/internal/settlement"
	"github.com/hamza-javed/amm-settlement/internal/storage"
	"github.com/hamza-javed/amm-settlement/internal/token"
)

const defaultSlippageBps uint16 = 100

// ErrGuardRejected is returned when a request fails the guard checks before
// reaching the engine.
var ErrGuardRejected = errors.New("guard rejected request")

// Config holds configuration for the settlement service.
type Config struct {
	// Pool configuration
	PoolConfigPath string

	// Storage (both optional; empty disables)
	RedisAddr          string
	ClickHouseAddr     string
	ClickHouseDatabase string
	ClickHouseUsername string
	ClickHousePassword string

	// Request guard
	GuardConfig settlement.GuardConfig

	Logger *logrus.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		PoolConfigPath: "configs/pools.json",
		GuardConfig:    settlement.DefaultGuardConfig(),
	}
}

// Service is the main orchestrator for settlement operations.
type Service struct {
	ledger   *token.Ledger
	registry *registry.Registry
	adapter  *settlement.Adapter
	guard    *settlement.Guard

	cache storage.SettlementCache
	store storage.SettlementStore

	logger *logrus.Logger
}

// NewService creates a service with all dependencies.
func NewService(cfg Config) (*Service, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.New()
	}

	ledger := token.NewLedger()

	reg, err := registry.Load(cfg.PoolConfigPath, ledger)
	if err != nil {
		return nil, fmt.Errorf("failed to load pool registry: %w", err)
	}

	adapter := settlement.NewAdapter(token.NewAddress("settlement-adapter"), ledger)
	guard := settlement.NewGuard(cfg.GuardConfig)

	var settlementCache storage.SettlementCache
	if cfg.RedisAddr != "" {
		rc, err := cache.NewRedisCache(context.Background(), cache.RedisConfig{Addr: cfg.RedisAddr})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		settlementCache = rc
	}

	var settlementStore storage.SettlementStore
	if cfg.ClickHouseAddr != "" {
		ch, err := cache.NewClickHouseStore(context.Background(), cache.ClickHouseConfig{
			Addr:     cfg.ClickHouseAddr,
			Database: cfg.ClickHouseDatabase,
			Username: cfg.ClickHouseUsername,
			Password: cfg.ClickHousePassword,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
		}
		settlementStore = ch
	}

	return &Service{
		ledger:   ledger,
		registry: reg,
		adapter:  adapter,
		guard:    guard,
		cache:    settlementCache,
		store:    settlementStore,
		logger:   logger,
	}, nil
}

// NewServiceFromEnv creates a service using environment variables.
func NewServiceFromEnv(logger *logrus.Logger) (*Service, error) {
	cfg := DefaultConfig()
	cfg.Logger = logger

	if v := os.Getenv("POOL_CONFIG_PATH"); v != "" {
		cfg.PoolConfigPath = v
	}
	cfg.RedisAddr = os.Getenv("REDIS_ADDR")
	cfg.ClickHouseAddr = os.Getenv("CLICKHOUSE_ADDR")
	cfg.ClickHouseDatabase = os.Getenv("CLICKHOUSE_DATABASE")
	cfg.ClickHouseUsername = os.Getenv("CLICKHOUSE_USERNAME")
	cfg.ClickHousePassword = os.Getenv("CLICKHOUSE_PASSWORD")

	if v := os.Getenv("GUARD_MAX_AMOUNT"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.GuardConfig.MaxAmountPerSwap = n
		}
	}
	if v := os.Getenv("GUARD_DAILY_LIMIT"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.GuardConfig.DailyLimit = n
		}
	}
	if v := os.Getenv("GUARD_ALLOWED_ASSETS"); v != "" {
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				cfg.GuardConfig.AllowedAssets = append(cfg.GuardConfig.AllowedAssets, s)
			}
		}
	}

	return NewService(cfg)
}

// Ledger exposes the owned token ledger, primarily so entrypoints and tests
// can fund payers and grant allowances.
func (s *Service) Ledger() *token.Ledger {
	return s.ledger
}

// Adapter exposes the settlement adapter (for its allowance address).
func (s *Service) Adapter() *settlement.Adapter {
	return s.adapter
}

// Registry exposes the pool registry.
func (s *Service) Registry() *registry.Registry {
	return s.registry
}

// validateRequest checks the request shape before any resolution.
func (s *Service) validateRequest(req *SwapRequest) error {
	if req == nil {
		return fmt.Errorf("request is nil")
	}
	if req.AssetIn == "" || req.AssetOut == "" {
		return fmt.Errorf("asset_in and asset_out are required")
	}
	if req.AssetIn == req.AssetOut {
		return fmt.Errorf("asset_in and asset_out must differ")
	}
	if req.Amount == 0 {
		return fmt.Errorf("amount must be non-zero")
	}
	return nil
}

// resolvePool finds the pool for a request and the swap direction.
func (s *Service) resolvePool(req *SwapRequest) (*registry.Entry, bool, error) {
	var entry *registry.Entry
	var err error
	if req.Pool != "" {
		entry, err = s.registry.FindByName(req.Pool)
	} else {
		entry, err = s.registry.FindByAssets(req.AssetIn, req.AssetOut)
	}
	if err != nil {
		return nil, false, err
	}

	switch req.AssetIn {
	case entry.Asset0:
		return entry, true, nil
	case entry.Asset1:
		return entry, false, nil
	default:
		return nil, false, fmt.Errorf("pool %s does not trade %s", entry.Pool.Name(), req.AssetIn)
	}
}

// Quote prices a request against current reserves without executing it.
func (s *Service) Quote(ctx context.Context, req *SwapRequest) (*QuoteResult, error) {
	if err := s.validateRequest(req); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	entry, zeroForOne, err := s.resolvePool(req)
	if err != nil {
		return nil, err
	}
	pool := entry.Pool

	reserve0, reserve1 := pool.Reserves()
	reserveIn, reserveOut := reserve0, reserve1
	if !zeroForOne {
		reserveIn, reserveOut = reserve1, reserve0
	}
	feeNum, feeDen := pool.Fee()

	var amountIn, amountOut uint64
	var priceImpact float64
	if req.Amount > 0 {
		amountIn = uint64(req.Amount)
		amountOut, priceImpact, err = engine.CalculateSwapOutput(amountIn, reserveIn, reserveOut, feeNum, feeDen)
	} else {
		amountOut = uint64(-req.Amount)
		amountIn, err = engine.CalculateSwapInput(amountOut, reserveIn, reserveOut, feeNum, feeDen)
	}
	if err != nil {
		return nil, err
	}

	return &QuoteResult{
		Pool:          pool.Name(),
		AmountIn:      amountIn,
		AmountOut:     amountOut,
		MinAmountOut:  engine.ApplySlippage(amountOut, defaultSlippageBps),
		PriceImpact:   priceImpact,
		FeeBps:        engine.CalculateFeeBps(feeNum, feeDen),
		ReserveIn:     reserveIn,
		ReserveOut:    reserveOut,
		ExecutionRate: float64(amountOut) / float64(amountIn),
		QuotedAt:      time.Now(),
	}, nil
}

// ExecuteSwap runs a request end to end: guard check, engine swap with inline
// settlement, then best-effort recording to Redis and ClickHouse.
func (s *Service) ExecuteSwap(ctx context.Context, req *SwapRequest) (*SwapResult, error) {
	start := time.Now()

	if err := s.validateRequest(req); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	payer, err := token.AddressFromBase58(req.Payer)
	if err != nil {
		return nil, fmt.Errorf("invalid payer: %w", err)
	}

	entry, zeroForOne, err := s.resolvePool(req)
	if err != nil {
		return nil, err
	}
	pool := entry.Pool

	amount := req.Amount
	abs := uint64(amount)
	if amount < 0 {
		abs = uint64(-amount)
	}

	if check := s.guard.CheckRequest(entry.Asset0, entry.Asset1, abs); !check.Allowed {
		return nil, fmt.Errorf("%w: %s", ErrGuardRejected, check.Reason)
	}

	res, err := s.adapter.GetSwapResult(ctx, pool, zeroForOne, amount, req.PriceLimit, payer)
	if err != nil {
		s.recordFailure(ctx, req, entry, err)
		return nil, err
	}

	rec := buildRecord(res, req, entry, zeroForOne)
	s.record(ctx, rec, pool.Name(), res.Price)
	s.guard.RecordRequest(abs)

	s.logger.WithFields(logrus.Fields{
		"request_id": res.RequestID,
		"pool":       pool.Name(),
		"delta0":     res.Delta0,
		"delta1":     res.Delta1,
		"price":      res.Price,
	}).Info("swap settled")

	return &SwapResult{
		RequestID: res.RequestID,
		Pool:      pool.Name(),
		Pair:      rec.Pair,
		Delta0:    res.Delta0,
		Delta1:    res.Delta1,
		Price:     res.Price,
		Duration:  time.Since(start),
		Record:    rec,
	}, nil
}

// FundAccount mints units of a configured asset to a payer and, when approve
// is set, grants the settlement adapter an allowance of the same size. This
// is the dev-mode faucet behind the funding endpoint; the ledger is
// in-process, so accounts have to be funded somewhere.
func (s *Service) FundAccount(payerB58, asset string, amount uint64, approve bool) (balance, allowance uint64, err error) {
	payer, err := token.AddressFromBase58(payerB58)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid payer: %w", err)
	}
	assetAddr, err := s.registry.AssetAddress(asset)
	if err != nil {
		return 0, 0, err
	}

	s.ledger.Mint(payer, assetAddr, amount)
	if approve {
		s.ledger.Approve(payer, s.adapter.Addr(), assetAddr, amount)
	}

	return s.ledger.BalanceOf(payer, assetAddr), s.ledger.Allowance(payer, s.adapter.Addr(), assetAddr), nil
}

// Pools returns a summary of every registered pool.
func (s *Service) Pools() []PoolSummary {
	entries := s.registry.All()
	out := make([]PoolSummary, 0, len(entries))
	for _, e := range entries {
		r0, r1 := e.Pool.Reserves()
		feeNum, feeDen := e.Pool.Fee()
		out = append(out, PoolSummary{
			Name:     e.Pool.Name(),
			Asset0:   e.Asset0,
			Asset1:   e.Asset1,
			Reserve0: r0,
			Reserve1: r1,
			FeeBps:   engine.CalculateFeeBps(feeNum, feeDen),
			Price:    e.Pool.SpotPrice(),
		})
	}
	return out
}

// RecentSettlements reads the recent list from the cache, if configured.
func (s *Service) RecentSettlements(ctx context.Context, limit int64) ([]*models.SettlementRecord, error) {
	if s.cache == nil {
		return nil, fmt.Errorf("settlement cache is not configured")
	}
	return s.cache.GetRecentSettlements(ctx, limit)
}

// PoolPrice returns the cached spot price when Redis is configured, falling
// back to the live pool otherwise.
func (s *Service) PoolPrice(ctx context.Context, name string) (float64, error) {
	if s.cache != nil {
		if price, err := s.cache.GetPrice(ctx, name); err == nil {
			return price, nil
		}
	}
	entry, err := s.registry.FindByName(name)
	if err != nil {
		return 0, err
	}
	return entry.Pool.SpotPrice(), nil
}

func buildRecord(res *settlement.Result, req *SwapRequest, entry *registry.Entry, zeroForOne bool) *models.SettlementRecord {
	assetIn, assetOut := entry.Asset0, entry.Asset1
	if !zeroForOne {
		assetIn, assetOut = entry.Asset1, entry.Asset0
	}

	amountIn, amountOut := res.Delta0, -res.Delta1
	if !zeroForOne {
		amountIn, amountOut = res.Delta1, -res.Delta0
	}

	feeNum, feeDen := entry.Pool.Fee()

	return &models.SettlementRecord{
		RequestID: res.RequestID,
		Timestamp: time.Now(),
		Pool:      entry.Pool.Name(),
		Pair:      fmt.Sprintf("%s/%s", assetIn, assetOut),
		AssetIn:   assetIn,
		AssetOut:  assetOut,
		Payer:     req.Payer,
		Delta0:    res.Delta0,
		Delta1:    res.Delta1,
		AmountIn:  uint64(amountIn),
		AmountOut: uint64(amountOut),
		Price:     res.Price,
		FeeBps:    engine.CalculateFeeBps(feeNum, feeDen),
		Settled:   true,
	}
}

// record persists and publishes a settled record, best-effort.
func (s *Service) record(ctx context.Context, rec *models.SettlementRecord, pool string, price float64) {
	if s.cache != nil {
		if err := s.cache.AddRecentSettlement(ctx, rec); err != nil {
			s.logger.WithError(err).Warn("failed to cache settlement")
		}
		if err := s.cache.PublishSettlement(ctx, rec); err != nil {
			s.logger.WithError(err).Warn("failed to publish settlement")
		}
		if err := s.cache.UpdatePrice(ctx, pool, price); err != nil {
			s.logger.WithError(err).Warn("failed to update cached price")
		}
	}
	if s.store != nil {
		if err := s.store.InsertSettlement(ctx, rec); err != nil {
			s.logger.WithError(err).Warn("failed to insert settlement")
		}
	}
}

// recordFailure persists an unwound request for analytics, best-effort.
func (s *Service) recordFailure(ctx context.Context, req *SwapRequest, entry *registry.Entry, cause error) {
	if s.store == nil {
		return
	}

	rec := &models.SettlementRecord{
		RequestID:  "",
		Timestamp:  time.Now(),
		Pool:       entry.Pool.Name(),
		Pair:       fmt.Sprintf("%s/%s", req.AssetIn, req.AssetOut),
		AssetIn:    req.AssetIn,
		AssetOut:   req.AssetOut,
		Payer:      req.Payer,
		Settled:    false,
		FailReason: failReason(cause),
	}
	if err := s.store.InsertSettlement(ctx, rec); err != nil {
		s.logger.WithError(err).Warn("failed to insert failed settlement")
	}
}

// failReason maps the error taxonomy onto stable analytics labels.
func failReason(err error) string {
	switch {
	case errors.Is(err, settlement.ErrUnauthorizedSettlement):
		return "unauthorized_settlement"
	case errors.Is(err, settlement.ErrInvalidDeltas), errors.Is(err, settlement.ErrSettlementReplayed):
		return "invalid_settlement"
	case errors.Is(err, token.ErrInsufficientAllowance), errors.Is(err, token.ErrInsufficientBalance):
		return "insufficient_funds"
	case errors.Is(err, settlement.ErrEngineRejected):
		return "engine_rejected"
	default:
		return "error"
	}
}

// Close cleans up all resources.
func (s *Service) Close() error {
	var errs []error

	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("cache close: %w", err))
		}
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store close: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
