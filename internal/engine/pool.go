package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hamza-javed/amm-settlement/internal/token"
)

var (
	ErrZeroAmount            = errors.New("swap amount must be non-zero")
	ErrInsufficientLiquidity = errors.New("insufficient pool liquidity")
	ErrPriceLimit            = errors.New("price limit exceeded")
	ErrInsufficientPayment   = errors.New("settlement did not deliver owed input")
)

// SettlementCallback is invoked by the pool mid-swap, after the output side
// has been paid out and before the swap commits. The implementation must pull
// the positive delta into the pool's vault; the pool verifies delivery by
// balance check before committing. caller is the engine identity performing
// the invocation, which the adapter authenticates against the engine it
// submitted the request to.
type SettlementCallback interface {
	Settle(ctx context.Context, caller token.Address, delta0, delta1 int64, data []byte) error
}

// PoolConfig describes one constant-product pool.
type PoolConfig struct {
	Name           string
	Addr           token.Address // engine identity presented to callbacks
	Vault          token.Address // custody account on the ledger
	Asset0         token.Address
	Asset1         token.Address
	FeeNumerator   uint64
	FeeDenominator uint64
}

// Pool is a reference constant-product pricing engine. It owns two reserves,
// quotes swaps with an input-side fee, and settles through the two-phase
// callback protocol: pay out, call back, verify payment, commit.
type Pool struct {
	mu  sync.Mutex
	cfg PoolConfig

	reserve0 uint64
	reserve1 uint64

	ledger *token.Ledger
}

// NewPool creates a pool, minting the initial reserves into its vault so the
// ledger and the pool's accounting start out consistent.
func NewPool(cfg PoolConfig, ledger *token.Ledger, reserve0, reserve1 uint64) (*Pool, error) {
	if cfg.FeeDenominator == 0 || cfg.FeeNumerator >= cfg.FeeDenominator {
		return nil, fmt.Errorf("pool %s: invalid fee %d/%d", cfg.Name, cfg.FeeNumerator, cfg.FeeDenominator)
	}
	if reserve0 == 0 || reserve1 == 0 {
		return nil, fmt.Errorf("pool %s: initial reserves must be > 0", cfg.Name)
	}
	if cfg.Asset0.Equals(cfg.Asset1) {
		return nil, fmt.Errorf("pool %s: assets must differ", cfg.Name)
	}

	ledger.Mint(cfg.Vault, cfg.Asset0, reserve0)
	ledger.Mint(cfg.Vault, cfg.Asset1, reserve1)

	return &Pool{
		cfg:      cfg,
		reserve0: reserve0,
		reserve1: reserve1,
		ledger:   ledger,
	}, nil
}

func (p *Pool) Name() string          { return p.cfg.Name }
func (p *Pool) Addr() token.Address   { return p.cfg.Addr }
func (p *Pool) Vault() token.Address  { return p.cfg.Vault }
func (p *Pool) Asset0() token.Address { return p.cfg.Asset0 }
func (p *Pool) Asset1() token.Address { return p.cfg.Asset1 }

// Fee returns the pool's fee as numerator/denominator.
func (p *Pool) Fee() (uint64, uint64) {
	return p.cfg.FeeNumerator, p.cfg.FeeDenominator
}

// Reserves returns the current pool reserves.
func (p *Pool) Reserves() (uint64, uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reserve0, p.reserve1
}

// SpotPrice is the readable current-price accessor: asset1 per asset0.
func (p *Pool) SpotPrice() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return float64(p.reserve1) / float64(p.reserve0)
}

// Swap executes one swap against the pool.
//
// amountSpecified > 0 is exact-input (units of the sold asset);
// amountSpecified < 0 is exact-output (units of the bought asset).
// priceLimit bounds the post-swap spot price; non-positive disables the check.
//
// The returned deltas follow the settlement sign convention: positive means
// the payer owes the pool, negative means the pool paid the recipient.
// Settlement happens synchronously inside this call, exactly once, via cb.
func (p *Pool) Swap(
	ctx context.Context,
	recipient token.Address,
	zeroForOne bool,
	amountSpecified int64,
	priceLimit float64,
	data []byte,
	cb SettlementCallback,
) (int64, int64, error) {

	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}
	if amountSpecified == 0 {
		return 0, 0, ErrZeroAmount
	}
	if cb == nil {
		return 0, 0, fmt.Errorf("settlement callback is required")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	reserveIn, reserveOut := p.reserve0, p.reserve1
	assetIn, assetOut := p.cfg.Asset0, p.cfg.Asset1
	if !zeroForOne {
		reserveIn, reserveOut = p.reserve1, p.reserve0
		assetIn, assetOut = p.cfg.Asset1, p.cfg.Asset0
	}

	var amountIn, amountOut uint64
	var err error
	if amountSpecified > 0 {
		amountIn = uint64(amountSpecified)
		amountOut, _, err = CalculateSwapOutput(amountIn, reserveIn, reserveOut, p.cfg.FeeNumerator, p.cfg.FeeDenominator)
		if err != nil {
			return 0, 0, fmt.Errorf("%w: %s", ErrInsufficientLiquidity, err)
		}
		if amountOut == 0 {
			return 0, 0, fmt.Errorf("%w: computed output is zero", ErrInsufficientLiquidity)
		}
	} else {
		amountOut = uint64(-amountSpecified)
		amountIn, err = CalculateSwapInput(amountOut, reserveIn, reserveOut, p.cfg.FeeNumerator, p.cfg.FeeDenominator)
		if err != nil {
			return 0, 0, fmt.Errorf("%w: %s", ErrInsufficientLiquidity, err)
		}
	}
	if amountOut >= reserveOut {
		return 0, 0, fmt.Errorf("%w: output %d drains reserve %d", ErrInsufficientLiquidity, amountOut, reserveOut)
	}

	newReserve0, newReserve1 := p.reserve0+amountIn, p.reserve1-amountOut
	if !zeroForOne {
		newReserve0, newReserve1 = p.reserve0-amountOut, p.reserve1+amountIn
	}

	if priceLimit > 0 {
		newPrice := float64(newReserve1) / float64(newReserve0)
		// Selling asset0 pushes the price down, selling asset1 pushes it up.
		if zeroForOne && newPrice < priceLimit {
			return 0, 0, fmt.Errorf("%w: post-swap price %.8f below limit %.8f", ErrPriceLimit, newPrice, priceLimit)
		}
		if !zeroForOne && newPrice > priceLimit {
			return 0, 0, fmt.Errorf("%w: post-swap price %.8f above limit %.8f", ErrPriceLimit, newPrice, priceLimit)
		}
	}

	delta0, delta1 := int64(amountIn), -int64(amountOut)
	if !zeroForOne {
		delta0, delta1 = -int64(amountOut), int64(amountIn)
	}

	// Pay the output side first, then demand the input via the callback and
	// verify delivery by vault balance. Any error aborts before the reserve
	// update, so a failed swap leaves the pool untouched once the request is
	// unwound by the adapter.
	if err := p.ledger.Transfer(p.cfg.Vault, recipient, assetOut, amountOut); err != nil {
		return 0, 0, fmt.Errorf("pool payout failed: %w", err)
	}

	owedBefore := p.ledger.BalanceOf(p.cfg.Vault, assetIn)
	if err := cb.Settle(ctx, p.cfg.Addr, delta0, delta1, data); err != nil {
		return 0, 0, err
	}
	owedAfter := p.ledger.BalanceOf(p.cfg.Vault, assetIn)
	if owedAfter < owedBefore+amountIn {
		return 0, 0, fmt.Errorf("%w: vault received %d of %d", ErrInsufficientPayment, owedAfter-owedBefore, amountIn)
	}

	p.reserve0, p.reserve1 = newReserve0, newReserve1
	return delta0, delta1, nil
}
