// Package settlement implements the swap settlement callback adapter: it
// submits requests to a pricing engine and, when the engine calls back with
// the owed deltas, pulls payment from the payer's pre-authorized allowance
// into the engine's custody. A request is one atomic unit; any failure
// unwinds every ledger effect.
package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/hamza-javed/amm-settlement/internal/engine"
	"github.com/hamza-javed/amm-settlement/internal/token"
)

var (
	// ErrEngineRejected wraps any engine-native swap rejection
	// (price limit, liquidity, zero amount).
	ErrEngineRejected = errors.New("engine rejected swap")

	// ErrUnauthorizedSettlement is returned when a settlement callback does
	// not match an in-flight request: unknown handle, wrong engine identity,
	// or payer mismatch. No funds move.
	ErrUnauthorizedSettlement = errors.New("unauthorized settlement")

	// ErrSettlementReplayed is returned when a handle is presented twice.
	ErrSettlementReplayed = errors.New("settlement already consumed")

	// ErrInvalidDeltas is returned when the reported deltas violate the
	// engine contract: both positive, or neither positive.
	ErrInvalidDeltas = errors.New("invalid settlement deltas")
)

// Result is the outcome of a settled swap request.
type Result struct {
	RequestID string
	Delta0    int64
	Delta1    int64
	Price     float64 // engine spot price after the swap
}

// pendingSettlement is the authoritative record behind a callback handle.
// The opaque context handed to the engine carries only the handle id and the
// payer; everything the authorization check trusts lives here.
type pendingSettlement struct {
	engine   token.Address
	vault    token.Address
	asset0   token.Address
	asset1   token.Address
	payer    token.Address
	consumed bool
}

// callbackContext is the opaque payload carried across the engine boundary.
type callbackContext struct {
	ID    string        `json:"id"`
	Payer token.Address `json:"payer"`
}

// Adapter is the settlement callback adapter. Payers pre-authorize it via
// ledger allowances granted to Addr(); the adapter spends those allowances
// only inside an authenticated settlement callback.
type Adapter struct {
	addr   token.Address
	ledger *token.Ledger

	// reqMu serializes requests end to end: execution is strictly nested,
	// one request in flight at a time.
	reqMu sync.Mutex

	mu      sync.Mutex
	pending map[string]*pendingSettlement
}

// NewAdapter creates an adapter operating under the given identity against
// the given ledger.
func NewAdapter(addr token.Address, ledger *token.Ledger) *Adapter {
	return &Adapter{
		addr:    addr,
		ledger:  ledger,
		pending: make(map[string]*pendingSettlement),
	}
}

// Addr is the identity payers grant allowances to.
func (a *Adapter) Addr() token.Address {
	return a.addr
}

// GetSwapResult submits a swap to the pool and settles it in-line.
//
// amountSpecified > 0 is exact-input, < 0 exact-output. The returned deltas
// use the engine's sign convention (positive = payer paid the pool) and the
// price is the pool's spot price after the swap. On any failure the ledger is
// restored to its pre-request state and the pool remains unchanged.
func (a *Adapter) GetSwapResult(
	ctx context.Context,
	pool *engine.Pool,
	zeroForOne bool,
	amountSpecified int64,
	priceLimit float64,
	payer token.Address,
) (*Result, error) {

	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if payer.IsZero() {
		return nil, fmt.Errorf("payer is required")
	}

	a.reqMu.Lock()
	defer a.reqMu.Unlock()

	snap := a.ledger.Snapshot()

	id := uuid.NewString()
	pd := &pendingSettlement{
		engine: pool.Addr(),
		vault:  pool.Vault(),
		asset0: pool.Asset0(),
		asset1: pool.Asset1(),
		payer:  payer,
	}

	a.mu.Lock()
	a.pending[id] = pd
	a.mu.Unlock()
	defer func() {
		a.mu.Lock()
		delete(a.pending, id)
		a.mu.Unlock()
	}()

	data, err := json.Marshal(callbackContext{ID: id, Payer: payer})
	if err != nil {
		return nil, fmt.Errorf("failed to encode callback context: %w", err)
	}

	delta0, delta1, err := pool.Swap(ctx, payer, zeroForOne, amountSpecified, priceLimit, data, a)
	if err != nil {
		a.ledger.Restore(snap)
		return nil, classify(err)
	}

	if !pd.consumed {
		// Engine contract violation: swap returned success without invoking
		// settlement. Treat like any other failed request.
		a.ledger.Restore(snap)
		return nil, fmt.Errorf("%w: engine completed without settling", ErrInvalidDeltas)
	}

	return &Result{
		RequestID: id,
		Delta0:    delta0,
		Delta1:    delta1,
		Price:     pool.SpotPrice(),
	}, nil
}

// Settle is the settlement entry point invoked by the engine mid-swap. It is
// exported because the engine holds the adapter only as a callback interface,
// but it refuses any invocation that does not match an in-flight request.
func (a *Adapter) Settle(ctx context.Context, caller token.Address, delta0, delta1 int64, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var cbCtx callbackContext
	if err := json.Unmarshal(data, &cbCtx); err != nil {
		return fmt.Errorf("%w: malformed callback context", ErrUnauthorizedSettlement)
	}

	a.mu.Lock()
	pd, ok := a.pending[cbCtx.ID]
	if !ok {
		a.mu.Unlock()
		return fmt.Errorf("%w: no matching in-flight request", ErrUnauthorizedSettlement)
	}
	if pd.consumed {
		a.mu.Unlock()
		return fmt.Errorf("%w: request %s", ErrSettlementReplayed, cbCtx.ID)
	}
	if !caller.Equals(pd.engine) {
		a.mu.Unlock()
		return fmt.Errorf("%w: caller %s is not the requested engine", ErrUnauthorizedSettlement, caller)
	}
	if !cbCtx.Payer.Equals(pd.payer) {
		a.mu.Unlock()
		return fmt.Errorf("%w: payer mismatch", ErrUnauthorizedSettlement)
	}

	// Engines never owe and demand on both sides of one swap, and a swap
	// where nobody pays is equally malformed. Validate before touching funds.
	if (delta0 > 0) == (delta1 > 0) {
		a.mu.Unlock()
		return fmt.Errorf("%w: delta0=%d delta1=%d", ErrInvalidDeltas, delta0, delta1)
	}

	pd.consumed = true
	a.mu.Unlock()

	asset, owed := pd.asset0, uint64(delta0)
	if delta1 > 0 {
		asset, owed = pd.asset1, uint64(delta1)
	}

	if err := a.ledger.TransferFrom(a.addr, pd.payer, pd.vault, asset, owed); err != nil {
		return fmt.Errorf("settlement pull failed: %w", err)
	}

	return nil
}

// classify folds engine-native rejections under ErrEngineRejected while
// letting settlement and ledger errors propagate with their own sentinels.
func classify(err error) error {
	switch {
	case errors.Is(err, ErrUnauthorizedSettlement),
		errors.Is(err, ErrSettlementReplayed),
		errors.Is(err, ErrInvalidDeltas),
		errors.Is(err, token.ErrInsufficientBalance),
		errors.Is(err, token.ErrInsufficientAllowance):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("%w: %w", ErrEngineRejected, err)
	}
}
