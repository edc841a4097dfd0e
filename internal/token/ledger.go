package token

import (
	"errors"
	"fmt"
	"sync"
)

var (
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
)

type balanceKey struct {
	owner Address
	asset Address
}

type allowanceKey struct {
	owner   Address
	spender Address
	asset   Address
}

// Ledger is an in-process token ledger holding balances and spender
// allowances for any number of assets. It is the owned-state stand-in for the
// external token contracts a deployed adapter would talk to: every operation
// takes explicit identities, there is no ambient caller.
type Ledger struct {
	mu         sync.Mutex
	balances   map[balanceKey]uint64
	allowances map[allowanceKey]uint64
}

func NewLedger() *Ledger {
	return &Ledger{
		balances:   make(map[balanceKey]uint64),
		allowances: make(map[allowanceKey]uint64),
	}
}

// Mint credits freshly issued units of asset to owner.
func (l *Ledger) Mint(owner, asset Address, amount uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[balanceKey{owner, asset}] += amount
}

// BalanceOf returns the owner's balance of asset.
func (l *Ledger) BalanceOf(owner, asset Address) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[balanceKey{owner, asset}]
}

// Approve sets (not adds) the allowance spender may pull from owner in asset.
func (l *Ledger) Approve(owner, spender, asset Address, amount uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.allowances[allowanceKey{owner, spender, asset}] = amount
}

// Allowance returns the remaining amount spender may pull from owner in asset.
func (l *Ledger) Allowance(owner, spender, asset Address) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.allowances[allowanceKey{owner, spender, asset}]
}

// Transfer moves amount of asset from one account to another. The caller is
// responsible for holding the authority to spend from the source account;
// within this codebase that is only ever the engine moving its own vault funds.
func (l *Ledger) Transfer(from, to, asset Address, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.move(from, to, asset, amount)
}

// TransferFrom pulls amount of asset from owner to recipient on behalf of
// spender, consuming the owner's allowance. This is the settlement primitive:
// the adapter passes the payer as owner and the engine's vault as recipient.
func (l *Ledger) TransferFrom(spender, owner, recipient, asset Address, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	k := allowanceKey{owner, spender, asset}
	allowed := l.allowances[k]
	if allowed < amount {
		return fmt.Errorf("%w: spender %s allowed %d, need %d",
			ErrInsufficientAllowance, spender, allowed, amount)
	}

	if err := l.move(owner, recipient, asset, amount); err != nil {
		return err
	}

	l.allowances[k] = allowed - amount
	return nil
}

// move requires l.mu to be held.
func (l *Ledger) move(from, to, asset Address, amount uint64) error {
	fromKey := balanceKey{from, asset}
	bal := l.balances[fromKey]
	if bal < amount {
		return fmt.Errorf("%w: account %s holds %d, need %d",
			ErrInsufficientBalance, from, bal, amount)
	}

	l.balances[fromKey] = bal - amount
	l.balances[balanceKey{to, asset}] += amount
	return nil
}

// Snapshot captures the full ledger state. The adapter takes one before
// submitting a swap so a failed request can be unwound as a single unit.
type Snapshot struct {
	balances   map[balanceKey]uint64
	allowances map[allowanceKey]uint64
}

func (l *Ledger) Snapshot() *Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := &Snapshot{
		balances:   make(map[balanceKey]uint64, len(l.balances)),
		allowances: make(map[allowanceKey]uint64, len(l.allowances)),
	}
	for k, v := range l.balances {
		s.balances[k] = v
	}
	for k, v := range l.allowances {
		s.allowances[k] = v
	}
	return s
}

// Restore resets the ledger to a previously captured snapshot.
func (l *Ledger) Restore(s *Snapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.balances = make(map[balanceKey]uint64, len(s.balances))
	l.allowances = make(map[allowanceKey]uint64, len(s.allowances))
	for k, v := range s.balances {
		l.balances[k] = v
	}
	for k, v := range s.allowances {
		l.allowances[k] = v
	}
}
