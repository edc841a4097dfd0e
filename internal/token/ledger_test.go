package token

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddress_Base58RoundTrip(t *testing.T) {
	addr := NewAddress("asset:ALPHA")

	encoded := addr.String()
	assert.NotEmpty(t, encoded)

	decoded, err := AddressFromBase58(encoded)
	require.NoError(t, err)
	assert.True(t, addr.Equals(decoded))

	// Invalid base58
	_, err = AddressFromBase58("not base58 at all!!!")
	assert.Error(t, err)

	// Wrong length
	_, err = AddressFromBase58("abc")
	assert.Error(t, err)
}

func TestAddress_Deterministic(t *testing.T) {
	a := NewAddress("vault:ALPHA-BETA")
	b := NewAddress("vault:ALPHA-BETA")
	c := NewAddress("vault:BETA-GAMMA")

	assert.True(t, a.Equals(b))
	assert.False(t, a.Equals(c))
	assert.False(t, a.IsZero())
	assert.True(t, Address{}.IsZero())
}

func TestLedger_MintAndBalance(t *testing.T) {
	ledger := NewLedger()
	owner := NewAddress("test:owner")
	asset := NewAddress("asset:ALPHA")

	assert.Zero(t, ledger.BalanceOf(owner, asset))

	ledger.Mint(owner, asset, 1000)
	assert.Equal(t, uint64(1000), ledger.BalanceOf(owner, asset))

	// Minting accumulates
	ledger.Mint(owner, asset, 500)
	assert.Equal(t, uint64(1500), ledger.BalanceOf(owner, asset))

	// Balances are per (owner, asset)
	other := NewAddress("asset:BETA")
	assert.Zero(t, ledger.BalanceOf(owner, other))
}

func TestLedger_Transfer(t *testing.T) {
	ledger := NewLedger()
	from := NewAddress("test:from")
	to := NewAddress("test:to")
	asset := NewAddress("asset:ALPHA")

	ledger.Mint(from, asset, 1000)

	err := ledger.Transfer(from, to, asset, 400)
	assert.NoError(t, err)
	assert.Equal(t, uint64(600), ledger.BalanceOf(from, asset))
	assert.Equal(t, uint64(400), ledger.BalanceOf(to, asset))

	// Overdraft fails and moves nothing
	err = ledger.Transfer(from, to, asset, 601)
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Equal(t, uint64(600), ledger.BalanceOf(from, asset))
	assert.Equal(t, uint64(400), ledger.BalanceOf(to, asset))
}

func TestLedger_TransferFrom(t *testing.T) {
	ledger := NewLedger()
	owner := NewAddress("test:owner")
	spender := NewAddress("test:spender")
	recipient := NewAddress("test:recipient")
	asset := NewAddress("asset:ALPHA")

	ledger.Mint(owner, asset, 1000)

	// No allowance yet
	err := ledger.TransferFrom(spender, owner, recipient, asset, 100)
	assert.ErrorIs(t, err, ErrInsufficientAllowance)
	assert.Equal(t, uint64(1000), ledger.BalanceOf(owner, asset))

	ledger.Approve(owner, spender, asset, 300)
	assert.Equal(t, uint64(300), ledger.Allowance(owner, spender, asset))

	// Pull within the allowance consumes it
	err = ledger.TransferFrom(spender, owner, recipient, asset, 200)
	assert.NoError(t, err)
	assert.Equal(t, uint64(800), ledger.BalanceOf(owner, asset))
	assert.Equal(t, uint64(200), ledger.BalanceOf(recipient, asset))
	assert.Equal(t, uint64(100), ledger.Allowance(owner, spender, asset))

	// Exceeding the remainder fails without consuming anything
	err = ledger.TransferFrom(spender, owner, recipient, asset, 101)
	assert.ErrorIs(t, err, ErrInsufficientAllowance)
	assert.Equal(t, uint64(100), ledger.Allowance(owner, spender, asset))
	assert.Equal(t, uint64(800), ledger.BalanceOf(owner, asset))
}

func TestLedger_TransferFromInsufficientBalance(t *testing.T) {
	ledger := NewLedger()
	owner := NewAddress("test:owner")
	spender := NewAddress("test:spender")
	recipient := NewAddress("test:recipient")
	asset := NewAddress("asset:ALPHA")

	// Allowance larger than the balance: balance check wins, allowance intact
	ledger.Mint(owner, asset, 100)
	ledger.Approve(owner, spender, asset, 500)

	err := ledger.TransferFrom(spender, owner, recipient, asset, 200)
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Equal(t, uint64(500), ledger.Allowance(owner, spender, asset))
	assert.Equal(t, uint64(100), ledger.BalanceOf(owner, asset))
}

func TestLedger_ApproveOverwrites(t *testing.T) {
	ledger := NewLedger()
	owner := NewAddress("test:owner")
	spender := NewAddress("test:spender")
	asset := NewAddress("asset:ALPHA")

	ledger.Approve(owner, spender, asset, 300)
	ledger.Approve(owner, spender, asset, 50)
	assert.Equal(t, uint64(50), ledger.Allowance(owner, spender, asset))

	// Zero approval revokes
	ledger.Approve(owner, spender, asset, 0)
	assert.Zero(t, ledger.Allowance(owner, spender, asset))
}

func TestLedger_SnapshotRestore(t *testing.T) {
	ledger := NewLedger()
	a := NewAddress("test:a")
	b := NewAddress("test:b")
	asset := NewAddress("asset:ALPHA")

	ledger.Mint(a, asset, 1000)
	ledger.Approve(a, b, asset, 250)

	snap := ledger.Snapshot()

	// Mutate everything
	require.NoError(t, ledger.Transfer(a, b, asset, 700))
	require.NoError(t, ledger.TransferFrom(b, a, b, asset, 250))
	ledger.Mint(b, asset, 9999)

	ledger.Restore(snap)

	assert.Equal(t, uint64(1000), ledger.BalanceOf(a, asset))
	assert.Zero(t, ledger.BalanceOf(b, asset))
	assert.Equal(t, uint64(250), ledger.Allowance(a, b, asset))
}

func TestLedger_SnapshotIsIsolated(t *testing.T) {
	ledger := NewLedger()
	a := NewAddress("test:a")
	asset := NewAddress("asset:ALPHA")

	ledger.Mint(a, asset, 100)
	snap := ledger.Snapshot()

	// Mutations after the snapshot must not leak into it
	ledger.Mint(a, asset, 100)
	ledger.Restore(snap)
	assert.Equal(t, uint64(100), ledger.BalanceOf(a, asset))
}

func TestLedger_ConcurrentOperations(t *testing.T) {
	ledger := NewLedger()
	asset := NewAddress("asset:ALPHA")

	const numGoroutines = 10
	const numOps = 100

	var wg sync.WaitGroup
	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			owner := NewAddress(fmt.Sprintf("test:owner-%d", id))
			for j := 0; j < numOps; j++ {
				ledger.Mint(owner, asset, 1)
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < numGoroutines; i++ {
		owner := NewAddress(fmt.Sprintf("test:owner-%d", i))
		assert.Equal(t, uint64(numOps), ledger.BalanceOf(owner, asset))
	}
}
