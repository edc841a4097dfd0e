package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hamza-javed/amm-settlement/internal/token"
)

func testConfigs() []PoolConfig {
	return []PoolConfig{
		{
			Name:           "ALPHA-BETA",
			Asset0:         "ALPHA",
			Asset1:         "BETA",
			FeeNumerator:   25,
			FeeDenominator: 10000,
			Reserve0:       1_000_000,
			Reserve1:       2_000_000,
		},
		{
			Name:           "BETA-GAMMA",
			Asset0:         "BETA",
			Asset1:         "GAMMA",
			FeeNumerator:   30,
			FeeDenominator: 10000,
			Reserve0:       500_000,
			Reserve1:       500_000,
		},
	}
}

func TestRegistry_New(t *testing.T) {
	ledger := token.NewLedger()
	reg, err := New(testConfigs(), ledger)
	require.NoError(t, err)

	assert.Equal(t, 2, reg.Count())
	assert.Len(t, reg.All(), 2)

	entry, err := reg.FindByName("ALPHA-BETA")
	require.NoError(t, err)
	assert.Equal(t, "ALPHA", entry.Asset0)
	assert.Equal(t, "BETA", entry.Asset1)

	r0, r1 := entry.Pool.Reserves()
	assert.Equal(t, uint64(1_000_000), r0)
	assert.Equal(t, uint64(2_000_000), r1)

	// Vault seeded on the ledger
	assert.Equal(t, uint64(1_000_000), ledger.BalanceOf(entry.Pool.Vault(), entry.Pool.Asset0()))
}

func TestRegistry_SharedAssetAddress(t *testing.T) {
	ledger := token.NewLedger()
	reg, err := New(testConfigs(), ledger)
	require.NoError(t, err)

	// BETA appears in both pools and must resolve to one address
	ab, err := reg.FindByName("ALPHA-BETA")
	require.NoError(t, err)
	bg, err := reg.FindByName("BETA-GAMMA")
	require.NoError(t, err)

	assert.True(t, ab.Pool.Asset1().Equals(bg.Pool.Asset0()))

	addr, err := reg.AssetAddress("BETA")
	require.NoError(t, err)
	assert.True(t, addr.Equals(ab.Pool.Asset1()))

	_, err = reg.AssetAddress("UNKNOWN")
	assert.Error(t, err)
}

func TestRegistry_ExplicitAssetAddress(t *testing.T) {
	ledger := token.NewLedger()
	explicit := token.NewAddress("custom:ALPHA").String()

	configs := testConfigs()
	configs[0].Asset0Address = explicit

	reg, err := New(configs, ledger)
	require.NoError(t, err)

	addr, err := reg.AssetAddress("ALPHA")
	require.NoError(t, err)
	assert.Equal(t, explicit, addr.String())
}

func TestRegistry_ConflictingAssetAddress(t *testing.T) {
	ledger := token.NewLedger()

	configs := testConfigs()
	// Bind BETA to a different address in the second pool
	configs[1].Asset0Address = token.NewAddress("custom:BETA").String()

	_, err := New(configs, ledger)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "conflicting")
}

func TestRegistry_Validation(t *testing.T) {
	ledger := token.NewLedger()

	// Missing name
	_, err := New([]PoolConfig{{Asset0: "A", Asset1: "B", FeeDenominator: 1, Reserve0: 1, Reserve1: 1}}, ledger)
	assert.Error(t, err)

	// Identical symbols
	_, err = New([]PoolConfig{{Name: "X", Asset0: "A", Asset1: "A", FeeDenominator: 1, Reserve0: 1, Reserve1: 1}}, ledger)
	assert.Error(t, err)

	// Zero fee denominator
	_, err = New([]PoolConfig{{Name: "X", Asset0: "A", Asset1: "B", Reserve0: 1, Reserve1: 1}}, ledger)
	assert.Error(t, err)

	// Bad explicit address
	_, err = New([]PoolConfig{{
		Name: "X", Asset0: "A", Asset1: "B",
		Asset0Address:  "!!!not-base58!!!",
		FeeDenominator: 10000, Reserve0: 1, Reserve1: 1,
	}}, ledger)
	assert.Error(t, err)
}

func TestRegistry_FindByAssets(t *testing.T) {
	ledger := token.NewLedger()
	reg, err := New(testConfigs(), ledger)
	require.NoError(t, err)

	// Either direction resolves the same pool
	entry, err := reg.FindByAssets("ALPHA", "BETA")
	require.NoError(t, err)
	assert.Equal(t, "ALPHA-BETA", entry.Pool.Name())

	entry, err = reg.FindByAssets("BETA", "ALPHA")
	require.NoError(t, err)
	assert.Equal(t, "ALPHA-BETA", entry.Pool.Name())

	_, err = reg.FindByAssets("ALPHA", "GAMMA")
	assert.Error(t, err)
}

func TestRegistry_FindByName(t *testing.T) {
	ledger := token.NewLedger()
	reg, err := New(testConfigs(), ledger)
	require.NoError(t, err)

	_, err = reg.FindByName("NOPE")
	assert.Error(t, err)
}

func TestRegistry_Load(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pools.json")

	content := `[
  {
    "name": "ALPHA-BETA",
    "asset0": "ALPHA",
    "asset1": "BETA",
    "fee_numerator": 25,
    "fee_denominator": 10000,
    "reserve0": 1000000,
    "reserve1": 2000000
  }
]`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	ledger := token.NewLedger()
	reg, err := Load(path, ledger)
	require.NoError(t, err)
	assert.Equal(t, 1, reg.Count())

	// Missing file
	_, err = Load(filepath.Join(dir, "missing.json"), ledger)
	assert.Error(t, err)

	// Invalid JSON
	badPath := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(badPath, []byte("{not json"), 0o644))
	_, err = Load(badPath, ledger)
	assert.Error(t, err)
}
