package registry

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/hamza-javed/amm-settlement/internal/engine"
	"github.com/hamza-javed/amm-settlement/internal/token"
)

// PoolConfig represents a pool entry in the JSON config.
type PoolConfig struct {
	Name           string `json:"name"`
	Asset0         string `json:"asset0"`
	Asset1         string `json:"asset1"`
	Asset0Address  string `json:"asset0_address,omitempty"`
	Asset1Address  string `json:"asset1_address,omitempty"`
	FeeNumerator   uint64 `json:"fee_numerator"`
	FeeDenominator uint64 `json:"fee_denominator"`
	Reserve0       uint64 `json:"reserve0"`
	Reserve1       uint64 `json:"reserve1"`
}

// Entry is a live pool plus the symbols it trades.
type Entry struct {
	Pool   *engine.Pool
	Asset0 string
	Asset1 string
}

// Registry holds all configured pools and the asset symbol table.
type Registry struct {
	entries []Entry
	assets  map[string]token.Address
}

// Load reads pool configurations from a JSON file and instantiates them
// against the given ledger, seeding each pool's vault with its reserves.
func Load(configPath string, ledger *token.Ledger) (*Registry, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var configs []PoolConfig
	if err := json.Unmarshal(data, &configs); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}

	return New(configs, ledger)
}

// New builds a registry from parsed configs.
func New(configs []PoolConfig, ledger *token.Ledger) (*Registry, error) {
	r := &Registry{assets: make(map[string]token.Address)}

	for i, cfg := range configs {
		entry, err := r.buildEntry(cfg, ledger)
		if err != nil {
			return nil, fmt.Errorf("pool %d (%s): %w", i, cfg.Name, err)
		}
		r.entries = append(r.entries, entry)
	}

	return r, nil
}

func (r *Registry) buildEntry(cfg PoolConfig, ledger *token.Ledger) (Entry, error) {
	if cfg.Name == "" {
		return Entry{}, fmt.Errorf("name is required")
	}
	if cfg.Asset0 == "" || cfg.Asset1 == "" || cfg.Asset0 == cfg.Asset1 {
		return Entry{}, fmt.Errorf("asset0 and asset1 must be distinct symbols")
	}
	if cfg.FeeDenominator == 0 {
		return Entry{}, fmt.Errorf("fee_denominator must be > 0")
	}

	asset0, err := r.resolveAsset(cfg.Asset0, cfg.Asset0Address)
	if err != nil {
		return Entry{}, err
	}
	asset1, err := r.resolveAsset(cfg.Asset1, cfg.Asset1Address)
	if err != nil {
		return Entry{}, err
	}

	pool, err := engine.NewPool(engine.PoolConfig{
		Name:           cfg.Name,
		Addr:           token.NewAddress("engine:" + cfg.Name),
		Vault:          token.NewAddress("vault:" + cfg.Name),
		Asset0:         asset0,
		Asset1:         asset1,
		FeeNumerator:   cfg.FeeNumerator,
		FeeDenominator: cfg.FeeDenominator,
	}, ledger, cfg.Reserve0, cfg.Reserve1)
	if err != nil {
		return Entry{}, err
	}

	return Entry{Pool: pool, Asset0: cfg.Asset0, Asset1: cfg.Asset1}, nil
}

// resolveAsset maps a symbol to a ledger address, either explicit base58 from
// the config or deterministically derived from the symbol. A symbol must
// resolve to the same address across every pool that trades it.
func (r *Registry) resolveAsset(symbol, explicit string) (token.Address, error) {
	var addr token.Address
	var err error
	if explicit != "" {
		addr, err = token.AddressFromBase58(explicit)
		if err != nil {
			return token.Address{}, fmt.Errorf("asset %s: %w", symbol, err)
		}
	} else {
		addr = token.NewAddress("asset:" + symbol)
	}

	if prev, ok := r.assets[symbol]; ok {
		if !prev.Equals(addr) {
			return token.Address{}, fmt.Errorf("asset %s bound to conflicting addresses", symbol)
		}
		return prev, nil
	}
	r.assets[symbol] = addr
	return addr, nil
}

// AssetAddress returns the ledger address for a configured asset symbol.
func (r *Registry) AssetAddress(symbol string) (token.Address, error) {
	addr, ok := r.assets[symbol]
	if !ok {
		return token.Address{}, fmt.Errorf("unknown asset: %s", symbol)
	}
	return addr, nil
}

// FindByName returns the pool with the given name.
func (r *Registry) FindByName(name string) (*Entry, error) {
	for i := range r.entries {
		if r.entries[i].Pool.Name() == name {
			return &r.entries[i], nil
		}
	}
	return nil, fmt.Errorf("pool not found: %s", name)
}

// FindByAssets returns a pool trading the given pair, in either direction.
func (r *Registry) FindByAssets(a, b string) (*Entry, error) {
	for i := range r.entries {
		e := &r.entries[i]
		if (e.Asset0 == a && e.Asset1 == b) || (e.Asset0 == b && e.Asset1 == a) {
			return e, nil
		}
	}
	return nil, fmt.Errorf("no pool found for pair %s/%s", a, b)
}

// All returns every registered pool entry.
func (r *Registry) All() []Entry {
	return r.entries
}

// Count returns the number of registered pools.
func (r *Registry) Count() int {
	return len(r.entries)
}
