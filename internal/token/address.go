package token

import (
	"fmt"

	"github.com/mr-tron/base58"
)

// Address is a 32-byte account identity with a base58 text form.
// It identifies payers, engine instances, vaults and assets on the ledger.
type Address [32]byte

// AddressFromBase58 parses a base58-encoded address.
func AddressFromBase58(s string) (Address, error) {
	var a Address
	raw, err := base58.Decode(s)
	if err != nil {
		return a, fmt.Errorf("invalid address %q: %w", s, err)
	}
	if len(raw) != len(a) {
		return a, fmt.Errorf("invalid address %q: got %d bytes, want %d", s, len(raw), len(a))
	}
	copy(a[:], raw)
	return a, nil
}

// MustAddressFromBase58 parses a base58 address and panics on failure.
// Intended for constants and test fixtures.
func MustAddressFromBase58(s string) Address {
	a, err := AddressFromBase58(s)
	if err != nil {
		panic(err)
	}
	return a
}

// NewAddress derives a deterministic address from a human-readable label.
// Useful for local pools and demo accounts where no keypair exists.
func NewAddress(label string) Address {
	var a Address
	copy(a[:], label)
	return a
}

func (a Address) String() string {
	return base58.Encode(a[:])
}

func (a Address) Equals(other Address) bool {
	return a == other
}

// IsZero reports whether the address is the all-zero identity.
func (a Address) IsZero() bool {
	return a == Address{}
}

// MarshalText implements encoding.TextMarshaler (base58).
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler (base58).
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := AddressFromBase58(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
