package config

import (
	"fmt"

	"gotsol/core/state"
	"gotsol/crypto"
)

var genesisMarkerKey = []byte("genesis/applied")

// Allocation credits lamports to an address at genesis.
type Allocation struct {
	Address  string `toml:"Address"`
	Lamports uint64 `toml:"Lamports"`
}

// TokenAllocation mints tokens to an owner's associated token account.
type TokenAllocation struct {
	Owner  string `toml:"Owner"`
	Amount uint64 `toml:"Amount"`
}

// GenesisMint creates a mint and its initial balances.
type GenesisMint struct {
	Address  string            `toml:"Address"`
	Decimals uint8             `toml:"Decimals"`
	Balances []TokenAllocation `toml:"Balances"`
}

// Genesis describes the ledger contents written on first start.
type Genesis struct {
	Accounts []Allocation  `toml:"Accounts"`
	Mints    []GenesisMint `toml:"Mints"`
}

func (g Genesis) validate() error {
	for i, alloc := range g.Accounts {
		if _, err := crypto.ParsePublicKey(alloc.Address); err != nil {
			return fmt.Errorf("genesis.Accounts[%d]: %w", i, err)
		}
	}
	for i, mint := range g.Mints {
		if _, err := crypto.ParsePublicKey(mint.Address); err != nil {
			return fmt.Errorf("genesis.Mints[%d]: %w", i, err)
		}
		for j, bal := range mint.Balances {
			if _, err := crypto.ParsePublicKey(bal.Owner); err != nil {
				return fmt.Errorf("genesis.Mints[%d].Balances[%d]: %w", i, j, err)
			}
		}
	}
	return nil
}

// Apply writes the allocations unless a previous start already did. It
// reports whether anything was written.
func (g Genesis) Apply(m *state.Manager) (bool, error) {
	done, err := m.KVGet(genesisMarkerKey, nil)
	if err != nil {
		return false, err
	}
	if done {
		return false, nil
	}
	if err := g.validate(); err != nil {
		return false, err
	}
	for _, alloc := range g.Accounts {
		addr, _ := crypto.ParsePublicKey(alloc.Address)
		if err := m.Credit(addr, alloc.Lamports); err != nil {
			return false, fmt.Errorf("genesis account %s: %w", alloc.Address, err)
		}
	}
	for _, mint := range g.Mints {
		addr, _ := crypto.ParsePublicKey(mint.Address)
		if err := m.CreateMint(addr, mint.Decimals); err != nil {
			return false, fmt.Errorf("genesis mint %s: %w", mint.Address, err)
		}
		for _, bal := range mint.Balances {
			owner, _ := crypto.ParsePublicKey(bal.Owner)
			if _, err := m.MintTo(addr, owner, bal.Amount); err != nil {
				return false, fmt.Errorf("genesis balance %s/%s: %w", mint.Address, bal.Owner, err)
			}
		}
	}
	if err := m.KVPut(genesisMarkerKey, true); err != nil {
		return false, err
	}
	return true, nil
}
