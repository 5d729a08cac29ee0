package state

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"gotsol/core/types"
)

var (
	accountPrefix      = []byte("account/")
	mintPrefix         = []byte("mint/")
	tokenAccountPrefix = []byte("token-account/")
)

// Rent parameters. An account of n data bytes must hold at least
// (AccountStorageOverhead + n) * LamportsPerByteYear * ExemptionYears lamports.
const (
	AccountStorageOverhead uint64 = 128
	LamportsPerByteYear    uint64 = 3480
	ExemptionYears         uint64 = 2
)

func accountKey(addr solana.PublicKey) []byte {
	return prefixedKey(accountPrefix, addr.Bytes())
}

func mintKey(addr solana.PublicKey) []byte {
	return prefixedKey(mintPrefix, addr.Bytes())
}

func tokenAccountKey(addr solana.PublicKey) []byte {
	return prefixedKey(tokenAccountPrefix, addr.Bytes())
}

// RentExemptMinimum returns the lamports an account of space bytes must hold.
func (m *Manager) RentExemptMinimum(space uint64) uint64 {
	return RentExemptMinimum(space)
}

// RentExemptMinimum returns the lamports an account of space bytes must hold.
func RentExemptMinimum(space uint64) uint64 {
	return (AccountStorageOverhead + space) * LamportsPerByteYear * ExemptionYears
}

// GetAccount returns the account stored at addr.
func (m *Manager) GetAccount(addr solana.PublicKey) (*types.Account, bool, error) {
	var acc types.Account
	ok, err := m.KVGet(accountKey(addr), &acc)
	if err != nil || !ok {
		return nil, false, err
	}
	return &acc, true, nil
}

// PutAccount overwrites the account stored at addr.
func (m *Manager) PutAccount(addr solana.PublicKey, acc *types.Account) error {
	if acc == nil {
		return fmt.Errorf("state: nil account")
	}
	return m.KVPut(accountKey(addr), acc)
}

func (m *Manager) deleteAccount(addr solana.PublicKey) error {
	return m.KVDelete(accountKey(addr))
}

// LamportBalance returns the lamports held at addr, zero when absent.
func (m *Manager) LamportBalance(addr solana.PublicKey) (uint64, error) {
	acc, ok, err := m.GetAccount(addr)
	if err != nil || !ok {
		return 0, err
	}
	return acc.Lamports, nil
}

// Credit adds lamports to addr, creating a system account when needed. It is
// used by genesis allocation and by transfers.
func (m *Manager) Credit(addr solana.PublicKey, amount uint64) error {
	acc, ok, err := m.GetAccount(addr)
	if err != nil {
		return err
	}
	if !ok {
		acc = &types.Account{Owner: solana.SystemProgramID, Kind: types.KindSystem}
	}
	sum := acc.Lamports + amount
	if sum < acc.Lamports {
		return ErrBalanceOverflow
	}
	acc.Lamports = sum
	return m.PutAccount(addr, acc)
}

// isPlainWallet reports whether acc is an uninitialised system account that
// may be taken over by an allocation.
func isPlainWallet(acc *types.Account) bool {
	return acc.Kind == types.KindSystem && acc.Space == 0
}

// CreateAccount allocates space bytes at addr owned by owner. payer funds the
// rent-exempt minimum and must be authorized by auth. A plain wallet already
// holding lamports at addr is adopted and only topped up.
func (m *Manager) CreateAccount(payer, addr solana.PublicKey, space uint64, owner solana.PublicKey, kind types.AccountKind, auth types.Authority) error {
	if auth == nil || !auth.Authorizes(payer) {
		return ErrUnauthorizedDebit
	}
	existing, ok, err := m.GetAccount(addr)
	if err != nil {
		return err
	}
	var held uint64
	if ok {
		if !isPlainWallet(existing) {
			return ErrAccountExists
		}
		held = existing.Lamports
	}
	rent := RentExemptMinimum(space)
	if held < rent {
		if err := m.debit(payer, rent-held); err != nil {
			return err
		}
		held = rent
	}
	return m.PutAccount(addr, &types.Account{Lamports: held, Owner: owner, Space: space, Kind: kind})
}

// CloseAccount deletes the account at addr and moves its lamports to dest.
func (m *Manager) CloseAccount(addr, dest solana.PublicKey) (uint64, error) {
	acc, ok, err := m.GetAccount(addr)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ErrAccountNotFound
	}
	if err := m.deleteAccount(addr); err != nil {
		return 0, err
	}
	if acc.Kind == types.KindToken {
		if err := m.KVDelete(tokenAccountKey(addr)); err != nil {
			return 0, err
		}
	}
	if acc.Lamports > 0 {
		if err := m.Credit(dest, acc.Lamports); err != nil {
			return 0, err
		}
	}
	return acc.Lamports, nil
}

func (m *Manager) debit(addr solana.PublicKey, amount uint64) error {
	acc, ok, err := m.GetAccount(addr)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInsufficientLamports
	}
	if acc.Kind != types.KindSystem {
		return ErrNotSystemAccount
	}
	if acc.Lamports < amount {
		return ErrInsufficientLamports
	}
	acc.Lamports -= amount
	if acc.Lamports == 0 && isPlainWallet(acc) {
		// Empty wallets are reaped.
		return m.deleteAccount(addr)
	}
	return m.PutAccount(addr, acc)
}

// TransferLamports moves amount from a system account to any address. auth
// must authorize the source.
func (m *Manager) TransferLamports(from, to solana.PublicKey, amount uint64, auth types.Authority) error {
	if auth == nil || !auth.Authorizes(from) {
		return ErrUnauthorizedDebit
	}
	if amount == 0 {
		return nil
	}
	if from.Equals(to) {
		balance, err := m.LamportBalance(from)
		if err != nil {
			return err
		}
		if balance < amount {
			return ErrInsufficientLamports
		}
		return nil
	}
	if err := m.debit(from, amount); err != nil {
		return err
	}
	return m.Credit(to, amount)
}
