package types

import (
	"github.com/gagliardetto/solana-go"
)

// AccountKind describes what a ledger account holds.
type AccountKind uint8

const (
	// KindSystem accounts hold only lamports (wallets, native vaults).
	KindSystem AccountKind = iota + 1
	// KindRecord accounts carry program-owned records such as merchants.
	KindRecord
	// KindToken accounts hold a balance of a single mint.
	KindToken
	// KindMint accounts describe a fungible token.
	KindMint
)

// String returns the lowercase kind label used in RPC responses.
func (k AccountKind) String() string {
	switch k {
	case KindSystem:
		return "system"
	case KindRecord:
		return "record"
	case KindToken:
		return "token"
	case KindMint:
		return "mint"
	default:
		return "unknown"
	}
}

// Account is the ledger entry that makes an address exist. Lamports includes
// the rent deposit paid when the account was created.
type Account struct {
	Lamports uint64           `json:"lamports"`
	Owner    solana.PublicKey `json:"owner"`
	Space    uint64           `json:"space"`
	Kind     AccountKind      `json:"kind"`
}

// Clone returns a copy that callers can mutate freely.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	clone := *a
	return &clone
}

// Mint captures the token-level configuration checked by every token transfer.
type Mint struct {
	Decimals uint8  `json:"decimals"`
	Supply   uint64 `json:"supply"`
}

// TokenAccount holds a balance of Mint controlled by Owner. Owner is the
// transfer authority, which for custody accounts is a derived address.
type TokenAccount struct {
	Mint   solana.PublicKey `json:"mint"`
	Owner  solana.PublicKey `json:"owner"`
	Amount uint64           `json:"amount"`
}

// Clone returns a copy that callers can mutate freely.
func (t *TokenAccount) Clone() *TokenAccount {
	if t == nil {
		return nil
	}
	clone := *t
	return &clone
}

// Authority proves the right to debit an address. Wallet keys authorize their
// own address once the caller's signature has been verified; derived
// addresses are authorized by reproducing their seeds.
type Authority interface {
	Authorizes(addr solana.PublicKey) bool
}

// SignerAuthority is the authority of an authenticated wallet key.
type SignerAuthority solana.PublicKey

// Authorizes implements Authority.
func (s SignerAuthority) Authorizes(addr solana.PublicKey) bool {
	return solana.PublicKey(s).Equals(addr)
}
