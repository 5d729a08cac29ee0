package state

import (
	"github.com/gagliardetto/solana-go"

	"gotsol/core/types"
)

// TokenAccountSpace is the data size of a token account.
const TokenAccountSpace uint64 = 165

// MintGet returns the mint stored at addr.
func (m *Manager) MintGet(addr solana.PublicKey) (*types.Mint, bool, error) {
	var mint types.Mint
	ok, err := m.KVGet(mintKey(addr), &mint)
	if err != nil || !ok {
		return nil, false, err
	}
	return &mint, true, nil
}

// CreateMint registers a mint with the given decimals. It is a genesis
// operation and charges no rent.
func (m *Manager) CreateMint(addr solana.PublicKey, decimals uint8) error {
	if _, ok, err := m.GetAccount(addr); err != nil {
		return err
	} else if ok {
		return ErrAccountExists
	}
	if err := m.PutAccount(addr, &types.Account{
		Lamports: RentExemptMinimum(82),
		Owner:    solana.TokenProgramID,
		Space:    82,
		Kind:     types.KindMint,
	}); err != nil {
		return err
	}
	return m.KVPut(mintKey(addr), &types.Mint{Decimals: decimals})
}

// TokenAccountGet returns the token account stored at addr.
func (m *Manager) TokenAccountGet(addr solana.PublicKey) (*types.TokenAccount, bool, error) {
	var acc types.TokenAccount
	ok, err := m.KVGet(tokenAccountKey(addr), &acc)
	if err != nil || !ok {
		return nil, false, err
	}
	return &acc, true, nil
}

// TokenBalance returns the amount held at addr, zero when absent.
func (m *Manager) TokenBalance(addr solana.PublicKey) (uint64, error) {
	acc, ok, err := m.TokenAccountGet(addr)
	if err != nil || !ok {
		return 0, err
	}
	return acc.Amount, nil
}

// CreateTokenAccount allocates a token account for mint at addr whose
// transfer authority is owner. payer funds the rent.
func (m *Manager) CreateTokenAccount(payer, addr, mint, owner solana.PublicKey, auth types.Authority) error {
	if _, ok, err := m.MintGet(mint); err != nil {
		return err
	} else if !ok {
		return ErrMintNotFound
	}
	if err := m.CreateAccount(payer, addr, TokenAccountSpace, solana.TokenProgramID, types.KindToken, auth); err != nil {
		return err
	}
	return m.KVPut(tokenAccountKey(addr), &types.TokenAccount{Mint: mint, Owner: owner})
}

// TransferToken moves amount between two token accounts of mint. decimals
// must match the mint and auth must authorize the source account's owner.
func (m *Manager) TransferToken(from, to, mint solana.PublicKey, amount uint64, decimals uint8, auth types.Authority) error {
	mintInfo, ok, err := m.MintGet(mint)
	if err != nil {
		return err
	}
	if !ok {
		return ErrMintNotFound
	}
	if mintInfo.Decimals != decimals {
		return ErrDecimalsMismatch
	}
	src, ok, err := m.TokenAccountGet(from)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAccountNotFound
	}
	if !src.Mint.Equals(mint) {
		return ErrMintMismatch
	}
	if auth == nil || !auth.Authorizes(src.Owner) {
		return ErrUnauthorizedDebit
	}
	if src.Amount < amount {
		return ErrInsufficientTokens
	}
	if from.Equals(to) || amount == 0 {
		return nil
	}
	dst, ok, err := m.TokenAccountGet(to)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAccountNotFound
	}
	if !dst.Mint.Equals(mint) {
		return ErrMintMismatch
	}
	sum := dst.Amount + amount
	if sum < dst.Amount {
		return ErrBalanceOverflow
	}
	src.Amount -= amount
	dst.Amount = sum
	if err := m.KVPut(tokenAccountKey(from), src); err != nil {
		return err
	}
	return m.KVPut(tokenAccountKey(to), dst)
}

// MintTo credits amount of mint to wallet's associated token account,
// creating it without rent charges. It is a genesis operation.
func (m *Manager) MintTo(mint, wallet solana.PublicKey, amount uint64) (solana.PublicKey, error) {
	mintInfo, ok, err := m.MintGet(mint)
	if err != nil {
		return solana.PublicKey{}, err
	}
	if !ok {
		return solana.PublicKey{}, ErrMintNotFound
	}
	ata, _, err := solana.FindAssociatedTokenAddress(wallet, mint)
	if err != nil {
		return solana.PublicKey{}, err
	}
	acc, ok, err := m.TokenAccountGet(ata)
	if err != nil {
		return solana.PublicKey{}, err
	}
	if !ok {
		if err := m.PutAccount(ata, &types.Account{
			Lamports: RentExemptMinimum(TokenAccountSpace),
			Owner:    solana.TokenProgramID,
			Space:    TokenAccountSpace,
			Kind:     types.KindToken,
		}); err != nil {
			return solana.PublicKey{}, err
		}
		acc = &types.TokenAccount{Mint: mint, Owner: wallet}
	}
	supply := mintInfo.Supply + amount
	balance := acc.Amount + amount
	if supply < mintInfo.Supply || balance < acc.Amount {
		return solana.PublicKey{}, ErrBalanceOverflow
	}
	mintInfo.Supply = supply
	acc.Amount = balance
	if err := m.KVPut(mintKey(mint), mintInfo); err != nil {
		return solana.PublicKey{}, err
	}
	if err := m.KVPut(tokenAccountKey(ata), acc); err != nil {
		return solana.PublicKey{}, err
	}
	return ata, nil
}
