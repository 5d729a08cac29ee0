package state

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"

	"gotsol/core/types"
)

func TestMintToCreatesAssociatedAccount(t *testing.T) {
	manager := newTestManager(t)
	mint, wallet := newTestKey(t), newTestKey(t)

	_, err := manager.MintTo(mint, wallet, 10)
	require.ErrorIs(t, err, ErrMintNotFound)

	require.NoError(t, manager.CreateMint(mint, 6))
	require.ErrorIs(t, manager.CreateMint(mint, 6), ErrAccountExists)

	ata, err := manager.MintTo(mint, wallet, 1_000)
	require.NoError(t, err)
	expected, _, err := solana.FindAssociatedTokenAddress(wallet, mint)
	require.NoError(t, err)
	require.Equal(t, expected, ata)

	_, err = manager.MintTo(mint, wallet, 500)
	require.NoError(t, err)
	balance, err := manager.TokenBalance(ata)
	require.NoError(t, err)
	require.Equal(t, uint64(1_500), balance)

	info, ok, err := manager.MintGet(mint)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint8(6), info.Decimals)
	require.Equal(t, uint64(1_500), info.Supply)
}

func TestTransferToken(t *testing.T) {
	manager := newTestManager(t)
	mint, other, alice, bob := newTestKey(t), newTestKey(t), newTestKey(t), newTestKey(t)
	require.NoError(t, manager.CreateMint(mint, 6))
	require.NoError(t, manager.CreateMint(other, 6))
	require.NoError(t, manager.Credit(bob, 10_000_000))
	src, err := manager.MintTo(mint, alice, 1_000)
	require.NoError(t, err)

	dst := newTestKey(t)
	err = manager.TransferToken(src, dst, mint, 10, 6, types.SignerAuthority(alice))
	require.ErrorIs(t, err, ErrAccountNotFound)

	require.NoError(t, manager.CreateTokenAccount(bob, dst, mint, bob, types.SignerAuthority(bob)))
	wrongMint := newTestKey(t)
	require.NoError(t, manager.CreateTokenAccount(bob, wrongMint, other, bob, types.SignerAuthority(bob)))

	cases := []struct {
		name     string
		to       solana.PublicKey
		amount   uint64
		decimals uint8
		auth     types.Authority
		want     error
	}{
		{"decimals", dst, 10, 9, types.SignerAuthority(alice), ErrDecimalsMismatch},
		{"authority", dst, 10, 6, types.SignerAuthority(bob), ErrUnauthorizedDebit},
		{"nil authority", dst, 10, 6, nil, ErrUnauthorizedDebit},
		{"balance", dst, 1_001, 6, types.SignerAuthority(alice), ErrInsufficientTokens},
		{"destination mint", wrongMint, 10, 6, types.SignerAuthority(alice), ErrMintMismatch},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := manager.TransferToken(src, tc.to, mint, tc.amount, tc.decimals, tc.auth)
			require.ErrorIs(t, err, tc.want)
		})
	}

	require.NoError(t, manager.TransferToken(src, dst, mint, 400, 6, types.SignerAuthority(alice)))
	balance, err := manager.TokenBalance(src)
	require.NoError(t, err)
	require.Equal(t, uint64(600), balance)
	balance, err = manager.TokenBalance(dst)
	require.NoError(t, err)
	require.Equal(t, uint64(400), balance)
}

func TestCreateTokenAccountRequiresMint(t *testing.T) {
	manager := newTestManager(t)
	payer := newTestKey(t)
	require.NoError(t, manager.Credit(payer, 10_000_000))
	err := manager.CreateTokenAccount(payer, newTestKey(t), newTestKey(t), payer, types.SignerAuthority(payer))
	require.ErrorIs(t, err, ErrMintNotFound)
}

func TestCloseTokenAccountDropsBalance(t *testing.T) {
	manager := newTestManager(t)
	mint, wallet, dest := newTestKey(t), newTestKey(t), newTestKey(t)
	require.NoError(t, manager.CreateMint(mint, 6))
	ata, err := manager.MintTo(mint, wallet, 10)
	require.NoError(t, err)

	reclaimed, err := manager.CloseAccount(ata, dest)
	require.NoError(t, err)
	require.Equal(t, RentExemptMinimum(TokenAccountSpace), reclaimed)
	_, ok, err := manager.TokenAccountGet(ata)
	require.NoError(t, err)
	require.False(t, ok)
}
