package merchant

import (
	"crypto/rand"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/require"
)

func randomKey(t *testing.T) solana.PublicKey {
	t.Helper()
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	return key.PublicKey()
}

func randomSignature(t *testing.T) string {
	t.Helper()
	raw := make([]byte, signatureSize)
	_, err := rand.Read(raw)
	require.NoError(t, err)
	return base58.Encode(raw)
}

func TestDeriveIsDeterministic(t *testing.T) {
	owner := randomKey(t)
	addr, bump, err := MerchantAddress(DefaultProgramID, owner, "Bakery")
	require.NoError(t, err)
	again, bumpAgain, err := MerchantAddress(DefaultProgramID, owner, "  Bakery ")
	require.NoError(t, err)
	require.Equal(t, addr, again)
	require.Equal(t, bump, bumpAgain)

	require.NoError(t, Verify(DefaultProgramID, addr, bump, MerchantSeeds("Bakery", owner)...))
	require.ErrorIs(t, Verify(DefaultProgramID, addr, bump, MerchantSeeds("Bakery2", owner)...), ErrSeedMismatch)
	require.ErrorIs(t, Verify(randomKey(t), addr, bump, MerchantSeeds("Bakery", owner)...), ErrSeedMismatch)
}

func TestDeriveSeparatesNamespaces(t *testing.T) {
	owner := randomKey(t)
	merchantAddr, _, err := MerchantAddress(DefaultProgramID, owner, "Shop")
	require.NoError(t, err)
	vault, _, err := VaultAddress(DefaultProgramID, merchantAddr)
	require.NoError(t, err)
	escrow, _, err := ComplianceAddress(DefaultProgramID, merchantAddr, randomKey(t))
	require.NoError(t, err)
	other, _, err := MerchantAddress(DefaultProgramID, randomKey(t), "Shop")
	require.NoError(t, err)

	seen := map[solana.PublicKey]string{}
	for name, addr := range map[string]solana.PublicKey{
		"merchant": merchantAddr,
		"vault":    vault,
		"escrow":   escrow,
		"other":    other,
	} {
		prev, dup := seen[addr]
		require.False(t, dup, "%s collides with %s", name, prev)
		seen[addr] = name
	}

	custody, err := CustodyTokenAddress(merchantAddr, randomKey(t))
	require.NoError(t, err)
	require.NotEqual(t, vault, custody)
}

func TestMerchantAddressRejectsInvalidNames(t *testing.T) {
	owner := randomKey(t)
	for _, name := range []string{"", "   ", "this merchant name is far too long to fit"} {
		_, _, err := MerchantAddress(DefaultProgramID, owner, name)
		require.ErrorIs(t, err, ErrInvalidMerchantName, name)
	}
}

func TestRefundSeeds(t *testing.T) {
	sig := randomSignature(t)
	seeds, err := RefundSeeds(sig)
	require.NoError(t, err)
	require.Len(t, seeds, 3)
	require.Equal(t, []byte(SeedRefund), seeds[0])
	require.Len(t, seeds[1], 32)
	require.Len(t, seeds[2], 32)

	addr, _, err := RefundAddress(DefaultProgramID, sig)
	require.NoError(t, err)
	other, _, err := RefundAddress(DefaultProgramID, randomSignature(t))
	require.NoError(t, err)
	require.NotEqual(t, addr, other)

	for _, bad := range []string{"", "not-base58!", base58.Encode(make([]byte, 63)), base58.Encode(make([]byte, 65))} {
		_, err := RefundSeeds(bad)
		require.ErrorIs(t, err, ErrInvalidTransactionSignature, bad)
	}
}

func TestVaultAuthority(t *testing.T) {
	merchantAddr := randomKey(t)
	vault, bump, err := VaultAddress(DefaultProgramID, merchantAddr)
	require.NoError(t, err)

	auth, err := newVaultAuthority(DefaultProgramID, vault, bump, VaultSeeds(merchantAddr)...)
	require.NoError(t, err)
	require.Equal(t, vault, auth.Address())
	require.True(t, auth.Authorizes(vault))
	require.False(t, auth.Authorizes(merchantAddr))

	_, err = newVaultAuthority(DefaultProgramID, vault, bump-1, VaultSeeds(merchantAddr)...)
	require.ErrorIs(t, err, ErrSeedMismatch)

	var zero VaultAuthority
	require.False(t, zero.Authorizes(solana.PublicKey{}))
}
