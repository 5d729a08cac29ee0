package merchant

import (
	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

// Seed tags. Each derived address class gets its own namespace.
const (
	SeedMerchant         = "merchant"
	SeedVault            = "vault"
	SeedRefund           = "refund"
	SeedComplianceEscrow = "compliance_escrow"
)

const (
	maxSignatureLength = 88
	signatureSize      = 64
)

// Derive finds the canonical program address for the seed tuple, searching
// bumps from 255 downwards and skipping on-curve candidates.
func Derive(programID solana.PublicKey, seeds ...[]byte) (solana.PublicKey, uint8, error) {
	addr, bump, err := solana.FindProgramAddress(seeds, programID)
	if err != nil {
		return solana.PublicKey{}, 0, ErrSeedMismatch
	}
	return addr, bump, nil
}

// Verify reproduces the address for the seeds and stored bump and checks it
// equals expected.
func Verify(programID, expected solana.PublicKey, bump uint8, seeds ...[]byte) error {
	full := make([][]byte, 0, len(seeds)+1)
	full = append(full, seeds...)
	full = append(full, []byte{bump})
	addr, err := solana.CreateProgramAddress(full, programID)
	if err != nil || !addr.Equals(expected) {
		return ErrSeedMismatch
	}
	return nil
}

// MerchantSeeds returns the seed tuple of a merchant record.
func MerchantSeeds(name string, owner solana.PublicKey) [][]byte {
	return [][]byte{[]byte(SeedMerchant), []byte(name), owner.Bytes()}
}

// VaultSeeds returns the seed tuple of a merchant's native vault.
func VaultSeeds(merchant solana.PublicKey) [][]byte {
	return [][]byte{[]byte(SeedVault), merchant.Bytes()}
}

// ComplianceSeeds returns the seed tuple of a merchant's compliance escrow for
// mint.
func ComplianceSeeds(merchant, mint solana.PublicKey) [][]byte {
	return [][]byte{[]byte(SeedComplianceEscrow), merchant.Bytes(), mint.Bytes()}
}

// RefundSeeds validates an original transaction signature and returns the
// seed tuple of its refund record. The decoded 64-byte signature is split in
// two seeds because a single seed is limited to 32 bytes.
func RefundSeeds(sig string) ([][]byte, error) {
	if sig == "" || len(sig) > maxSignatureLength {
		return nil, ErrInvalidTransactionSignature
	}
	raw, err := base58.Decode(sig)
	if err != nil || len(raw) != signatureSize {
		return nil, ErrInvalidTransactionSignature
	}
	return [][]byte{[]byte(SeedRefund), raw[:32], raw[32:]}, nil
}

// MerchantAddress derives the registry address for owner and a raw name.
func MerchantAddress(programID, owner solana.PublicKey, name string) (solana.PublicKey, uint8, error) {
	normalized, err := NormalizeName(name)
	if err != nil {
		return solana.PublicKey{}, 0, err
	}
	return Derive(programID, MerchantSeeds(normalized, owner)...)
}

// VaultAddress derives the native custody address of a merchant.
func VaultAddress(programID, merchant solana.PublicKey) (solana.PublicKey, uint8, error) {
	return Derive(programID, VaultSeeds(merchant)...)
}

// ComplianceAddress derives the compliance escrow token account of a merchant
// for mint. Each mint gets its own escrow.
func ComplianceAddress(programID, merchant, mint solana.PublicKey) (solana.PublicKey, uint8, error) {
	return Derive(programID, ComplianceSeeds(merchant, mint)...)
}

// RefundAddress derives the refund record address of a signature.
func RefundAddress(programID solana.PublicKey, sig string) (solana.PublicKey, uint8, error) {
	seeds, err := RefundSeeds(sig)
	if err != nil {
		return solana.PublicKey{}, 0, err
	}
	return Derive(programID, seeds...)
}

// CustodyTokenAddress is the associated token account holding the merchant's
// balance of mint.
func CustodyTokenAddress(merchant, mint solana.PublicKey) (solana.PublicKey, error) {
	return associatedTokenAddress(merchant, mint)
}

func associatedTokenAddress(wallet, mint solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindAssociatedTokenAddress(wallet, mint)
	if err != nil {
		return solana.PublicKey{}, ErrSeedMismatch
	}
	return addr, nil
}

// VaultAuthority is the signing capability of a program-derived address. It
// can only be obtained by re-deriving the address from its seeds, so holding
// one proves the engine vouched for the debit.
type VaultAuthority struct {
	address solana.PublicKey
	bump    uint8
}

func newVaultAuthority(programID, address solana.PublicKey, bump uint8, seeds ...[]byte) (VaultAuthority, error) {
	if err := Verify(programID, address, bump, seeds...); err != nil {
		return VaultAuthority{}, err
	}
	return VaultAuthority{address: address, bump: bump}, nil
}

// Address returns the derived address the authority signs for.
func (v VaultAuthority) Address() solana.PublicKey { return v.address }

// Authorizes reports whether the authority may debit addr.
func (v VaultAuthority) Authorizes(addr solana.PublicKey) bool {
	return !v.address.IsZero() && v.address.Equals(addr)
}
