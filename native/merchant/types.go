package merchant

import (
	"strings"

	"github.com/gagliardetto/solana-go"
)

// MaxNameLength bounds the raw entity name in bytes. The name is also a
// derivation seed, so it cannot exceed the 32-byte seed limit.
const MaxNameLength = 32

// Merchant is the registry record stored at the merchant's derived address.
type Merchant struct {
	Owner          solana.PublicKey
	EntityName     string
	FeeEligible    bool
	TotalWithdrawn uint64
	TotalRefunded  uint64
	// RefundLimit caps a single refund. Zero disables the cap.
	RefundLimit  uint64
	MerchantBump uint8
	VaultBump    uint8
	CreatedAt    int64
}

// Clone returns a copy of the merchant record.
func (m *Merchant) Clone() *Merchant {
	if m == nil {
		return nil
	}
	clone := *m
	return &clone
}

// RefundRecord marks an original transaction signature as refunded. Its
// existence at the derived address is the idempotency guard.
type RefundRecord struct {
	OriginalTxSig string
	Merchant      solana.PublicKey
	Recipient     solana.PublicKey
	// Asset is the refunded mint, or the zero key for native lamports.
	Asset     solana.PublicKey
	Amount    uint64
	Bump      uint8
	CreatedAt int64
}

// Clone returns a copy of the refund record.
func (r *RefundRecord) Clone() *RefundRecord {
	if r == nil {
		return nil
	}
	clone := *r
	return &clone
}

// NativeAsset identifies lamports wherever an asset key is expected.
var NativeAsset = solana.PublicKey{}

// AssetLabel renders an asset key for events and logs.
func AssetLabel(asset solana.PublicKey) string {
	if asset.IsZero() {
		return "native"
	}
	return asset.String()
}

// Caller is the authenticated identity behind an operation. Sponsored calls
// ask the configured fee payer to fund any records the call creates.
type Caller struct {
	Key       solana.PublicKey
	Sponsored bool
}

// Leg is one transfer out of custody produced by a withdrawal.
type Leg struct {
	Role        Role
	Destination solana.PublicKey
	Amount      uint64
}

// Receipt summarises a completed withdrawal.
type Receipt struct {
	Merchant  solana.PublicKey
	Asset     solana.PublicKey
	Gross     uint64
	Legs      []Leg
	Remainder uint64
}

// NormalizeName trims surrounding whitespace and enforces the name bounds.
// The bound applies to the raw input so that padded names cannot smuggle
// oversize seeds.
func NormalizeName(name string) (string, error) {
	if len(name) > MaxNameLength {
		return "", ErrInvalidMerchantName
	}
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", ErrInvalidMerchantName
	}
	return trimmed, nil
}
