package state

import (
	"github.com/gagliardetto/solana-go"

	"gotsol/native/merchant"
)

var (
	merchantRecordPrefix = []byte("merchant/record/")
	refundRecordPrefix   = []byte("merchant/refund/")
	refundDenyPrefix     = []byte("merchant/refund-deny/")
)

type storedMerchant struct {
	Owner          solana.PublicKey
	EntityName     string
	FeeEligible    bool
	TotalWithdrawn uint64
	TotalRefunded  uint64
	RefundLimit    uint64
	MerchantBump   uint8
	VaultBump      uint8
	CreatedAt      uint64
}

type storedRefundRecord struct {
	OriginalTxSig string
	Merchant      solana.PublicKey
	Recipient     solana.PublicKey
	Asset         solana.PublicKey
	Amount        uint64
	Bump          uint8
	CreatedAt     uint64
}

func merchantRecordKey(addr solana.PublicKey) []byte {
	return prefixedKey(merchantRecordPrefix, addr.Bytes())
}

func refundRecordKey(addr solana.PublicKey) []byte {
	return prefixedKey(refundRecordPrefix, addr.Bytes())
}

func refundDenyKey(addr solana.PublicKey) []byte {
	return prefixedKey(refundDenyPrefix, addr.Bytes())
}

func clampTimestamp(ts int64) uint64 {
	if ts < 0 {
		return 0
	}
	return uint64(ts)
}

// MerchantGet returns the merchant record stored at addr.
func (m *Manager) MerchantGet(addr solana.PublicKey) (*merchant.Merchant, bool, error) {
	var stored storedMerchant
	ok, err := m.KVGet(merchantRecordKey(addr), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	return &merchant.Merchant{
		Owner:          stored.Owner,
		EntityName:     stored.EntityName,
		FeeEligible:    stored.FeeEligible,
		TotalWithdrawn: stored.TotalWithdrawn,
		TotalRefunded:  stored.TotalRefunded,
		RefundLimit:    stored.RefundLimit,
		MerchantBump:   stored.MerchantBump,
		VaultBump:      stored.VaultBump,
		CreatedAt:      int64(stored.CreatedAt),
	}, true, nil
}

// MerchantPut writes the merchant record at addr.
func (m *Manager) MerchantPut(addr solana.PublicKey, rec *merchant.Merchant) error {
	return m.KVPut(merchantRecordKey(addr), &storedMerchant{
		Owner:          rec.Owner,
		EntityName:     rec.EntityName,
		FeeEligible:    rec.FeeEligible,
		TotalWithdrawn: rec.TotalWithdrawn,
		TotalRefunded:  rec.TotalRefunded,
		RefundLimit:    rec.RefundLimit,
		MerchantBump:   rec.MerchantBump,
		VaultBump:      rec.VaultBump,
		CreatedAt:      clampTimestamp(rec.CreatedAt),
	})
}

// MerchantDelete removes the merchant record at addr.
func (m *Manager) MerchantDelete(addr solana.PublicKey) error {
	return m.KVDelete(merchantRecordKey(addr))
}

// RefundRecordGet returns the refund record stored at addr.
func (m *Manager) RefundRecordGet(addr solana.PublicKey) (*merchant.RefundRecord, bool, error) {
	var stored storedRefundRecord
	ok, err := m.KVGet(refundRecordKey(addr), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	return &merchant.RefundRecord{
		OriginalTxSig: stored.OriginalTxSig,
		Merchant:      stored.Merchant,
		Recipient:     stored.Recipient,
		Asset:         stored.Asset,
		Amount:        stored.Amount,
		Bump:          stored.Bump,
		CreatedAt:     int64(stored.CreatedAt),
	}, true, nil
}

// RefundRecordPut writes the refund record at addr.
func (m *Manager) RefundRecordPut(addr solana.PublicKey, rec *merchant.RefundRecord) error {
	return m.KVPut(refundRecordKey(addr), &storedRefundRecord{
		OriginalTxSig: rec.OriginalTxSig,
		Merchant:      rec.Merchant,
		Recipient:     rec.Recipient,
		Asset:         rec.Asset,
		Amount:        rec.Amount,
		Bump:          rec.Bump,
		CreatedAt:     clampTimestamp(rec.CreatedAt),
	})
}

// RefundRecordDelete removes the refund record at addr.
func (m *Manager) RefundRecordDelete(addr solana.PublicKey) error {
	return m.KVDelete(refundRecordKey(addr))
}

// RefundDenied reports whether refunds for the record address are
// permanently blocked.
func (m *Manager) RefundDenied(addr solana.PublicKey) (bool, error) {
	return m.KVGet(refundDenyKey(addr), nil)
}

// RefundDeny permanently blocks refunds for the record address.
func (m *Manager) RefundDeny(addr solana.PublicKey) error {
	return m.KVPut(refundDenyKey(addr), true)
}
