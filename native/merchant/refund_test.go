package merchant_test

import (
	"strings"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"

	"gotsol/core/state"
	"gotsol/native/merchant"
)

func TestRefundToken(t *testing.T) {
	f := newFixture(t)
	addr := f.createMerchant("Books")
	f.depositTokens(addr, 5_000)
	sig := newSig(t)
	customerBefore := f.tokenBalance(f.ata(f.customer))

	rec, err := f.engine.RefundToken(f.as(f.owner), addr, f.usdc, sig, 1_200, f.customer)
	require.NoError(t, err)
	require.Equal(t, sig, rec.OriginalTxSig)
	require.Equal(t, addr, rec.Merchant)
	require.Equal(t, f.customer, rec.Recipient)
	require.Equal(t, f.usdc, rec.Asset)
	require.Equal(t, uint64(1_200), rec.Amount)
	require.Equal(t, fixedNow, rec.CreatedAt)

	require.Equal(t, customerBefore+1_200, f.tokenBalance(f.ata(f.customer)))
	require.Equal(t, uint64(1_200), f.record(addr).TotalRefunded)

	refundAddr, bump, err := merchant.RefundAddress(f.params.ProgramID, sig)
	require.NoError(t, err)
	require.Equal(t, bump, rec.Bump)
	require.Equal(t, state.RentExemptMinimum(merchant.RefundRecordSpace), f.lamports(refundAddr))

	stored, err := f.engine.RefundRecord(sig)
	require.NoError(t, err)
	require.Equal(t, rec, stored)

	evt := f.recorder.last()
	require.Equal(t, merchant.EventTypeMerchantRefunded, evt.Type)
	require.Equal(t, sig, evt.Attributes["originalTxSig"])
	require.Equal(t, "1200", evt.Attributes["amount"])
}

func TestRefundRejectsDuplicateSignature(t *testing.T) {
	f := newFixture(t)
	addr := f.createMerchant("Twice")
	f.depositTokens(addr, 5_000)
	sig := newSig(t)

	_, err := f.engine.RefundToken(f.as(f.owner), addr, f.usdc, sig, 100, f.customer)
	require.NoError(t, err)
	customerAfter := f.tokenBalance(f.ata(f.customer))

	_, err = f.engine.RefundToken(f.as(f.owner), addr, f.usdc, sig, 100, f.customer)
	require.ErrorIs(t, err, merchant.ErrDuplicateRefund)
	f.depositLamports(addr, 5_000_000)
	_, err = f.engine.RefundNative(f.as(f.owner), addr, sig, 1_000, f.customer)
	require.ErrorIs(t, err, merchant.ErrDuplicateRefund)

	require.Equal(t, customerAfter, f.tokenBalance(f.ata(f.customer)))
	require.Equal(t, uint64(100), f.record(addr).TotalRefunded)
}

func TestRefundValidation(t *testing.T) {
	f := newFixture(t)
	addr := f.createMerchant("Checks")
	f.depositTokens(addr, 5_000)

	cases := []struct {
		name   string
		caller merchant.Caller
		sig    string
		amount uint64
		want   error
	}{
		{name: "zero amount", caller: f.as(f.owner), sig: newSig(t), amount: 0, want: merchant.ErrZeroAmountRefund},
		{name: "not owner", caller: f.as(f.customer), sig: newSig(t), amount: 10, want: merchant.ErrNotMerchantOwner},
		{name: "empty signature", caller: f.as(f.owner), sig: "", amount: 10, want: merchant.ErrInvalidTransactionSignature},
		{name: "oversized signature", caller: f.as(f.owner), sig: strings.Repeat("1", 89), amount: 10, want: merchant.ErrInvalidTransactionSignature},
		{name: "not base58", caller: f.as(f.owner), sig: "0OIl", amount: 10, want: merchant.ErrInvalidTransactionSignature},
		{name: "short signature", caller: f.as(f.owner), sig: "3yZe7d", amount: 10, want: merchant.ErrInvalidTransactionSignature},
		{name: "insufficient custody", caller: f.as(f.owner), sig: newSig(t), amount: 5_001, want: merchant.ErrInsufficientFunds},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.engine.RefundToken(tc.caller, addr, f.usdc, tc.sig, tc.amount, f.customer)
			require.ErrorIs(t, err, tc.want)
		})
	}

	_, err := f.engine.RefundToken(f.as(f.owner), addr, f.usdc, newSig(t), 10, solana.PublicKey{})
	require.ErrorIs(t, err, merchant.ErrInvalidRecipient)
	custody, err := merchant.CustodyTokenAddress(addr, f.usdc)
	require.NoError(t, err)
	for _, self := range []solana.PublicKey{addr, custody} {
		sig := newSig(t)
		_, err = f.engine.RefundToken(f.as(f.owner), addr, f.usdc, sig, 10, self)
		require.ErrorIs(t, err, merchant.ErrInvalidRecipient)
		// The signature stays usable.
		_, err = f.engine.RefundRecord(sig)
		require.ErrorIs(t, err, merchant.ErrRefundNotFound)
	}
	_, err = f.engine.RefundToken(f.as(f.owner), addr, newKey(t), newSig(t), 10, f.customer)
	require.ErrorIs(t, err, merchant.ErrUnsupportedMint)
	require.Zero(t, f.record(addr).TotalRefunded)
}

func TestRefundLimits(t *testing.T) {
	f := newFixture(t, func(p *merchant.Params) { p.MaxRefundAmount = 2_000 })
	addr := f.createMerchant("Limited")
	f.depositTokens(addr, 10_000)

	_, err := f.engine.RefundToken(f.as(f.owner), addr, f.usdc, newSig(t), 2_001, f.customer)
	require.ErrorIs(t, err, merchant.ErrExcessiveRefundAmount)

	_, err = f.engine.SetRefundLimit(f.as(f.owner), addr, 500)
	require.NoError(t, err)
	_, err = f.engine.RefundToken(f.as(f.owner), addr, f.usdc, newSig(t), 501, f.customer)
	require.ErrorIs(t, err, merchant.ErrExcessiveRefundAmount)

	_, err = f.engine.RefundToken(f.as(f.owner), addr, f.usdc, newSig(t), 500, f.customer)
	require.NoError(t, err)
}

func TestRefundNative(t *testing.T) {
	f := newFixture(t)
	addr := f.createMerchant("Native")
	f.depositLamports(addr, 3_000_000)
	vault := f.vault(addr)
	recipient := newKey(t)

	rec, err := f.engine.RefundNative(f.as(f.owner), addr, newSig(t), 1_000_000, recipient)
	require.NoError(t, err)
	require.Equal(t, merchant.NativeAsset, rec.Asset)
	require.Equal(t, uint64(1_000_000), f.lamports(recipient))
	require.Equal(t, uint64(2_000_000), f.lamports(vault))

	// The vault may not be left holding dust below the rent-exempt minimum.
	_, err = f.engine.RefundNative(f.as(f.owner), addr, newSig(t), 1_500_000, recipient)
	require.ErrorIs(t, err, merchant.ErrRentExemptionViolation)
	require.Equal(t, uint64(2_000_000), f.lamports(vault))

	_, err = f.engine.RefundNative(f.as(f.owner), addr, newSig(t), 2_000_001, recipient)
	require.ErrorIs(t, err, merchant.ErrInsufficientFunds)

	for _, self := range []solana.PublicKey{addr, vault} {
		_, err = f.engine.RefundNative(f.as(f.owner), addr, newSig(t), 1_000, self)
		require.ErrorIs(t, err, merchant.ErrInvalidRecipient)
	}
	require.Equal(t, uint64(2_000_000), f.lamports(vault))
	require.Equal(t, uint64(1_000_000), f.record(addr).TotalRefunded)
}

func TestCloseRefund(t *testing.T) {
	f := newFixture(t)
	addr := f.createMerchant("Closing")
	f.depositTokens(addr, 5_000)
	sig := newSig(t)

	_, err := f.engine.CloseRefund(f.as(f.admin), sig)
	require.ErrorIs(t, err, merchant.ErrRefundNotFound)

	_, err = f.engine.RefundToken(f.as(f.owner), addr, f.usdc, sig, 100, f.customer)
	require.NoError(t, err)

	_, err = f.engine.CloseRefund(f.as(f.owner), sig)
	require.ErrorIs(t, err, merchant.ErrUnauthorized)

	adminBefore := f.lamports(f.admin)
	reclaimed, err := f.engine.CloseRefund(f.as(f.admin), sig)
	require.NoError(t, err)
	require.Equal(t, state.RentExemptMinimum(merchant.RefundRecordSpace), reclaimed)
	require.Equal(t, adminBefore+reclaimed, f.lamports(f.admin))

	evt := f.recorder.last()
	require.Equal(t, merchant.EventTypeRefundClosed, evt.Type)
	require.Equal(t, "true", evt.Attributes["denylisted"])

	_, err = f.engine.RefundRecord(sig)
	require.ErrorIs(t, err, merchant.ErrRefundNotFound)

	// A closed signature stays blocked.
	_, err = f.engine.RefundToken(f.as(f.owner), addr, f.usdc, sig, 100, f.customer)
	require.ErrorIs(t, err, merchant.ErrDuplicateRefund)
}

func TestCloseRefundWithoutDenylistAllowsReuse(t *testing.T) {
	f := newFixture(t, func(p *merchant.Params) { p.PermanentRefundDenylist = false })
	addr := f.createMerchant("Reusable")
	f.depositTokens(addr, 5_000)
	sig := newSig(t)

	_, err := f.engine.RefundToken(f.as(f.owner), addr, f.usdc, sig, 100, f.customer)
	require.NoError(t, err)
	_, err = f.engine.CloseRefund(f.as(f.admin), sig)
	require.NoError(t, err)
	require.Equal(t, "false", f.recorder.last().Attributes["denylisted"])

	_, err = f.engine.RefundToken(f.as(f.owner), addr, f.usdc, sig, 100, f.customer)
	require.NoError(t, err)
	require.Equal(t, uint64(200), f.record(addr).TotalRefunded)
}
