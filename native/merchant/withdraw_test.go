package merchant_test

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"

	"gotsol/core/state"
	"gotsol/native/merchant"
)

func TestWithdrawTokenSplitsOwnerAndHouse(t *testing.T) {
	f := newFixture(t)
	addr := f.createMerchant("Split")
	f.depositTokens(addr, 25_000)
	custody, err := merchant.CustodyTokenAddress(addr, f.usdc)
	require.NoError(t, err)

	receipt, err := f.engine.WithdrawToken(f.as(f.owner), addr, f.usdc, 10_000)
	require.NoError(t, err)
	require.Equal(t, uint64(10_000), receipt.Gross)
	require.Zero(t, receipt.Remainder)
	require.Len(t, receipt.Legs, 2)
	require.Equal(t, merchant.RoleOwner, receipt.Legs[0].Role)
	require.Equal(t, uint64(9_900), receipt.Legs[0].Amount)
	require.Equal(t, f.ata(f.owner), receipt.Legs[0].Destination)
	require.Equal(t, merchant.RoleHouse, receipt.Legs[1].Role)
	require.Equal(t, uint64(100), receipt.Legs[1].Amount)

	require.Equal(t, uint64(9_900), f.tokenBalance(f.ata(f.owner)))
	require.Equal(t, uint64(100), f.tokenBalance(f.ata(f.house)))
	require.Equal(t, uint64(15_000), f.tokenBalance(custody))
	require.Equal(t, uint64(10_000), f.record(addr).TotalWithdrawn)

	evt := f.recorder.last()
	require.Equal(t, merchant.EventTypeMerchantWithdrawn, evt.Type)
	require.Equal(t, "10000", evt.Attributes["amount"])
	require.Equal(t, "9900", evt.Attributes["ownerAmount"])
	require.Equal(t, "100", evt.Attributes["houseAmount"])
	require.Equal(t, f.usdc.String(), evt.Attributes["asset"])
}

func TestWithdrawTokenKeepsRemainderInCustody(t *testing.T) {
	f := newFixture(t)
	addr := f.createMerchant("Remainder")
	f.depositTokens(addr, 10_002)
	custody, err := merchant.CustodyTokenAddress(addr, f.usdc)
	require.NoError(t, err)

	receipt, err := f.engine.WithdrawToken(f.as(f.owner), addr, f.usdc, 10_001)
	require.NoError(t, err)
	require.Equal(t, uint64(1), receipt.Remainder)
	require.Equal(t, uint64(2), f.tokenBalance(custody))
	require.Equal(t, uint64(9_900), f.tokenBalance(f.ata(f.owner)))
	require.Equal(t, uint64(100), f.tokenBalance(f.ata(f.house)))
}

func TestWithdrawTokenFullBalanceEmptiesCustody(t *testing.T) {
	f := newFixture(t)
	addr := f.createMerchant("Drained")
	f.depositTokens(addr, 10_050)
	custody, err := merchant.CustodyTokenAddress(addr, f.usdc)
	require.NoError(t, err)

	receipt, err := f.engine.WithdrawToken(f.as(f.owner), addr, f.usdc, 10_050)
	require.NoError(t, err)
	require.Zero(t, receipt.Remainder)
	require.Equal(t, uint64(9_950), receipt.Legs[0].Amount)
	require.Zero(t, f.tokenBalance(custody))
	require.Equal(t, uint64(9_950), f.tokenBalance(f.ata(f.owner)))
	require.Equal(t, uint64(100), f.tokenBalance(f.ata(f.house)))
	require.Equal(t, uint64(10_050), f.record(addr).TotalWithdrawn)

	_, err = f.engine.CloseMerchant(f.as(f.owner), addr)
	require.NoError(t, err)
}

func TestWithdrawTokenRejections(t *testing.T) {
	f := newFixture(t)
	addr := f.createMerchant("Guarded")
	f.depositTokens(addr, 1_000)
	custody, err := merchant.CustodyTokenAddress(addr, f.usdc)
	require.NoError(t, err)

	_, err = f.engine.WithdrawToken(f.as(f.customer), addr, f.usdc, 500)
	require.ErrorIs(t, err, merchant.ErrNotMerchantOwner)

	_, err = f.engine.WithdrawToken(f.as(f.owner), addr, f.usdc, 50)
	require.ErrorIs(t, err, merchant.ErrBelowMinimumWithdrawal)

	_, err = f.engine.WithdrawToken(f.as(f.owner), addr, f.usdc, 0)
	require.ErrorIs(t, err, merchant.ErrBelowMinimumWithdrawal)

	_, err = f.engine.WithdrawToken(f.as(f.owner), addr, f.usdc, 1_001)
	require.ErrorIs(t, err, merchant.ErrInsufficientFunds)

	_, err = f.engine.WithdrawToken(f.as(f.owner), addr, newKey(t), 500)
	require.ErrorIs(t, err, merchant.ErrUnsupportedMint)

	require.Equal(t, uint64(1_000), f.tokenBalance(custody))
	require.Zero(t, f.record(addr).TotalWithdrawn)
	require.Equal(t, merchant.EventTypeMerchantPayment, f.recorder.last().Type)
}

func TestWithdrawTokenDetectsDecimalsMismatch(t *testing.T) {
	f := newFixture(t)
	addr := f.createMerchant("Decimals")
	f.depositTokens(addr, 1_000)

	params := f.params
	params.Mints = []merchant.MintParams{{Address: f.usdc, Symbol: "USDC", Decimals: 9}}
	f.engine.SetParams(params)

	_, err := f.engine.WithdrawToken(f.as(f.owner), addr, f.usdc, 500)
	require.ErrorIs(t, err, merchant.ErrMintDecimalsMismatch)
}

func TestWithdrawTokenComplianceSchedule(t *testing.T) {
	f := newFixture(t, func(p *merchant.Params) { p.TokenSchedule = merchant.ComplianceSchedule() })
	addr := f.createMerchant("Taxed")
	f.depositTokens(addr, 10_000)

	receipt, err := f.engine.WithdrawToken(f.as(f.owner), addr, f.usdc, 10_000)
	require.NoError(t, err)
	require.Len(t, receipt.Legs, 3)

	escrow, _, err := merchant.ComplianceAddress(f.params.ProgramID, addr, f.usdc)
	require.NoError(t, err)
	require.Equal(t, uint64(9_400), f.tokenBalance(f.ata(f.owner)))
	require.Equal(t, uint64(500), f.tokenBalance(escrow))
	require.Equal(t, uint64(100), f.tokenBalance(f.ata(f.house)))

	_, err = f.engine.PayCompliance(f.as(f.customer), addr, f.usdc)
	require.ErrorIs(t, err, merchant.ErrNotMerchantOwner)

	paid, err := f.engine.PayCompliance(f.as(f.owner), addr, f.usdc)
	require.NoError(t, err)
	require.Equal(t, uint64(500), paid)
	require.Zero(t, f.tokenBalance(escrow))
	require.Equal(t, uint64(500), f.tokenBalance(f.ata(f.compliance)))
	require.Equal(t, merchant.EventTypeCompliancePaid, f.recorder.last().Type)

	_, err = f.engine.PayCompliance(f.as(f.owner), addr, f.usdc)
	require.ErrorIs(t, err, merchant.ErrInvalidWithdrawalAmount)
}

func TestComplianceEscrowPerMint(t *testing.T) {
	usdt := newKey(t)
	f := newFixture(t, func(p *merchant.Params) {
		p.TokenSchedule = merchant.ComplianceSchedule()
		p.Mints = append(p.Mints, merchant.MintParams{Address: usdt, Symbol: "USDT", Decimals: usdcDecimals})
	})
	require.NoError(t, f.state.CreateMint(usdt, usdcDecimals))
	_, err := f.state.MintTo(usdt, f.customer, 1_000_000)
	require.NoError(t, err)

	addr := f.createMerchant("TwoMints")
	f.depositTokens(addr, 10_000)
	require.NoError(t, f.engine.Pay(f.as(f.customer), addr, usdt, 10_000))

	_, err = f.engine.WithdrawToken(f.as(f.owner), addr, f.usdc, 10_000)
	require.NoError(t, err)
	_, err = f.engine.WithdrawToken(f.as(f.owner), addr, usdt, 10_000)
	require.NoError(t, err)

	usdcEscrow, _, err := merchant.ComplianceAddress(f.params.ProgramID, addr, f.usdc)
	require.NoError(t, err)
	usdtEscrow, _, err := merchant.ComplianceAddress(f.params.ProgramID, addr, usdt)
	require.NoError(t, err)
	require.NotEqual(t, usdcEscrow, usdtEscrow)
	require.Equal(t, uint64(500), f.tokenBalance(usdcEscrow))
	require.Equal(t, uint64(500), f.tokenBalance(usdtEscrow))

	paid, err := f.engine.PayCompliance(f.as(f.owner), addr, usdt)
	require.NoError(t, err)
	require.Equal(t, uint64(500), paid)
	require.Zero(t, f.tokenBalance(usdtEscrow))
	require.Equal(t, uint64(500), f.tokenBalance(usdcEscrow))

	// The unpaid escrow still counts as custody.
	_, err = f.engine.CloseMerchant(f.as(f.owner), addr)
	require.ErrorIs(t, err, merchant.ErrCustodyNotEmpty)
	_, err = f.engine.PayCompliance(f.as(f.owner), addr, f.usdc)
	require.NoError(t, err)
	_, err = f.engine.CloseMerchant(f.as(f.owner), addr)
	require.NoError(t, err)
}

func TestWithdrawNative(t *testing.T) {
	f := newFixture(t)
	addr := f.createMerchant("Lamports")
	f.depositLamports(addr, 5_000_000)
	ownerBefore := f.lamports(f.owner)

	receipt, err := f.engine.WithdrawNative(f.as(f.owner), addr, 1_000_000)
	require.NoError(t, err)
	require.Equal(t, merchant.NativeAsset, receipt.Asset)
	require.Equal(t, ownerBefore+990_000, f.lamports(f.owner))
	require.Equal(t, uint64(10_000), f.lamports(f.house))
	require.Equal(t, uint64(4_000_000), f.lamports(f.vault(addr)))
	require.Equal(t, "native", f.recorder.last().Attributes["asset"])
}

func TestWithdrawNativeRentExemption(t *testing.T) {
	f := newFixture(t)
	addr := f.createMerchant("Rent")
	f.depositLamports(addr, 1_000_000)
	vault := f.vault(addr)
	require.Greater(t, uint64(1_000_000), state.RentExemptMinimum(0))

	_, err := f.engine.WithdrawNative(f.as(f.owner), addr, 500_000)
	require.ErrorIs(t, err, merchant.ErrRentExemptionViolation)
	require.Equal(t, uint64(1_000_000), f.lamports(vault))

	_, err = f.engine.WithdrawNative(f.as(f.owner), addr, 500)
	require.ErrorIs(t, err, merchant.ErrBelowMinimumWithdrawal)

	_, err = f.engine.WithdrawNative(f.as(f.owner), addr, 2_000_000)
	require.ErrorIs(t, err, merchant.ErrInsufficientFunds)

	// Draining the vault completely is allowed.
	_, err = f.engine.WithdrawNative(f.as(f.owner), addr, 1_000_000)
	require.NoError(t, err)
	require.Zero(t, f.lamports(vault))
	_, exists, err := f.state.GetAccount(vault)
	require.NoError(t, err)
	require.False(t, exists)
}

func TestWithdrawNativeFullDrainWithRemainder(t *testing.T) {
	f := newFixture(t)
	addr := f.createMerchant("Uneven")
	f.depositLamports(addr, 1_000_050)
	vault := f.vault(addr)
	ownerBefore := f.lamports(f.owner)

	// A partial withdrawal would leave dust below the rent-exempt minimum.
	_, err := f.engine.WithdrawNative(f.as(f.owner), addr, 1_000_000)
	require.ErrorIs(t, err, merchant.ErrRentExemptionViolation)

	receipt, err := f.engine.WithdrawNative(f.as(f.owner), addr, 1_000_050)
	require.NoError(t, err)
	require.Zero(t, receipt.Remainder)
	require.Equal(t, uint64(990_050), receipt.Legs[0].Amount)
	require.Equal(t, uint64(10_000), receipt.Legs[1].Amount)
	require.Equal(t, ownerBefore+990_050, f.lamports(f.owner))
	require.Zero(t, f.lamports(vault))

	_, err = f.engine.CloseMerchant(f.as(f.owner), addr)
	require.NoError(t, err)
}

func TestSponsoredWithdrawal(t *testing.T) {
	f := newFixture(t)
	addr := f.createMerchant("Sponsored")
	f.depositTokens(addr, 10_000)
	sponsored := f.as(f.owner)
	sponsored.Sponsored = true

	_, err := f.engine.WithdrawToken(sponsored, addr, f.usdc, 1_000)
	require.ErrorIs(t, err, merchant.ErrFeeIneligibleMerchant)

	_, err = f.engine.SetStatus(f.as(f.admin), addr, true)
	require.NoError(t, err)

	ownerBefore := f.lamports(f.owner)
	sponsorBefore := f.lamports(f.sponsor)
	_, err = f.engine.WithdrawToken(sponsored, addr, f.usdc, 1_000)
	require.NoError(t, err)
	require.Equal(t, ownerBefore, f.lamports(f.owner))
	ataRent := state.RentExemptMinimum(merchant.TokenAccountSpace)
	require.Equal(t, sponsorBefore-2*ataRent, f.lamports(f.sponsor))

	f.engine.SetParams(func() merchant.Params { p := f.params; p.FeePayer = solana.PublicKey{}; return p }())
	_, err = f.engine.WithdrawToken(sponsored, addr, f.usdc, 1_000)
	require.ErrorIs(t, err, merchant.ErrSponsorUnavailable)
}
