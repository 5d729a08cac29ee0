package merchant

import (
	"github.com/gagliardetto/solana-go"
)

// WithdrawToken moves amount of mint out of the merchant's token custody,
// split between the owner, the house and optionally the compliance escrow.
func (e *Engine) WithdrawToken(caller Caller, addr, mint solana.PublicKey, amount uint64) (*Receipt, error) {
	m, err := e.ownedMerchant(caller, addr)
	if err != nil {
		return nil, err
	}
	if amount < e.params.MinTokenWithdrawal || amount == 0 {
		return nil, ErrBelowMinimumWithdrawal
	}
	cfg, err := e.checkMint(mint)
	if err != nil {
		return nil, err
	}
	custody, err := CustodyTokenAddress(addr, mint)
	if err != nil {
		return nil, err
	}
	balance, err := e.tokenBalance(custody)
	if err != nil {
		return nil, err
	}
	if balance < amount {
		return nil, ErrInsufficientFunds
	}
	split, err := ComputeShares(amount, e.params.TokenSchedule)
	if err != nil {
		return nil, err
	}
	if amount == balance {
		split = split.Drain()
	}
	if _, err := addChecked(m.TotalWithdrawn, amount); err != nil {
		return nil, err
	}
	payer, err := e.payer(caller, m)
	if err != nil {
		return nil, err
	}
	auth, err := e.merchantAuthority(addr, m)
	if err != nil {
		return nil, err
	}

	receipt := &Receipt{Merchant: addr, Asset: mint, Gross: amount, Remainder: split.Remainder}
	for _, portion := range split.Portions {
		var dest solana.PublicKey
		switch portion.Role {
		case RoleOwner:
			dest, err = e.ensureAssociated(payer, m.Owner, mint)
		case RoleHouse:
			dest, err = e.ensureAssociated(payer, e.params.House, mint)
		case RoleCompliance:
			dest, err = e.complianceAddress(addr, mint)
			if err == nil {
				err = e.ensureTokenAccount(payer, dest, mint, addr)
			}
		default:
			err = ErrInvalidSchedule
		}
		if err != nil {
			return nil, err
		}
		if err := e.state.TransferToken(custody, dest, mint, portion.Amount, cfg.Decimals, auth); err != nil {
			return nil, err
		}
		receipt.Legs = append(receipt.Legs, Leg{Role: portion.Role, Destination: dest, Amount: portion.Amount})
	}

	if err := e.recordWithdrawal(addr, m, amount); err != nil {
		return nil, err
	}
	e.emit(NewWithdrawnEvent(receipt))
	return receipt, nil
}

// WithdrawNative moves amount lamports out of the merchant's native vault,
// split between the owner and the house.
func (e *Engine) WithdrawNative(caller Caller, addr solana.PublicKey, amount uint64) (*Receipt, error) {
	m, err := e.ownedMerchant(caller, addr)
	if err != nil {
		return nil, err
	}
	if amount < e.params.MinNativeWithdrawal || amount == 0 {
		return nil, ErrBelowMinimumWithdrawal
	}
	auth, err := e.vaultAuthority(addr, m)
	if err != nil {
		return nil, err
	}
	vault := auth.Address()
	balance, err := e.lamports(vault)
	if err != nil {
		return nil, err
	}
	if balance < amount {
		return nil, ErrInsufficientFunds
	}
	split, err := ComputeShares(amount, e.params.NativeSchedule)
	if err != nil {
		return nil, err
	}
	if amount == balance {
		split = split.Drain()
	}
	// Outside a full drain the rounding remainder stays in the vault.
	if err := e.checkVaultResidual(balance, amount-split.Remainder); err != nil {
		return nil, err
	}
	if _, err := addChecked(m.TotalWithdrawn, amount); err != nil {
		return nil, err
	}
	if caller.Sponsored {
		// Native withdrawals create no records; sponsorship only has to be
		// permitted.
		if _, err := e.payer(caller, m); err != nil {
			return nil, err
		}
	}

	receipt := &Receipt{Merchant: addr, Asset: NativeAsset, Gross: amount, Remainder: split.Remainder}
	for _, portion := range split.Portions {
		var dest solana.PublicKey
		switch portion.Role {
		case RoleOwner:
			dest = m.Owner
		case RoleHouse:
			dest = e.params.House
		default:
			return nil, ErrInvalidSchedule
		}
		if err := e.state.TransferLamports(vault, dest, portion.Amount, auth); err != nil {
			return nil, err
		}
		receipt.Legs = append(receipt.Legs, Leg{Role: portion.Role, Destination: dest, Amount: portion.Amount})
	}

	if err := e.recordWithdrawal(addr, m, amount); err != nil {
		return nil, err
	}
	e.emit(NewWithdrawnEvent(receipt))
	return receipt, nil
}

// PayCompliance sweeps the whole compliance escrow balance to the configured
// compliance recipient.
func (e *Engine) PayCompliance(caller Caller, addr, mint solana.PublicKey) (uint64, error) {
	m, err := e.ownedMerchant(caller, addr)
	if err != nil {
		return 0, err
	}
	if e.params.ComplianceRecipient.IsZero() {
		return 0, ErrInvalidParams
	}
	cfg, err := e.checkMint(mint)
	if err != nil {
		return 0, err
	}
	escrow, err := e.complianceAddress(addr, mint)
	if err != nil {
		return 0, err
	}
	acc, ok, err := e.state.TokenAccountGet(escrow)
	if err != nil {
		return 0, err
	}
	if !ok || acc.Amount == 0 {
		return 0, ErrInvalidWithdrawalAmount
	}
	if !acc.Mint.Equals(mint) {
		return 0, ErrUnsupportedMint
	}
	payer, err := e.payer(caller, m)
	if err != nil {
		return 0, err
	}
	dest, err := e.ensureAssociated(payer, e.params.ComplianceRecipient, mint)
	if err != nil {
		return 0, err
	}
	auth, err := e.merchantAuthority(addr, m)
	if err != nil {
		return 0, err
	}
	amount := acc.Amount
	if err := e.state.TransferToken(escrow, dest, mint, amount, cfg.Decimals, auth); err != nil {
		return 0, err
	}
	e.emit(NewCompliancePaidEvent(addr, mint, e.params.ComplianceRecipient, amount))
	return amount, nil
}

func (e *Engine) recordWithdrawal(addr solana.PublicKey, m *Merchant, amount uint64) error {
	total, err := addChecked(m.TotalWithdrawn, amount)
	if err != nil {
		return err
	}
	m.TotalWithdrawn = total
	return e.state.MerchantPut(addr, m)
}
