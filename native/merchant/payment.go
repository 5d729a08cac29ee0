package merchant

import (
	"github.com/gagliardetto/solana-go"

	"gotsol/core/types"
)

// Pay moves amount of the caller's own funds into the merchant's custody.
// asset is a configured mint, or NativeAsset for lamports into the vault.
func (e *Engine) Pay(caller Caller, addr, asset solana.PublicKey, amount uint64) error {
	if amount == 0 {
		return ErrZeroAmount
	}
	m, err := e.loadMerchant(addr)
	if err != nil {
		return err
	}
	if caller.Sponsored {
		// Sponsorship belongs to the merchant, not to its customers.
		return ErrFeeIneligibleMerchant
	}
	payer := payerFor(caller.Key)
	if asset.IsZero() {
		return e.payNative(payer, addr, m, amount)
	}
	return e.payToken(payer, addr, asset, amount)
}

func (e *Engine) payNative(payer payerInfo, addr solana.PublicKey, m *Merchant, amount uint64) error {
	auth, err := e.vaultAuthority(addr, m)
	if err != nil {
		return err
	}
	vault := auth.Address()
	if err := e.ensureFunds(payer, amount); err != nil {
		return err
	}
	balance, err := e.lamports(vault)
	if err != nil {
		return err
	}
	after, err := addChecked(balance, amount)
	if err != nil {
		return err
	}
	if after < e.state.RentExemptMinimum(0) {
		return ErrRentExemptionViolation
	}
	if err := e.state.TransferLamports(payer.key, vault, amount, payer.auth); err != nil {
		return err
	}
	e.emit(NewPaymentEvent(addr, payer.key, NativeAsset, amount))
	return nil
}

func (e *Engine) payToken(payer payerInfo, addr, mint solana.PublicKey, amount uint64) error {
	cfg, err := e.checkMint(mint)
	if err != nil {
		return err
	}
	source, err := associatedTokenAddress(payer.key, mint)
	if err != nil {
		return err
	}
	balance, err := e.tokenBalance(source)
	if err != nil {
		return err
	}
	if balance < amount {
		return ErrPayerInsufficientFunds
	}
	custody, err := e.ensureAssociated(payer, addr, mint)
	if err != nil {
		return err
	}
	if err := e.state.TransferToken(source, custody, mint, amount, cfg.Decimals, types.SignerAuthority(payer.key)); err != nil {
		return err
	}
	e.emit(NewPaymentEvent(addr, payer.key, mint, amount))
	return nil
}
