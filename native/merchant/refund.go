package merchant

import (
	"github.com/gagliardetto/solana-go"
)

// RefundToken returns amount of mint from custody to recipient's associated
// token account. The refund record for sig is written before any value
// moves, so a signature can be refunded at most once.
func (e *Engine) RefundToken(caller Caller, addr, mint solana.PublicKey, sig string, amount uint64, recipient solana.PublicKey) (*RefundRecord, error) {
	m, refundAddr, bump, err := e.prepareRefund(caller, addr, sig, amount, recipient)
	if err != nil {
		return nil, err
	}
	cfg, err := e.checkMint(mint)
	if err != nil {
		return nil, err
	}
	custody, err := CustodyTokenAddress(addr, mint)
	if err != nil {
		return nil, err
	}
	if recipient.Equals(custody) {
		return nil, ErrInvalidRecipient
	}
	balance, err := e.tokenBalance(custody)
	if err != nil {
		return nil, err
	}
	if balance < amount {
		return nil, ErrInsufficientFunds
	}
	payer, err := e.payer(caller, m)
	if err != nil {
		return nil, err
	}
	auth, err := e.merchantAuthority(addr, m)
	if err != nil {
		return nil, err
	}

	rec, err := e.writeRefundRecord(payer, refundAddr, &RefundRecord{
		OriginalTxSig: sig,
		Merchant:      addr,
		Recipient:     recipient,
		Asset:         mint,
		Amount:        amount,
		Bump:          bump,
	})
	if err != nil {
		return nil, err
	}
	dest, err := e.ensureAssociated(payer, recipient, mint)
	if err != nil {
		return nil, err
	}
	if err := e.state.TransferToken(custody, dest, mint, amount, cfg.Decimals, auth); err != nil {
		return nil, err
	}
	if err := e.recordRefund(addr, m, amount); err != nil {
		return nil, err
	}
	e.emit(NewRefundedEvent(rec))
	return rec.Clone(), nil
}

// RefundNative returns amount lamports from the native vault to recipient.
func (e *Engine) RefundNative(caller Caller, addr solana.PublicKey, sig string, amount uint64, recipient solana.PublicKey) (*RefundRecord, error) {
	m, refundAddr, bump, err := e.prepareRefund(caller, addr, sig, amount, recipient)
	if err != nil {
		return nil, err
	}
	auth, err := e.vaultAuthority(addr, m)
	if err != nil {
		return nil, err
	}
	if recipient.Equals(auth.Address()) {
		return nil, ErrInvalidRecipient
	}
	balance, err := e.lamports(auth.Address())
	if err != nil {
		return nil, err
	}
	if balance < amount {
		return nil, ErrInsufficientFunds
	}
	if err := e.checkVaultResidual(balance, amount); err != nil {
		return nil, err
	}
	payer, err := e.payer(caller, m)
	if err != nil {
		return nil, err
	}

	rec, err := e.writeRefundRecord(payer, refundAddr, &RefundRecord{
		OriginalTxSig: sig,
		Merchant:      addr,
		Recipient:     recipient,
		Asset:         NativeAsset,
		Amount:        amount,
		Bump:          bump,
	})
	if err != nil {
		return nil, err
	}
	if err := e.state.TransferLamports(auth.Address(), recipient, amount, auth); err != nil {
		return nil, err
	}
	if err := e.recordRefund(addr, m, amount); err != nil {
		return nil, err
	}
	e.emit(NewRefundedEvent(rec))
	return rec.Clone(), nil
}

// CloseRefund lets an admin reclaim the rent of a refund record. When the
// permanent denylist is enabled the signature stays blocked afterwards.
func (e *Engine) CloseRefund(caller Caller, sig string) (uint64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	if !e.params.IsAdmin(caller.Key) {
		return 0, ErrUnauthorized
	}
	addr, _, err := RefundAddress(e.params.ProgramID, sig)
	if err != nil {
		return 0, err
	}
	if _, ok, err := e.state.RefundRecordGet(addr); err != nil {
		return 0, err
	} else if !ok {
		return 0, ErrRefundNotFound
	}
	reclaimed, err := e.state.CloseAccount(addr, caller.Key)
	if err != nil {
		return 0, err
	}
	if err := e.state.RefundRecordDelete(addr); err != nil {
		return 0, err
	}
	denylisted := e.params.PermanentRefundDenylist
	if denylisted {
		if err := e.state.RefundDeny(addr); err != nil {
			return 0, err
		}
	}
	e.emit(NewRefundClosedEvent(sig, caller.Key, reclaimed, denylisted))
	return reclaimed, nil
}

// RefundRecord returns the record written for sig.
func (e *Engine) RefundRecord(sig string) (*RefundRecord, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	addr, _, err := RefundAddress(e.params.ProgramID, sig)
	if err != nil {
		return nil, err
	}
	rec, ok, err := e.state.RefundRecordGet(addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrRefundNotFound
	}
	return rec, nil
}

// prepareRefund runs the checks shared by token and native refunds and
// returns the refund record address for sig.
func (e *Engine) prepareRefund(caller Caller, addr solana.PublicKey, sig string, amount uint64, recipient solana.PublicKey) (*Merchant, solana.PublicKey, uint8, error) {
	if amount == 0 {
		return nil, solana.PublicKey{}, 0, ErrZeroAmountRefund
	}
	m, err := e.ownedMerchant(caller, addr)
	if err != nil {
		return nil, solana.PublicKey{}, 0, err
	}
	// Refunding into the merchant's own accounts would consume the signature
	// without moving value.
	if recipient.IsZero() || recipient.Equals(addr) {
		return nil, solana.PublicKey{}, 0, ErrInvalidRecipient
	}
	refundAddr, bump, err := RefundAddress(e.params.ProgramID, sig)
	if err != nil {
		return nil, solana.PublicKey{}, 0, err
	}
	if m.RefundLimit > 0 && amount > m.RefundLimit {
		return nil, solana.PublicKey{}, 0, ErrExcessiveRefundAmount
	}
	if e.params.MaxRefundAmount > 0 && amount > e.params.MaxRefundAmount {
		return nil, solana.PublicKey{}, 0, ErrExcessiveRefundAmount
	}
	if _, err := addChecked(m.TotalRefunded, amount); err != nil {
		return nil, solana.PublicKey{}, 0, err
	}
	return m, refundAddr, bump, nil
}

// writeRefundRecord inserts the record if the address is free and the
// signature has not been denylisted.
func (e *Engine) writeRefundRecord(payer payerInfo, addr solana.PublicKey, rec *RefundRecord) (*RefundRecord, error) {
	denied, err := e.state.RefundDenied(addr)
	if err != nil {
		return nil, err
	}
	if denied {
		return nil, ErrDuplicateRefund
	}
	if occupied, err := e.occupied(addr); err != nil {
		return nil, err
	} else if occupied {
		return nil, ErrDuplicateRefund
	}
	if err := e.createRecord(payer, addr, RefundRecordSpace); err != nil {
		return nil, err
	}
	rec.CreatedAt = e.now()
	if err := e.state.RefundRecordPut(addr, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (e *Engine) recordRefund(addr solana.PublicKey, m *Merchant, amount uint64) error {
	total, err := addChecked(m.TotalRefunded, amount)
	if err != nil {
		return err
	}
	m.TotalRefunded = total
	return e.state.MerchantPut(addr, m)
}
