package merchant

import (
	"github.com/gagliardetto/solana-go"
)

// SetStatus toggles the fee eligibility of a merchant. Only admin keys may
// call it; the merchant owner has no special standing.
func (e *Engine) SetStatus(caller Caller, addr solana.PublicKey, feeEligible bool) (*Merchant, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if !e.params.IsAdmin(caller.Key) {
		return nil, ErrUnauthorizedStatusChange
	}
	m, err := e.loadMerchant(addr)
	if err != nil {
		return nil, err
	}
	m.FeeEligible = feeEligible
	if err := e.state.MerchantPut(addr, m); err != nil {
		return nil, err
	}
	e.emit(NewStatusChangedEvent(addr, caller.Key, feeEligible, e.now()))
	return m.Clone(), nil
}
