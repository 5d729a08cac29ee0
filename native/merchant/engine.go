package merchant

import (
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"

	"gotsol/core/events"
	"gotsol/core/types"
)

// Record sizes used for rent. They mirror the serialized layouts the records
// would occupy on a ledger with fixed account sizes.
const (
	MerchantRecordSpace uint64 = 8 + 32 + 4 + MaxNameLength + 1 + 8 + 8 + 8 + 1 + 1 + 1 + 8
	RefundRecordSpace   uint64 = 8 + 4 + maxSignatureLength + 32 + 32 + 32 + 8 + 1 + 8
	TokenAccountSpace   uint64 = 165
)

type engineState interface {
	MerchantGet(addr solana.PublicKey) (*Merchant, bool, error)
	MerchantPut(addr solana.PublicKey, m *Merchant) error
	MerchantDelete(addr solana.PublicKey) error
	RefundRecordGet(addr solana.PublicKey) (*RefundRecord, bool, error)
	RefundRecordPut(addr solana.PublicKey, rec *RefundRecord) error
	RefundRecordDelete(addr solana.PublicKey) error
	RefundDenied(addr solana.PublicKey) (bool, error)
	RefundDeny(addr solana.PublicKey) error

	GetAccount(addr solana.PublicKey) (*types.Account, bool, error)
	CreateAccount(payer, addr solana.PublicKey, space uint64, owner solana.PublicKey, kind types.AccountKind, auth types.Authority) error
	CloseAccount(addr, dest solana.PublicKey) (uint64, error)
	TransferLamports(from, to solana.PublicKey, amount uint64, auth types.Authority) error
	RentExemptMinimum(space uint64) uint64

	MintGet(addr solana.PublicKey) (*types.Mint, bool, error)
	TokenAccountGet(addr solana.PublicKey) (*types.TokenAccount, bool, error)
	CreateTokenAccount(payer, addr, mint, owner solana.PublicKey, auth types.Authority) error
	TransferToken(from, to, mint solana.PublicKey, amount uint64, decimals uint8, auth types.Authority) error
}

// Engine implements merchant registration, custody movements, refunds and
// status control against a ledger state.
type Engine struct {
	state   engineState
	emitter events.Emitter
	params  Params
	nowFn   func() int64
}

// NewEngine creates a merchant engine with default parameters and a no-op
// emitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		params:  DefaultParams(),
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the ledger backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetParams replaces the engine parameters.
func (e *Engine) SetParams(params Params) { e.params = params }

// Params returns the active parameters.
func (e *Engine) Params() Params { return e.params }

// SetEmitter configures the event emitter used by the engine. Passing nil resets
// the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(merchantEvent{evt: event})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	return nil
}

// CreateMerchant registers a merchant for the caller under name. feeEligible
// overrides the configured default; only admins may grant eligibility at
// creation. The caller pays rent for the record.
func (e *Engine) CreateMerchant(caller Caller, name string, feeEligible *bool) (solana.PublicKey, *Merchant, error) {
	if err := e.ready(); err != nil {
		return solana.PublicKey{}, nil, err
	}
	if caller.Sponsored {
		// A merchant that does not exist yet cannot be fee eligible.
		return solana.PublicKey{}, nil, ErrFeeIneligibleMerchant
	}
	normalized, err := NormalizeName(name)
	if err != nil {
		return solana.PublicKey{}, nil, err
	}
	eligible := e.params.DefaultFeeEligible
	if feeEligible != nil {
		if *feeEligible && !eligible && !e.params.IsAdmin(caller.Key) {
			return solana.PublicKey{}, nil, ErrUnauthorizedStatusChange
		}
		eligible = *feeEligible
	}
	programID := e.params.ProgramID
	addr, bump, err := Derive(programID, MerchantSeeds(normalized, caller.Key)...)
	if err != nil {
		return solana.PublicKey{}, nil, err
	}
	if occupied, err := e.occupied(addr); err != nil {
		return solana.PublicKey{}, nil, err
	} else if occupied {
		return solana.PublicKey{}, nil, ErrAccountAlreadyExists
	}
	_, vaultBump, err := VaultAddress(programID, addr)
	if err != nil {
		return solana.PublicKey{}, nil, err
	}
	payer := payerFor(caller.Key)
	if err := e.createRecord(payer, addr, MerchantRecordSpace); err != nil {
		return solana.PublicKey{}, nil, err
	}
	record := &Merchant{
		Owner:        caller.Key,
		EntityName:   normalized,
		FeeEligible:  eligible,
		MerchantBump: bump,
		VaultBump:    vaultBump,
		CreatedAt:    e.now(),
	}
	if err := e.state.MerchantPut(addr, record); err != nil {
		return solana.PublicKey{}, nil, err
	}
	e.emit(NewCreatedEvent(addr, record))
	return addr, record.Clone(), nil
}

// CloseMerchant deletes the merchant record and returns its rent to the owner.
// Closing is refused while custody holds funds unless AllowCloseWithBalance
// is set.
func (e *Engine) CloseMerchant(caller Caller, addr solana.PublicKey) (uint64, error) {
	m, err := e.ownedMerchant(caller, addr)
	if err != nil {
		return 0, err
	}
	if !e.params.AllowCloseWithBalance {
		empty, err := e.custodyEmpty(addr)
		if err != nil {
			return 0, err
		}
		if !empty {
			return 0, ErrCustodyNotEmpty
		}
	}
	reclaimed, err := e.state.CloseAccount(addr, m.Owner)
	if err != nil {
		return 0, err
	}
	if err := e.state.MerchantDelete(addr); err != nil {
		return 0, err
	}
	e.emit(NewClosedEvent(addr, m, reclaimed))
	return reclaimed, nil
}

// SetRefundLimit lets the owner cap the size of any single refund. Zero
// removes the cap.
func (e *Engine) SetRefundLimit(caller Caller, addr solana.PublicKey, limit uint64) (*Merchant, error) {
	m, err := e.ownedMerchant(caller, addr)
	if err != nil {
		return nil, err
	}
	m.RefundLimit = limit
	if err := e.state.MerchantPut(addr, m); err != nil {
		return nil, err
	}
	e.emit(NewRefundLimitSetEvent(addr, limit))
	return m.Clone(), nil
}

// Merchant returns the record stored at addr.
func (e *Engine) Merchant(addr solana.PublicKey) (*Merchant, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	m, ok, err := e.state.MerchantGet(addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrMerchantNotFound
	}
	return m, nil
}

// MerchantByName resolves a merchant from its owner and name.
func (e *Engine) MerchantByName(owner solana.PublicKey, name string) (solana.PublicKey, *Merchant, error) {
	addr, _, err := MerchantAddress(e.params.ProgramID, owner, name)
	if err != nil {
		return solana.PublicKey{}, nil, err
	}
	m, err := e.Merchant(addr)
	if err != nil {
		return solana.PublicKey{}, nil, err
	}
	return addr, m, nil
}

// loadMerchant fetches the record and re-verifies that addr is the address its
// stored seeds produce.
func (e *Engine) loadMerchant(addr solana.PublicKey) (*Merchant, error) {
	m, err := e.Merchant(addr)
	if err != nil {
		return nil, err
	}
	if err := Verify(e.params.ProgramID, addr, m.MerchantBump, MerchantSeeds(m.EntityName, m.Owner)...); err != nil {
		return nil, err
	}
	return m, nil
}

func (e *Engine) ownedMerchant(caller Caller, addr solana.PublicKey) (*Merchant, error) {
	m, err := e.loadMerchant(addr)
	if err != nil {
		return nil, err
	}
	if !m.Owner.Equals(caller.Key) {
		return nil, ErrNotMerchantOwner
	}
	return m, nil
}

func (e *Engine) merchantAuthority(addr solana.PublicKey, m *Merchant) (VaultAuthority, error) {
	return newVaultAuthority(e.params.ProgramID, addr, m.MerchantBump, MerchantSeeds(m.EntityName, m.Owner)...)
}

func (e *Engine) vaultAuthority(addr solana.PublicKey, m *Merchant) (VaultAuthority, error) {
	vault, bump, err := VaultAddress(e.params.ProgramID, addr)
	if err != nil {
		return VaultAuthority{}, err
	}
	if bump != m.VaultBump {
		return VaultAuthority{}, ErrSeedMismatch
	}
	return newVaultAuthority(e.params.ProgramID, vault, m.VaultBump, VaultSeeds(addr)...)
}

func (e *Engine) complianceAddress(addr, mint solana.PublicKey) (solana.PublicKey, error) {
	seeds := ComplianceSeeds(addr, mint)
	escrow, bump, err := Derive(e.params.ProgramID, seeds...)
	if err != nil {
		return solana.PublicKey{}, err
	}
	if err := Verify(e.params.ProgramID, escrow, bump, seeds...); err != nil {
		return solana.PublicKey{}, err
	}
	return escrow, nil
}

type payerInfo struct {
	key  solana.PublicKey
	auth types.Authority
}

func payerFor(key solana.PublicKey) payerInfo {
	return payerInfo{key: key, auth: types.SignerAuthority(key)}
}

// payer selects who funds records created on behalf of m: the caller, or the
// configured sponsor for fee-eligible merchants.
func (e *Engine) payer(caller Caller, m *Merchant) (payerInfo, error) {
	if !caller.Sponsored {
		return payerFor(caller.Key), nil
	}
	if e.params.FeePayer.IsZero() {
		return payerInfo{}, ErrSponsorUnavailable
	}
	if m == nil || !m.FeeEligible {
		return payerInfo{}, ErrFeeIneligibleMerchant
	}
	return payerFor(e.params.FeePayer), nil
}

func (e *Engine) lamports(addr solana.PublicKey) (uint64, error) {
	acc, ok, err := e.state.GetAccount(addr)
	if err != nil || !ok {
		return 0, err
	}
	return acc.Lamports, nil
}

// occupied reports whether addr already holds an initialised account. Plain
// wallets that merely received lamports do not count.
func (e *Engine) occupied(addr solana.PublicKey) (bool, error) {
	acc, ok, err := e.state.GetAccount(addr)
	if err != nil || !ok {
		return false, err
	}
	return acc.Kind != types.KindSystem || acc.Space > 0, nil
}

func (e *Engine) ensureFunds(payer payerInfo, need uint64) error {
	balance, err := e.lamports(payer.key)
	if err != nil {
		return err
	}
	if balance < need {
		return ErrPayerInsufficientFunds
	}
	return nil
}

func (e *Engine) createRecord(payer payerInfo, addr solana.PublicKey, space uint64) error {
	if err := e.ensureFunds(payer, e.state.RentExemptMinimum(space)); err != nil {
		return err
	}
	return e.state.CreateAccount(payer.key, addr, space, e.params.ProgramID, types.KindRecord, payer.auth)
}

func (e *Engine) tokenBalance(addr solana.PublicKey) (uint64, error) {
	acc, ok, err := e.state.TokenAccountGet(addr)
	if err != nil || !ok {
		return 0, err
	}
	return acc.Amount, nil
}

// ensureTokenAccount creates the token account of owner for mint at addr if it
// does not exist yet. An existing account must hold the same mint.
func (e *Engine) ensureTokenAccount(payer payerInfo, addr, mint, owner solana.PublicKey) error {
	acc, ok, err := e.state.TokenAccountGet(addr)
	if err != nil {
		return err
	}
	if ok {
		if !acc.Mint.Equals(mint) {
			return ErrUnsupportedMint
		}
		return nil
	}
	if err := e.ensureFunds(payer, e.state.RentExemptMinimum(TokenAccountSpace)); err != nil {
		return err
	}
	return e.state.CreateTokenAccount(payer.key, addr, mint, owner, payer.auth)
}

// ensureAssociated creates the associated token account of wallet for mint on
// demand and returns its address.
func (e *Engine) ensureAssociated(payer payerInfo, wallet, mint solana.PublicKey) (solana.PublicKey, error) {
	addr, err := associatedTokenAddress(wallet, mint)
	if err != nil {
		return solana.PublicKey{}, err
	}
	if err := e.ensureTokenAccount(payer, addr, mint, wallet); err != nil {
		return solana.PublicKey{}, err
	}
	return addr, nil
}

// checkMint verifies the mint is configured and its ledger decimals match.
func (e *Engine) checkMint(mint solana.PublicKey) (MintParams, error) {
	cfg, ok := e.params.Mint(mint)
	if !ok {
		return MintParams{}, ErrUnsupportedMint
	}
	onLedger, ok, err := e.state.MintGet(mint)
	if err != nil {
		return MintParams{}, err
	}
	if !ok {
		return MintParams{}, ErrUnsupportedMint
	}
	if onLedger.Decimals != cfg.Decimals {
		return MintParams{}, fmt.Errorf("%w: ledger %d, configured %d", ErrMintDecimalsMismatch, onLedger.Decimals, cfg.Decimals)
	}
	return cfg, nil
}

// checkVaultResidual rejects native debits that would leave dust below the
// rent-exempt minimum. Draining the vault to exactly zero is allowed.
func (e *Engine) checkVaultResidual(balance, amount uint64) error {
	if amount > balance {
		return ErrInsufficientFunds
	}
	residual := balance - amount
	if residual != 0 && residual < e.state.RentExemptMinimum(0) {
		return ErrRentExemptionViolation
	}
	return nil
}

func (e *Engine) custodyEmpty(addr solana.PublicKey) (bool, error) {
	vault, _, err := VaultAddress(e.params.ProgramID, addr)
	if err != nil {
		return false, err
	}
	lamports, err := e.lamports(vault)
	if err != nil {
		return false, err
	}
	if lamports > 0 {
		return false, nil
	}
	for _, mint := range e.params.Mints {
		ata, err := associatedTokenAddress(addr, mint.Address)
		if err != nil {
			return false, err
		}
		escrow, err := e.complianceAddress(addr, mint.Address)
		if err != nil {
			return false, err
		}
		for _, account := range []solana.PublicKey{ata, escrow} {
			amount, err := e.tokenBalance(account)
			if err != nil {
				return false, err
			}
			if amount > 0 {
				return false, nil
			}
		}
	}
	return true, nil
}

func addChecked(a, b uint64) (uint64, error) {
	sum := a + b
	if sum < a {
		return 0, ErrArithmeticOverflow
	}
	return sum, nil
}
