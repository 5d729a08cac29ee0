package merchant

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Role names a recipient class in a split schedule.
type Role string

const (
	RoleOwner      Role = "owner"
	RoleHouse      Role = "house"
	RoleCompliance Role = "compliance"
)

const (
	// BasisPointsDivisor is the default split denominator.
	BasisPointsDivisor uint64 = 10_000

	DefaultMinTokenWithdrawal  uint64 = 100
	DefaultMinNativeWithdrawal uint64 = 1_000
)

// DefaultProgramID is the program address used when none is configured.
var DefaultProgramID = solana.MustPublicKeyFromBase58("RKAxBK5mBxYta3FUfMLHafMj8xakd8PLsH3PXFa773r")

// Share is the fraction of a withdrawal routed to a role.
type Share struct {
	Role        Role
	BasisPoints uint64
}

// Schedule is a split policy: each share receives
// floor(gross * BasisPoints / Divisor).
type Schedule struct {
	Divisor uint64
	Shares  []Share
}

// DefaultSchedule is the owner 99% / house 1% split.
func DefaultSchedule() Schedule {
	return Schedule{
		Divisor: BasisPointsDivisor,
		Shares: []Share{
			{Role: RoleOwner, BasisPoints: 9_900},
			{Role: RoleHouse, BasisPoints: 100},
		},
	}
}

// ComplianceSchedule routes a compliance share into the merchant's escrow.
func ComplianceSchedule() Schedule {
	return Schedule{
		Divisor: BasisPointsDivisor,
		Shares: []Share{
			{Role: RoleOwner, BasisPoints: 9_400},
			{Role: RoleCompliance, BasisPoints: 500},
			{Role: RoleHouse, BasisPoints: 100},
		},
	}
}

// Validate checks that the schedule can never pay out more than the gross.
func (s Schedule) Validate() error {
	if s.Divisor == 0 {
		return fmt.Errorf("%w: divisor must be positive", ErrInvalidSchedule)
	}
	if len(s.Shares) == 0 {
		return fmt.Errorf("%w: no shares", ErrInvalidSchedule)
	}
	seen := make(map[Role]struct{}, len(s.Shares))
	var total uint64
	hasOwner := false
	for _, share := range s.Shares {
		switch share.Role {
		case RoleOwner:
			hasOwner = true
		case RoleHouse, RoleCompliance:
		default:
			return fmt.Errorf("%w: unknown role %q", ErrInvalidSchedule, share.Role)
		}
		if _, dup := seen[share.Role]; dup {
			return fmt.Errorf("%w: duplicate role %q", ErrInvalidSchedule, share.Role)
		}
		seen[share.Role] = struct{}{}
		if share.BasisPoints == 0 {
			return fmt.Errorf("%w: role %q has zero share", ErrInvalidSchedule, share.Role)
		}
		if share.BasisPoints > s.Divisor {
			return fmt.Errorf("%w: role %q exceeds divisor", ErrInvalidSchedule, share.Role)
		}
		total += share.BasisPoints
		if total > s.Divisor {
			return fmt.Errorf("%w: shares exceed divisor", ErrInvalidSchedule)
		}
	}
	if !hasOwner {
		return fmt.Errorf("%w: owner share required", ErrInvalidSchedule)
	}
	return nil
}

func (s Schedule) has(role Role) bool {
	for _, share := range s.Shares {
		if share.Role == role {
			return true
		}
	}
	return false
}

// MintParams pins a supported token and the decimals every transfer checks.
type MintParams struct {
	Address  solana.PublicKey
	Symbol   string
	Decimals uint8
}

// Params configures the merchant engine.
type Params struct {
	ProgramID solana.PublicKey
	// Admins may toggle fee eligibility and close refund records.
	Admins []solana.PublicKey
	House  solana.PublicKey
	// ComplianceRecipient receives swept compliance escrow balances.
	ComplianceRecipient solana.PublicKey
	// FeePayer sponsors rent for fee-eligible merchants. Zero disables
	// sponsorship.
	FeePayer       solana.PublicKey
	TokenSchedule  Schedule
	NativeSchedule Schedule

	MinTokenWithdrawal  uint64
	MinNativeWithdrawal uint64
	// MaxRefundAmount caps every refund. Zero disables the cap.
	MaxRefundAmount uint64

	DefaultFeeEligible      bool
	AllowCloseWithBalance   bool
	PermanentRefundDenylist bool

	Mints []MintParams
}

// DefaultParams returns the production defaults with no keys configured.
func DefaultParams() Params {
	return Params{
		ProgramID:               DefaultProgramID,
		TokenSchedule:           DefaultSchedule(),
		NativeSchedule:          DefaultSchedule(),
		MinTokenWithdrawal:      DefaultMinTokenWithdrawal,
		MinNativeWithdrawal:     DefaultMinNativeWithdrawal,
		PermanentRefundDenylist: true,
	}
}

// Validate checks internal consistency of the parameters.
func (p Params) Validate() error {
	if p.ProgramID.IsZero() {
		return fmt.Errorf("%w: program id required", ErrInvalidParams)
	}
	if p.House.IsZero() {
		return fmt.Errorf("%w: house key required", ErrInvalidParams)
	}
	if len(p.Admins) == 0 {
		return fmt.Errorf("%w: at least one admin key required", ErrInvalidParams)
	}
	for i, admin := range p.Admins {
		if admin.IsZero() {
			return fmt.Errorf("%w: admin %d is empty", ErrInvalidParams, i)
		}
	}
	if err := p.TokenSchedule.Validate(); err != nil {
		return fmt.Errorf("token schedule: %w", err)
	}
	if err := p.NativeSchedule.Validate(); err != nil {
		return fmt.Errorf("native schedule: %w", err)
	}
	if p.NativeSchedule.has(RoleCompliance) {
		return fmt.Errorf("%w: compliance share is token-only", ErrInvalidSchedule)
	}
	if p.TokenSchedule.has(RoleCompliance) && p.ComplianceRecipient.IsZero() {
		return fmt.Errorf("%w: compliance recipient required", ErrInvalidParams)
	}
	seen := make(map[solana.PublicKey]struct{}, len(p.Mints))
	for _, mint := range p.Mints {
		if mint.Address.IsZero() {
			return fmt.Errorf("%w: mint %q has no address", ErrInvalidParams, mint.Symbol)
		}
		if _, dup := seen[mint.Address]; dup {
			return fmt.Errorf("%w: duplicate mint %s", ErrInvalidParams, mint.Address)
		}
		seen[mint.Address] = struct{}{}
	}
	return nil
}

// IsAdmin reports whether key belongs to the admin set.
func (p Params) IsAdmin(key solana.PublicKey) bool {
	for _, admin := range p.Admins {
		if admin.Equals(key) {
			return true
		}
	}
	return false
}

// Mint returns the configuration of a supported mint.
func (p Params) Mint(address solana.PublicKey) (MintParams, bool) {
	for _, mint := range p.Mints {
		if mint.Address.Equals(address) {
			return mint, true
		}
	}
	return MintParams{}, false
}
