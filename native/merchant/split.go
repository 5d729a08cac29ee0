package merchant

import (
	"github.com/holiman/uint256"
)

// Portion is the amount a role receives from a split.
type Portion struct {
	Role   Role
	Amount uint64
}

// Split is the result of applying a schedule to a gross amount.
type Split struct {
	Gross     uint64
	Portions  []Portion
	Remainder uint64
}

// Amount returns the portion assigned to role, or zero.
func (s Split) Amount(role Role) uint64 {
	for _, p := range s.Portions {
		if p.Role == role {
			return p.Amount
		}
	}
	return 0
}

// Drain folds the remainder into the owner portion, or the first portion when
// the schedule has no owner, so a withdrawal of the whole balance empties
// custody.
func (s Split) Drain() Split {
	if s.Remainder == 0 || len(s.Portions) == 0 {
		return s
	}
	portions := append([]Portion(nil), s.Portions...)
	target := 0
	for i, p := range portions {
		if p.Role == RoleOwner {
			target = i
			break
		}
	}
	portions[target].Amount += s.Remainder
	return Split{Gross: s.Gross, Portions: portions}
}

// ComputeShares splits gross according to schedule. Every portion must be
// non-zero and the portions never exceed gross; the rounding remainder stays
// in custody.
func ComputeShares(gross uint64, schedule Schedule) (Split, error) {
	if err := schedule.Validate(); err != nil {
		return Split{}, err
	}
	if gross == 0 {
		return Split{}, ErrInvalidWithdrawalAmount
	}
	g := uint256.NewInt(gross)
	div := uint256.NewInt(schedule.Divisor)
	portions := make([]Portion, 0, len(schedule.Shares))
	var total uint64
	for _, share := range schedule.Shares {
		v := new(uint256.Int).Mul(g, uint256.NewInt(share.BasisPoints))
		v.Div(v, div)
		if !v.IsUint64() {
			return Split{}, ErrArithmeticOverflow
		}
		amount := v.Uint64()
		if amount == 0 {
			return Split{}, ErrInvalidWithdrawalAmount
		}
		next := total + amount
		if next < total || next > gross {
			return Split{}, ErrArithmeticOverflow
		}
		total = next
		portions = append(portions, Portion{Role: share.Role, Amount: amount})
	}
	return Split{Gross: gross, Portions: portions, Remainder: gross - total}, nil
}

// MinimumGross returns the smallest gross amount for which every portion of
// the schedule is non-zero.
func MinimumGross(schedule Schedule) (uint64, error) {
	if err := schedule.Validate(); err != nil {
		return 0, err
	}
	var minimum uint64
	for _, share := range schedule.Shares {
		// ceil(divisor / bps) is the least g with g*bps >= divisor.
		need := schedule.Divisor / share.BasisPoints
		if schedule.Divisor%share.BasisPoints != 0 {
			need++
		}
		if need > minimum {
			minimum = need
		}
	}
	return minimum, nil
}
