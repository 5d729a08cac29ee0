package merchant

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestComputeSharesDefaultSchedule(t *testing.T) {
	split, err := ComputeShares(10_000, DefaultSchedule())
	require.NoError(t, err)
	require.Equal(t, uint64(9_900), split.Amount(RoleOwner))
	require.Equal(t, uint64(100), split.Amount(RoleHouse))
	require.Zero(t, split.Amount(RoleCompliance))
	require.Zero(t, split.Remainder)
}

func TestComputeSharesRemainder(t *testing.T) {
	split, err := ComputeShares(10_001, DefaultSchedule())
	require.NoError(t, err)
	require.Equal(t, uint64(9_900), split.Amount(RoleOwner))
	require.Equal(t, uint64(100), split.Amount(RoleHouse))
	require.Equal(t, uint64(1), split.Remainder)

	split, err = ComputeShares(12_345, ComplianceSchedule())
	require.NoError(t, err)
	require.Equal(t, uint64(11_604), split.Amount(RoleOwner))
	require.Equal(t, uint64(617), split.Amount(RoleCompliance))
	require.Equal(t, uint64(123), split.Amount(RoleHouse))
	require.Equal(t, uint64(1), split.Remainder)
}

func TestComputeSharesMinimumGross(t *testing.T) {
	minimum, err := MinimumGross(DefaultSchedule())
	require.NoError(t, err)
	require.Equal(t, uint64(100), minimum)

	_, err = ComputeShares(minimum, DefaultSchedule())
	require.NoError(t, err)
	_, err = ComputeShares(minimum-1, DefaultSchedule())
	require.ErrorIs(t, err, ErrInvalidWithdrawalAmount)
	_, err = ComputeShares(0, DefaultSchedule())
	require.ErrorIs(t, err, ErrInvalidWithdrawalAmount)

	minimum, err = MinimumGross(ComplianceSchedule())
	require.NoError(t, err)
	require.Equal(t, uint64(100), minimum)

	odd := Schedule{Divisor: 10_000, Shares: []Share{{Role: RoleOwner, BasisPoints: 9_997}, {Role: RoleHouse, BasisPoints: 3}}}
	minimum, err = MinimumGross(odd)
	require.NoError(t, err)
	require.Equal(t, uint64(3_334), minimum)
	_, err = ComputeShares(minimum, odd)
	require.NoError(t, err)
	_, err = ComputeShares(minimum-1, odd)
	require.ErrorIs(t, err, ErrInvalidWithdrawalAmount)
}

func TestComputeSharesLargeAmounts(t *testing.T) {
	split, err := ComputeShares(math.MaxUint64, DefaultSchedule())
	require.NoError(t, err)
	sum := split.Remainder
	for _, p := range split.Portions {
		sum += p.Amount
	}
	require.Equal(t, uint64(math.MaxUint64), sum)
	require.Less(t, split.Remainder, uint64(len(split.Portions)))
}

func TestComputeSharesConservesValue(t *testing.T) {
	for _, gross := range []uint64{100, 101, 199, 1_000, 9_999, 123_456_789} {
		for name, schedule := range map[string]Schedule{"default": DefaultSchedule(), "compliance": ComplianceSchedule()} {
			t.Run(fmt.Sprintf("%s/%d", name, gross), func(t *testing.T) {
				split, err := ComputeShares(gross, schedule)
				require.NoError(t, err)
				total := split.Remainder
				for _, p := range split.Portions {
					require.NotZero(t, p.Amount)
					total += p.Amount
				}
				require.Equal(t, gross, total)
			})
		}
	}
}

func TestScheduleValidate(t *testing.T) {
	owner := Share{Role: RoleOwner, BasisPoints: 9_000}
	cases := map[string]Schedule{
		"zero divisor":   {Divisor: 0, Shares: []Share{owner}},
		"no shares":      {Divisor: 10_000},
		"unknown role":   {Divisor: 10_000, Shares: []Share{owner, {Role: "partner", BasisPoints: 10}}},
		"duplicate role": {Divisor: 10_000, Shares: []Share{owner, {Role: RoleOwner, BasisPoints: 10}}},
		"zero share":     {Divisor: 10_000, Shares: []Share{owner, {Role: RoleHouse, BasisPoints: 0}}},
		"over divisor":   {Divisor: 10_000, Shares: []Share{owner, {Role: RoleHouse, BasisPoints: 1_001}}},
		"missing owner":  {Divisor: 10_000, Shares: []Share{{Role: RoleHouse, BasisPoints: 100}}},
	}
	for name, schedule := range cases {
		t.Run(name, func(t *testing.T) {
			require.ErrorIs(t, schedule.Validate(), ErrInvalidSchedule)
			_, err := ComputeShares(1_000, schedule)
			require.ErrorIs(t, err, ErrInvalidSchedule)
		})
	}
	require.NoError(t, DefaultSchedule().Validate())
	require.NoError(t, ComplianceSchedule().Validate())
}

func TestSplitDrainFoldsRemainderIntoOwner(t *testing.T) {
	split, err := ComputeShares(10_050, DefaultSchedule())
	require.NoError(t, err)
	require.Equal(t, uint64(1), split.Remainder)

	drained := split.Drain()
	require.Zero(t, drained.Remainder)
	require.Equal(t, uint64(9_950), drained.Amount(RoleOwner))
	require.Equal(t, uint64(100), drained.Amount(RoleHouse))
	// The original split is untouched.
	require.Equal(t, uint64(9_949), split.Amount(RoleOwner))
}
