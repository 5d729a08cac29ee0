package eventlog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"gotsol/core/types"
)

func openTestLog(t *testing.T, clock clockwork.Clock) *Log {
	t.Helper()
	log, err := Open(filepath.Join(t.TempDir(), "events.db"), WithClock(clock))
	require.NoError(t, err)
	t.Cleanup(func() { _ = log.Close() })
	return log
}

func TestHandleEventsAndList(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Unix(1_700_000_000, 0))
	log := openTestLog(t, clock)
	ctx := context.Background()

	require.NoError(t, log.HandleEvents(ctx, []types.Event{
		{Type: "merchant.created", Attributes: map[string]string{"merchant": "A", "name": "Shop"}},
		{Type: "merchant.payment", Attributes: map[string]string{"merchant": "A", "amount": "10"}},
	}))
	clock.Advance(time.Minute)
	require.NoError(t, log.HandleEvents(ctx, []types.Event{
		{Type: "merchant.created", Attributes: map[string]string{"merchant": "B", "name": "Other"}},
	}))
	require.NoError(t, log.HandleEvents(ctx, nil))

	all, err := log.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "merchant.created", all[0].Type)
	require.Equal(t, "Shop", all[0].Attributes["name"])
	require.Equal(t, time.Unix(1_700_000_000, 0).UTC(), all[0].RecordedAt)
	require.Equal(t, time.Unix(1_700_000_060, 0).UTC(), all[2].RecordedAt)
	require.Less(t, all[0].Sequence, all[1].Sequence)
	require.NotEqual(t, all[0].ID, all[1].ID)
	require.Equal(t, types.Event{Type: "merchant.payment", Attributes: map[string]string{"merchant": "A", "amount": "10"}}, all[1].Event())

	byMerchant, err := log.List(ctx, Filter{Merchant: "A"})
	require.NoError(t, err)
	require.Len(t, byMerchant, 2)

	byType, err := log.List(ctx, Filter{Type: "merchant.created"})
	require.NoError(t, err)
	require.Len(t, byType, 2)
	require.Equal(t, "B", byType[1].Merchant)

	page, err := log.List(ctx, Filter{After: all[0].Sequence, Limit: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	require.Equal(t, all[1].ID, page[0].ID)
}

func TestLogPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.db")
	log, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, log.HandleEvents(context.Background(), []types.Event{{Type: "merchant.closed", Attributes: map[string]string{}}}))
	require.NoError(t, log.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()
	entries, err := reopened.List(context.Background(), Filter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Empty(t, entries[0].Merchant)
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("")
	require.Error(t, err)
}
