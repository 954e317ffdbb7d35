package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metasol_bot/internal/models"
)

func TestLoadMissingCollectionsAreEmpty(t *testing.T) {
	st, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	positions, err := st.LoadPositions(42)
	require.NoError(t, err)
	assert.Empty(t, positions)

	orders, err := st.LoadLimitOrders(42)
	require.NoError(t, err)
	assert.Empty(t, orders)

	schedules, err := st.LoadSchedules(42)
	require.NoError(t, err)
	assert.Empty(t, schedules)
}

func TestSaveReplacesCollection(t *testing.T) {
	st, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	first := models.LimitOrder{
		ID:             models.NewID("limit"),
		Side:           models.SideBuy,
		Symbol:         "BONK",
		TargetPriceUsd: 0.00002,
		Amount:         1000,
		Status:         models.OrderActive,
		CreatedAt:      time.Now(),
	}
	require.NoError(t, st.SaveLimitOrders(7, []models.LimitOrder{first}))

	second := first
	second.ID = models.NewID("limit")
	second.Symbol = "WIF"
	require.NoError(t, st.SaveLimitOrders(7, []models.LimitOrder{second}))

	orders, err := st.LoadLimitOrders(7)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "WIF", orders[0].Symbol)
}

func TestCollectionsAreIsolatedPerUser(t *testing.T) {
	st, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, st.SavePositions(1, []models.Position{{
		ID:        models.NewID("pos"),
		Symbol:    "BONK",
		AmountSol: 0.5,
		Time:      time.Now(),
		Source:    models.SourceSimulatedBuy,
	}}))

	other, err := st.LoadPositions(2)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestUsersListsOnlyMatchingKind(t *testing.T) {
	dir := t.TempDir()
	st, err := NewFileStore(dir)
	require.NoError(t, err)

	require.NoError(t, st.SaveLimitOrders(11, []models.LimitOrder{}))
	require.NoError(t, st.SaveLimitOrders(22, []models.LimitOrder{}))
	require.NoError(t, st.SaveSchedules(33, []models.DcaSchedule{}))

	// Unrelated files in the data dir must not be picked up.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "limits_bogus.json"), []byte("[]"), 0o644))

	users, err := st.Users(KindLimits)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{11, 22}, users)

	dcaUsers, err := st.Users(KindDca)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{33}, dcaUsers)
}
