package flow

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metasol_bot/internal/models"
	"metasol_bot/internal/store"
	"metasol_bot/internal/wallet"
)

// stubOracle serves fixed prices keyed by identifier; everything else is
// unknown.
type stubOracle struct {
	prices  map[string]float64
	symbols map[string]string
}

func (o *stubOracle) PriceUSD(_ context.Context, token string) (float64, bool) {
	p, ok := o.prices[strings.ToLower(token)]
	return p, ok
}

func (o *stubOracle) ResolveSymbol(_ context.Context, token string) string {
	if s, ok := o.symbols[strings.ToLower(token)]; ok {
		return s
	}
	if len(token) > 8 {
		token = token[:8]
	}
	return strings.ToUpper(token)
}

func newTestMachine(t *testing.T, po *stubOracle) (*Machine, store.Store, *wallet.Manager) {
	t.Helper()
	st, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)
	if po == nil {
		po = &stubOracle{}
	}
	wallets := wallet.NewManager(10)
	m := NewMachine(st, po, wallets)
	m.SetClock(func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) })
	return m, st, wallets
}

const userID int64 = 100

func TestLimitFlowCreatesActiveOrder(t *testing.T) {
	m, st, _ := newTestMachine(t, nil)

	m.StartLimit(userID)

	reply, handled := m.HandleText(context.Background(), userID, "BONK")
	require.True(t, handled)
	assert.Equal(t, "Choose order type:", reply)

	m.ChooseLimitSide(userID, models.SideBuy)

	reply, _ = m.HandleText(context.Background(), userID, "0,00002")
	assert.Equal(t, "Enter token AMOUNT:", reply)

	reply, _ = m.HandleText(context.Background(), userID, "1000")
	assert.Contains(t, reply, "Limit Order Created")

	orders, err := st.LoadLimitOrders(userID)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, models.SideBuy, orders[0].Side)
	assert.Equal(t, "BONK", orders[0].Symbol)
	assert.Equal(t, 0.00002, orders[0].TargetPriceUsd)
	assert.Equal(t, 1000.0, orders[0].Amount)
	assert.Equal(t, models.OrderActive, orders[0].Status)

	_, active := m.Active(userID)
	assert.False(t, active, "flow should be cleared after commit")
}

func TestLimitFlowInvalidPriceRepromptsSameStep(t *testing.T) {
	m, st, _ := newTestMachine(t, nil)

	m.StartLimit(userID)
	m.HandleText(context.Background(), userID, "WIF")
	m.ChooseLimitSide(userID, models.SideSell)

	reply, _ := m.HandleText(context.Background(), userID, "not-a-price")
	assert.Equal(t, "Invalid price.", reply)

	_, step, ok := m.Snapshot(userID)
	require.True(t, ok)
	assert.Equal(t, StepAwaitPrice, step)

	orders, err := st.LoadLimitOrders(userID)
	require.NoError(t, err)
	assert.Empty(t, orders, "nothing persisted until the final step")
}

func TestLimitSideChoiceOutsideFlowExpires(t *testing.T) {
	m, _, _ := newTestMachine(t, nil)
	reply := m.ChooseLimitSide(userID, models.SideBuy)
	assert.Contains(t, reply, "session expired")
}

func TestDcaFlowIntervalParsing(t *testing.T) {
	m, st, _ := newTestMachine(t, nil)

	m.StartDca(userID)
	m.HandleText(context.Background(), userID, "BONK")

	reply, _ := m.HandleText(context.Background(), userID, "45x")
	assert.Contains(t, reply, "Invalid interval")

	_, step, ok := m.Snapshot(userID)
	require.True(t, ok)
	assert.Equal(t, StepAwaitInterval, step)

	reply, _ = m.HandleText(context.Background(), userID, "45m")
	assert.Contains(t, reply, "amount per DCA run")

	reply, _ = m.HandleText(context.Background(), userID, "0.1")
	assert.Contains(t, reply, "DCA Created")

	schedules, err := st.LoadSchedules(userID)
	require.NoError(t, err)
	require.Len(t, schedules, 1)

	sched := schedules[0]
	assert.Equal(t, int64(45*60*1000), sched.IntervalMs)
	assert.Equal(t, "45m", sched.Interval)
	assert.Equal(t, models.ScheduleActive, sched.Status)
	assert.Equal(t, 0, sched.RunCount)

	wantNext := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC).UnixMilli() + sched.IntervalMs
	assert.Equal(t, wantNext, sched.NextRunAt)
}

func TestSellFlowCommaDecimalAndBalanceCheck(t *testing.T) {
	m, st, wallets := newTestMachine(t, nil)
	wallets.SetBalance(userID, 0.5)

	m.StartSell(userID, "")

	reply, _ := m.HandleText(context.Background(), userID, "2,0")
	assert.Contains(t, reply, "Insufficient balance")
	assert.Contains(t, reply, "0.500000 SOL")

	// Rejection keeps the step open.
	_, step, ok := m.Snapshot(userID)
	require.True(t, ok)
	assert.Equal(t, StepAwaitCustomAmount, step)

	reply, _ = m.HandleText(context.Background(), userID, "0,25")
	assert.Contains(t, reply, "Simulated SELL recorded")

	positions, err := st.LoadPositions(userID)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, 0.25, positions[0].AmountSol)
	assert.Equal(t, models.SourceSimulatedSell, positions[0].Source)
}

func TestSellFromTokenTagsPosition(t *testing.T) {
	m, st, _ := newTestMachine(t, nil)

	m.StartSell(userID, "bonk")
	reply, _ := m.HandleText(context.Background(), userID, "0.1")
	assert.Contains(t, reply, "Simulated SELL recorded")

	positions, err := st.LoadPositions(userID)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, "BONK", positions[0].Symbol)
}

func TestSellPercentUsesSimulatedBalance(t *testing.T) {
	m, st, wallets := newTestMachine(t, nil)
	wallets.SetBalance(userID, 4)

	reply := m.SellPercent(userID, 25)
	assert.Contains(t, reply, "1 SOL")

	positions, err := st.LoadPositions(userID)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, 1.0, positions[0].AmountSol)
}

func TestBuyFlowQuantizedAmounts(t *testing.T) {
	mint := strings.Repeat("A", 44)
	po := &stubOracle{
		prices:  map[string]float64{strings.ToLower(mint): 0.5, "sol": 100},
		symbols: map[string]string{strings.ToLower(mint): "META"},
	}
	m, st, _ := newTestMachine(t, po)

	m.StartBuy(userID, mint)

	reply := m.ChooseBuyAmount(context.Background(), userID, 0.33)
	assert.Equal(t, "Invalid buy amount.", reply)

	reply = m.ChooseBuyAmount(context.Background(), userID, 0.25)
	assert.Contains(t, reply, "Simulated BUY recorded")
	assert.Contains(t, reply, "META")

	positions, err := st.LoadPositions(userID)
	require.NoError(t, err)
	require.Len(t, positions, 1)

	pos := positions[0]
	assert.Equal(t, "META", pos.Symbol)
	assert.Equal(t, mint, pos.Mint)
	assert.Equal(t, 0.25, pos.AmountSol)
	require.NotNil(t, pos.EntryPriceUsd)
	assert.Equal(t, 0.5, *pos.EntryPriceUsd)
	require.NotNil(t, pos.AmountTokens)
	assert.Equal(t, 50.0, *pos.AmountTokens) // 0.25 * 100 / 0.5
	assert.Equal(t, models.SourceSimulatedBuy, pos.Source)
}

func TestBuyFlowRecordsPositionWithoutPrices(t *testing.T) {
	m, st, _ := newTestMachine(t, nil)

	m.StartBuy(userID, "bonk")
	reply := m.ChooseBuyAmount(context.Background(), userID, 0.10)
	assert.Contains(t, reply, "Simulated BUY recorded")

	positions, err := st.LoadPositions(userID)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Nil(t, positions[0].EntryPriceUsd)
	assert.Nil(t, positions[0].AmountTokens)
	assert.Empty(t, positions[0].Mint)
}

func TestNewFlowDiscardsPriorFlow(t *testing.T) {
	m, st, _ := newTestMachine(t, nil)

	m.StartLimit(userID)
	m.HandleText(context.Background(), userID, "BONK")

	// Starting DCA mid-limit abandons the limit flow entirely.
	m.StartDca(userID)
	kind, step, ok := m.Snapshot(userID)
	require.True(t, ok)
	assert.Equal(t, KindDca, kind)
	assert.Equal(t, StepAwaitToken, step)

	m.HandleText(context.Background(), userID, "WIF")
	m.HandleText(context.Background(), userID, "1h")
	m.HandleText(context.Background(), userID, "0.1")

	orders, err := st.LoadLimitOrders(userID)
	require.NoError(t, err)
	assert.Empty(t, orders, "abandoned limit flow must not commit")

	schedules, err := st.LoadSchedules(userID)
	require.NoError(t, err)
	assert.Len(t, schedules, 1)
}

func TestImportFlowAbortsOnBadInput(t *testing.T) {
	m, _, wallets := newTestMachine(t, nil)

	m.StartImport(userID)
	reply, handled := m.HandleText(context.Background(), userID, "garbage key material")
	require.True(t, handled)
	assert.Contains(t, reply, "Failed to import")

	// Import aborts instead of re-prompting.
	_, active := m.Active(userID)
	assert.False(t, active)
	assert.False(t, wallets.Has(userID))
}

func TestLaunchFlowSummary(t *testing.T) {
	m, _, _ := newTestMachine(t, nil)

	m.StartLaunch(userID, "quick")
	m.HandleText(context.Background(), userID, "Meta Coin")
	m.HandleText(context.Background(), userID, "meta")

	reply, _ := m.HandleText(context.Background(), userID, "1,000,000")
	assert.Contains(t, reply, "Token Launch Summary")
	assert.Contains(t, reply, "QUICK")
	assert.Contains(t, reply, "META")
	assert.Contains(t, reply, "1000000")

	_, active := m.Active(userID)
	assert.False(t, active)
}

func TestTextWithoutActiveFlowPassesThrough(t *testing.T) {
	m, _, _ := newTestMachine(t, nil)
	_, handled := m.HandleText(context.Background(), userID, "hello")
	assert.False(t, handled)
}
