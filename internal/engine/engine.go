package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	logger "github.com/sirupsen/logrus"

	"metasol_bot/internal/models"
	"metasol_bot/internal/oracle"
	"metasol_bot/internal/store"
)

// Notifier delivers a text message to a user, best effort. Implementations
// log their own failures; the sweeps never see them.
type Notifier interface {
	Notify(userID int64, text string)
}

// TriggerEngine runs two independent periodic sweeps over all users' stored
// orders: the limit sweep fills price-triggered orders at most once, the DCA
// sweep executes due schedules. A failure for one user never aborts the tick
// for the others.
type TriggerEngine struct {
	store    store.Store
	oracle   oracle.PriceOracle
	notifier Notifier

	limitPeriod time.Duration
	dcaPeriod   time.Duration
	now         func() time.Time

	mu        sync.Mutex
	isRunning bool
	stopChan  chan struct{}
}

func NewTriggerEngine(st store.Store, po oracle.PriceOracle, limitPeriod, dcaPeriod time.Duration) *TriggerEngine {
	return &TriggerEngine{
		store:       st,
		oracle:      po,
		limitPeriod: limitPeriod,
		dcaPeriod:   dcaPeriod,
		now:         time.Now,
	}
}

func (e *TriggerEngine) SetNotifier(n Notifier) { e.notifier = n }

// SetClock overrides the wall clock (tests drive sweeps deterministically).
func (e *TriggerEngine) SetClock(now func() time.Time) { e.now = now }

func (e *TriggerEngine) Start() {
	e.mu.Lock()
	if e.isRunning {
		e.mu.Unlock()
		return
	}
	e.isRunning = true
	e.stopChan = make(chan struct{})
	stop := e.stopChan
	e.mu.Unlock()

	logger.Info("trigger engine started")
	go e.loop(stop, e.limitPeriod, e.SweepLimits)
	go e.loop(stop, e.dcaPeriod, e.SweepDCA)
}

func (e *TriggerEngine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.isRunning {
		return
	}
	e.isRunning = false
	close(e.stopChan)
	logger.Info("trigger engine stopped")
}

func (e *TriggerEngine) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.isRunning
}

func (e *TriggerEngine) loop(stop <-chan struct{}, period time.Duration, sweep func(context.Context)) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			sweep(context.Background())
		}
	}
}

// SweepLimits evaluates every user's ACTIVE limit orders against the oracle.
// Orders whose price is unknown this tick are skipped untouched. A collection
// is written back only when something in it changed.
func (e *TriggerEngine) SweepLimits(ctx context.Context) {
	users, err := e.store.Users(store.KindLimits)
	if err != nil {
		logger.WithError(err).Error("limit sweep: list users")
		return
	}

	for _, userID := range users {
		if err := e.sweepUserLimits(ctx, userID); err != nil {
			logger.WithError(err).WithField("user", userID).Error("limit sweep: user failed")
		}
	}
}

func (e *TriggerEngine) sweepUserLimits(ctx context.Context, userID int64) error {
	orders, err := e.store.LoadLimitOrders(userID)
	if err != nil {
		return err
	}

	changed := false
	for i := range orders {
		order := &orders[i]
		if order.Status != models.OrderActive {
			continue
		}

		price, ok := e.oracle.PriceUSD(ctx, order.Token)
		if !ok {
			continue
		}

		var fills bool
		switch order.Side {
		case models.SideBuy:
			fills = price <= order.TargetPriceUsd
		case models.SideSell:
			fills = price >= order.TargetPriceUsd
		}
		if !fills {
			continue
		}

		filledAt := e.now()
		order.Status = models.OrderFilled
		order.FilledAt = &filledAt
		changed = true

		logger.WithFields(logger.Fields{"user": userID, "order": order.ID, "symbol": order.Symbol, "price": price}).Info("limit order filled")
		if order.Side == models.SideBuy {
			e.notify(userID, fmt.Sprintf("✅ BUY limit filled for %s @ $%g", order.Symbol, order.TargetPriceUsd))
		} else {
			e.notify(userID, fmt.Sprintf("🔴 SELL limit filled for %s @ $%g", order.Symbol, order.TargetPriceUsd))
		}
	}

	if !changed {
		return nil
	}
	return e.store.SaveLimitOrders(userID, orders)
}

// SweepDCA executes every due ACTIVE schedule: appends a dca_run position
// with the best-effort price, then advances the schedule from the execution
// wall-clock time (drift under sweep latency is accepted).
func (e *TriggerEngine) SweepDCA(ctx context.Context) {
	users, err := e.store.Users(store.KindDca)
	if err != nil {
		logger.WithError(err).Error("dca sweep: list users")
		return
	}

	for _, userID := range users {
		if err := e.sweepUserDCA(ctx, userID); err != nil {
			logger.WithError(err).WithField("user", userID).Error("dca sweep: user failed")
		}
	}
}

func (e *TriggerEngine) sweepUserDCA(ctx context.Context, userID int64) error {
	schedules, err := e.store.LoadSchedules(userID)
	if err != nil {
		return err
	}

	changed := false
	for i := range schedules {
		sched := &schedules[i]
		if sched.Status != models.ScheduleActive {
			continue
		}
		nowMs := e.now().UnixMilli()
		if sched.NextRunAt > nowMs {
			continue
		}

		var entryPrice *float64
		if price, ok := e.oracle.PriceUSD(ctx, sched.Token); ok {
			entryPrice = &price
		}

		pos := models.Position{
			ID:            models.NewID("dca_run"),
			Symbol:        sched.Symbol,
			Mint:          mintOf(sched.Token),
			EntryPriceUsd: entryPrice,
			AmountSol:     sched.AmountSol,
			Time:          e.now(),
			Source:        models.SourceDcaRun,
		}
		if err := e.appendPosition(userID, pos); err != nil {
			// Leave the schedule untouched so the run retries next tick.
			logger.WithError(err).WithFields(logger.Fields{"user": userID, "schedule": sched.ID}).Error("dca sweep: append position")
			continue
		}

		lastRun := nowMs
		sched.LastRunAt = &lastRun
		sched.RunCount++
		sched.NextRunAt = nowMs + sched.IntervalMs
		changed = true

		logger.WithFields(logger.Fields{"user": userID, "schedule": sched.ID, "symbol": sched.Symbol, "runs": sched.RunCount}).Info("dca run executed")
		e.notify(userID, fmt.Sprintf("🔁 DCA run executed for %s: %g SOL (simulated)", sched.Symbol, sched.AmountSol))
	}

	if !changed {
		return nil
	}
	return e.store.SaveSchedules(userID, schedules)
}

func (e *TriggerEngine) appendPosition(userID int64, pos models.Position) error {
	positions, err := e.store.LoadPositions(userID)
	if err != nil {
		return err
	}
	return e.store.SavePositions(userID, append(positions, pos))
}

func (e *TriggerEngine) notify(userID int64, text string) {
	if e.notifier == nil {
		return
	}
	e.notifier.Notify(userID, text)
}

func mintOf(token string) string {
	if len(token) >= 40 {
		return token
	}
	return ""
}
