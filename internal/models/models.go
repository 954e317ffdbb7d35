package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderSide is the direction of a limit order.
type OrderSide string

const (
	SideBuy  OrderSide = "BUY"
	SideSell OrderSide = "SELL"
)

// OrderStatus transitions are monotonic: ACTIVE -> FILLED or ACTIVE -> CANCELLED.
type OrderStatus string

const (
	OrderActive    OrderStatus = "ACTIVE"
	OrderFilled    OrderStatus = "FILLED"
	OrderCancelled OrderStatus = "CANCELLED"
)

type ScheduleStatus string

const (
	ScheduleActive    ScheduleStatus = "ACTIVE"
	SchedulePaused    ScheduleStatus = "PAUSED"
	ScheduleCancelled ScheduleStatus = "CANCELLED"
)

// PositionSource tags how a position record came to exist.
type PositionSource string

const (
	SourceSimulatedBuy  PositionSource = "simulated_buy"
	SourceSimulatedSell PositionSource = "simulated_sell"
	SourceDcaRun        PositionSource = "dca_run"
)

// Position is an append-only record of a simulated buy, sell or DCA run.
// Records are never mutated after creation.
type Position struct {
	ID            string         `json:"id"`
	Symbol        string         `json:"symbol,omitempty"`
	Mint          string         `json:"mint,omitempty"`
	EntryPriceUsd *float64       `json:"entryPriceUsd,omitempty"`
	AmountSol     float64        `json:"amountSol"`
	AmountTokens  *float64       `json:"amountTokens,omitempty"`
	Time          time.Time      `json:"time"`
	Source        PositionSource `json:"source"`
}

// LimitOrder is a standing instruction that fills at most once when the
// oracle price crosses the target.
type LimitOrder struct {
	ID             string      `json:"id"`
	Side           OrderSide   `json:"side"`
	Token          string      `json:"token"`
	Symbol         string      `json:"symbol"`
	TargetPriceUsd float64     `json:"targetPriceUsd"`
	Amount         float64     `json:"amount"`
	Status         OrderStatus `json:"status"`
	CreatedAt      time.Time   `json:"createdAt"`
	FilledAt       *time.Time  `json:"filledAt,omitempty"`
}

// DcaSchedule simulates a fixed-size purchase on a fixed cadence.
// LastRunAt and NextRunAt are unix milliseconds so the interval math stays
// exact across persistence.
type DcaSchedule struct {
	ID         string         `json:"id"`
	Token      string         `json:"token"`
	Symbol     string         `json:"symbol"`
	Interval   string         `json:"interval"`
	IntervalMs int64          `json:"intervalMs"`
	AmountSol  float64        `json:"amountSol"`
	Status     ScheduleStatus `json:"status"`
	CreatedAt  time.Time      `json:"createdAt"`
	LastRunAt  *int64         `json:"lastRunAt,omitempty"`
	NextRunAt  int64          `json:"nextRunAt"`
	RunCount   int            `json:"runCount"`
}

// LaunchSummary is the outcome of a completed launch flow. There is no
// on-chain effect; it exists only to be rendered back to the user.
type LaunchSummary struct {
	Type      string
	Name      string
	Symbol    string
	Supply    float64
	Simulated bool
}

// NewID returns a prefixed record id, e.g. "limit_4f9d...".
func NewID(prefix string) string {
	return prefix + "_" + uuid.NewString()
}
