package flow

import (
	"sync"

	"metasol_bot/internal/models"
)

// Kind identifies which multi-step flow a user is inside.
type Kind string

const (
	KindNone   Kind = "none"
	KindImport Kind = "import"
	KindBuy    Kind = "buy"
	KindSell   Kind = "sell"
	KindLimit  Kind = "limit"
	KindDca    Kind = "dca"
	KindLaunch Kind = "launch"
)

// Step is a kind-specific position inside a flow.
type Step string

const (
	StepAwaitKey          Step = "await_key"
	StepAwaitToken        Step = "await_token"
	StepAwaitType         Step = "await_type"
	StepAwaitPrice        Step = "await_price"
	StepAwaitAmount       Step = "await_amount"
	StepAwaitInterval     Step = "await_interval"
	StepChooseAmount      Step = "choose_amount"
	StepAwaitCustomAmount Step = "await_custom_amount"
	StepAwaitName         Step = "await_name"
	StepAwaitSymbol       Step = "await_symbol"
	StepAwaitSupply       Step = "await_supply"
)

// State is the transient, in-memory flow position for one user, plus the
// fields collected so far. It is exclusive per user: starting any flow
// discards a prior incomplete one.
type State struct {
	Kind Kind
	Step Step

	Token  string
	Symbol string

	Side     models.OrderSide
	PriceUsd float64

	Interval   string
	IntervalMs int64

	LaunchType string
	Name       string
}

// Manager owns the userID -> State mapping. Handlers receive state through
// it explicitly; there is no ambient per-chat session object.
type Manager struct {
	mu     sync.Mutex
	states map[int64]*State
}

func NewManager() *Manager {
	return &Manager{states: make(map[int64]*State)}
}

// Start installs a new flow for the user, unconditionally discarding any
// prior incomplete one (last writer wins; flows are never queued).
func (m *Manager) Start(userID int64, s *State) *State {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[userID] = s
	return s
}

func (m *Manager) Get(userID int64) (*State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.states[userID]
	return s, ok
}

func (m *Manager) Clear(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, userID)
}
