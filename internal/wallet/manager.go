package wallet

import "sync"

// Manager is the per-user wallet registry. It also carries a simulated SOL
// balance per user: real trading is out of scope, and the sell flow needs a
// balance to validate against.
type Manager struct {
	mu             sync.RWMutex
	wallets        map[int64]*Wallet
	balances       map[int64]float64
	defaultBalance float64
}

func NewManager(defaultBalanceSol float64) *Manager {
	return &Manager{
		wallets:        make(map[int64]*Wallet),
		balances:       make(map[int64]float64),
		defaultBalance: defaultBalanceSol,
	}
}

// Import parses the input and, on success, replaces the user's active wallet.
// On failure the previous wallet reference is left untouched.
func (m *Manager) Import(userID int64, input string) (*Wallet, error) {
	w, err := Import(input)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.wallets[userID] = w
	m.mu.Unlock()
	return w, nil
}

func (m *Manager) Get(userID int64) (*Wallet, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.wallets[userID]
	return w, ok
}

func (m *Manager) Has(userID int64) bool {
	_, ok := m.Get(userID)
	return ok
}

// Balance returns the simulated SOL balance for the user.
func (m *Manager) Balance(userID int64) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if bal, ok := m.balances[userID]; ok {
		return bal
	}
	return m.defaultBalance
}

func (m *Manager) SetBalance(userID int64, sol float64) {
	m.mu.Lock()
	m.balances[userID] = sol
	m.mu.Unlock()
}
