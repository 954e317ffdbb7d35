package flow

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"metasol_bot/internal/models"
	"metasol_bot/internal/oracle"
	"metasol_bot/internal/store"
	"metasol_bot/internal/wallet"
)

// QuickBuyAmounts is the fixed menu of quantized SOL sizes for the buy flow.
var QuickBuyAmounts = []float64{0.10, 0.25, 0.50, 1.00}

var intervalRe = regexp.MustCompile(`^(\d+)\s*([mhd])$`)

// Machine drives the per-user flows: it validates each reply, advances the
// step, and on the final step commits the target record and clears the flow.
// Invalid input re-prompts the same step and mutates nothing; the one
// exception is import, which aborts on failure instead of re-prompting.
type Machine struct {
	states  *Manager
	store   store.Store
	oracle  oracle.PriceOracle
	wallets *wallet.Manager
	now     func() time.Time
}

func NewMachine(st store.Store, po oracle.PriceOracle, wallets *wallet.Manager) *Machine {
	return &Machine{
		states:  NewManager(),
		store:   st,
		oracle:  po,
		wallets: wallets,
		now:     time.Now,
	}
}

// SetClock overrides the wall clock (tests).
func (m *Machine) SetClock(now func() time.Time) { m.now = now }

// Active reports the user's current flow kind, if any.
func (m *Machine) Active(userID int64) (Kind, bool) {
	s, ok := m.states.Get(userID)
	if !ok {
		return KindNone, false
	}
	return s.Kind, true
}

// Snapshot reports the user's current flow kind and step, for transports
// that attach keyboards to particular prompts.
func (m *Machine) Snapshot(userID int64) (Kind, Step, bool) {
	s, ok := m.states.Get(userID)
	if !ok {
		return KindNone, "", false
	}
	return s.Kind, s.Step, true
}

// Cancel clears any in-progress flow without side effects.
func (m *Machine) Cancel(userID int64) {
	m.states.Clear(userID)
}

// --- flow entry points -------------------------------------------------

func (m *Machine) StartImport(userID int64) string {
	m.states.Start(userID, &State{Kind: KindImport, Step: StepAwaitKey})
	return "🔒 Paste your private key (bracketed byte list or base58) or your 12/24-word mnemonic."
}

func (m *Machine) StartLimit(userID int64) string {
	m.states.Start(userID, &State{Kind: KindLimit, Step: StepAwaitToken})
	return "Enter token symbol or mint for LIMIT order (e.g. BONK or a mint address)."
}

func (m *Machine) StartDca(userID int64) string {
	m.states.Start(userID, &State{Kind: KindDca, Step: StepAwaitToken})
	return "Enter token symbol or mint for DCA (e.g. BONK or a mint address)."
}

// StartBuy opens the quick-amount buy flow with the token pre-filled by a
// prior lookup.
func (m *Machine) StartBuy(userID int64, token string) string {
	m.states.Start(userID, &State{Kind: KindBuy, Step: StepChooseAmount, Token: token})
	return fmt.Sprintf("🛒 Token detected: %s\nSelect amount to buy.", token)
}

// StartSell opens the custom-amount sell flow. token may be empty; when set
// (sell-from-token shortcut) the resulting position is tagged with it.
func (m *Machine) StartSell(userID int64, token string) string {
	s := &State{Kind: KindSell, Step: StepAwaitCustomAmount, Token: token}
	if token != "" {
		s.Symbol = strings.ToUpper(token)
	}
	m.states.Start(userID, s)
	return "Enter the amount to sell (in SOL). Example: 0.25"
}

func (m *Machine) StartLaunch(userID int64, launchType string) string {
	m.states.Start(userID, &State{Kind: KindLaunch, Step: StepAwaitName, LaunchType: launchType})
	return "🚀 Enter Token Name:"
}

// --- button-driven steps ------------------------------------------------

// ChooseLimitSide advances the limit flow past its explicit BUY/SELL choice.
func (m *Machine) ChooseLimitSide(userID int64, side models.OrderSide) string {
	s, ok := m.states.Get(userID)
	if !ok || s.Kind != KindLimit || s.Step != StepAwaitType {
		return "Limit order session expired. Please start a new order."
	}
	s.Side = side
	s.Step = StepAwaitPrice
	return "Enter your LIMIT PRICE in USD:"
}

// ChooseBuyAmount completes the buy flow with one of the quantized amounts.
func (m *Machine) ChooseBuyAmount(ctx context.Context, userID int64, amountSol float64) string {
	s, ok := m.states.Get(userID)
	if !ok || s.Kind != KindBuy || s.Step != StepChooseAmount || s.Token == "" {
		return "Buy session expired. Please start the buy flow again."
	}
	if !quantized(amountSol) {
		return "Invalid buy amount."
	}

	symbol := m.oracle.ResolveSymbol(ctx, s.Token)

	var entryPrice *float64
	var estTokens *float64
	tokenUsd, tokenOK := m.oracle.PriceUSD(ctx, s.Token)
	solUsd, solOK := m.oracle.PriceUSD(ctx, "sol")
	if tokenOK {
		entryPrice = &tokenUsd
	}
	if tokenOK && solOK {
		est, _ := decimal.NewFromFloat(amountSol).
			Mul(decimal.NewFromFloat(solUsd)).
			Div(decimal.NewFromFloat(tokenUsd)).
			Round(8).Float64()
		estTokens = &est
	}

	pos := models.Position{
		ID:            models.NewID("pos"),
		Symbol:        symbol,
		Mint:          mintOf(s.Token),
		EntryPriceUsd: entryPrice,
		AmountSol:     amountSol,
		AmountTokens:  estTokens,
		Time:          m.now(),
		Source:        models.SourceSimulatedBuy,
	}
	if err := m.appendPosition(userID, pos); err != nil {
		logger.WithError(err).WithField("user", userID).Error("record simulated buy")
		m.states.Clear(userID)
		return "❌ Failed to record simulated buy."
	}
	m.states.Clear(userID)

	reply := fmt.Sprintf("✅ Simulated BUY recorded: *%s*, %g SOL", symbol, amountSol)
	if estTokens != nil {
		reply += fmt.Sprintf(" (~%g %s)", *estTokens, symbol)
	}
	return reply
}

// --- text routing -------------------------------------------------------

// HandleText routes an inbound text to the user's active flow step. handled
// is false when the user has no active flow (the message passes through).
func (m *Machine) HandleText(ctx context.Context, userID int64, text string) (reply string, handled bool) {
	s, ok := m.states.Get(userID)
	if !ok {
		return "", false
	}
	text = strings.TrimSpace(text)

	switch s.Kind {
	case KindImport:
		return m.handleImport(userID, text), true
	case KindSell:
		return m.handleSell(userID, s, text), true
	case KindLimit:
		return m.handleLimit(userID, s, text), true
	case KindDca:
		return m.handleDca(ctx, userID, s, text), true
	case KindLaunch:
		return m.handleLaunch(userID, s, text), true
	case KindBuy:
		// Amount selection is button-driven; free text is not a valid reply.
		return "Select one of the amount buttons, or Cancel.", true
	default:
		m.states.Clear(userID)
		return "", false
	}
}

func (m *Machine) handleImport(userID int64, text string) string {
	// Success or failure, the flow never stays open with a secret pending.
	m.states.Clear(userID)

	w, err := m.wallets.Import(userID, text)
	if err != nil {
		logger.WithField("user", userID).Warn("wallet import failed")
		return "❌ Failed to import. Make sure the key or mnemonic is correct."
	}
	logger.WithFields(logger.Fields{"user": userID, "pubkey": w.PublicKey()}).Info("wallet imported")
	return fmt.Sprintf("✅ *Wallet Imported Successfully!*\n\n🔑 Public Key: `%s`", w.PublicKey())
}

func (m *Machine) handleSell(userID int64, s *State, text string) string {
	if s.Step != StepAwaitCustomAmount {
		return "Enter the amount to sell (in SOL). Example: 0.25"
	}

	amt, ok := parsePositive(text)
	if !ok {
		return "Invalid amount. Please enter a numeric amount in SOL, e.g. 0.25."
	}
	bal := m.wallets.Balance(userID)
	if amt > bal {
		return fmt.Sprintf("Insufficient balance: you are trying to sell %g SOL but your balance is %.6f SOL.", amt, bal)
	}

	pos := models.Position{
		ID:        models.NewID("sell"),
		Symbol:    s.Symbol,
		Mint:      mintOf(s.Token),
		AmountSol: amt,
		Time:      m.now(),
		Source:    models.SourceSimulatedSell,
	}
	if err := m.appendPosition(userID, pos); err != nil {
		logger.WithError(err).WithField("user", userID).Error("record simulated sell")
		m.states.Clear(userID)
		return "❌ Failed to process sell."
	}
	m.states.Clear(userID)
	return fmt.Sprintf("✅ Simulated SELL recorded: *%g SOL*", amt)
}

func (m *Machine) handleLimit(userID int64, s *State, text string) string {
	switch s.Step {
	case StepAwaitToken:
		if text == "" {
			return "Enter token symbol or mint for LIMIT order (e.g. BONK or a mint address)."
		}
		s.Token = text
		s.Symbol = strings.ToUpper(text)
		s.Step = StepAwaitType
		return "Choose order type:"

	case StepAwaitType:
		// The type is chosen via buttons, not free text.
		return "Choose order type using the BUY / SELL buttons."

	case StepAwaitPrice:
		price, ok := parsePositive(text)
		if !ok {
			return "Invalid price."
		}
		s.PriceUsd = price
		s.Step = StepAwaitAmount
		return "Enter token AMOUNT:"

	case StepAwaitAmount:
		amount, ok := parsePositive(text)
		if !ok {
			return "Invalid amount."
		}

		order := models.LimitOrder{
			ID:             models.NewID("limit"),
			Side:           s.Side,
			Token:          s.Token,
			Symbol:         s.Symbol,
			TargetPriceUsd: s.PriceUsd,
			Amount:         amount,
			Status:         models.OrderActive,
			CreatedAt:      m.now(),
		}
		orders, err := m.store.LoadLimitOrders(userID)
		if err == nil {
			err = m.store.SaveLimitOrders(userID, append(orders, order))
		}
		if err != nil {
			logger.WithError(err).WithField("user", userID).Error("commit limit order")
			m.states.Clear(userID)
			return "❌ Failed to save limit order."
		}
		m.states.Clear(userID)
		logger.WithFields(logger.Fields{"user": userID, "symbol": order.Symbol, "side": order.Side, "price": order.TargetPriceUsd}).Info("limit order created")
		return fmt.Sprintf("✅ *Limit Order Created!*\n\nToken: %s\nType: %s\nPrice: $%g\nAmount: %g",
			order.Symbol, order.Side, order.TargetPriceUsd, order.Amount)
	}
	return "Limit order session expired. Please start a new order."
}

func (m *Machine) handleDca(ctx context.Context, userID int64, s *State, text string) string {
	switch s.Step {
	case StepAwaitToken:
		if text == "" {
			return "Enter token symbol or mint for DCA (e.g. BONK or a mint address)."
		}
		s.Token = text
		s.Symbol = m.oracle.ResolveSymbol(ctx, text)
		s.Step = StepAwaitInterval
		return "Enter interval for DCA (format: 30m, 1h, 12h, 1d). Example: 1h"

	case StepAwaitInterval:
		ms, ok := parseInterval(text)
		if !ok {
			return "Invalid interval format. Use examples: 15m, 30m, 1h, 12h, 1d."
		}
		s.Interval = strings.ToLower(strings.TrimSpace(text))
		s.IntervalMs = ms
		s.Step = StepAwaitAmount
		return "Enter amount per DCA run (in SOL). Example: 0.1"

	case StepAwaitAmount:
		amount, ok := parsePositive(text)
		if !ok {
			return "Invalid amount. Enter a numeric value in SOL, e.g. 0.1."
		}

		now := m.now()
		sched := models.DcaSchedule{
			ID:         models.NewID("dca"),
			Token:      s.Token,
			Symbol:     s.Symbol,
			Interval:   s.Interval,
			IntervalMs: s.IntervalMs,
			AmountSol:  amount,
			Status:     models.ScheduleActive,
			CreatedAt:  now,
			NextRunAt:  now.UnixMilli() + s.IntervalMs,
			RunCount:   0,
		}
		schedules, err := m.store.LoadSchedules(userID)
		if err == nil {
			err = m.store.SaveSchedules(userID, append(schedules, sched))
		}
		if err != nil {
			logger.WithError(err).WithField("user", userID).Error("commit dca schedule")
			m.states.Clear(userID)
			return "❌ Failed to save DCA order."
		}
		m.states.Clear(userID)
		logger.WithFields(logger.Fields{"user": userID, "symbol": sched.Symbol, "interval": sched.Interval, "amount": amount}).Info("dca schedule created")
		return fmt.Sprintf("✅ *DCA Created!*\n\nToken: %s\nInterval: %s\nAmount: %g SOL",
			sched.Symbol, sched.Interval, amount)
	}
	return "DCA session expired. Please start a new order."
}

func (m *Machine) handleLaunch(userID int64, s *State, text string) string {
	switch s.Step {
	case StepAwaitName:
		if text == "" {
			return "🚀 Enter Token Name:"
		}
		s.Name = text
		s.Step = StepAwaitSymbol
		return "Enter Token Symbol (e.g. META):"

	case StepAwaitSymbol:
		if text == "" {
			return "Enter Token Symbol (e.g. META):"
		}
		s.Symbol = strings.ToUpper(text)
		s.Step = StepAwaitSupply
		return "Enter Initial Supply (number):"

	case StepAwaitSupply:
		supply, ok := parsePositive(strings.ReplaceAll(text, ",", ""))
		if !ok {
			return "❌ Invalid supply. Enter a numeric value."
		}
		summary := models.LaunchSummary{
			Type:      s.LaunchType,
			Name:      s.Name,
			Symbol:    s.Symbol,
			Supply:    supply,
			Simulated: true,
		}
		m.states.Clear(userID)
		return fmt.Sprintf("🚀 *Token Launch Summary*\n\n• Type: %s\n• Name: %s\n• Symbol: %s\n• Supply: %s\n\n⚠️ This is simulated. No on-chain deployment happens.",
			strings.ToUpper(summary.Type), summary.Name, summary.Symbol,
			strconv.FormatFloat(summary.Supply, 'f', -1, 64))
	}
	return "Launch session expired."
}

// SellPercent records a quick percentage sell of the simulated balance. It is
// a one-shot operation, not a flow.
func (m *Machine) SellPercent(userID int64, percent int) string {
	bal := m.wallets.Balance(userID)
	amt, _ := decimal.NewFromFloat(bal).
		Mul(decimal.New(int64(percent), -2)).
		Round(6).Float64()
	if amt <= 0 {
		return "Insufficient balance to sell."
	}

	pos := models.Position{
		ID:        models.NewID("sell"),
		AmountSol: amt,
		Time:      m.now(),
		Source:    models.SourceSimulatedSell,
	}
	if err := m.appendPosition(userID, pos); err != nil {
		logger.WithError(err).WithField("user", userID).Error("record percent sell")
		return "❌ Failed to process sell."
	}
	return fmt.Sprintf("✅ Simulated SELL recorded: *%g SOL* (%d%%)", amt, percent)
}

// --- helpers ------------------------------------------------------------

func (m *Machine) appendPosition(userID int64, pos models.Position) error {
	positions, err := m.store.LoadPositions(userID)
	if err != nil {
		return err
	}
	return m.store.SavePositions(userID, append(positions, pos))
}

// parsePositive accepts a decimal number with an optional comma decimal
// separator and requires it to be strictly positive.
func parsePositive(text string) (float64, bool) {
	normalized := strings.ReplaceAll(strings.TrimSpace(text), ",", ".")
	d, err := decimal.NewFromString(normalized)
	if err != nil || !d.IsPositive() {
		return 0, false
	}
	f, _ := d.Float64()
	return f, true
}

// parseInterval converts "<integer><m|h|d>" into milliseconds.
func parseInterval(text string) (int64, bool) {
	match := intervalRe.FindStringSubmatch(strings.ToLower(strings.TrimSpace(text)))
	if match == nil {
		return 0, false
	}
	units, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil || units <= 0 {
		return 0, false
	}
	switch match[2] {
	case "m":
		return units * 60 * 1000, true
	case "h":
		return units * 60 * 60 * 1000, true
	case "d":
		return units * 24 * 60 * 60 * 1000, true
	}
	return 0, false
}

// mintOf keeps the identifier only when it looks like a mint address.
func mintOf(token string) string {
	if len(token) >= 40 {
		return token
	}
	return ""
}

func quantized(amount float64) bool {
	for _, a := range QuickBuyAmounts {
		if a == amount {
			return true
		}
	}
	return false
}
