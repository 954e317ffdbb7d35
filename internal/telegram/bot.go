package telegram

import (
	"context"
	"fmt"
	"strings"
	"time"

	logger "github.com/sirupsen/logrus"
	tele "gopkg.in/telebot.v3"

	"metasol_bot/internal/flow"
	"metasol_bot/internal/models"
	"metasol_bot/internal/store"
	"metasol_bot/internal/wallet"
)

// Bot is the Telegram transport: it renders menus, routes inbound text into
// the flow machine, and implements the engine's Notifier contract.
type Bot struct {
	bot     *tele.Bot
	flows   *flow.Machine
	store   store.Store
	wallets *wallet.Manager
}

func NewBot(token string, flows *flow.Machine, st store.Store, wallets *wallet.Manager) (*Bot, error) {
	pref := tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}

	b, err := tele.NewBot(pref)
	if err != nil {
		return nil, err
	}

	bot := &Bot{
		bot:     b,
		flows:   flows,
		store:   st,
		wallets: wallets,
	}
	bot.setupHandlers()
	return bot, nil
}

func (b *Bot) Start() {
	logger.Info("telegram bot started")
	b.bot.Start()
}

func (b *Bot) Stop() {
	b.bot.Stop()
}

// Notify implements engine.Notifier: best effort, failures logged and
// discarded.
func (b *Bot) Notify(userID int64, text string) {
	if _, err := b.bot.Send(&tele.User{ID: userID}, text, tele.ModeMarkdown); err != nil {
		logger.WithError(err).WithField("user", userID).Warn("notification send failed")
	}
}

var (
	btnBuy       = tele.Btn{Text: "🛒 Buy", Unique: "buy"}
	btnSell      = tele.Btn{Text: "💰 Sell", Unique: "sell"}
	btnPositions = tele.Btn{Text: "📊 Positions", Unique: "positions"}
	btnLimits    = tele.Btn{Text: "📈 Limits", Unique: "limits"}
	btnDca       = tele.Btn{Text: "🔁 DCA", Unique: "dca"}
	btnLaunch    = tele.Btn{Text: "🎉 Launch", Unique: "launch"}
	btnWallet    = tele.Btn{Text: "🔗 Wallet", Unique: "wallet"}
	btnBack      = tele.Btn{Text: "⬅️ Back", Unique: "back_to_main"}

	btnImportWallet = tele.Btn{Text: "📥 Import Wallet", Unique: "import_wallet"}

	btnLimitNew       = tele.Btn{Text: "➕ New Order", Unique: "limit_new"}
	btnLimitCancelAll = tele.Btn{Text: "❌ Cancel All", Unique: "limit_cancel_all"}
	btnLimitHistory   = tele.Btn{Text: "📜 Order History", Unique: "limit_history"}
	btnLimitTypeBuy   = tele.Btn{Text: "BUY", Unique: "limit_type_buy"}
	btnLimitTypeSell  = tele.Btn{Text: "SELL", Unique: "limit_type_sell"}

	btnDcaNew       = tele.Btn{Text: "➕ New DCA", Unique: "dca_new"}
	btnDcaCancelAll = tele.Btn{Text: "❌ Cancel All", Unique: "dca_cancel_all"}
	btnDcaHistory   = tele.Btn{Text: "📜 DCA History", Unique: "dca_history"}

	btnSellPct25  = tele.Btn{Text: "25% ➗", Unique: "sell_pct_25"}
	btnSellPct50  = tele.Btn{Text: "50% ➗", Unique: "sell_pct_50"}
	btnSellPct75  = tele.Btn{Text: "75% ➗", Unique: "sell_pct_75"}
	btnSellPct100 = tele.Btn{Text: "100% ➗", Unique: "sell_pct_100"}
	btnSellCustom = tele.Btn{Text: "Custom Amount", Unique: "sell_custom"}

	btnBuyAmt010 = tele.Btn{Text: "0.10 SOL", Unique: "buy_amount_010"}
	btnBuyAmt025 = tele.Btn{Text: "0.25 SOL", Unique: "buy_amount_025"}
	btnBuyAmt050 = tele.Btn{Text: "0.50 SOL", Unique: "buy_amount_050"}
	btnBuyAmt100 = tele.Btn{Text: "1.00 SOL", Unique: "buy_amount_100"}
	btnBuyCancel = tele.Btn{Text: "Cancel", Unique: "buy_cancel"}

	btnLaunchQuick   = tele.Btn{Text: "⚡ Quick Launch", Unique: "launch_quick"}
	btnLaunchCustom  = tele.Btn{Text: "⚙️ Custom Launch", Unique: "launch_custom"}
	btnLaunchPresale = tele.Btn{Text: "🎯 Presale Launch", Unique: "launch_presale"}
)

func (b *Bot) setupHandlers() {
	b.bot.Handle("/start", b.handleStart)
	b.bot.Handle("/cancel", b.handleCancel)
	b.bot.Handle("/buy", b.handleBuyCommand)
	b.bot.Handle("/sell", b.handleSellCommand)
	b.bot.Handle("/positions", b.handlePositions)
	b.bot.Handle("/limits", b.handleLimits)
	b.bot.Handle("/dca", b.handleDca)

	b.bot.Handle(&btnBuy, b.handleBuyMenu)
	b.bot.Handle(&btnSell, b.handleSellMenu)
	b.bot.Handle(&btnPositions, b.handlePositions)
	b.bot.Handle(&btnLimits, b.handleLimits)
	b.bot.Handle(&btnDca, b.handleDca)
	b.bot.Handle(&btnLaunch, b.handleLaunchMenu)
	b.bot.Handle(&btnWallet, b.handleWallet)
	b.bot.Handle(&btnBack, b.handleStart)

	b.bot.Handle(&btnImportWallet, b.handleImportWallet)

	b.bot.Handle(&btnLimitNew, b.handleLimitNew)
	b.bot.Handle(&btnLimitCancelAll, b.handleLimitCancelAll)
	b.bot.Handle(&btnLimitHistory, b.handleLimitHistory)
	b.bot.Handle(&btnLimitTypeBuy, b.limitSideHandler(models.SideBuy))
	b.bot.Handle(&btnLimitTypeSell, b.limitSideHandler(models.SideSell))

	b.bot.Handle(&btnDcaNew, b.handleDcaNew)
	b.bot.Handle(&btnDcaCancelAll, b.handleDcaCancelAll)
	b.bot.Handle(&btnDcaHistory, b.handleDcaHistory)

	b.bot.Handle(&btnSellPct25, b.sellPctHandler(25))
	b.bot.Handle(&btnSellPct50, b.sellPctHandler(50))
	b.bot.Handle(&btnSellPct75, b.sellPctHandler(75))
	b.bot.Handle(&btnSellPct100, b.sellPctHandler(100))
	b.bot.Handle(&btnSellCustom, b.handleSellCustom)

	b.bot.Handle(&btnBuyAmt010, b.buyAmountHandler(0.10))
	b.bot.Handle(&btnBuyAmt025, b.buyAmountHandler(0.25))
	b.bot.Handle(&btnBuyAmt050, b.buyAmountHandler(0.50))
	b.bot.Handle(&btnBuyAmt100, b.buyAmountHandler(1.00))
	b.bot.Handle(&btnBuyCancel, b.handleBuyCancel)

	b.bot.Handle(&btnLaunchQuick, b.launchHandler("quick"))
	b.bot.Handle(&btnLaunchCustom, b.launchHandler("custom"))
	b.bot.Handle(&btnLaunchPresale, b.launchHandler("presale"))

	b.bot.Handle(tele.OnText, b.handleText)
}

func mainMenu() *tele.ReplyMarkup {
	menu := &tele.ReplyMarkup{}
	menu.Inline(
		menu.Row(btnBuy, btnSell),
		menu.Row(btnPositions, btnLimits, btnDca),
		menu.Row(btnLaunch, btnWallet),
	)
	return menu
}

func (b *Bot) handleStart(c tele.Context) error {
	userID := c.Sender().ID
	// Opening the main menu abandons any in-progress flow.
	b.flows.Cancel(userID)

	msg := "🚀 *MetaSol Bot*\n\n"
	if w, ok := b.wallets.Get(userID); ok {
		msg += fmt.Sprintf("💼 Wallet: `%s`\n💰 Balance: %.4f SOL\n\n", w.PublicKey(), b.wallets.Balance(userID))
	} else {
		msg += "🔗 No wallet connected yet.\n\n"
	}
	msg += "Choose an option below 👇"

	return c.Send(msg, mainMenu(), tele.ModeMarkdown)
}

func (b *Bot) handleCancel(c tele.Context) error {
	b.flows.Cancel(c.Sender().ID)
	return c.Send("Cancelled.", mainMenu())
}

// handleText routes free text into the active flow; without one the message
// passes through unanswered.
func (b *Bot) handleText(c tele.Context) error {
	userID := c.Sender().ID
	text := c.Text()

	if strings.EqualFold(strings.TrimSpace(text), "cancel") {
		b.flows.Cancel(userID)
		return c.Send("Cancelled.", mainMenu())
	}

	reply, handled := b.flows.HandleText(context.Background(), userID, text)
	if !handled {
		return nil
	}

	// The limit flow's type prompt carries its own keyboard.
	if kind, step, ok := b.flows.Snapshot(userID); ok && kind == flow.KindLimit && step == flow.StepAwaitType {
		menu := &tele.ReplyMarkup{}
		menu.Inline(menu.Row(btnLimitTypeBuy, btnLimitTypeSell))
		return c.Send(reply, menu, tele.ModeMarkdown)
	}
	return c.Send(reply, tele.ModeMarkdown)
}

// --- wallet -------------------------------------------------------------

func (b *Bot) handleWallet(c tele.Context) error {
	userID := c.Sender().ID
	menu := &tele.ReplyMarkup{}
	menu.Inline(menu.Row(btnImportWallet), menu.Row(btnBack))

	if w, ok := b.wallets.Get(userID); ok {
		return c.Send(fmt.Sprintf("💼 Wallet: `%s`\n💰 SOL: %.4f", w.PublicKey(), b.wallets.Balance(userID)), menu, tele.ModeMarkdown)
	}
	return c.Send("🔗 No wallet connected.\n\nImport one to start trading.", menu)
}

func (b *Bot) handleImportWallet(c tele.Context) error {
	return c.Send(b.flows.StartImport(c.Sender().ID))
}

// requireWallet gates trading surfaces behind an imported wallet.
func (b *Bot) requireWallet(c tele.Context) bool {
	if b.wallets.Has(c.Sender().ID) {
		return true
	}
	menu := &tele.ReplyMarkup{}
	menu.Inline(menu.Row(btnImportWallet), menu.Row(btnBack))
	_ = c.Send("🔗 Please connect your wallet first to start trading.", menu)
	return false
}

// --- buy ----------------------------------------------------------------

func (b *Bot) handleBuyMenu(c tele.Context) error {
	if !b.requireWallet(c) {
		return nil
	}
	return c.Send("🛒 *Buy Tokens*\n\nSend `/buy <symbol or mint>` to pick a token.", tele.ModeMarkdown)
}

func (b *Bot) handleBuyCommand(c tele.Context) error {
	if !b.requireWallet(c) {
		return nil
	}
	token := strings.TrimSpace(c.Message().Payload)
	if token == "" {
		return c.Send("Usage: /buy <symbol or mint>")
	}

	reply := b.flows.StartBuy(c.Sender().ID, token)

	menu := &tele.ReplyMarkup{}
	menu.Inline(
		menu.Row(btnBuyAmt010, btnBuyAmt025),
		menu.Row(btnBuyAmt050, btnBuyAmt100),
		menu.Row(btnBuyCancel),
	)
	return c.Send(reply, menu)
}

func (b *Bot) buyAmountHandler(amountSol float64) tele.HandlerFunc {
	return func(c tele.Context) error {
		reply := b.flows.ChooseBuyAmount(context.Background(), c.Sender().ID, amountSol)
		return c.Send(reply, tele.ModeMarkdown)
	}
}

func (b *Bot) handleBuyCancel(c tele.Context) error {
	b.flows.Cancel(c.Sender().ID)
	return c.Send("Buy cancelled.")
}

// --- sell ---------------------------------------------------------------

func (b *Bot) handleSellMenu(c tele.Context) error {
	if !b.requireWallet(c) {
		return nil
	}
	userID := c.Sender().ID
	menu := &tele.ReplyMarkup{}
	menu.Inline(
		menu.Row(btnSellPct25, btnSellPct50),
		menu.Row(btnSellPct75, btnSellPct100),
		menu.Row(btnSellCustom, btnBack),
	)
	return c.Send(fmt.Sprintf("💸 *Sell Tokens*\n\n💰 SOL Balance: %.6f\n\nSelect a quick sell size or enter a custom amount.",
		b.wallets.Balance(userID)), menu, tele.ModeMarkdown)
}

func (b *Bot) sellPctHandler(percent int) tele.HandlerFunc {
	return func(c tele.Context) error {
		if !b.requireWallet(c) {
			return nil
		}
		return c.Send(b.flows.SellPercent(c.Sender().ID, percent), tele.ModeMarkdown)
	}
}

// handleSellCommand opens the custom sell flow with the token pre-filled, so
// the resulting record is tagged with it.
func (b *Bot) handleSellCommand(c tele.Context) error {
	if !b.requireWallet(c) {
		return nil
	}
	return c.Send(b.flows.StartSell(c.Sender().ID, strings.TrimSpace(c.Message().Payload)))
}

func (b *Bot) handleSellCustom(c tele.Context) error {
	if !b.requireWallet(c) {
		return nil
	}
	return c.Send(b.flows.StartSell(c.Sender().ID, ""))
}

// --- positions ----------------------------------------------------------

func (b *Bot) handlePositions(c tele.Context) error {
	userID := c.Sender().ID
	positions, err := b.store.LoadPositions(userID)
	if err != nil {
		logger.WithError(err).WithField("user", userID).Error("load positions")
		return c.Send("❌ Failed to load positions.")
	}
	if len(positions) == 0 {
		return c.Send("📭 No positions recorded.")
	}

	// Last 20, newest first.
	start := 0
	if len(positions) > 20 {
		start = len(positions) - 20
	}
	recent := positions[start:]

	var sb strings.Builder
	sb.WriteString("📊 *Your Trading Positions*\n\n")
	for i := len(recent) - 1; i >= 0; i-- {
		p := recent[i]
		label := p.Symbol
		if label == "" {
			label = "SOL"
		}
		sb.WriteString(fmt.Sprintf("%d. %s\n", len(recent)-i, label))
		if p.EntryPriceUsd != nil {
			sb.WriteString(fmt.Sprintf("Entry: $%g\n", *p.EntryPriceUsd))
		}
		if p.AmountTokens != nil {
			sb.WriteString(fmt.Sprintf("Amount: %g %s\n", *p.AmountTokens, label))
		} else {
			sb.WriteString(fmt.Sprintf("Amount: %g SOL\n", p.AmountSol))
		}
		sb.WriteString(fmt.Sprintf("Source: %s | %s\n\n", p.Source, p.Time.Format("2006-01-02 15:04")))
	}
	sb.WriteString(fmt.Sprintf("Total positions: %d", len(positions)))

	return c.Send(sb.String(), tele.ModeMarkdown)
}

// --- limits -------------------------------------------------------------

func (b *Bot) handleLimits(c tele.Context) error {
	userID := c.Sender().ID
	orders, err := b.store.LoadLimitOrders(userID)
	if err != nil {
		logger.WithError(err).WithField("user", userID).Error("load limit orders")
		return c.Send("❌ Failed to load limit orders.")
	}

	menu := &tele.ReplyMarkup{}
	menu.Inline(
		menu.Row(btnLimitNew, btnLimitCancelAll),
		menu.Row(btnLimitHistory, btnBack),
	)

	if len(orders) == 0 {
		return c.Send("📉 *Your Limit Orders*\n\nYou have no limit orders.", menu, tele.ModeMarkdown)
	}

	var sb strings.Builder
	sb.WriteString("📉 *Your Limit Orders*\n\n")
	for i, o := range orders {
		statusIcon := "⏳"
		if o.Status == models.OrderFilled {
			statusIcon = "✅"
		} else if o.Status == models.OrderCancelled {
			statusIcon = "❌"
		}
		sb.WriteString(fmt.Sprintf("%d. %s %s\nType: %s\nPrice: $%g\nAmount: %g\nStatus: %s\n\n",
			i+1, o.Symbol, statusIcon, o.Side, o.TargetPriceUsd, o.Amount, o.Status))
	}
	return c.Send(sb.String(), menu, tele.ModeMarkdown)
}

func (b *Bot) handleLimitNew(c tele.Context) error {
	return c.Send(b.flows.StartLimit(c.Sender().ID))
}

func (b *Bot) limitSideHandler(side models.OrderSide) tele.HandlerFunc {
	return func(c tele.Context) error {
		return c.Send(b.flows.ChooseLimitSide(c.Sender().ID, side))
	}
}

func (b *Bot) handleLimitCancelAll(c tele.Context) error {
	userID := c.Sender().ID
	if err := b.store.SaveLimitOrders(userID, []models.LimitOrder{}); err != nil {
		logger.WithError(err).WithField("user", userID).Error("cancel all limit orders")
		return c.Send("❌ Failed to cancel limit orders.")
	}
	return c.Send("❌ All limit orders cancelled.")
}

func (b *Bot) handleLimitHistory(c tele.Context) error {
	userID := c.Sender().ID
	orders, err := b.store.LoadLimitOrders(userID)
	if err != nil {
		logger.WithError(err).WithField("user", userID).Error("load limit orders")
		return c.Send("❌ Failed to load limit orders.")
	}

	var lines []string
	for i, o := range orders {
		if o.Status != models.OrderFilled {
			continue
		}
		lines = append(lines, fmt.Sprintf("%d. %s | %s @ $%g | Amount: %g", i+1, o.Symbol, o.Side, o.TargetPriceUsd, o.Amount))
	}
	if len(lines) == 0 {
		return c.Send("No filled limit orders.")
	}
	return c.Send(strings.Join(lines, "\n"))
}

// --- dca ----------------------------------------------------------------

func (b *Bot) handleDca(c tele.Context) error {
	if !b.requireWallet(c) {
		return nil
	}
	userID := c.Sender().ID
	schedules, err := b.store.LoadSchedules(userID)
	if err != nil {
		logger.WithError(err).WithField("user", userID).Error("load dca schedules")
		return c.Send("❌ Failed to load DCA orders.")
	}

	menu := &tele.ReplyMarkup{}
	menu.Inline(
		menu.Row(btnDcaNew, btnDcaCancelAll),
		menu.Row(btnDcaHistory, btnBack),
	)

	if len(schedules) == 0 {
		return c.Send("🔁 *Your DCA Orders*\n\nYou have no DCA orders.", menu, tele.ModeMarkdown)
	}

	var sb strings.Builder
	sb.WriteString("🔁 *Your DCA Orders*\n\n")
	for i, d := range schedules {
		statusIcon := "⏳"
		switch d.Status {
		case models.SchedulePaused:
			statusIcon = "⏸️"
		case models.ScheduleCancelled:
			statusIcon = "✅"
		}
		next := time.UnixMilli(d.NextRunAt).Format("2006-01-02 15:04")
		sb.WriteString(fmt.Sprintf("%d. %s %s\nInterval: %s\nAmount: %g SOL\nStatus: %s\nRuns: %d\nNext run: %s\n\n",
			i+1, d.Symbol, statusIcon, d.Interval, d.AmountSol, d.Status, d.RunCount, next))
	}
	return c.Send(sb.String(), menu, tele.ModeMarkdown)
}

func (b *Bot) handleDcaNew(c tele.Context) error {
	if !b.requireWallet(c) {
		return nil
	}
	return c.Send(b.flows.StartDca(c.Sender().ID))
}

func (b *Bot) handleDcaCancelAll(c tele.Context) error {
	userID := c.Sender().ID
	if err := b.store.SaveSchedules(userID, []models.DcaSchedule{}); err != nil {
		logger.WithError(err).WithField("user", userID).Error("cancel all dca schedules")
		return c.Send("❌ Failed to cancel DCA orders.")
	}
	return c.Send("❌ All DCA orders cancelled.")
}

func (b *Bot) handleDcaHistory(c tele.Context) error {
	userID := c.Sender().ID
	schedules, err := b.store.LoadSchedules(userID)
	if err != nil {
		logger.WithError(err).WithField("user", userID).Error("load dca schedules")
		return c.Send("❌ Failed to load DCA orders.")
	}

	var lines []string
	for i, d := range schedules {
		if d.Status == models.ScheduleActive {
			continue
		}
		lines = append(lines, fmt.Sprintf("%d. %s | %g SOL | %s | %s", i+1, d.Symbol, d.AmountSol, d.Interval, d.Status))
	}
	if len(lines) == 0 {
		return c.Send("No DCA history.")
	}
	return c.Send(strings.Join(lines, "\n"))
}

// --- launch -------------------------------------------------------------

func (b *Bot) handleLaunchMenu(c tele.Context) error {
	if !b.requireWallet(c) {
		return nil
	}
	menu := &tele.ReplyMarkup{}
	menu.Inline(
		menu.Row(btnLaunchQuick),
		menu.Row(btnLaunchCustom),
		menu.Row(btnLaunchPresale),
		menu.Row(btnBack),
	)
	return c.Send("🚀 *Launch New Token*\n\nCreate and launch your own token (simulated).\n\nLaunch Options:", menu, tele.ModeMarkdown)
}

func (b *Bot) launchHandler(launchType string) tele.HandlerFunc {
	return func(c tele.Context) error {
		if !b.requireWallet(c) {
			return nil
		}
		return c.Send(b.flows.StartLaunch(c.Sender().ID, launchType))
	}
}
