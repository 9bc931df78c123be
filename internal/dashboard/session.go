// Package dashboard ties the logged-in user's account to the price book,
// persistence, notifications and the live event stream.
package dashboard

import (
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"portfolio-sim-go/internal/auth"
	"portfolio-sim-go/internal/journal"
	"portfolio-sim-go/internal/ledger"
	"portfolio-sim-go/internal/market"
	"portfolio-sim-go/internal/models"
	"portfolio-sim-go/internal/notify"
	"portfolio-sim-go/internal/portfolio"
	"portfolio-sim-go/internal/stream"
)

// Shown when a deposit is submitted. Deposits are verified off-platform and
// never change the balance here.
const (
	DepositPendingTitle   = "Verification Pending"
	DepositPendingMessage = "We are verifying your transaction on the blockchain."
)

// ErrNoSession is returned by account operations while no user is loaded.
var ErrNoSession = fmt.Errorf("dashboard: %w", auth.ErrNotAuthenticated)

// UserStore loads and saves the logged-in user. *auth.Service implements it.
type UserStore interface {
	auth.IdentityProvider
	SaveUser(user *models.User) error
}

// Publisher receives stream events. *stream.Broadcaster implements it.
type Publisher interface {
	Publish(ev stream.Event)
}

// Option configures a Session.
type Option func(*Session)

// WithJournal records every new transaction in j.
func WithJournal(j journal.Journal) Option {
	return func(s *Session) { s.journal = j }
}

// WithPublisher publishes a snapshot event after every change.
func WithPublisher(p Publisher) Option {
	return func(s *Session) { s.publisher = p }
}

// WithMinWithdrawal overrides the minimum withdrawal amount.
func WithMinWithdrawal(amount decimal.Decimal) Option {
	return func(s *Session) { s.minWithdrawal = amount }
}

// Session is the dashboard of the user logged in on this device.
type Session struct {
	logger        *zap.Logger
	users         UserStore
	book          *market.PriceBook
	notifier      notify.Notifier
	journal       journal.Journal
	publisher     Publisher
	minWithdrawal decimal.Decimal

	mu    sync.RWMutex
	user  *models.User
	store *portfolio.Store

	// serializes Record+SaveUser so the newest state is written last
	saveMu sync.Mutex
}

// NewSession creates a closed session. Call Open once a user is logged in.
func NewSession(users UserStore, book *market.PriceBook, notifier notify.Notifier, logger *zap.Logger, opts ...Option) *Session {
	if notifier == nil {
		notifier = notify.Discard
	}
	s := &Session{
		logger:        logger.Named("dashboard"),
		users:         users,
		book:          book,
		notifier:      notifier,
		minWithdrawal: portfolio.DefaultMinWithdrawal,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open loads the current user's account. A user without a stored portfolio
// starts from the default account, which is saved immediately.
func (s *Session) Open() error {
	user, err := s.users.CurrentUser()
	if err != nil {
		return err
	}
	account, err := portfolio.AccountFromRecord(user.Portfolio)
	if err != nil {
		return fmt.Errorf("failed to load portfolio of user %s: %w", user.ID, err)
	}
	store := portfolio.NewStore(account, s.book,
		portfolio.WithMinWithdrawal(s.minWithdrawal),
		portfolio.WithTransactionHook(s.journalFor(user.ID)),
	)

	s.mu.Lock()
	s.user = user
	s.store = store
	s.mu.Unlock()

	if user.Portfolio == nil {
		s.save(user, store)
	}
	s.logger.Info("Dashboard opened", zap.String("user_id", user.ID))
	s.publishSnapshot(store)
	return nil
}

// Close unloads the account, e.g. after logout.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = nil
	s.store = nil
}

// IsOpen reports whether an account is loaded.
func (s *Session) IsOpen() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store != nil
}

// User returns the loaded user as read at Open.
func (s *Session) User() (*models.User, error) {
	user, _, err := s.current()
	return user, err
}

// Invest buys amount worth of symbol.
func (s *Session) Invest(symbol market.Symbol, amount decimal.Decimal) (portfolio.Position, error) {
	user, store, err := s.current()
	if err != nil {
		return portfolio.Position{}, err
	}
	pos, err := store.Invest(symbol, amount)
	if err != nil {
		s.fail(err, symbol)
		return portfolio.Position{}, err
	}
	s.commit(user, store)
	s.notifier.Notify("Success", fmt.Sprintf("Invested %s in %s", portfolio.FormatUSD(amount), symbol), notify.Success)
	return pos, nil
}

// Sell closes the whole position in symbol.
func (s *Session) Sell(symbol market.Symbol) (portfolio.Position, error) {
	user, store, err := s.current()
	if err != nil {
		return portfolio.Position{}, err
	}
	closed, err := store.Sell(symbol)
	if err != nil {
		s.fail(err, symbol)
		return portfolio.Position{}, err
	}
	s.commit(user, store)
	s.notifier.Notify("Success", fmt.Sprintf("Sold %s for %s", symbol, portfolio.FormatUSD(closed.MarketValue)), notify.Success)
	return closed, nil
}

// Withdraw takes amount of profit out of the account.
func (s *Session) Withdraw(amount decimal.Decimal) error {
	user, store, err := s.current()
	if err != nil {
		return err
	}
	if err := store.Withdraw(amount); err != nil {
		s.fail(err, "")
		return err
	}
	s.commit(user, store)
	s.notifier.Notify("Success", fmt.Sprintf("Withdrawal of %s processed", portfolio.FormatUSD(amount)), notify.Success)
	return nil
}

// Deposit acknowledges a submitted deposit. The account is left unchanged.
func (s *Session) Deposit() error {
	if _, _, err := s.current(); err != nil {
		return err
	}
	s.notifier.Notify(DepositPendingTitle, DepositPendingMessage, notify.Success)
	return nil
}

// PreviewInvest reports how much of symbol amount would buy now.
func (s *Session) PreviewInvest(symbol market.Symbol, amount decimal.Decimal) (portfolio.InvestPreview, error) {
	_, store, err := s.current()
	if err != nil {
		return portfolio.InvestPreview{}, err
	}
	return store.PreviewInvest(symbol, amount)
}

// PreviewInvestPercent previews investing percent of the cash balance.
func (s *Session) PreviewInvestPercent(symbol market.Symbol, percent decimal.Decimal) (portfolio.InvestPreview, error) {
	_, store, err := s.current()
	if err != nil {
		return portfolio.InvestPreview{}, err
	}
	return store.PreviewInvestPercent(symbol, percent)
}

// Summary returns the aggregate view valued at the current prices.
func (s *Session) Summary() (portfolio.View, error) {
	_, store, err := s.current()
	if err != nil {
		return portfolio.View{}, err
	}
	return portfolio.BuildView(store.Snapshot(), s.book.Prices()), nil
}

// Transactions returns up to n transactions, newest first.
func (s *Session) Transactions(n int) ([]ledger.Transaction, error) {
	_, store, err := s.current()
	if err != nil {
		return nil, err
	}
	return store.Transactions(n), nil
}

// Markets returns the current quotes in catalog order.
func (s *Session) Markets() []market.Quote {
	return s.book.Quotes()
}

// RevalueAll marks the loaded account to lookup, saves it and publishes a
// snapshot. It is a no-op while the session is closed.
func (s *Session) RevalueAll(lookup portfolio.PriceLookup) {
	user, store, err := s.current()
	if err != nil {
		return
	}
	store.RevalueAll(lookup)
	s.save(user, store)
	s.publishSnapshot(store)
}

// Snapshot builds the snapshot event for the loaded account.
func (s *Session) Snapshot() (stream.Event, bool) {
	_, store, err := s.current()
	if err != nil {
		return stream.Event{}, false
	}
	return s.snapshotEvent(store), true
}

func (s *Session) current() (*models.User, *portfolio.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.store == nil {
		return nil, nil, ErrNoSession
	}
	return s.user, s.store, nil
}

// commit persists the account after a successful mutation and publishes
// the new state.
func (s *Session) commit(user *models.User, store *portfolio.Store) {
	s.save(user, store)
	s.publishSnapshot(store)
}

// journalFor returns the store hook recording userID's transactions. It runs
// under the store lock, so each transaction is journaled once and in order.
func (s *Session) journalFor(userID string) func(ledger.Transaction) {
	if s.journal == nil {
		return nil
	}
	return func(tx ledger.Transaction) {
		if err := s.journal.Record(userID, tx); err != nil {
			s.logger.Error("Failed to journal transaction", zap.String("tx_id", tx.ID), zap.Error(err))
		}
	}
}

// save writes the account into the user record. Failures are logged only:
// the in-memory account stays authoritative.
func (s *Session) save(user *models.User, store *portfolio.Store) {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	record := store.Record()
	updated := *user
	updated.Portfolio = &record
	if err := s.users.SaveUser(&updated); err != nil {
		s.logger.Error("Failed to save portfolio", zap.String("user_id", user.ID), zap.Error(err))
	}
}

func (s *Session) publishSnapshot(store *portfolio.Store) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(s.snapshotEvent(store))
}

func (s *Session) snapshotEvent(store *portfolio.Store) stream.Event {
	return stream.Event{
		Type:    stream.EventSnapshot,
		Payload: portfolio.BuildView(store.Snapshot(), s.book.Prices()),
	}
}

func (s *Session) fail(err error, symbol market.Symbol) {
	title, message := FailureMessage(err, symbol, s.minWithdrawal)
	s.notifier.Notify(title, message, notify.Error)
}

// FailureMessage returns the toast title and text shown for a rejected operation.
func FailureMessage(err error, symbol market.Symbol, minWithdrawal decimal.Decimal) (string, string) {
	switch {
	case errors.Is(err, portfolio.ErrInvalidAmount):
		return "Error", "Please enter a valid amount"
	case errors.Is(err, portfolio.ErrInsufficientFunds):
		return "Error", "Insufficient balance"
	case errors.Is(err, portfolio.ErrBelowMinimum):
		return "Error", fmt.Sprintf("Minimum withdrawal is %s", portfolio.FormatUSD(minWithdrawal))
	case errors.Is(err, portfolio.ErrWithdrawalRestricted):
		return "Restricted", "You cannot withdraw the initial deposit bonus. Only profits can be withdrawn."
	case errors.Is(err, portfolio.ErrNoPosition):
		return "Error", fmt.Sprintf("You have no open position in %s", symbol)
	case errors.Is(err, portfolio.ErrUnknownSymbol):
		return "Error", fmt.Sprintf("Unknown asset %s", symbol)
	default:
		return "Error", err.Error()
	}
}
