// Package auth manages registered users and the single device session.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"portfolio-sim-go/internal/models"
	"portfolio-sim-go/internal/portfolio"
	"portfolio-sim-go/internal/storage"
)

const (
	// MinPasswordLength is the shortest accepted password.
	MinPasswordLength = 8
	// DefaultSessionTTL is how long a session lasts without remember-me.
	DefaultSessionTTL = 24 * time.Hour
)

var (
	ErrMissingField      = errors.New("please fill in all required fields")
	ErrInvalidEmail      = errors.New("please enter a valid email address")
	ErrPasswordTooShort  = errors.New("password must be at least 8 characters")
	ErrPasswordMismatch  = errors.New("passwords do not match")
	ErrEmailTaken        = errors.New("an account with this email already exists")
	ErrAccountNotFound   = errors.New("account not found")
	ErrInvalidPassword   = errors.New("invalid password")
	ErrNotAuthenticated  = errors.New("not authenticated")
	ErrUserNotRegistered = errors.New("user is not registered")
)

// IdentityProvider yields the logged-in user.
type IdentityProvider interface {
	CurrentUser() (*models.User, error)
}

// RegisterRequest carries the registration form.
type RegisterRequest struct {
	FirstName        string `json:"firstName"`
	LastName         string `json:"lastName"`
	Email            string `json:"email"`
	Phone            string `json:"phone"`
	Password         string `json:"password"`
	ConfirmPassword  string `json:"confirmPassword"`
	ReferralCode     string `json:"referralCode"`
	MarketingConsent bool   `json:"marketingConsent"`
}

// Validate checks the form in the order the fields are shown.
func (r RegisterRequest) Validate() error {
	if strings.TrimSpace(r.FirstName) == "" || strings.TrimSpace(r.LastName) == "" || strings.TrimSpace(r.Email) == "" {
		return ErrMissingField
	}
	if !strings.Contains(r.Email, "@") {
		return ErrInvalidEmail
	}
	if len(r.Password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	if r.Password != r.ConfirmPassword {
		return ErrPasswordMismatch
	}
	return nil
}

// Option configures a Service.
type Option func(*Service)

// WithSessionTTL sets the lifetime of sessions started without remember-me.
func WithSessionTTL(ttl time.Duration) Option {
	return func(s *Service) { s.sessionTTL = ttl }
}

// WithBcryptCost sets the password hashing cost.
func WithBcryptCost(cost int) Option {
	return func(s *Service) { s.bcryptCost = cost }
}

// WithStartingBonus sets the cash credited to new accounts.
func WithStartingBonus(amount decimal.Decimal) Option {
	return func(s *Service) { s.startingBonus = amount }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service registers and authenticates users against a PersistentStore.
type Service struct {
	mu            sync.Mutex
	store         storage.PersistentStore
	logger        *zap.Logger
	sessionTTL    time.Duration
	bcryptCost    int
	startingBonus decimal.Decimal
	now           func() time.Time
}

// NewService returns a Service persisting into store.
func NewService(store storage.PersistentStore, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		store:         store,
		logger:        logger.Named("auth"),
		sessionTTL:    DefaultSessionTTL,
		bcryptCost:    bcrypt.DefaultCost,
		startingBonus: portfolio.DefaultStartingBonus,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates a user with a fresh account and logs them in.
func (s *Service) Register(req RegisterRequest) (*models.User, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.loadUsers()
	if err != nil {
		return nil, err
	}
	email := strings.TrimSpace(req.Email)
	if findByEmail(users, email) >= 0 {
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now()
	record := portfolio.NewAccount(s.startingBonus, now).Record()
	user := &models.User{
		ID:           uuid.NewString(),
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Email:        email,
		Phone:        req.Phone,
		PasswordHash: string(hash),
		CreatedAt:    now,
		Portfolio:    &record,
		Settings:     models.UserSettings{MarketingConsent: req.MarketingConsent},
	}
	if code := strings.TrimSpace(req.ReferralCode); code != "" {
		user.ReferralCode = &code
	}

	users = append(users, *user)
	if err := storage.SetJSON(s.store, storage.KeyUsers, users); err != nil {
		return nil, err
	}
	if err := s.startSession(user, false); err != nil {
		return nil, err
	}

	s.logger.Info("user registered", zap.String("user_id", user.ID))
	return user, nil
}

// Login checks the credentials and starts a session. A remembered session
// never expires. Users without a stored portfolio get the default one.
func (s *Service) Login(email, password string, rememberMe bool) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.loadUsers()
	if err != nil {
		return nil, err
	}
	i := findByEmail(users, strings.TrimSpace(email))
	if i < 0 {
		return nil, ErrAccountNotFound
	}
	user := users[i]
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidPassword
	}

	if user.Portfolio == nil {
		record := portfolio.DefaultAccount().Record()
		user.Portfolio = &record
		users[i] = user
		if err := storage.SetJSON(s.store, storage.KeyUsers, users); err != nil {
			return nil, err
		}
	}
	if err := s.startSession(&user, rememberMe); err != nil {
		return nil, err
	}

	s.logger.Info("user logged in", zap.String("user_id", user.ID), zap.Bool("remember_me", rememberMe))
	return &user, nil
}

// Logout ends the session. The users catalog is kept.
func (s *Service) Logout() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clearSession()
}

// Authenticated reports whether a live session exists. An expired session is cleared.
func (s *Service) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.activeSession()
	return err == nil
}

// Session returns the live session.
func (s *Service) Session() (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeSession()
}

// CurrentUser returns the logged-in user.
func (s *Service) CurrentUser() (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.activeSession(); err != nil {
		return nil, err
	}
	var user models.User
	found, err := storage.GetJSON(s.store, storage.KeyCurrentUser, &user)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotAuthenticated
	}
	return &user, nil
}

// SaveUser writes user as the current user and replaces its catalog entry.
func (s *Service) SaveUser(user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.loadUsers()
	if err != nil {
		return err
	}
	replaced := false
	for i := range users {
		if users[i].ID == user.ID {
			users[i] = *user
			replaced = true
			break
		}
	}
	if !replaced {
		return fmt.Errorf("%w: %s", ErrUserNotRegistered, user.ID)
	}

	if err := storage.SetJSON(s.store, storage.KeyCurrentUser, user); err != nil {
		return err
	}
	return storage.SetJSON(s.store, storage.KeyUsers, users)
}

func (s *Service) startSession(user *models.User, rememberMe bool) error {
	now := s.now()
	session := models.Session{
		IsLoggedIn: true,
		UserID:     user.ID,
		Email:      user.Email,
		LoginTime:  now,
	}
	if !rememberMe {
		expires := now.Add(s.sessionTTL)
		session.ExpiresAt = &expires
	}
	if err := storage.SetJSON(s.store, storage.KeySession, session); err != nil {
		return err
	}
	return storage.SetJSON(s.store, storage.KeyCurrentUser, user)
}

func (s *Service) activeSession() (*models.Session, error) {
	var session models.Session
	found, err := storage.GetJSON(s.store, storage.KeySession, &session)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotAuthenticated
	}
	if !session.Active(s.now()) {
		if err := s.clearSession(); err != nil {
			s.logger.Warn("failed to clear expired session", zap.Error(err))
		}
		return nil, ErrNotAuthenticated
	}
	return &session, nil
}

func (s *Service) clearSession() error {
	if err := s.store.RemoveItem(storage.KeySession); err != nil {
		return fmt.Errorf("failed to remove session: %w", err)
	}
	if err := s.store.RemoveItem(storage.KeyCurrentUser); err != nil {
		return fmt.Errorf("failed to remove current user: %w", err)
	}
	return nil
}

func (s *Service) loadUsers() ([]models.User, error) {
	var users []models.User
	if _, err := storage.GetJSON(s.store, storage.KeyUsers, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func findByEmail(users []models.User, email string) int {
	for i := range users {
		if strings.EqualFold(users[i].Email, email) {
			return i
		}
	}
	return -1
}

// IsAuthError reports whether err is a credential or registration failure.
func IsAuthError(err error) bool {
	for _, target := range []error{
		ErrMissingField, ErrInvalidEmail, ErrPasswordTooShort, ErrPasswordMismatch,
		ErrEmailTaken, ErrAccountNotFound, ErrInvalidPassword, ErrNotAuthenticated,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
