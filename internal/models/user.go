package models

import "time"

// User is a registered dashboard user as persisted in the users catalog.
type User struct {
	ID           string           `json:"id"`
	FirstName    string           `json:"firstName"`
	LastName     string           `json:"lastName"`
	Email        string           `json:"email"`
	Phone        string           `json:"phone,omitempty"`
	PasswordHash string           `json:"password"`
	ReferralCode *string          `json:"referralCode"`
	CreatedAt    time.Time        `json:"createdAt"`
	Portfolio    *PortfolioRecord `json:"portfolio,omitempty"`
	Settings     UserSettings     `json:"settings"`
}

// UserSettings holds per-user preferences captured at registration.
type UserSettings struct {
	MarketingConsent bool `json:"marketingConsent"`
	TwoFactorEnabled bool `json:"twoFactorEnabled"`
}

// Profile is the part of a user that is safe to hand to clients.
type Profile struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
}

// Profile returns the public view of u.
func (u *User) Profile() Profile {
	return Profile{ID: u.ID, FirstName: u.FirstName, LastName: u.LastName, Email: u.Email}
}

// DisplayName falls back to "Trader" when no first name was given.
func (u *User) DisplayName() string {
	if u.FirstName == "" {
		return "Trader"
	}
	return u.FirstName
}

// Session marks the logged-in user of this device.
type Session struct {
	IsLoggedIn bool       `json:"isLoggedIn"`
	UserID     string     `json:"userId"`
	Email      string     `json:"email"`
	LoginTime  time.Time  `json:"loginTime"`
	ExpiresAt  *time.Time `json:"expiresAt"` // nil never expires
}

// Active reports whether the session is logged in and not expired at now.
func (s *Session) Active(now time.Time) bool {
	if s == nil || !s.IsLoggedIn {
		return false
	}
	return s.ExpiresAt == nil || now.Before(*s.ExpiresAt)
}
