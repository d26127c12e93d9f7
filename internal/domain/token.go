package domain

import "time"

// Verification token types.
const (
	TokenTypeEmailVerification = "email_verification"
	TokenTypePasswordReset     = "password_reset"
	TokenTypePhoneVerification = "phone_verification"
	TokenTypeTwoFactor         = "two_factor"
)

// IsValidTokenType reports whether t is a known verification token type.
func IsValidTokenType(t string) bool {
	switch t {
	case TokenTypeEmailVerification, TokenTypePasswordReset, TokenTypePhoneVerification, TokenTypeTwoFactor:
		return true
	}
	return false
}

// VerificationToken is a single-use, expiring credential mailed to a user.
// Email verification uses a 6-digit numeric code; password reset uses a
// 12-character alphanumeric token. Token strings are globally unique.
type VerificationToken struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Token     string     `json:"token"`
	Type      string     `json:"type"`
	ExpiresAt time.Time  `json:"expires_at"`
	IsUsed    bool       `json:"is_used"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Expired reports whether the token's expiry has passed at the given instant.
func (t *VerificationToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// Valid reports whether the token can still be consumed: it must be unused
// and not expired.
func (t *VerificationToken) Valid(now time.Time) bool {
	return !t.IsUsed && !t.Expired(now)
}
