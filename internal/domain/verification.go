package domain

import "time"

// OTPPurpose discriminates the flows sharing the OTP store.
type OTPPurpose string

const (
	PurposeRegistration  OTPPurpose = "registration"
	PurposePasswordReset OTPPurpose = "password_reset"
)

// PendingRegistration is an accepted signup held outside the user table until its
// email is verified. Keyed by email; at most one per email.
type PendingRegistration struct {
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"password_hash"`
	Address      string    `json:"address"`
	CreatedAt    time.Time `json:"created_at"`
}

// OTPRecord is the single live one-time code for an email.
type OTPRecord struct {
	Email     string     `json:"email"`
	Code      string     `json:"code"`
	ExpiresAt time.Time  `json:"expires_at"`
	Purpose   OTPPurpose `json:"purpose"`
}

// Expired reports whether the code is no longer usable at now. A code is valid up to
// and including ExpiresAt.
func (o *OTPRecord) Expired(now time.Time) bool {
	return now.After(o.ExpiresAt)
}

// ResetAuthorization records a verified password-reset code until the password is changed.
type ResetAuthorization struct {
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
}
