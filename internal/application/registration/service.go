package registration

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/store-rating-api/internal/domain"
	"github.com/store-rating-api/internal/infrastructure/dynamo"
	"github.com/store-rating-api/internal/pkg/keylock"
	"github.com/store-rating-api/internal/pkg/otp"
	"golang.org/x/crypto/bcrypt"
)

// KV is the expiring key-value store holding pending registrations, OTP records and
// reset authorizations. A ttl of zero keeps the value until it is deleted.
type KV[T any] interface {
	Put(ctx context.Context, key string, value T, ttl time.Duration) error
	// PutIfAbsent stores value only when key holds no live value and reports
	// whether it did.
	PutIfAbsent(ctx context.Context, key string, value T, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (T, bool, error)
	Delete(ctx context.Context, key string) error
}

type userStore interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
	Update(ctx context.Context, userID int64, updates map[string]interface{}) error
}

type idAllocator interface {
	Next(ctx context.Context, name string) (int64, error)
}

type mailer interface {
	SendEmail(ctx context.Context, to, subject, htmlBody string) error
}

type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	Address  string `json:"address" validate:"max=400"`
}

type VerifyOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required,len=6,numeric"`
}

type EmailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetPasswordRequest struct {
	Email       string `json:"email" validate:"required,email"`
	NewPassword string `json:"newPassword" validate:"required,min=6,max=72"`
}

// RegistrationResult is returned once the verification code has been sent.
type RegistrationResult struct {
	Email                string `json:"email"`
	RequiresVerification bool   `json:"requiresVerification"`
}

// VerifyResult reports what a verified code unlocked. User is set only for
// registration codes.
type VerifyResult struct {
	Purpose domain.OTPPurpose
	User    *domain.User
}

type Service interface {
	RequestRegistration(ctx context.Context, req RegisterRequest) (*RegistrationResult, error)
	VerifyOTP(ctx context.Context, email, code string) (*VerifyResult, error)
	ResendOTP(ctx context.Context, email string) error
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, email, newPassword string) error
	// HasPending reports whether email has a registration awaiting verification.
	HasPending(ctx context.Context, email string) (bool, error)
	// CancelPending drops the pending registration and OTP of email, if any.
	CancelPending(ctx context.Context, email string) error
}

type ServiceDeps struct {
	Pending KV[domain.PendingRegistration]
	OTPs    KV[domain.OTPRecord]
	Resets  KV[domain.ResetAuthorization]
	Users   userStore
	IDs     idAllocator
	Mailer  mailer
	Locker  *keylock.Locker
	Log     logrus.FieldLogger

	OTPExpiry                 time.Duration
	PendingTTL                time.Duration
	RequireResetAuthorization bool

	// Optional overrides, used by tests.
	Now          func() time.Time
	GenerateCode func() (string, error)
	HashCost     int
}

type service struct {
	pending KV[domain.PendingRegistration]
	otps    KV[domain.OTPRecord]
	resets  KV[domain.ResetAuthorization]
	users   userStore
	ids     idAllocator
	mailer  mailer
	locker  *keylock.Locker
	log     logrus.FieldLogger

	otpExpiry    time.Duration
	pendingTTL   time.Duration
	requireReset bool

	now      func() time.Time
	generate func() (string, error)
	hashCost int
}

func NewService(d ServiceDeps) Service {
	s := &service{
		pending:      d.Pending,
		otps:         d.OTPs,
		resets:       d.Resets,
		users:        d.Users,
		ids:          d.IDs,
		mailer:       d.Mailer,
		locker:       d.Locker,
		log:          d.Log,
		otpExpiry:    d.OTPExpiry,
		pendingTTL:   d.PendingTTL,
		requireReset: d.RequireResetAuthorization,
		now:          d.Now,
		generate:     d.GenerateCode,
		hashCost:     d.HashCost,
	}
	if s.locker == nil {
		s.locker = keylock.New()
	}
	if s.log == nil {
		s.log = logrus.StandardLogger()
	}
	if s.otpExpiry <= 0 {
		s.otpExpiry = 10 * time.Minute
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.generate == nil {
		s.generate = otp.Generate
	}
	if s.hashCost == 0 {
		s.hashCost = bcrypt.DefaultCost
	}
	return s
}

// NormalizeEmail is the canonical form used as the key in every store.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *service) RequestRegistration(ctx context.Context, req RegisterRequest) (*RegistrationResult, error) {
	email := NormalizeEmail(req.Email)
	username := strings.TrimSpace(req.Username)
	unlock := s.locker.Lock(email)
	defer unlock()

	if err := s.ensureAvailable(ctx, email, username); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	p := domain.PendingRegistration{
		Email:        email,
		Username:     username,
		PasswordHash: string(hash),
		Address:      req.Address,
		CreatedAt:    s.now().UTC(),
	}
	stored, err := s.pending.PutIfAbsent(ctx, email, p, s.pendingTTL)
	if err != nil {
		return nil, err
	}
	if !stored {
		return nil, domain.Errorf(domain.ErrConflict, "Registration already in process for this email")
	}
	if err := s.issue(ctx, email, domain.PurposeRegistration); err != nil {
		if derr := s.pending.Delete(ctx, email); derr != nil {
			s.log.WithError(derr).WithField("email", email).Warn("rollback pending registration")
		}
		return nil, err
	}
	s.log.WithField("email", email).Info("registration pending verification")
	return &RegistrationResult{Email: email, RequiresVerification: true}, nil
}

func (s *service) VerifyOTP(ctx context.Context, email, code string) (*VerifyResult, error) {
	email = NormalizeEmail(email)
	unlock := s.locker.Lock(email)
	defer unlock()

	rec, ok, err := s.otps.Get(ctx, email)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.Errorf(domain.ErrNotFound, "No OTP found for this email")
	}
	if subtle.ConstantTimeCompare([]byte(rec.Code), []byte(strings.TrimSpace(code))) != 1 {
		return nil, domain.Errorf(domain.ErrInvalidCode, "Invalid OTP")
	}
	if rec.Expired(s.now()) {
		if err := s.otps.Delete(ctx, email); err != nil {
			return nil, err
		}
		return nil, domain.Errorf(domain.ErrExpired, "OTP has expired")
	}

	if rec.Purpose == domain.PurposePasswordReset {
		if err := s.otps.Delete(ctx, email); err != nil {
			return nil, err
		}
		if s.requireReset {
			auth := domain.ResetAuthorization{Email: email, ExpiresAt: s.now().Add(s.otpExpiry)}
			if err := s.resets.Put(ctx, email, auth, s.otpExpiry); err != nil {
				return nil, err
			}
		}
		return &VerifyResult{Purpose: domain.PurposePasswordReset}, nil
	}

	p, ok, err := s.pending.Get(ctx, email)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.Errorf(domain.ErrNotFound, "No pending registration found")
	}
	if err := s.ensureAvailable(ctx, email, p.Username); err != nil {
		// Another account claimed the email or username meanwhile; this
		// registration can never complete.
		s.discard(ctx, email)
		return nil, err
	}

	userID, err := s.ids.Next(ctx, dynamo.SeqUsers)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	u := &domain.User{
		ID:           userID,
		Username:     p.Username,
		Email:        email,
		PasswordHash: p.PasswordHash,
		Address:      p.Address,
		Role:         domain.RoleUser,
		Verified:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	// Pending state is kept on other failures so the same code can be retried.
	if err := s.users.Create(ctx, u); err != nil {
		switch {
		case errors.Is(err, domain.ErrEmailTaken):
			s.discard(ctx, email)
			return nil, domain.Errorf(domain.ErrConflict, "Email already registered")
		case errors.Is(err, domain.ErrUsernameTaken):
			s.discard(ctx, email)
			return nil, domain.Errorf(domain.ErrConflict, "Username already taken")
		}
		return nil, err
	}
	s.discard(ctx, email)
	s.log.WithFields(logrus.Fields{"email": email, "user_id": u.ID}).Info("registration completed")
	return &VerifyResult{Purpose: domain.PurposeRegistration, User: u}, nil
}

func (s *service) ResendOTP(ctx context.Context, email string) error {
	email = NormalizeEmail(email)
	unlock := s.locker.Lock(email)
	defer unlock()

	p, pending, err := s.pending.Get(ctx, email)
	if err != nil {
		return err
	}
	if pending {
		if err := s.reissue(ctx, email, domain.PurposeRegistration); err != nil {
			return err
		}
		// The new code must not outlive the registration it confirms.
		return s.pending.Put(ctx, email, p, s.pendingTTL)
	}

	rec, ok, err := s.otps.Get(ctx, email)
	if err != nil {
		return err
	}
	if ok && rec.Purpose == domain.PurposePasswordReset {
		if _, err := s.lookupUser(ctx, email); err != nil {
			return err
		}
		return s.reissue(ctx, email, domain.PurposePasswordReset)
	}
	return domain.Errorf(domain.ErrNotFound, "No pending registration found")
}

func (s *service) RequestPasswordReset(ctx context.Context, email string) error {
	email = NormalizeEmail(email)
	unlock := s.locker.Lock(email)
	defer unlock()

	if _, err := s.lookupUser(ctx, email); err != nil {
		return err
	}
	return s.reissue(ctx, email, domain.PurposePasswordReset)
}

func (s *service) ResetPassword(ctx context.Context, email, newPassword string) error {
	email = NormalizeEmail(email)
	unlock := s.locker.Lock(email)
	defer unlock()

	u, err := s.lookupUser(ctx, email)
	if err != nil {
		return err
	}
	if s.requireReset {
		auth, ok, err := s.resets.Get(ctx, email)
		if err != nil {
			return err
		}
		if !ok || s.now().After(auth.ExpiresAt) {
			return domain.Errorf(domain.ErrUnauthorized, "Verify the OTP sent to your email before resetting the password")
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.hashCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.Update(ctx, u.ID, map[string]interface{}{"password_hash": string(hash)}); err != nil {
		return err
	}
	if s.requireReset {
		if err := s.resets.Delete(ctx, email); err != nil {
			s.log.WithError(err).WithField("email", email).Warn("consume reset authorization")
		}
	}
	s.log.WithField("user_id", u.ID).Info("password reset")
	return nil
}

func (s *service) HasPending(ctx context.Context, email string) (bool, error) {
	_, ok, err := s.pending.Get(ctx, NormalizeEmail(email))
	return ok, err
}

func (s *service) CancelPending(ctx context.Context, email string) error {
	email = NormalizeEmail(email)
	unlock := s.locker.Lock(email)
	defer unlock()

	_, ok, err := s.pending.Get(ctx, email)
	if err != nil || !ok {
		return err
	}
	s.discard(ctx, email)
	s.log.WithField("email", email).Info("pending registration cancelled")
	return nil
}

// issue stores a fresh OTP for email and mails it. On delivery failure the new
// record is removed and ErrDelivery returned.
func (s *service) issue(ctx context.Context, email string, purpose domain.OTPPurpose) error {
	code, err := s.generate()
	if err != nil {
		return fmt.Errorf("generate otp: %w", err)
	}
	rec := domain.OTPRecord{
		Email:     email,
		Code:      code,
		ExpiresAt: s.now().Add(s.otpExpiry),
		Purpose:   purpose,
	}
	// Retained past ExpiresAt so a late attempt reports Expired rather than NotFound.
	if err := s.otps.Put(ctx, email, rec, 2*s.otpExpiry); err != nil {
		return err
	}
	if err := s.send(ctx, rec); err != nil {
		if derr := s.otps.Delete(ctx, email); derr != nil {
			s.log.WithError(derr).WithField("email", email).Warn("rollback otp record")
		}
		return err
	}
	return nil
}

// reissue replaces the live OTP for email. The previous record, if any, is restored
// when delivery of the new one fails.
func (s *service) reissue(ctx context.Context, email string, purpose domain.OTPPurpose) error {
	prev, hadPrev, err := s.otps.Get(ctx, email)
	if err != nil {
		return err
	}
	err = s.issue(ctx, email, purpose)
	if err == nil || !hadPrev || !errors.Is(err, domain.ErrDelivery) {
		return err
	}
	if rerr := s.otps.Put(ctx, email, prev, s.retention(prev)); rerr != nil {
		s.log.WithError(rerr).WithField("email", email).Warn("restore previous otp record")
	}
	return err
}

func (s *service) send(ctx context.Context, rec domain.OTPRecord) error {
	subject, body, err := renderOTPEmail(rec.Purpose, rec.Code, s.otpExpiry)
	if err != nil {
		return err
	}
	if err := s.mailer.SendEmail(ctx, rec.Email, subject, body); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"email":   rec.Email,
			"purpose": rec.Purpose,
		}).Error("send otp email")
		return &domain.Error{Kind: domain.ErrDelivery, Message: "Failed to send OTP email"}
	}
	return nil
}

// retention is what is left of the storage window of rec.
func (s *service) retention(rec domain.OTPRecord) time.Duration {
	left := rec.ExpiresAt.Add(s.otpExpiry).Sub(s.now())
	if left <= 0 {
		return time.Millisecond
	}
	return left
}

func (s *service) discard(ctx context.Context, email string) {
	if err := s.pending.Delete(ctx, email); err != nil {
		s.log.WithError(err).WithField("email", email).Warn("delete pending registration")
	}
	if err := s.otps.Delete(ctx, email); err != nil {
		s.log.WithError(err).WithField("email", email).Warn("delete otp record")
	}
}

func (s *service) ensureAvailable(ctx context.Context, email, username string) error {
	if _, err := s.lookupUser(ctx, email); err == nil {
		return domain.Errorf(domain.ErrConflict, "Email already registered")
	} else if !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	if _, err := s.users.GetByUsername(ctx, username); err == nil {
		return domain.Errorf(domain.ErrConflict, "Username already taken")
	} else if !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	return nil
}

// lookupUser resolves email to a confirmed user. A missing user is reported with
// a client-facing ErrNotFound; other failures pass through.
func (s *service) lookupUser(ctx context.Context, email string) (*domain.User, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.Errorf(domain.ErrNotFound, "User not found")
	}
	return u, err
}
