package admin

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"ms-storefront/internal/logger"
	"ms-storefront/internal/models"
	"ms-storefront/internal/utils"
)

const sessionTokenBytes = 32

type DBLayer interface {
	FindActiveAdmin(ctx context.Context, username string) (*models.AdminAccount, error)
	GetAdminByID(ctx context.Context, id string) (*models.AdminAccount, error)
	CreateAdminIfAbsent(ctx context.Context, account models.AdminAccount) (*models.AdminAccount, error)
	UpdatePasswordHash(ctx context.Context, username, hash string) error
	TouchLastLogin(ctx context.Context, adminID string, at time.Time) error
	CreateSession(ctx context.Context, session models.AdminSession) error
	GetSession(ctx context.Context, token string) (*models.AdminSession, error)
	DeleteSession(ctx context.Context, token string) error
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) bool
}

// AttemptLimiter throttles login attempts per username. Optional.
type AttemptLimiter interface {
	Allow(ctx context.Context, username string) (bool, error)
	Reset(ctx context.Context, username string) error
}

type Options struct {
	DefaultUsername      string
	DefaultPassword      string
	DefaultEmail         string
	SessionTTL           time.Duration
	AllowDefaultRecovery bool
}

type Service struct {
	DB      DBLayer
	Hasher  PasswordHasher
	Limiter AttemptLimiter
	Logger  *logger.Logger
	opts    Options
	now     func() time.Time
}

func NewService(db DBLayer, hasher PasswordHasher, limiter AttemptLimiter, log *logger.Logger, opts Options) *Service {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 24 * time.Hour
	}
	return &Service{
		DB:      db,
		Hasher:  hasher,
		Limiter: limiter,
		Logger:  log,
		opts:    opts,
		now:     time.Now,
	}
}

// SetClock overrides the time source.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// ---------------- BOOTSTRAP ----------------

// EnsureDefaultAdmin creates the designated default administrator if it does not exist yet.
// Safe to call concurrently and repeatedly. A deactivated default account is never revived;
// ErrAccountDisabled is returned instead.
func (s *Service) EnsureDefaultAdmin(ctx context.Context) (*models.AdminAccount, error) {
	if s.opts.DefaultUsername == "" || s.opts.DefaultPassword == "" {
		return nil, fmt.Errorf("default admin credentials not configured")
	}

	existing, err := s.DB.FindActiveAdmin(ctx, s.opts.DefaultUsername)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("lookup default admin: %w", err)
	}

	hash, err := s.Hasher.Hash(s.opts.DefaultPassword)
	if err != nil {
		return nil, fmt.Errorf("hash default password: %w", err)
	}

	account, err := s.DB.CreateAdminIfAbsent(ctx, models.AdminAccount{
		ID:           utils.NewID(),
		Username:     s.opts.DefaultUsername,
		Email:        s.opts.DefaultEmail,
		PasswordHash: hash,
		Role:         models.RoleSuperAdmin,
		IsActive:     true,
		CreatedAt:    s.now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("create default admin: %w", err)
	}
	if !account.IsActive {
		return nil, ErrAccountDisabled
	}

	s.Logger.LogSecurity("ADMIN_BOOTSTRAP", fmt.Sprintf("default administrator %q ensured", account.Username))
	return account, nil
}

// ---------------- LOGIN ----------------

func (s *Service) Login(ctx context.Context, username, password string) (*models.LoginResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrMissingCredentials
	}

	if s.Limiter != nil {
		allowed, err := s.Limiter.Allow(ctx, username)
		if err != nil {
			s.Logger.Warn("AUTH", fmt.Sprintf("Login throttle unavailable: %v", err))
		} else if !allowed {
			s.Logger.LogSecurity("LOGIN_THROTTLED", fmt.Sprintf("too many attempts for %q", username))
			return nil, ErrTooManyAttempts
		}
	}

	account, err := s.lookup(ctx, username)
	if err != nil {
		if !errors.Is(err, ErrInvalidCredentials) {
			s.Logger.Error("AUTH", fmt.Sprintf("Account lookup failed for %q: %v", username, err))
		}
		s.Logger.LogAuth("LOGIN_FAILED", username, "unknown or inactive account")
		return nil, ErrInvalidCredentials
	}

	if !s.Hasher.Compare(account.PasswordHash, password) {
		if !s.recoverDefault(ctx, account, password) {
			s.Logger.LogAuth("LOGIN_FAILED", username, "password mismatch")
			return nil, ErrInvalidCredentials
		}
	}

	token, err := newSessionToken()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	now := s.now().UTC()
	session := models.AdminSession{
		SessionToken: token,
		AdminID:      account.ID,
		ExpiresAt:    now.Add(s.opts.SessionTTL),
		CreatedAt:    now,
	}
	if err := s.DB.CreateSession(ctx, session); err != nil {
		s.Logger.Error("AUTH", fmt.Sprintf("Failed to persist session for %q: %v", username, err))
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	if err := s.DB.TouchLastLogin(ctx, account.ID, now); err != nil {
		s.Logger.Warn("AUTH", fmt.Sprintf("Failed to update last_login for %q: %v", username, err))
	}
	if s.Limiter != nil {
		if err := s.Limiter.Reset(ctx, username); err != nil {
			s.Logger.Warn("AUTH", fmt.Sprintf("Failed to reset login throttle for %q: %v", username, err))
		}
	}

	s.Logger.LogAuth("LOGIN", username, fmt.Sprintf("session %s issued", utils.Fingerprint(session.SessionToken)))
	return &models.LoginResult{
		Token:     session.SessionToken,
		ExpiresAt: session.ExpiresAt,
		User:      account.Summary(),
	}, nil
}

// lookup finds the active account, bootstrapping the default administrator on first use.
func (s *Service) lookup(ctx context.Context, username string) (*models.AdminAccount, error) {
	account, err := s.DB.FindActiveAdmin(ctx, username)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if username != s.opts.DefaultUsername {
		return nil, ErrInvalidCredentials
	}

	account, err = s.EnsureDefaultAdmin(ctx)
	if errors.Is(err, ErrAccountDisabled) {
		return nil, ErrInvalidCredentials
	}
	return account, err
}

// recoverDefault rewrites the stored hash when the documented default credentials
// are presented for the default account but fail to verify. Disabled unless configured.
func (s *Service) recoverDefault(ctx context.Context, account *models.AdminAccount, password string) bool {
	if !s.opts.AllowDefaultRecovery || !account.IsActive {
		return false
	}
	if account.Username != s.opts.DefaultUsername ||
		subtle.ConstantTimeCompare([]byte(password), []byte(s.opts.DefaultPassword)) != 1 {
		return false
	}

	hash, err := s.Hasher.Hash(s.opts.DefaultPassword)
	if err != nil {
		s.Logger.Error("AUTH", fmt.Sprintf("Default credential recovery failed to hash: %v", err))
		return false
	}
	if err := s.DB.UpdatePasswordHash(ctx, account.Username, hash); err != nil {
		s.Logger.Error("AUTH", fmt.Sprintf("Default credential recovery failed to persist: %v", err))
		return false
	}
	account.PasswordHash = hash

	s.Logger.LogSecurity("DEFAULT_CREDENTIAL_RECOVERY", fmt.Sprintf("password hash for %q was reset to the default", account.Username))
	return s.Hasher.Compare(account.PasswordHash, password)
}

// ---------------- SESSIONS ----------------

// Validate resolves a session token to its active account. Expiry is never extended.
func (s *Service) Validate(ctx context.Context, token string) (*models.AdminAccount, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}

	session, err := s.DB.GetSession(ctx, token)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.Logger.Error("AUTH", fmt.Sprintf("Session lookup failed: %v", err))
		}
		return nil, ErrUnauthenticated
	}
	if session.Expired(s.now()) {
		return nil, ErrUnauthenticated
	}

	account, err := s.DB.GetAdminByID(ctx, session.AdminID)
	if err != nil || !account.IsActive {
		return nil, ErrUnauthenticated
	}
	return account, nil
}

func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.DB.DeleteSession(ctx, token); err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	s.Logger.LogAuth("LOGOUT", "-", fmt.Sprintf("session %s revoked", utils.Fingerprint(token)))
	return nil
}

func newSessionToken() (string, error) {
	buf := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
