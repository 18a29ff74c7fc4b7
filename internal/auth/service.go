// internal/auth/service.go
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"property-tracker/internal/common/logger"
	"property-tracker/internal/common/validation"
	"property-tracker/internal/models"
	"property-tracker/internal/store"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("AUTHENTICATION_ERROR")
	ErrSessionExpired     = errors.New("SESSION_EXPIRED")
	ErrEmailInUse         = errors.New("EMAIL_IN_USE")
	ErrInvalidInput       = errors.New("VALIDATION_FAILED")
	ErrSessionStoreFailed = errors.New("SESSION_STORE_FAILED")
)

// UserStore is the slice of the entity store auth needs.
type UserStore interface {
	Insert(ctx context.Context, u models.User) (models.User, error)
	GetByEmail(ctx context.Context, email string) (models.User, error)
}

// Service handles accounts and Redis-backed sessions.
type Service struct {
	config   *Config
	users    UserStore
	redis    *redis.Client
	logger   logger.Logger
	now      func() time.Time
	newToken func() string
	compare  func(hash, password []byte) error

	// dummyHash is compared against when the email is unknown so both
	// rejections cost one bcrypt comparison at the configured cost.
	dummyHash []byte
}

func NewService(cfg *Config, users UserStore, rdb *redis.Client, log logger.Logger) *Service {
	dummy, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), cfg.BcryptCost)
	if err != nil {
		log.Warn("could not prepare dummy password hash", map[string]interface{}{"error": err.Error()})
	}
	return &Service{
		config:    cfg,
		users:     users,
		redis:     rdb,
		logger:    log,
		now:       time.Now,
		newToken:  uuid.NewString,
		compare:   bcrypt.CompareHashAndPassword,
		dummyHash: dummy,
	}
}

// Signup creates an account and opens a session for it.
func (s *Service) Signup(ctx context.Context, input SignupInput) (*Result, error) {
	email := models.NormalizeEmail(input.Email)
	if !validation.ValidateEmail(email) {
		return nil, fmt.Errorf("%w: invalid email", ErrInvalidInput)
	}
	if len(input.Password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.config.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	user, err := s.users.Insert(ctx, models.User{
		Email:        email,
		Name:         strings.TrimSpace(input.Name),
		PasswordHash: string(hash),
	})
	if err != nil {
		if errors.Is(err, store.ErrEmailInUse) {
			return nil, fmt.Errorf("%w: %s", ErrEmailInUse, email)
		}
		return nil, err
	}

	s.logger.Info("account created", map[string]interface{}{"userId": user.ID})
	return s.openSession(ctx, user)
}

// Signin checks the password and opens a new session.
func (s *Service) Signin(ctx context.Context, input SigninInput) (*Result, error) {
	email := models.NormalizeEmail(input.Email)

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			_ = s.compare(s.dummyHash, []byte(input.Password))
			return nil, fmt.Errorf("%w: invalid email or password", ErrInvalidCredentials)
		}
		return nil, err
	}

	if err := s.compare([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		s.logger.Warn("signin rejected", map[string]interface{}{"userId": user.ID})
		return nil, fmt.Errorf("%w: invalid email or password", ErrInvalidCredentials)
	}

	return s.openSession(ctx, user)
}

// Signout drops the session. Unknown tokens are not an error.
func (s *Service) Signout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.redis.Del(ctx, s.sessionKey(token)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrSessionStoreFailed, err)
	}
	return nil
}

// CurrentUser resolves a bearer token to its session and slides the expiry.
func (s *Service) CurrentUser(ctx context.Context, token string) (*models.Session, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: missing token", ErrInvalidCredentials)
	}

	key := s.sessionKey(token)
	val, err := s.redis.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionExpired
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionStoreFailed, err)
	}

	var session models.Session
	if err := json.Unmarshal([]byte(val), &session); err != nil {
		s.logger.Warn("dropping unreadable session", map[string]interface{}{"error": err.Error()})
		s.redis.Del(ctx, key)
		return nil, ErrSessionExpired
	}

	now := s.now()
	if session.IsExpired(now) {
		s.redis.Del(ctx, key)
		return nil, ErrSessionExpired
	}

	session.Touch(now, s.config.SessionTTL)
	if err := s.save(ctx, &session); err != nil {
		// The session is still valid; the next request retries the slide.
		s.logger.Warn("failed to refresh session", map[string]interface{}{
			"userId": session.UserID,
			"error":  err.Error(),
		})
	}
	return &session, nil
}

func (s *Service) openSession(ctx context.Context, user models.User) (*Result, error) {
	now := s.now()
	session := &models.Session{
		Token:     s.newToken(),
		UserID:    user.ID,
		Email:     user.Email,
		CreatedAt: now,
	}
	session.Touch(now, s.config.SessionTTL)

	if err := s.save(ctx, session); err != nil {
		return nil, err
	}
	return &Result{Token: session.Token, ExpiresAt: session.ExpiresAt, User: user}, nil
}

func (s *Service) save(ctx context.Context, session *models.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSessionStoreFailed, err)
	}
	if err := s.redis.Set(ctx, s.sessionKey(session.Token), data, s.config.SessionTTL).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrSessionStoreFailed, err)
	}
	return nil
}

func (s *Service) sessionKey(token string) string {
	return s.config.KeyPrefix + "session:" + token
}
