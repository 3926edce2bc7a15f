package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/mail"
	"strings"
	"time"

	"github.com/closet/internal/db"
	"github.com/closet/internal/logger"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const minPasswordLength = 8

var (
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrEmailTaken         = errors.New("email already registered")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrUserNotFound       = errors.New("user not found")
)

// UserService handles accounts and the bearer tokens that scope every wardrobe call.
type UserService struct {
	db        *gorm.DB
	log       *logger.Logger
	secret    []byte
	ttl       time.Duration
	hashCost  int
	sanitizer *bluemonday.Policy
	timeout   time.Duration
	now       func() time.Time
}

func NewUserService(gdb *gorm.DB, secret string, ttl time.Duration, log *logger.Logger) *UserService {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &UserService{
		db:        gdb,
		log:       logger.OrNop(log).With("service", "user"),
		secret:    []byte(secret),
		ttl:       ttl,
		hashCost:  bcrypt.DefaultCost,
		sanitizer: bluemonday.StrictPolicy(),
		timeout:   5 * time.Second,
		now:       time.Now,
	}
}

// SetHashCost overrides the bcrypt cost. Tests use bcrypt.MinCost.
func (s *UserService) SetHashCost(cost int) {
	s.hashCost = cost
}

func (s *UserService) SetStoreTimeout(timeout time.Duration) {
	s.timeout = timeout
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}

// Register creates an account with a fresh owner id.
func (s *UserService) Register(ctx context.Context, email, password, displayName string) (*db.User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if len(password) < minPasswordLength {
		return nil, ErrWeakPassword
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	ctx, cancel := storeContext(ctx, s.timeout)
	defer cancel()

	available, err := s.emailAvailable(ctx, email)
	if err != nil {
		return nil, err
	}
	if !available {
		return nil, ErrEmailTaken
	}

	user := db.User{
		UserID:      uuid.New().String(),
		Email:       email,
		Password:    string(hashed),
		DisplayName: strings.TrimSpace(html.UnescapeString(s.sanitizer.Sanitize(displayName))),
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrEmailTaken
		}
		return nil, persistenceError("create user", err)
	}

	s.log.Info("user registered", "user_id", user.UserID)
	return &user, nil
}

// EmailAvailable reports whether nobody has registered email yet.
func (s *UserService) EmailAvailable(ctx context.Context, email string) (bool, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return false, err
	}
	ctx, cancel := storeContext(ctx, s.timeout)
	defer cancel()
	return s.emailAvailable(ctx, email)
}

func (s *UserService) emailAvailable(ctx context.Context, email string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&db.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, persistenceError("check email", err)
	}
	return count == 0, nil
}

// Authenticate checks credentials. Unknown email and wrong password are indistinguishable.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*db.User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	ctx, cancel := storeContext(ctx, s.timeout)
	defer cancel()

	var user db.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, persistenceError("find user", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}

// GetByUserID loads an account by its owner id.
func (s *UserService) GetByUserID(ctx context.Context, userID string) (*db.User, error) {
	ctx, cancel := storeContext(ctx, s.timeout)
	defer cancel()

	var user db.User
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, persistenceError("find user", err)
	}
	return &user, nil
}

// GetByEmail loads an account by email. Used by closetctl.
func (s *UserService) GetByEmail(ctx context.Context, email string) (*db.User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	ctx, cancel := storeContext(ctx, s.timeout)
	defer cancel()

	var user db.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, persistenceError("find user", err)
	}
	return &user, nil
}

// IssueToken signs an HS256 token whose subject is the owner id.
func (s *UserService) IssueToken(user *db.User) (string, time.Time, error) {
	now := s.now()
	expires := now.Add(s.ttl)
	claims := jwt.RegisteredClaims{
		Subject:   user.UserID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expires, nil
}

// ParseToken validates a token and returns the owner id it was issued for.
func (s *UserService) ParseToken(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrInvalidToken
	}

	var claims jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(raw, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}
	if claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
