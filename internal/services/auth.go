package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"task-navigator/internal/config"
	"task-navigator/internal/models"

	"github.com/gofrs/uuid"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrInvalidCredentials  = errors.New("invalid login credentials")
	ErrEmailTaken          = errors.New("user already registered")
	ErrWeakPassword        = errors.New("password should be at least 6 characters")
	ErrInvalidEmail        = errors.New("invalid email address")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrAccountDisabled     = errors.New("account disabled")
	ErrInvalidAccessToken  = errors.New("invalid access token")
	ErrUserNotFound        = errors.New("user not found")
)

// Claims are carried by every access token. The subject is the user id.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

func (c *Claims) UserID() (uuid.UUID, error) {
	return uuid.FromString(c.Subject)
}

type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
	ExpiresAt    time.Time
}

type AuthService interface {
	SignUp(ctx context.Context, email, password string) (*models.User, *TokenPair, error)
	SignIn(ctx context.Context, email, password string) (*models.User, *TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*models.User, *TokenPair, error)
	SignOut(ctx context.Context, userID uuid.UUID) error
	ParseAccessToken(tokenString string) (*Claims, error)
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	CleanupExpiredTokens(ctx context.Context) (int64, error)
}

type AuthServiceImpl struct {
	db     *gorm.DB
	cfg    config.AuthConfig
	logger *slog.Logger
	now    func() time.Time
}

func NewAuthService(db *gorm.DB, cfg config.AuthConfig, logger *slog.Logger) *AuthServiceImpl {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BCryptCost == 0 {
		cfg.BCryptCost = bcrypt.DefaultCost
	}
	return &AuthServiceImpl{
		db:     db,
		cfg:    cfg,
		logger: logger.With("component", "auth_service"),
		now:    time.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func VerifyPassword(hashedPassword, plainPassword string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(plainPassword))
	return err == nil
}

func (s *AuthServiceImpl) SignIn(ctx context.Context, email, password string) (*models.User, *TokenPair, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, nil, err
	}

	if !VerifyPassword(user.Password, password) {
		s.logger.Info("sign in rejected", "user_id", user.ID, "reason", "bad_password")
		return nil, nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, nil, ErrAccountDisabled
	}

	now := s.now().UTC()
	user.LastLoginAt = &now
	if err := s.db.WithContext(ctx).Model(&user).Update("last_login_at", now).Error; err != nil {
		s.logger.Warn("failed to record last login", "user_id", user.ID, "error", err)
	}

	pair, err := s.issueTokens(s.db.WithContext(ctx), &user)
	if err != nil {
		return nil, nil, err
	}
	return &user, pair, nil
}

// Refresh consumes refreshToken and issues a new pair. A refresh token is
// valid for exactly one exchange.
func (s *AuthServiceImpl) Refresh(ctx context.Context, refreshToken string) (*models.User, *TokenPair, error) {
	id, err := uuid.FromString(refreshToken)
	if err != nil {
		return nil, nil, ErrInvalidRefreshToken
	}

	var (
		user models.User
		pair *TokenPair
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var token models.Token
		if err := tx.Where("refresh_token = ?", id).First(&token).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInvalidRefreshToken
			}
			return err
		}

		result := tx.Delete(&token)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 || token.IsExpired(s.now()) {
			return ErrInvalidRefreshToken
		}

		if err := tx.First(&user, "id = ?", token.UserID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInvalidRefreshToken
			}
			return err
		}
		if !user.IsActive {
			return ErrAccountDisabled
		}

		pair, err = s.issueTokens(tx, &user)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return &user, pair, nil
}

func (s *AuthServiceImpl) issueTokens(db *gorm.DB, user *models.User) (*TokenPair, error) {
	now := s.now().UTC()
	expiresAt := now.Add(s.cfg.AccessTokenTTL)

	jti, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}

	claims := Claims{
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			Issuer:    s.cfg.JWTIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        jti.String(),
		},
	}
	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}

	refreshID, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	tokenID, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	token := models.Token{
		ID:           tokenID,
		UserID:       user.ID,
		RefreshToken: refreshID,
		ExpiresAt:    now.Add(s.cfg.RefreshTokenTTL),
	}
	if err := db.Create(&token).Error; err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshID.String(),
		ExpiresIn:    int64(s.cfg.AccessTokenTTL / time.Second),
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *AuthServiceImpl) ParseAccessToken(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	}
	if s.cfg.JWTIssuer != "" {
		opts = append(opts, jwt.WithIssuer(s.cfg.JWTIssuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(s.cfg.JWTSecret), nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAccessToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidAccessToken
	}
	if _, err := claims.UserID(); err != nil {
		return nil, fmt.Errorf("%w: bad subject", ErrInvalidAccessToken)
	}
	return claims, nil
}

// SignOut revokes every refresh token held by the user. Access tokens stay
// valid until they expire.
func (s *AuthServiceImpl) SignOut(ctx context.Context, userID uuid.UUID) error {
	return s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.Token{}).Error
}

func (s *AuthServiceImpl) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *AuthServiceImpl) CleanupExpiredTokens(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).Where("expires_at <= ?", s.now().UTC()).Delete(&models.Token{})
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected > 0 {
		s.logger.Info("removed expired refresh tokens", "count", result.RowsAffected)
	}
	return result.RowsAffected, nil
}
