package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/rocketscienceinc/tictactoe-ladder/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-ladder/internal/pkg"
)

const DefaultTokenTTL = 24 * time.Hour

type AuthService interface {
	HashPassword(password string) (string, error)
	CheckPassword(hash, password string) bool

	GenerateToken(memberID string) (string, error)
	ParseToken(token string) (string, error)
	ParseClaims(token string) (TokenClaims, error)
}

// TokenClaims is what a valid token says about its holder.
type TokenClaims struct {
	MemberID  string
	TokenID   string
	ExpiresAt time.Time
}

type authServiceImpl struct {
	secretKey []byte
	tokenTTL  time.Duration
	now       func() time.Time
}

func NewAuthService(secretKey string, tokenTTL time.Duration) AuthService {
	if tokenTTL == 0 {
		tokenTTL = DefaultTokenTTL
	}

	return &authServiceImpl{
		secretKey: []byte(secretKey),
		tokenTTL:  tokenTTL,
		now:       time.Now,
	}
}

func (that *authServiceImpl) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", apperror.ErrInvalidPassword
	}

	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	return string(hash), nil
}

func (that *authServiceImpl) CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// GenerateToken issues an HS256 token whose subject is the member id. Every token carries a unique id
// so that it can be revoked on its own.
func (that *authServiceImpl) GenerateToken(memberID string) (string, error) {
	now := that.now()

	claims := jwt.RegisteredClaims{
		ID:        pkg.NewID(),
		Subject:   memberID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(that.tokenTTL)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString(that.secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// ParseToken returns the member id of a valid token.
func (that *authServiceImpl) ParseToken(tokenString string) (string, error) {
	claims, err := that.ParseClaims(tokenString)
	if err != nil {
		return "", err
	}

	return claims.MemberID, nil
}

// ParseClaims validates a token. Bad signatures, other algorithms, expired tokens and tokens without
// a subject or id all yield apperror.ErrInvalidToken.
func (that *authServiceImpl) ParseClaims(tokenString string) (TokenClaims, error) {
	var claims jwt.RegisteredClaims

	_, err := jwt.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (any, error) {
		return that.secretKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(that.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return TokenClaims{}, fmt.Errorf("%w: %w", apperror.ErrInvalidToken, err)
	}

	if claims.Subject == "" {
		return TokenClaims{}, fmt.Errorf("%w: %w", apperror.ErrInvalidToken, errors.New("token has no subject"))
	}

	if claims.ID == "" {
		return TokenClaims{}, fmt.Errorf("%w: %w", apperror.ErrInvalidToken, errors.New("token has no id"))
	}

	return TokenClaims{
		MemberID:  claims.Subject,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
