package auth

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"sintonia/internal/config"
	"sintonia/internal/models"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// Token types carried in the "typ" claim
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// JWTClaims represents the claims in a JWT token
type JWTClaims struct {
	UserID    uint        `json:"user_id"`
	Email     string      `json:"email"`
	Role      models.Role `json:"role"`
	SessionID string      `json:"sid"`
	TokenType string      `json:"typ"`
	jwt.RegisteredClaims
}

// Identity returns the caller identity carried by the token
func (c *JWTClaims) Identity() models.Identity {
	return models.Identity{UserID: c.UserID, Role: c.Role}
}

// IssuedToken is a signed token together with its JTI and expiry
type IssuedToken struct {
	Token     string
	JTI       string
	ExpiresAt time.Time
}

// Service handles token and password operations
type Service struct {
	privateKey        *ecdsa.PrivateKey
	publicKey         *ecdsa.PublicKey
	jwtExpiration     time.Duration
	refreshExpiration time.Duration
}

// NewService creates a new authentication service
func NewService(cfg *config.JWTConfig) *Service {
	privateKey, publicKey := loadOrGenerateKeys(cfg.Secret)
	return &Service{
		privateKey:        privateKey,
		publicKey:         publicKey,
		jwtExpiration:     cfg.Expiration,
		refreshExpiration: cfg.RefreshExpiration,
	}
}

// HashPassword hashes a password using bcrypt
func (s *Service) HashPassword(password string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashedBytes), nil
}

// VerifyPassword verifies a password against a hash
func (s *Service) VerifyPassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

func (s *Service) issue(user *models.User, sessionID, tokenType string, expiration time.Duration) (*IssuedToken, error) {
	jti, err := GenerateRandomToken(16)
	if err != nil {
		return nil, fmt.Errorf("failed to generate JTI: %w", err)
	}

	now := time.Now()
	expiresAt := now.Add(expiration)
	claims := JWTClaims{
		UserID:    user.ID,
		Email:     user.Email,
		Role:      user.Role,
		SessionID: sessionID,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	tokenString, err := token.SignedString(s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	return &IssuedToken{Token: tokenString, JTI: jti, ExpiresAt: expiresAt}, nil
}

// GenerateToken generates an access token for a user within a login session
func (s *Service) GenerateToken(user *models.User, sessionID string) (*IssuedToken, error) {
	return s.issue(user, sessionID, TokenTypeAccess, s.jwtExpiration)
}

// GenerateRefreshToken generates a refresh token for a user within a login session
func (s *Service) GenerateRefreshToken(user *models.User, sessionID string) (*IssuedToken, error) {
	return s.issue(user, sessionID, TokenTypeRefresh, s.refreshExpiration)
}

// AccessExpiration is the lifetime of access tokens
func (s *Service) AccessExpiration() time.Duration {
	return s.jwtExpiration
}

// ValidateToken validates a JWT token and returns the claims
func (s *Service) ValidateToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodECDSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.publicKey, nil
	})
	if errors.Is(err, jwt.ErrTokenExpired) {
		return nil, ErrExpiredToken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if !claims.Role.Valid() {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// ExtractJTI extracts the JTI from a token without validating signature or expiration
// This is useful for logout where we want to invalidate even expired tokens
func (s *Service) ExtractJTI(tokenString string) (string, error) {
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	token, _, err := parser.ParseUnverified(tokenString, &JWTClaims{})
	if err != nil {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok {
		return "", ErrInvalidToken
	}

	return claims.ID, nil
}

// GenerateRandomToken generates a URL-safe random token
func GenerateRandomToken(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random token: %w", err)
	}
	return base64.URLEncoding.EncodeToString(bytes), nil
}

// loadOrGenerateKeys loads ECDSA keys from secret or generates new ones
func loadOrGenerateKeys(secret string) (*ecdsa.PrivateKey, *ecdsa.PublicKey) {
	if block, _ := pem.Decode([]byte(secret)); block != nil {
		if privateKey, err := x509.ParseECPrivateKey(block.Bytes); err == nil {
			return privateKey, &privateKey.PublicKey
		}
	}

	// Development fallback: tokens do not survive a restart
	slog.Warn("JWT_SECRET is not a PEM EC private key, signing with a temporary key")
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		panic(fmt.Sprintf("failed to generate ECDSA key: %v", err))
	}

	return privateKey, &privateKey.PublicKey
}

// EncodePrivateKey PEM-encodes an ECDSA private key for JWT_SECRET
func EncodePrivateKey(key *ecdsa.PrivateKey) (string, error) {
	der, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return "", fmt.Errorf("failed to marshal private key: %w", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der})), nil
}
