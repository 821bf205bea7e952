package auth

import (
	"crypto/rand"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Service issues and validates the bearer tokens a server accepts on its
// wire surfaces, with refresh-token rotation and a request rate limit.
type Service struct {
	mu            sync.RWMutex
	tokens        map[string]*TokenInfo
	refreshTokens map[string]string
	rateLimiter   *RateLimiter
	signingKey    []byte
}

// TokenInfo represents a JWT token and its metadata.
type TokenInfo struct {
	Token        string
	ExpiresAt    time.Time
	RefreshToken string
	Scheme       string
}

// NewService creates an authentication service with a random per-process
// signing key. Tokens it issues are only valid against this instance; use
// NewServiceWithKey to share a key across replicas or restarts.
func NewService() *Service {
	key := make([]byte, 32)
	_, _ = rand.Read(key)
	return NewServiceWithKey(key)
}

// NewServiceWithKey creates an authentication service signing with the
// given key, typically sourced from configuration.
func NewServiceWithKey(signingKey []byte) *Service {
	return &Service{
		tokens:        make(map[string]*TokenInfo),
		refreshTokens: make(map[string]string),
		rateLimiter:   NewRateLimiter(100, time.Minute),
		signingKey:    signingKey,
	}
}

func (s *Service) getSigningKey(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return s.signingKey, nil
}

// AuthenticateRequest validates the bearer token on an HTTP request.
func (s *Service) AuthenticateRequest(req *http.Request) error {
	_, err := s.Authenticate(req)
	return err
}

// Authenticate validates the bearer token on an HTTP request and returns
// the authenticated subject.
func (s *Service) Authenticate(req *http.Request) (string, error) {
	if !s.rateLimiter.Allow() {
		return "", fmt.Errorf("rate limit exceeded")
	}

	authHeader := req.Header.Get("Authorization")
	if authHeader == "" {
		return "", fmt.Errorf("missing authorization header")
	}

	tokenStr := authHeader
	if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
		tokenStr = authHeader[7:]
	}

	token, err := jwt.Parse(tokenStr, s.getSigningKey)
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}
	if !token.Valid {
		return "", fmt.Errorf("token expired")
	}

	sub := ""
	if claims, ok := token.Claims.(jwt.MapClaims); ok {
		sub, _ = claims["sub"].(string)
	}
	return sub, nil
}

// GenerateToken issues a new JWT plus a refresh token for the claims.
func (s *Service) GenerateToken(scheme string, claims jwt.MapClaims) (*TokenInfo, error) {
	now := time.Now()
	if _, ok := claims["exp"]; !ok {
		claims["exp"] = now.Add(time.Hour).Unix()
	}
	if _, ok := claims["iat"]; !ok {
		claims["iat"] = now.Unix()
	}
	if _, ok := claims["jti"]; !ok {
		claims["jti"] = uuid.NewString()
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenStr, err := token.SignedString(s.signingKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	refreshToken := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": claims["sub"],
		"exp": now.Add(24 * time.Hour).Unix(),
		"iat": now.Unix(),
		"jti": uuid.NewString(),
	})
	refreshTokenStr, err := refreshToken.SignedString(s.signingKey)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	tokenInfo := &TokenInfo{
		Token:        tokenStr,
		ExpiresAt:    now.Add(time.Hour),
		RefreshToken: refreshTokenStr,
		Scheme:       scheme,
	}

	s.mu.Lock()
	s.tokens[tokenStr] = tokenInfo
	s.refreshTokens[refreshTokenStr] = tokenStr
	s.mu.Unlock()

	return tokenInfo, nil
}

// RefreshToken exchanges a refresh token for a fresh token pair. The used
// refresh token is invalidated (rotation), so each one works exactly once.
func (s *Service) RefreshToken(refreshToken string) (*TokenInfo, error) {
	s.mu.RLock()
	oldToken, exists := s.refreshTokens[refreshToken]
	s.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("invalid refresh token")
	}

	token, err := jwt.Parse(oldToken, s.getSigningKey)
	if err != nil {
		return nil, fmt.Errorf("failed to parse old token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims")
	}

	// Drop timing claims so GenerateToken stamps fresh ones.
	delete(claims, "exp")
	delete(claims, "iat")
	delete(claims, "jti")

	newTokenInfo, err := s.GenerateToken("Bearer", claims)
	if err != nil {
		return nil, fmt.Errorf("failed to generate new token during refresh: %w", err)
	}

	s.mu.Lock()
	delete(s.refreshTokens, refreshToken)
	delete(s.tokens, oldToken)
	s.mu.Unlock()

	return newTokenInfo, nil
}

// RevokeToken revokes a token and its associated refresh token.
func (s *Service) RevokeToken(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tokenInfo, exists := s.tokens[token]
	if !exists {
		return fmt.Errorf("token not found")
	}

	delete(s.tokens, token)
	delete(s.refreshTokens, tokenInfo.RefreshToken)
	return nil
}

// GetTokenInfo retrieves token information.
func (s *Service) GetTokenInfo(token string) (*TokenInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tokenInfo, exists := s.tokens[token]
	if !exists {
		return nil, fmt.Errorf("token not found")
	}

	return tokenInfo, nil
}
