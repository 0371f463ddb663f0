package sandbox

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"k8s.io/utils/clock"

	"github.com/intentscout/scoutctl/internal/config"
)

const issuer = "scout-sandbox"

// Claims are the access token claims, shaped like the hosted auth server's.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Role  string `json:"role"`
}

// TokenResponse is the refresh grant response.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	RefreshToken string `json:"refresh_token"`
}

// TokenManager issues and validates HS256 access tokens for the single sandbox user.
type TokenManager struct {
	secret       []byte
	ttl          time.Duration
	refreshToken string
	email        string
	clock        clock.PassiveClock
}

func NewTokenManager(cfg *config.SandboxConfig, clk clock.PassiveClock) *TokenManager {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &TokenManager{
		secret:       []byte(cfg.JWTSecret),
		ttl:          cfg.TokenTTL,
		refreshToken: cfg.DevRefreshToken,
		email:        cfg.DevUserEmail,
		clock:        clk,
	}
}

// UserID is the stable subject of the sandbox user.
func (m *TokenManager) UserID() string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("mailto:"+m.email)).String()
}

// Email of the sandbox user.
func (m *TokenManager) Email() string { return m.email }

// Refresh exchanges the configured refresh token for a fresh access token. The refresh token
// is not rotated.
func (m *TokenManager) Refresh(refreshToken string) (*TokenResponse, error) {
	if refreshToken == "" || refreshToken != m.refreshToken {
		return nil, fmt.Errorf("invalid refresh token")
	}
	return m.Issue()
}

// Issue signs a new access token.
func (m *TokenManager) Issue() (*TokenResponse, error) {
	now := m.clock.Now()
	exp := now.Add(m.ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   m.UserID(),
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
		Email: m.email,
		Role:  "authenticated",
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}
	return &TokenResponse{
		AccessToken:  signed,
		TokenType:    "bearer",
		ExpiresIn:    int64(m.ttl / time.Second),
		ExpiresAt:    exp.Unix(),
		RefreshToken: m.refreshToken,
	}, nil
}

// ValidateToken validates an access token and returns its claims.
func (m *TokenManager) ValidateToken(tokenString string) (*Claims, error) {
	// This also validates expiry
	token, err := jwt.ParseWithClaims(
		tokenString,
		&Claims{},
		func(_ *jwt.Token) (any, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(m.clock.Now),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}

type claimsKeyType struct{}

var claimsKey = claimsKeyType{}

// ClaimsFrom returns the authenticated caller's claims.
func ClaimsFrom(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*Claims)
	return c, ok && c != nil
}

func claimsTo(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsKey, c)
}

// AuthnMiddleware rejects requests to operations declaring bearer security unless they
// carry a valid access token.
func AuthnMiddleware(api huma.API, tokens *TokenManager) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		if !requiresBearer(ctx.Operation()) {
			next(ctx)
			return
		}

		const bearerPrefix = "Bearer "
		authHeader := ctx.Header("Authorization")
		if len(authHeader) < len(bearerPrefix) || !strings.EqualFold(authHeader[:len(bearerPrefix)], bearerPrefix) {
			_ = huma.WriteErr(api, ctx, http.StatusUnauthorized, "Missing bearer token")
			return
		}
		claims, err := tokens.ValidateToken(authHeader[len(bearerPrefix):])
		if err != nil {
			_ = huma.WriteErr(api, ctx, http.StatusUnauthorized, "Invalid or expired token")
			return
		}
		next(huma.WithContext(ctx, claimsTo(ctx.Context(), claims)))
	}
}

func requiresBearer(op *huma.Operation) bool {
	if op == nil {
		return false
	}
	for _, req := range op.Security {
		if _, ok := req[bearerScheme]; ok {
			return true
		}
	}
	return false
}
