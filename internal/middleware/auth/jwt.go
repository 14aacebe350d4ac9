package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	domainErrors "github.com/traceline/payment-service/internal/domain/errors"
)

// DefaultTokenTTL is the credential lifetime when none is configured.
const DefaultTokenTTL = 7 * 24 * time.Hour

// AuthUser represents a verified caller identity
type AuthUser struct {
	UID           string `json:"uid"`
	Username      string `json:"username"`
	WalletAddress string `json:"wallet_address"`
	LoginType     string `json:"login_type"`
}

// contextKey is used for storing the identity in context
type contextKey string

const userContextKey contextKey = "authenticated_user"

// TokenService issues and verifies the signed, time-bounded credentials the
// admission gate accepts.
type TokenService struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewTokenService creates a new token service
func NewTokenService(secret, issuer string, ttl time.Duration) *TokenService {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenService{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
	}
}

// Issue signs a credential for the given identity: subject equals the uid,
// expiry defaults to seven days.
func (s *TokenService) Issue(user AuthUser, now time.Time) (string, error) {
	claims := jwt.MapClaims{
		"sub":           user.UID,
		"uid":           user.UID,
		"username":      user.Username,
		"walletAddress": user.WalletAddress,
		"loginType":     user.LoginType,
		"iss":           s.issuer,
		"iat":           now.Unix(),
		"exp":           now.Add(s.ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign credential: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a credential, failing closed on any
// signature, expiry or malformed-payload error.
func (s *TokenService) Verify(tokenString string) (*AuthUser, error) {
	token, err := jwt.Parse(tokenString,
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, domainErrors.NewInvalidCredentialError(err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, domainErrors.NewInvalidCredentialError(fmt.Errorf("invalid claims"))
	}

	uid, _ := claims["uid"].(string)
	if uid == "" {
		uid, _ = claims["sub"].(string)
	}
	if uid == "" {
		return nil, domainErrors.NewInvalidCredentialError(fmt.Errorf("missing uid claim"))
	}

	username, _ := claims["username"].(string)
	walletAddress, _ := claims["walletAddress"].(string)
	loginType, _ := claims["loginType"].(string)

	return &AuthUser{
		UID:           uid,
		Username:      username,
		WalletAddress: walletAddress,
		LoginType:     loginType,
	}, nil
}

// JWTConfig holds the configuration for the JWT middleware
type JWTConfig struct {
	Tokens *TokenService
	Logger *zap.Logger
}

// JWTMiddleware verifies the bearer credential on every request and stores
// the identity in the request context. Requests without a valid credential
// never reach the handler.
func JWTMiddleware(config JWTConfig) echo.MiddlewareFunc {
	return middleware(config, true)
}

// OptionalJWTMiddleware verifies a credential when one is presented but
// admits anonymous requests. A presented-but-invalid credential still fails
// closed. Used by the wallet-network callback endpoint, which the source
// system exposes unauthenticated.
func OptionalJWTMiddleware(config JWTConfig) echo.MiddlewareFunc {
	return middleware(config, false)
}

func middleware(config JWTConfig, required bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			path := c.Request().URL.Path

			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				if !required {
					return next(c)
				}
				config.Logger.Warn("Missing authorization header",
					zap.String("path", path),
					zap.String("method", c.Request().Method))
				return c.JSON(http.StatusUnauthorized, echo.Map{
					"success": false,
					"error":   "Authorization header required",
				})
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				config.Logger.Warn("Invalid authorization header format",
					zap.String("path", path))
				return c.JSON(http.StatusUnauthorized, echo.Map{
					"success": false,
					"error":   "Invalid authorization header format. Expected: Bearer <token>",
				})
			}

			user, err := config.Tokens.Verify(tokenString)
			if err != nil {
				config.Logger.Warn("Credential verification failed",
					zap.String("path", path),
					zap.Error(err))
				return c.JSON(http.StatusUnauthorized, echo.Map{
					"success": false,
					"error":   "Invalid or expired credential",
				})
			}

			ctx := context.WithValue(c.Request().Context(), userContextKey, user)
			c.SetRequest(c.Request().WithContext(ctx))
			c.Set("uid", user.UID)

			config.Logger.Debug("Caller authenticated",
				zap.String("uid", user.UID),
				zap.String("path", path))

			return next(c)
		}
	}
}

// GetUserFromContext extracts the verified identity from the request context
func GetUserFromContext(c echo.Context) (*AuthUser, error) {
	user, ok := c.Request().Context().Value(userContextKey).(*AuthUser)
	if !ok || user == nil {
		return nil, domainErrors.NewUnauthenticatedError("no authenticated user in context")
	}
	return user, nil
}

// RequireAuth returns the identity or writes the 401 response itself
func RequireAuth(c echo.Context) (*AuthUser, error) {
	user, err := GetUserFromContext(c)
	if err != nil {
		return nil, c.JSON(http.StatusUnauthorized, echo.Map{
			"success": false,
			"error":   "Authentication required",
		})
	}
	return user, nil
}
