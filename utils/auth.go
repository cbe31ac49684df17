package utils

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"sheetboard/config"
	"sheetboard/db"
	"sheetboard/models"
)

// Claims defines the structure of the JWT claims.
type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// GenerateJWT creates a bearer token for a logged-in user. The token lifetime
// matches the configured session duration; the session registry remains the
// authority on whether the session is still live.
func GenerateJWT(user models.UserRecord, cfg *config.Config) (string, error) {
	if cfg.JwtSecret == "" {
		log.Println("CRITICAL: JWT Secret is empty. Cannot generate token.")
		return "", errors.New("JWT secret is not configured")
	}

	expirationTime := time.Now().Add(cfg.SessionDuration)
	claims := &Claims{
		Username: user.Username,
		Role:     string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "sheetboard",
			Subject:   user.Username,
			ID:        GenerateDashlessUUID(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(cfg.JwtSecret))
	if err != nil {
		log.Printf("ERROR: Failed to sign JWT token: %v", err)
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// ValidateJWT parses and validates a JWT token string.
// Returns the claims if valid, otherwise returns an error.
func ValidateJWT(tokenString string, cfg *config.Config) (*Claims, error) {
	if cfg.JwtSecret == "" {
		log.Println("CRITICAL: JWT Secret is empty. Cannot validate token.")
		return nil, errors.New("JWT secret is not configured")
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(cfg.JwtSecret), nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			log.Printf("INFO: JWT validation failed: Token expired")
			return nil, errors.New("token has expired")
		}
		log.Printf("WARN: JWT validation failed: %v", err)
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	if !token.Valid {
		log.Printf("WARN: JWT validation failed: Token marked as invalid")
		return nil, errors.New("invalid token")
	}

	return claims, nil
}

// AuthMiddleware protects routes. It validates the bearer token and then
// consults the session registry: a token whose session has expired or was
// logged out behind its back is rejected through the same forced-logout path
// as an explicit expiry.
func AuthMiddleware(cfg *config.Config, registry db.SessionRegistry) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			GinUnauthorized(c, "Authorization header required")
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			GinError(c, http.StatusBadRequest, "Authorization header format must be Bearer {token}")
			return
		}

		claims, err := ValidateJWT(parts[1], cfg)
		if err != nil {
			GinUnauthorized(c, fmt.Sprintf("Invalid token: %v", err))
			return
		}

		now := time.Now()
		if err := registry.Cleanup(now); err != nil {
			log.Printf("WARN: Session cleanup failed in middleware: %v", err)
		}
		if _, active := registry.Remaining(claims.Username, now); !active {
			// Expiry detected on read. Force the logout so the registry and
			// the client agree the session ended.
			if err := registry.Logout(claims.Username); err != nil {
				log.Printf("WARN: Forced logout for '%s' failed: %v", claims.Username, err)
			}
			GinUnauthorized(c, "Session expired. Please log in again.")
			return
		}

		c.Set("username", claims.Username)
		c.Set("role", claims.Role)

		c.Next()
	}
}

// RequirePermission gates a route on one capability tag from the user's
// credential record. It must run after AuthMiddleware.
func RequirePermission(tag string, creds db.CredentialStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		username := c.GetString("username")
		user, found := creds.Get(username)
		if !found {
			// Account deleted mid-session. The registry entry may survive,
			// but the request must not.
			GinUnauthorized(c, "Account no longer exists.")
			return
		}
		if !user.HasPermission(tag) {
			GinForbidden(c, fmt.Sprintf("Permission '%s' required.", tag))
			return
		}
		c.Next()
	}
}
