package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/sirupsen/logrus"

	"github.com/pandeypooja21/code-sync/internal/domain"
)

// identityKey is the gin context key the Auth middleware stores the caller
// identity under.
const identityKey = "identity"

// ErrMissingAuthHeader means the request carried no Authorization header.
var ErrMissingAuthHeader = errors.New("missing Authorization header")

// Auth returns a gin middleware that validates the identity token issued by
// the external identity provider and stores the caller identity in the
// request context. The token is HS256-signed and carries user_id,
// display_name and avatar_url claims; nothing beyond signature and expiry is
// checked here; identity is the provider's problem.
func Auth(jwtSecret string) gin.HandlerFunc {
	if jwtSecret == "" {
		panic("JWT secret cannot be empty for Auth middleware")
	}

	return func(c *gin.Context) {
		tokenStr, err := extractToken(c)
		if err != nil {
			if errors.Is(err, ErrMissingAuthHeader) {
				logrus.Warn("Auth middleware: Missing Authorization header")
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header is required"})
			} else {
				logrus.WithError(err).Warn("Auth middleware: Malformed token format")
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token format"})
			}
			c.Abort()
			return
		}

		claims, err := validateToken(tokenStr, jwtSecret)
		if err != nil {
			logrus.WithError(err).Warn("Auth middleware: Invalid token")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		userID, ok := claims["user_id"].(string)
		if !ok || userID == "" {
			logrus.Error("Auth middleware: 'user_id' claim missing or not a string")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Token missing user identity"})
			c.Abort()
			return
		}
		displayName, _ := claims["display_name"].(string)
		if displayName == "" {
			displayName = "Unknown User"
		}
		avatarURL, _ := claims["avatar_url"].(string)

		c.Set(identityKey, domain.Identity{
			UserID:      userID,
			DisplayName: displayName,
			AvatarURL:   avatarURL,
		})
		logrus.WithField("user_id", userID).Debug("Auth middleware: Caller identified")
		c.Next()
	}
}

// IdentityFromContext returns the caller identity set by the Auth middleware.
func IdentityFromContext(c *gin.Context) (domain.Identity, bool) {
	value, exists := c.Get(identityKey)
	if !exists {
		return domain.Identity{}, false
	}
	identity, ok := value.(domain.Identity)
	return identity, ok
}

// extractToken pulls the bearer token from the Authorization header. The
// websocket endpoint also accepts a token query parameter because browser
// websocket clients cannot set headers.
func extractToken(c *gin.Context) (string, error) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		if token := c.Query("token"); token != "" {
			return token, nil
		}
		return "", ErrMissingAuthHeader
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", jwt.ErrTokenMalformed
	}
	return parts[1], nil
}

// validateToken parses and verifies the signed identity token.
func validateToken(tokenStr, secret string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}
