package api

import (
	"alcyxob/plan-tracker/internal/metrics"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis_rate/v9"
	"github.com/golang-jwt/jwt/v4"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// Constants for context keys
const (
	ContextUserIDKey = "userID"

	AdminTokenHeader = "X-Admin-Token"

	StreamPathSuffix = "/plan/stream"
)

// jwtClaims is the token payload. Tokens are issued by the identity
// provider; only the user id is read here.
type jwtClaims struct {
	UserID string `json:"uid"`
	jwt.RegisteredClaims
}

// AuthMiddleware creates a Gin middleware for JWT authentication.
func AuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortWithError(c, http.StatusUnauthorized, "Authorization header is missing")
			return
		}

		// Expecting "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			abortWithError(c, http.StatusUnauthorized, "Authorization header format must be Bearer {token}")
			return
		}

		claims := &jwtClaims{}
		token, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(jwtSecret), nil
		})
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				abortWithError(c, http.StatusUnauthorized, "Token has expired")
			} else {
				abortWithError(c, http.StatusUnauthorized, fmt.Sprintf("Invalid token: %v", err))
			}
			return
		}

		userID := claims.UserID
		if userID == "" {
			userID = claims.Subject
		}
		if !token.Valid || userID == "" {
			abortWithError(c, http.StatusUnauthorized, "Invalid token or missing claims")
			return
		}

		c.Set(ContextUserIDKey, userID)
		c.Next()
	}
}

// AdminMiddleware accepts requests whose admin token matches the bcrypt
// hash. An empty hash rejects everything.
func AdminMiddleware(tokenHash string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader(AdminTokenHeader)
		if tokenHash == "" || token == "" {
			abortWithError(c, http.StatusForbidden, "Admin access required")
			return
		}
		if err := bcrypt.CompareHashAndPassword([]byte(tokenHash), []byte(token)); err != nil {
			abortWithError(c, http.StatusForbidden, "Admin access required")
			return
		}
		c.Next()
	}
}

// RequestRateLimiter is satisfied by *redis_rate.Limiter.
type RequestRateLimiter interface {
	Allow(ctx context.Context, key string, limit redis_rate.Limit) (*redis_rate.Result, error)
}

// RateLimit throttles each authenticated user per route name. Must run
// AFTER AuthMiddleware.
func RateLimit(rateLimiter RequestRateLimiter, routeName string, allowedPerMin int) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := getUserIDFromContext(c)
		if err != nil {
			abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token.")
			return
		}

		res, err := rateLimiter.Allow(
			c.Request.Context(),
			routeName+":"+userID,
			redis_rate.PerMinute(allowedPerMin),
		)
		if err != nil {
			// Limiter outage: let the request through.
			log.WithError(err).Warn("rate limiter unavailable")
			c.Next()
			return
		}

		if res.Allowed > 0 {
			c.Next()
			return
		}

		c.Header("Retry-After", strconv.Itoa(int(res.RetryAfter.Seconds())+1))
		abortWithError(c, http.StatusTooManyRequests, fmt.Sprintf("retry after %.1f seconds", res.RetryAfter.Seconds()))
	}
}

// RequestMetrics records request count, duration and in-flight requests.
func RequestMetrics(metricsManager *metrics.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		metricsManager.GaugeRequests.Inc()
		defer func(begin time.Time) {
			metricsManager.GaugeRequests.Dec()
			metricsManager.HistRequestDuration.Observe(time.Since(begin).Seconds())
		}(time.Now())

		c.Next()

		metricsManager.CounterRequests.WithLabelValues(
			c.Request.Method,
			strconv.Itoa(c.Writer.Status()),
		).Inc()
	}
}

// Helper to return JSON error response and abort request
func abortWithError(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, gin.H{"error": message})
}

// Helper function to get User ID from context (used by handlers)
func getUserIDFromContext(c *gin.Context) (string, error) {
	idRaw, exists := c.Get(ContextUserIDKey)
	if !exists {
		return "", errors.New("user ID not found in context")
	}
	idStr, ok := idRaw.(string)
	if !ok {
		return "", errors.New("invalid user ID type in context")
	}
	return idStr, nil
}

// ClearStreamWriteDeadline lifts the server write timeout for event stream
// requests. The stream itself ends with the request context.
func ClearStreamWriteDeadline(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, StreamPathSuffix) {
			if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
				log.WithError(err).Warn("could not clear write deadline for event stream")
			}
		}
		next.ServeHTTP(w, r)
	})
}
