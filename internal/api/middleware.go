package api

import (
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	apperrors "github.com/gmsas95/medtrack/internal/errors"
)

const userKey = "user_id"

// authMiddleware accepts HS256 bearer tokens and takes the user id from
// the subject claim.
func (s *Server) authMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		auth := c.Get("Authorization")
		if auth == "" {
			return apperrors.ErrUnauthorized.Withf("missing authorization header")
		}

		tokenString := strings.TrimPrefix(auth, "Bearer ")
		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			return []byte(s.config.Security.JWTSecret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid {
			return apperrors.ErrUnauthorized.Withf("invalid token")
		}

		sub, err := token.Claims.GetSubject()
		if err != nil || sub == "" {
			return apperrors.ErrUnauthorized.Withf("token has no subject")
		}

		c.Locals(userKey, sub)
		return c.Next()
	}
}

func userID(c *fiber.Ctx) string {
	id, _ := c.Locals(userKey).(string)
	return id
}

// IssueToken signs a token for userID. Used by the CLI and tests.
func IssueToken(secret, userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	})
	return token.SignedString([]byte(secret))
}

// userLimiter keeps one token bucket per user. Buckets idle for longer
// than idleTTL are dropped by a sweep that runs at most once per idleTTL.
type userLimiter struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	idleTTL   time.Duration
	now       func() time.Time
	lastSweep time.Time
	limiters  map[string]*userBucket
}

type userBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

const limiterIdleTTL = 10 * time.Minute

func newUserLimiter(perSecond float64, burst int) *userLimiter {
	if perSecond <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &userLimiter{
		limit:    rate.Limit(perSecond),
		burst:    burst,
		idleTTL:  limiterIdleTTL,
		now:      time.Now,
		limiters: make(map[string]*userBucket),
	}
}

func (l *userLimiter) allow(user string) bool {
	l.mu.Lock()
	now := l.now()
	if now.Sub(l.lastSweep) >= l.idleTTL {
		l.evictIdle(now)
		l.lastSweep = now
	}
	b, ok := l.limiters[user]
	if !ok {
		b = &userBucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[user] = b
	}
	b.lastSeen = now
	l.mu.Unlock()
	return b.limiter.AllowN(now, 1)
}

// evictIdle must be called with mu held.
func (l *userLimiter) evictIdle(now time.Time) {
	for user, b := range l.limiters {
		if now.Sub(b.lastSeen) >= l.idleTTL {
			delete(l.limiters, user)
		}
	}
}

func (l *userLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}

func (s *Server) rateLimitMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if s.limiter == nil {
			return c.Next()
		}
		if !s.limiter.allow(userID(c)) {
			s.metrics.RateLimited()
			return apperrors.ErrRateLimited
		}
		return c.Next()
	}
}

// requestMetrics renders handler errors itself so the recorded status is
// the one the client sees.
func (s *Server) requestMetrics() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		if err := c.Next(); err != nil {
			if herr := s.handleError(c, err); herr != nil {
				return herr
			}
		}

		status := c.Response().StatusCode()
		route := c.Route().Path
		s.metrics.ObserveRequest(c.Method(), route, status, time.Since(start))

		if status >= 500 {
			s.logger.Warn("Request failed",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.Int("status", status),
			)
		}
		return nil
	}
}
