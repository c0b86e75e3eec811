package ui

import (
	"log"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimiter throttles workbook uploads, the only expensive request the
// dashboards accept.
type RateLimiter struct {
	limiter *rate.Limiter
	tag     string
}

// NewRateLimiter allows rps uploads per second with the given burst. A
// non-positive rps disables limiting.
func NewRateLimiter(rps float64, burst int, tag string) *RateLimiter {
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	return &RateLimiter{limiter: rate.NewLimiter(limit, burst), tag: tag}
}

// Allow reports whether one more request may proceed now.
func (rl *RateLimiter) Allow(r *http.Request) bool {
	if rl.limiter.Allow() {
		return true
	}
	log.Printf("%s rate limit exceeded: %s %s from %s", rl.tag, r.Method, r.URL.Path, r.RemoteAddr)
	return false
}

// Handler is the net/http middleware form.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow(r) {
			w.Header().Set("Retry-After", rl.retryAfter())
			http.Error(w, "Demasiadas cargas. Intente nuevamente en unos segundos.", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Gin is the gin middleware form.
func (rl *RateLimiter) Gin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.Allow(c.Request) {
			c.Header("Retry-After", rl.retryAfter())
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

// retryAfter is the whole number of seconds until the next token, at least
// one. The reservation used to measure it is cancelled.
func (rl *RateLimiter) retryAfter() string {
	delay := time.Second
	if limit := rl.limiter.Limit(); limit > 0 && limit != rate.Inf {
		delay = time.Duration(float64(time.Second) / float64(limit))
	}
	if r := rl.limiter.Reserve(); r.OK() {
		delay = r.Delay()
		r.Cancel()
	}
	return strconv.Itoa(max(1, int(math.Ceil(delay.Seconds()))))
}
