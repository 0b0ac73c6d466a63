package httpserver

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()

		logger := log.WithFields(log.Fields{
			"ip":              c.ClientIP(),
			"x-forwarded-for": c.GetHeader("X-Forwarded-For"),
			"x-real-ip":       c.GetHeader("X-Real-IP"),
			"user-agent":      c.Request.UserAgent(),
		})

		logger.Infof("API Request: %s %s", c.Request.Method, c.Request.URL.Path)

		c.Next()

		logger.WithFields(log.Fields{
			"status":   c.Writer.Status(),
			"duration": time.Since(started).Round(time.Millisecond),
		}).Debugf("API Request completed: %s %s", c.Request.Method, c.Request.URL.Path)
	}
}

// ipAllowlist rejects requests from addresses not listed in allowed.
// An empty list or a "*" entry allows everything.
func ipAllowlist(allowed []string) gin.HandlerFunc {
	table := make(map[string]struct{}, len(allowed))

	for _, ip := range allowed {
		table[ip] = struct{}{}
	}

	_, allowAll := table["*"]

	return func(c *gin.Context) {
		if len(table) == 0 || allowAll {
			c.Next()

			return
		}

		ip := strings.TrimPrefix(c.ClientIP(), "::ffff:")

		if _, ok := table[ip]; !ok {
			log.WithField("ip", ip).Warn("Blocked request from unauthorized IP")

			c.AbortWithStatusJSON(http.StatusForbidden, errorResponse("Access denied: IP not in whitelist"))

			return
		}

		c.Next()
	}
}

// apiKeyAuth checks the X-API-Key header. An empty key disables the check.
func apiKeyAuth(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(key) == 0 {
			c.Next()

			return
		}

		if subtle.ConstantTimeCompare([]byte(c.GetHeader("X-API-Key")), []byte(key)) != 1 {
			log.WithField("ip", c.ClientIP()).Warn("Invalid API key attempt")

			c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse("Unauthorized: Invalid API key"))

			return
		}

		c.Next()
	}
}

func recoveryHandler(c *gin.Context, err interface{}) {
	log.WithField("path", c.Request.URL.Path).Errorf("Unhandled error: %v", err)

	c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse("Internal server error"))
}
