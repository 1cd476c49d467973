package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/modelmux/modelmux/pkg/api"
)

// Auth checks for a valid Bearer token. An empty configured token disables
// auth entirely, matching a local-first deployment.
func Auth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			problem := api.UnauthorizedError("Missing Authorization header")
			c.AbortWithStatusJSON(problem.Status, problem)
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			problem := api.UnauthorizedError("Invalid Authorization header format")
			c.AbortWithStatusJSON(problem.Status, problem)
			return
		}

		if subtle.ConstantTimeCompare([]byte(parts[1]), []byte(token)) != 1 {
			problem := api.UnauthorizedError("Invalid API key")
			c.AbortWithStatusJSON(problem.Status, problem)
			return
		}

		c.Next()
	}
}
