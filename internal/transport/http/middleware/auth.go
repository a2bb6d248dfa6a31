package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	errUnauthorized = "Unauthorized"

	subjectKey = "subject"
)

// Auth validates an HS256 bearer JWT and stores its subject in the gin
// context. An EventSource cannot set headers, so requests that accept
// text/event-stream may pass the token as ?access_token= instead.
func Auth(jwtKey []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		rawToken, ok := bearer(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errUnauthorized})
			return
		}

		token, err := jwt.Parse(rawToken, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return jwtKey, nil
		}, jwt.WithExpirationRequired())
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errUnauthorized})
			return
		}

		sub, err := token.Claims.GetSubject()
		if err != nil || sub == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errUnauthorized})
			return
		}

		c.Set(subjectKey, sub)
		c.Next()
	}
}

// Subject returns the authenticated token subject, or "" outside Auth.
func Subject(c *gin.Context) string {
	return c.GetString(subjectKey)
}

func bearer(c *gin.Context) (string, bool) {
	if header := c.GetHeader("Authorization"); header != "" {
		raw, ok := strings.CutPrefix(header, "Bearer ")
		return raw, ok && raw != ""
	}
	if strings.Contains(c.GetHeader("Accept"), "text/event-stream") {
		raw := c.Query("access_token")
		return raw, raw != ""
	}
	return "", false
}
