// internal/web/auth.go - Token middleware and password hashing
package web

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"watchtower/internal/store"
)

const contextPhone = "phone"

// requireToken authenticates requests via the Token header. The token
// record must exist and be unexpired; the owning phone is placed in the
// request context for ownership checks downstream.
func (s *Server) requireToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("Token")
		if id == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Missing token header"})
			return
		}

		var token store.Token
		if err := s.store.Read(store.CollectionTokens, id, &token); err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Invalid token"})
			return
		}

		if token.Expires < time.Now().UnixMilli() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Token has expired"})
			return
		}

		c.Set(contextPhone, token.Phone)
		c.Next()
	}
}

func (s *Server) hashPassword(password string) string {
	mac := hmac.New(sha256.New, []byte(s.config.Server.HashingSecret))
	mac.Write([]byte(password))
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *Server) passwordMatches(password, hashed string) bool {
	return hmac.Equal([]byte(s.hashPassword(password)), []byte(hashed))
}
