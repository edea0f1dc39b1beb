// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file adapts the external auth collaborator: it turns a bearer token
// (HS256 JWT whose numeric "sub" is the user id) into a request identity.
// Token issuance lives elsewhere; this middleware only verifies.
//
//   - Authenticate() resolves the identity when one is presented and rejects
//     invalid credentials with 401. Anonymous requests pass through.
//   - RequireAuth() guards routes that need a user.
//   - UserID() reads the identity downstream.
package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// ctxKeyUserID is the Gin context key holding the authenticated user id (uint).
const ctxKeyUserID = "userID"

// HeaderUserID carries a raw user id when AuthOptions.TrustHeader is set.
const HeaderUserID = "X-User-ID"

// AuthOptions configures Authenticate.
type AuthOptions struct {
	// Secret verifies HS256 bearer tokens. Empty disables bearer auth.
	Secret []byte
	// TrustHeader accepts X-User-ID as the identity. Development only.
	TrustHeader bool
}

var errInvalidToken = errors.New("invalid token")

// Authenticate resolves the request identity from the Authorization header
// or, when trusted, from X-User-ID. A presented but invalid credential is
// rejected; no credential leaves the request anonymous.
func Authenticate(opts AuthOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		if h := strings.TrimSpace(c.GetHeader("Authorization")); h != "" {
			token, found := strings.CutPrefix(h, "Bearer ")
			if !found || len(opts.Secret) == 0 {
				abortUnauthorized(c, "unsupported authorization")
				return
			}
			uid, err := ParseToken(strings.TrimSpace(token), opts.Secret)
			if err != nil {
				abortUnauthorized(c, "invalid or expired token")
				return
			}
			c.Set(ctxKeyUserID, uid)
			c.Next()
			return
		}

		if opts.TrustHeader {
			if h := strings.TrimSpace(c.GetHeader(HeaderUserID)); h != "" {
				uid, err := strconv.ParseUint(h, 10, 64)
				if err != nil || uid == 0 {
					abortUnauthorized(c, "invalid "+HeaderUserID)
					return
				}
				c.Set(ctxKeyUserID, uint(uid))
			}
		}
		c.Next()
	}
}

// RequireAuth rejects anonymous requests with 401.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := UserID(c); !ok {
			abortUnauthorized(c, "authentication required")
			return
		}
		c.Next()
	}
}

// UserID returns the authenticated user id, if any.
func UserID(c *gin.Context) (uint, bool) {
	v, ok := c.Get(ctxKeyUserID)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok && id != 0
}

// ParseToken verifies an HS256 token and returns its numeric subject.
func ParseToken(raw string, secret []byte) (uint, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", errInvalidToken, err)
	}
	if !token.Valid {
		return 0, errInvalidToken
	}
	uid, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || uid == 0 {
		return 0, fmt.Errorf("%w: subject is not a user id", errInvalidToken)
	}
	return uint(uid), nil
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.Header("WWW-Authenticate", `Bearer realm="api"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"request_id": c.Writer.Header().Get(requestIDHeader),
		"code":       "unauthorized",
		"message":    msg,
	})
}
