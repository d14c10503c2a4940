package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const operatorKey = "auth_operator"

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrTokenRevoked = errors.New("token revoked")
)

// bearerToken extracts the token from an Authorization header value.
func bearerToken(header string) (string, error) {
	scheme, tok, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", ErrMissingToken
	}
	tok = strings.TrimSpace(tok)
	if tok == "" {
		return "", ErrMissingToken
	}
	return tok, nil
}

// verify parses the token and, when a repo is wired, rejects tokens issued
// before the operator's last logout or password change.
func (h *Handler) verify(ctx context.Context, raw string) (*Claims, error) {
	claims, err := h.Tokens.Parse(raw)
	if err != nil {
		return nil, err
	}
	if h.Repo == nil {
		return claims, nil
	}
	current, err := h.Repo.GetTokenVersion(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if current != claims.TokenVersion {
		return nil, ErrTokenRevoked
	}
	return claims, nil
}

// Middleware guards operator routes: pipeline runs and the account endpoints.
func (h *Handler) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := bearerToken(c.GetHeader("Authorization"))
		if err != nil {
			unauthorized(c, err.Error())
			return
		}
		claims, err := h.verify(c.Request.Context(), raw)
		switch {
		case errors.Is(err, ErrTokenRevoked):
			unauthorized(c, err.Error())
			return
		case err != nil:
			unauthorized(c, "invalid token")
			return
		}

		c.Set(operatorKey, claims)
		c.Next()
	}
}

func unauthorized(c *gin.Context, msg string) {
	c.Header("WWW-Authenticate", `Bearer realm="dealflow"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
}

// Operator returns the claims Middleware stored, or nil on an unguarded route.
func Operator(c *gin.Context) *Claims {
	v, ok := c.Get(operatorKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*Claims)
	return claims
}
