package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	iauth "github.com/tripbill/tripbill/internal/auth"
	"github.com/tripbill/tripbill/pkg/errors"
	"github.com/tripbill/tripbill/pkg/response"
)

const (
	CtxClaimsKey    = "authClaims"
	CtxUserIDKey    = "userID"
	CtxPrincipalKey = "principal"
)

// Auth requires a valid bearer token whose user is known and active.
func Auth(jwt *iauth.JWTService, principals *iauth.PrincipalResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.Header("WWW-Authenticate", "Bearer")
			response.Error(c, errors.ErrUnauthorized)
			return
		}

		claims, err := jwt.ValidateAccessToken(token)
		if err != nil {
			c.Header("WWW-Authenticate", `Bearer error="invalid_token"`)
			response.Error(c, errors.ErrUnauthorized)
			return
		}

		principal, err := principals.Resolve(c.Request.Context(), claims.UserID)
		if err != nil {
			response.Error(c, err)
			return
		}

		c.Set(CtxClaimsKey, claims)
		c.Set(CtxUserIDKey, principal.UserID)
		c.Set(CtxPrincipalKey, principal)
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	if len(header) < 8 || !strings.EqualFold(header[:7], "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(header[7:])
	return token, token != ""
}
