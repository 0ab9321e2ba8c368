package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/tripbill/tripbill/internal/middleware"
	"github.com/tripbill/tripbill/pkg/errors"
	"github.com/tripbill/tripbill/pkg/response"
)

// requestContext safely returns the request context with a background fallback for tests.
func requestContext(c *gin.Context) context.Context {
	if c == nil {
		return context.Background()
	}
	if req := c.Request; req != nil {
		return req.Context()
	}
	return context.Background()
}

// currentUserID returns the authenticated user id. It writes a 401 and returns
// false when the auth middleware did not run.
func currentUserID(c *gin.Context) (string, bool) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return "", false
	}
	return userID, true
}
