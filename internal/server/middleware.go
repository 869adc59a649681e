package server

import (
	"github.com/gin-gonic/gin"
	obscontext "github.com/telecoop/backoffice/internal/observability/context"
)

const contextUserIDKey = "user_id"

// AuthRequired resolves the session cookie into an authenticated user and
// stamps the request context with the acting user id.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := s.sessions.ReadToken(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		session, err := s.authsvc.Authenticate(c.Request.Context(), token)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		userID := session.UserID.String()
		c.Set(contextUserIDKey, userID)
		ctx := obscontext.WithActor(c.Request.Context(), "user", userID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// authorizeAction gates a route on the authenticated user's role policy.
func (s *Server) authorizeAction(object, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString(contextUserIDKey)
		if userID == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		if err := s.authzSvc.Authorize(c.Request.Context(), "user:"+userID, object, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

func (s *Server) userIDFromSession(c *gin.Context) (string, bool) {
	userID := c.GetString(contextUserIDKey)
	return userID, userID != ""
}
