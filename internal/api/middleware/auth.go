package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nghego/nghego/internal/auth"
	"github.com/nghego/nghego/internal/models"
)

var errNoUserInContext = errors.New("no authenticated user in context")

const (
	ctxKeyUser   = "user"
	ctxKeyUserID = "user_id"
)

// RequireAuth extracts the Subsonic wire-auth parameters (u plus t+s)
// from the query string, authenticates against authSvc and stashes the
// resolved user in the gin context for downstream handlers and
// RequireRole.
func RequireAuth(authSvc *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		username := c.Query("u")
		token := c.Query("t")
		salt := c.Query("s")
		if username == "" || token == "" || salt == "" {
			abortUnauthenticated(c, "missing authentication parameters u/t/s")
			return
		}

		user, err := authSvc.Authenticate(c.Request.Context(), username, salt, token)
		if err != nil {
			abortUnauthenticated(c, "invalid credentials")
			return
		}

		c.Set(ctxKeyUser, user)
		c.Set(ctxKeyUserID, user.ID)
		c.Next()
	}
}

// RequireRole aborts the request unless the authenticated user (set by
// RequireAuth) carries role.
func RequireRole(role auth.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := CurrentUser(c)
		if err != nil {
			abortUnauthenticated(c, "authentication required")
			return
		}
		if err := auth.Authorize(user, role); err != nil {
			c.JSON(http.StatusOK, gin.H{"subsonic-response": gin.H{
				"status": "failed",
				"error":  gin.H{"code": 50, "message": err.Error()},
			}})
			c.Abort()
			return
		}
		c.Next()
	}
}

// CurrentUser fetches the user RequireAuth stashed in c, for handlers
// that need it directly.
func CurrentUser(c *gin.Context) (*models.User, error) {
	v, ok := c.Get(ctxKeyUser)
	if !ok {
		return nil, errNoUserInContext
	}
	user, ok := v.(*models.User)
	if !ok {
		return nil, errNoUserInContext
	}
	return user, nil
}

func abortUnauthenticated(c *gin.Context, message string) {
	c.JSON(http.StatusOK, gin.H{"subsonic-response": gin.H{
		"status": "failed",
		"error":  gin.H{"code": 40, "message": message},
	}})
	c.Abort()
}
