// Package api wires the gin router and the Subsonic-shaped endpoint
// handlers on top of internal/library, internal/stream, internal/auth,
// internal/scanner, internal/search and internal/playlist, grounded on
// the teacher's internal/api router/handlers split (its echo-flavored
// REST surface generalized to the Subsonic endpoint names).
package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/nghego/nghego/internal/apperr"
)

const serverVersion = "0.1.0"
const subsonicAPIVersion = "1.16.1"

// ok builds a successful subsonic-response envelope, merging extra
// fields (e.g. {"musicFolders": ...}) into the body.
func ok(c *gin.Context, extra gin.H) {
	body := gin.H{
		"status":        "ok",
		"version":       subsonicAPIVersion,
		"type":          "nghego",
		"serverVersion": serverVersion,
		"openSubsonic":  true,
	}
	for k, v := range extra {
		body[k] = v
	}
	c.JSON(http.StatusOK, gin.H{"subsonic-response": body})
}

// fail builds a failed subsonic-response envelope from err's apperr.Kind.
func fail(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	c.JSON(http.StatusOK, gin.H{"subsonic-response": gin.H{
		"status":        "failed",
		"version":       subsonicAPIVersion,
		"type":          "nghego",
		"serverVersion": serverVersion,
		"openSubsonic":  true,
		"error": gin.H{
			"code":    kind.Code(),
			"message": err.Error(),
		},
	}})
}

func queryInt(c *gin.Context, key string, def int) int {
	v := c.Query(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func queryInt64(c *gin.Context, key string, def int64) int64 {
	v := c.Query(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func queryOptInt(c *gin.Context, key string) *int {
	v := c.Query(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil
	}
	return &n
}
