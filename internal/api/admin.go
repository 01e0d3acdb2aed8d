package api

import (
	"github.com/gin-gonic/gin"

	"github.com/nghego/nghego/internal/apperr"
	"github.com/nghego/nghego/internal/jobs"
)

func (h *handlers) setup(c *gin.Context) {
	ctx := c.Request.Context()
	exists, err := h.deps.Store.HasAnyUser(ctx)
	if err != nil {
		fail(c, err)
		return
	}
	if exists {
		fail(c, apperr.New(apperr.KindForbidden, "setup already completed"))
		return
	}

	username := c.PostForm("username")
	if username == "" {
		username = c.Query("username")
	}
	password := c.PostForm("password")
	if password == "" {
		password = c.Query("password")
	}
	email := c.PostForm("email")
	if email == "" {
		email = c.Query("email")
	}

	id, err := h.deps.Store.CreateUser(ctx, h.deps.ServerSecret, username, password, email, true, true, true, true)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"user": gin.H{"id": id, "username": username}})
}

func (h *handlers) createUser(c *gin.Context) {
	ctx := c.Request.Context()
	username := firstNonEmpty(c.PostForm("username"), c.Query("username"))
	password := firstNonEmpty(c.PostForm("password"), c.Query("password"))
	email := firstNonEmpty(c.PostForm("email"), c.Query("email"))

	id, err := h.deps.Store.CreateUser(ctx, h.deps.ServerSecret, username, password, email,
		queryBool(c, "adminRole", false), queryBool(c, "streamRole", true), queryBool(c, "downloadRole", true), queryBool(c, "shareRole", false))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"user": gin.H{"id": id, "username": username}})
}

func (h *handlers) updateUser(c *gin.Context) {
	id := queryInt64(c, "id", 0)
	email := firstNonEmpty(c.PostForm("email"), c.Query("email"))

	var password *string
	if p := firstNonEmpty(c.PostForm("password"), c.Query("password")); p != "" {
		password = &p
	}

	err := h.deps.Store.UpdateUser(c.Request.Context(), h.deps.ServerSecret, id, email, password,
		queryBool(c, "adminRole", false), queryBool(c, "streamRole", true), queryBool(c, "downloadRole", true), queryBool(c, "shareRole", false))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, nil)
}

func (h *handlers) deleteUser(c *gin.Context) {
	id := queryInt64(c, "id", 0)
	if err := h.deps.Store.DeleteUser(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	ok(c, nil)
}

func (h *handlers) addMusicFolder(c *gin.Context) {
	name := firstNonEmpty(c.PostForm("name"), c.Query("name"))
	path := firstNonEmpty(c.PostForm("path"), c.Query("path"))
	backend := firstNonEmpty(c.PostForm("backend"), c.Query("backend"))
	if backend == "" {
		backend = "local"
	}
	id, err := h.deps.Store.AddMusicFolder(c.Request.Context(), name, path, backend, queryBool(c, "watch", false))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"musicFolder": gin.H{"id": id, "name": name}})
}

func (h *handlers) removeMusicFolder(c *gin.Context) {
	id := queryInt64(c, "id", 0)
	if err := h.deps.Store.RemoveMusicFolder(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	ok(c, nil)
}

func (h *handlers) getFolderStats(c *gin.Context) {
	id := queryInt64(c, "id", 0)
	scan, err := h.deps.Store.LatestScan(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"folderStats": gin.H{
		"lastScanStatus": scan.Status,
		"filesSeen":      scan.FilesSeen,
		"filesAdded":     scan.FilesAdded,
		"filesUpdated":   scan.FilesUpdated,
		"filesRemoved":   scan.FilesRemoved,
		"errors":         scan.Errors,
	}})
}

func (h *handlers) startScan(c *gin.Context) {
	id := queryInt64(c, "musicFolderId", 0)
	force := c.Query("scanMode") == "force"

	if _, err := h.deps.Queue.Enqueue(c.Request.Context(), jobs.JobTypeScanFolder, jobs.ScanFolderJobPayload{MusicFolderID: id, Force: force}); err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"scanStatus": gin.H{"scanning": true}})
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func queryBool(c *gin.Context, key string, def bool) bool {
	v := c.Query(key)
	if v == "" {
		v = c.PostForm(key)
	}
	if v == "" {
		return def
	}
	return v == "true" || v == "1"
}
