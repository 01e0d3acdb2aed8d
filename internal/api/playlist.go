package api

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/nghego/nghego/internal/api/middleware"
	"github.com/nghego/nghego/internal/apperr"
	"github.com/nghego/nghego/internal/models"
)

func playlistDTO(p models.Playlist, songs []models.Song) gin.H {
	h := gin.H{
		"id":        p.ID,
		"name":      p.Name,
		"comment":   p.Comment,
		"owner":     p.OwnerID,
		"public":    p.Public,
		"songCount": len(songs),
		"created":   p.CreatedAt,
		"changed":   p.UpdatedAt,
	}
	if songs != nil {
		h["entry"] = songsDTO(songs)
	}
	return h
}

func (h *handlers) getPlaylists(c *gin.Context) {
	user, err := middleware.CurrentUser(c)
	if err != nil {
		fail(c, err)
		return
	}
	playlists, err := h.deps.Playlist.List(c.Request.Context(), user.ID)
	if err != nil {
		fail(c, err)
		return
	}
	list := make([]gin.H, 0, len(playlists))
	for _, p := range playlists {
		list = append(list, playlistDTO(p, nil))
	}
	ok(c, gin.H{"playlists": gin.H{"playlist": list}})
}

func (h *handlers) getPlaylist(c *gin.Context) {
	user, err := middleware.CurrentUser(c)
	if err != nil {
		fail(c, err)
		return
	}
	id := queryInt64(c, "id", 0)
	ctx := c.Request.Context()
	p, err := h.deps.Playlist.Get(ctx, user.ID, id)
	if err != nil {
		fail(c, err)
		return
	}
	songs, err := h.deps.Playlist.GetSongs(ctx, user.ID, id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"playlist": playlistDTO(*p, songs)})
}

func (h *handlers) createPlaylist(c *gin.Context) {
	user, err := middleware.CurrentUser(c)
	if err != nil {
		fail(c, err)
		return
	}
	name := firstNonEmpty(c.PostForm("name"), c.Query("name"))
	comment := firstNonEmpty(c.PostForm("comment"), c.Query("comment"))
	id, err := h.deps.Playlist.Create(c.Request.Context(), user.ID, name, comment, queryBool(c, "public", false))
	if err != nil {
		fail(c, err)
		return
	}

	songIDs := c.QueryArray("songId")
	if len(songIDs) == 0 {
		songIDs = c.PostFormArray("songId")
	}
	if ids := parseInt64List(songIDs); len(ids) > 0 {
		if err := h.deps.Playlist.AddSongs(c.Request.Context(), user.ID, id, ids); err != nil {
			fail(c, err)
			return
		}
	}
	ok(c, gin.H{"playlist": gin.H{"id": id, "name": name}})
}

func (h *handlers) updatePlaylist(c *gin.Context) {
	user, err := middleware.CurrentUser(c)
	if err != nil {
		fail(c, err)
		return
	}
	id := queryInt64(c, "playlistId", 0)
	ctx := c.Request.Context()

	var name, comment *string
	if v := firstNonEmpty(c.PostForm("name"), c.Query("name")); v != "" {
		name = &v
	}
	if v := firstNonEmpty(c.PostForm("comment"), c.Query("comment")); v != "" {
		comment = &v
	}
	var public *bool
	if v := firstNonEmpty(c.PostForm("public"), c.Query("public")); v != "" {
		b := v == "true" || v == "1"
		public = &b
	}
	if err := h.deps.Playlist.Update(ctx, user.ID, id, name, comment, public); err != nil {
		fail(c, err)
		return
	}

	toAdd := parseInt64List(append(c.QueryArray("songIdToAdd"), c.PostFormArray("songIdToAdd")...))
	if len(toAdd) > 0 {
		if err := h.deps.Playlist.AddSongs(ctx, user.ID, id, toAdd); err != nil {
			fail(c, err)
			return
		}
	}
	toRemove := parseInt64List(append(c.QueryArray("songIndexToRemove"), c.PostFormArray("songIndexToRemove")...))
	if len(toRemove) > 0 {
		if err := h.deps.Playlist.RemoveSongs(ctx, user.ID, id, toRemove); err != nil {
			fail(c, err)
			return
		}
	}
	ok(c, nil)
}

func (h *handlers) deletePlaylist(c *gin.Context) {
	user, err := middleware.CurrentUser(c)
	if err != nil {
		fail(c, err)
		return
	}
	id := queryInt64(c, "id", 0)
	if err := h.deps.Playlist.Delete(c.Request.Context(), user.ID, id); err != nil {
		fail(c, err)
		return
	}
	ok(c, nil)
}

func (h *handlers) resolveCollaborator(c *gin.Context) (int64, error) {
	username := firstNonEmpty(c.PostForm("username"), c.Query("username"))
	if username == "" {
		return 0, apperr.New(apperr.KindInvalidParameter, "missing required parameter 'username'")
	}
	collaborator, err := h.deps.Store.GetUserByUsername(c.Request.Context(), username)
	if err != nil {
		return 0, err
	}
	return collaborator.ID, nil
}

func (h *handlers) addPlaylistUser(c *gin.Context) {
	user, err := middleware.CurrentUser(c)
	if err != nil {
		fail(c, err)
		return
	}
	collaboratorID, err := h.resolveCollaborator(c)
	if err != nil {
		fail(c, err)
		return
	}
	id := queryInt64(c, "playlistId", 0)
	canEdit := queryBool(c, "canEdit", false)
	if err := h.deps.Playlist.AddCollaborator(c.Request.Context(), user.ID, id, collaboratorID, canEdit); err != nil {
		fail(c, err)
		return
	}
	ok(c, nil)
}

func (h *handlers) removePlaylistUser(c *gin.Context) {
	user, err := middleware.CurrentUser(c)
	if err != nil {
		fail(c, err)
		return
	}
	collaboratorID, err := h.resolveCollaborator(c)
	if err != nil {
		fail(c, err)
		return
	}
	id := queryInt64(c, "playlistId", 0)
	if err := h.deps.Playlist.RemoveCollaborator(c.Request.Context(), user.ID, id, collaboratorID); err != nil {
		fail(c, err)
		return
	}
	ok(c, nil)
}

func parseInt64List(vals []string) []int64 {
	out := make([]int64, 0, len(vals))
	for _, v := range vals {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	return out
}
