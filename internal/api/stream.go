package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nghego/nghego/internal/api/middleware"
	"github.com/nghego/nghego/internal/apperr"
	nfs "github.com/nghego/nghego/internal/fs"
	"github.com/nghego/nghego/internal/models"
	"github.com/nghego/nghego/internal/stream"
)

// getCoverArt resolves the "id" param, which is either a bare song id
// or an "al-<albumID>" prefixed album id, to its backing cover_art row.
func (h *handlers) getCoverArt(c *gin.Context) {
	raw := c.Query("id")
	ctx := c.Request.Context()

	var coverID int64
	var err error
	if albumID, ok := strings.CutPrefix(raw, "al-"); ok {
		id, perr := strconv.ParseInt(albumID, 10, 64)
		if perr != nil {
			fail(c, apperr.New(apperr.KindInvalidParameter, "invalid cover art id"))
			return
		}
		coverID, err = h.deps.Store.GetAlbumCoverArtID(ctx, id)
	} else {
		id, perr := strconv.ParseInt(raw, 10, 64)
		if perr != nil {
			fail(c, apperr.New(apperr.KindInvalidParameter, "invalid cover art id"))
			return
		}
		coverID, err = h.deps.Store.GetSongCoverArtID(ctx, id)
	}
	if err != nil {
		fail(c, err)
		return
	}

	art, err := h.deps.Store.GetCoverArt(ctx, coverID)
	if err != nil {
		fail(c, err)
		return
	}
	c.Header("Cache-Control", "public, max-age=31536000")
	c.Data(http.StatusOK, coverArtContentType(art.Format), art.Data)
}

func coverArtContentType(format string) string {
	switch strings.ToLower(format) {
	case "png":
		return "image/png"
	default:
		return "image/jpeg"
	}
}

// resolveSongPath looks up a song's folder/backend and returns the
// backend-native absolute path the fs.Backend understands, ready for
// ServeDirect/SourceForTranscode.
func (h *handlers) resolveSongPath(c *gin.Context, songID int64) (nfs.Backend, string, *models.Song, error) {
	user, err := middleware.CurrentUser(c)
	if err != nil {
		return nil, "", nil, err
	}
	ctx := c.Request.Context()
	song, err := h.deps.Store.GetSong(ctx, user.ID, songID, nil)
	if err != nil {
		return nil, "", nil, err
	}
	folder, err := h.deps.Store.GetMusicFolder(ctx, song.MusicFolderID)
	if err != nil {
		return nil, "", nil, err
	}
	backend, err := h.deps.backendFor(ctx, *folder)
	if err != nil {
		return nil, "", nil, apperr.Wrap(apperr.KindIO, "resolve backend", err)
	}
	path := backend.Join(folder.Path, song.RelativePath)
	return backend, path, song, nil
}

func (h *handlers) stream(c *gin.Context) {
	id := queryInt64(c, "id", 0)
	backend, path, _, err := h.resolveSongPath(c, id)
	if err != nil {
		fail(c, err)
		return
	}

	format := c.Query("format")
	if format == "" || format == "raw" {
		if err := stream.ServeDirect(c, backend, path, stream.ContentType(backend.Ext(path))); err != nil {
			fail(c, apperr.Wrap(apperr.KindIO, "serve stream", err))
		}
		return
	}

	src, err := backend.SourceForTranscode(c.Request.Context(), path)
	if err != nil {
		fail(c, apperr.Wrap(apperr.KindTranscode, "resolve transcode source", err))
		return
	}
	sourcePath := src.LocalPath
	if sourcePath == "" {
		sourcePath = src.PresignedURL
	}

	req := stream.TranscodeRequest{
		SourcePath: sourcePath,
		Format:     stream.TranscodeFormat(format),
		Bitrate:    queryInt(c, "maxBitRate", 0),
		SeekSec:    queryFloat(c, "timeOffset", 0),
	}
	if err := stream.ServeTranscode(c, h.deps.Transcoder, req); err != nil {
		fail(c, apperr.Wrap(apperr.KindTranscode, "serve transcode", err))
	}
}

func (h *handlers) download(c *gin.Context) {
	id := queryInt64(c, "id", 0)
	backend, path, _, err := h.resolveSongPath(c, id)
	if err != nil {
		fail(c, err)
		return
	}
	if err := stream.ServeDirect(c, backend, path, "application/octet-stream"); err != nil {
		fail(c, apperr.Wrap(apperr.KindIO, "serve download", err))
	}
}

func (h *handlers) getLyricsBySongId(c *gin.Context) {
	id := queryInt64(c, "id", 0)
	lyrics, err := h.deps.Store.GetLyricsBySongID(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	list := make([]gin.H, 0, len(lyrics))
	for _, l := range lyrics {
		list = append(list, gin.H{
			"lang":     l.Language,
			"synced":   l.Synced,
			"line":     l.Content,
			"external": l.External,
		})
	}
	ok(c, gin.H{"lyricsList": gin.H{"structuredLyrics": list}})
}

func (h *handlers) scrobble(c *gin.Context) {
	user, err := middleware.CurrentUser(c)
	if err != nil {
		fail(c, err)
		return
	}
	id := queryInt64(c, "id", 0)

	var playedAt *time.Time
	if t := c.Query("time"); t != "" {
		ms, err := strconv.ParseInt(t, 10, 64)
		if err == nil {
			tm := time.UnixMilli(ms)
			playedAt = &tm
		}
	}
	if err := h.deps.Store.RecordPlayback(c.Request.Context(), user.ID, id, playedAt); err != nil {
		fail(c, err)
		return
	}
	ok(c, nil)
}

func queryFloat(c *gin.Context, key string, def float64) float64 {
	v := c.Query(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}
