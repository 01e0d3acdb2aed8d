package api

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nghego/nghego/internal/api/middleware"
	"github.com/nghego/nghego/internal/auth"
	"github.com/nghego/nghego/internal/config"
	nfs "github.com/nghego/nghego/internal/fs"
	"github.com/nghego/nghego/internal/jobs"
	"github.com/nghego/nghego/internal/library"
	"github.com/nghego/nghego/internal/models"
	"github.com/nghego/nghego/internal/playlist"
	"github.com/nghego/nghego/internal/scanner"
	"github.com/nghego/nghego/internal/search"
	"github.com/nghego/nghego/internal/stream"
)

// Deps collects the service layer every handler needs, constructed
// once at startup in cmd/nghego and threaded through explicitly rather
// than reached for via a package-level singleton.
type Deps struct {
	Store      *library.Store
	Auth       *auth.Service
	Scanner    *scanner.Service
	Search     *search.Index
	Playlist   *playlist.Store
	Queue      *jobs.Queue
	Transcoder *stream.Transcoder
	S3         config.S3Config

	// ServerSecret is the same AES key material auth.Service derives
	// for password-at-rest encryption; handlers that create/update
	// users need it directly since auth.Service keeps it unexported.
	ServerSecret string

	AuthRateCount  int
	AuthRateWindow time.Duration

	backendsMu sync.Mutex
	backends   map[int64]nfs.Backend
}

// ResolveBackend exposes backendFor to callers outside the package,
// namely cmd/nghego's job-queue backend resolver, so the scan-folder
// job handler and the HTTP handlers share one cached backend per folder.
func (d *Deps) ResolveBackend(ctx context.Context, folder models.MusicFolder) (nfs.Backend, error) {
	return d.backendFor(ctx, folder)
}

// backendFor resolves (and caches) the fs.Backend for a music folder,
// constructing an ObjectStore client lazily the first time an
// S3-backed folder is touched.
func (d *Deps) backendFor(ctx context.Context, folder models.MusicFolder) (nfs.Backend, error) {
	d.backendsMu.Lock()
	defer d.backendsMu.Unlock()
	if d.backends == nil {
		d.backends = make(map[int64]nfs.Backend)
	}
	if b, ok := d.backends[folder.ID]; ok {
		return b, nil
	}

	var backend nfs.Backend
	switch folder.Backend {
	case "s3":
		store, err := nfs.NewObjectStore(ctx, nfs.ObjectStoreConfig{
			Endpoint:   d.S3.Endpoint,
			AccessKey:  d.S3.AccessKeyID,
			SecretKey:  d.S3.SecretAccessKey,
			Bucket:     folder.Path,
			UseSSL:     d.S3.UseSSL,
			PresignTTL: d.S3.PresignTTL,
		})
		if err != nil {
			return nil, fmt.Errorf("construct object store backend for folder %d: %w", folder.ID, err)
		}
		backend = store
	default:
		backend = nfs.NewLocal()
	}
	d.backends[folder.ID] = backend
	return backend, nil
}

// NewRouter builds the gin engine: CORS, recovery, the auth+rate-limit
// middleware chain, and every Subsonic-named endpoint group.
func NewRouter(deps *Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.DefaultCORS())
	r.Use(middleware.APIRateLimit())

	h := &handlers{deps: deps}

	rest := r.Group("/rest")
	rest.GET("/ping", h.ping)
	rest.POST("/ping", h.ping)
	rest.POST("/setup", h.setup)

	authRate := middleware.AuthRateLimit(deps.AuthRateCount, deps.AuthRateWindow)
	authed := rest.Group("")
	authed.Use(authRate, middleware.RequireAuth(deps.Auth))

	authed.GET("/getMusicFolders", h.getMusicFolders)
	authed.POST("/getMusicFolders", h.getMusicFolders)
	authed.GET("/getArtists", h.getArtists)
	authed.POST("/getArtists", h.getArtists)
	authed.GET("/getArtist", h.getArtist)
	authed.POST("/getArtist", h.getArtist)
	authed.GET("/getAlbum", h.getAlbum)
	authed.POST("/getAlbum", h.getAlbum)
	authed.GET("/getSong", h.getSong)
	authed.POST("/getSong", h.getSong)
	authed.GET("/getGenres", h.getGenres)
	authed.POST("/getGenres", h.getGenres)
	authed.GET("/getAlbumList2", h.getAlbumList2)
	authed.POST("/getAlbumList2", h.getAlbumList2)
	authed.GET("/search3", h.search3)
	authed.POST("/search3", h.search3)
	authed.GET("/getRandomSongs", h.getRandomSongs)
	authed.POST("/getRandomSongs", h.getRandomSongs)
	authed.GET("/getSongsByGenre", h.getSongsByGenre)
	authed.POST("/getSongsByGenre", h.getSongsByGenre)
	authed.GET("/getTopSongs", h.getTopSongs)
	authed.POST("/getTopSongs", h.getTopSongs)

	authed.GET("/getCoverArt", h.getCoverArt)
	authed.GET("/getLyricsBySongId", h.getLyricsBySongId)
	authed.GET("/scrobble", h.scrobble)
	authed.POST("/scrobble", h.scrobble)

	authed.GET("/stream", middleware.RequireRole(auth.RoleStream), h.stream)
	authed.GET("/download", middleware.RequireRole(auth.RoleDownload), h.download)

	admin := authed.Group("")
	admin.Use(middleware.RequireRole(auth.RoleAdmin))
	admin.POST("/createUser", h.createUser)
	admin.POST("/updateUser", h.updateUser)
	admin.POST("/deleteUser", h.deleteUser)
	admin.POST("/addMusicFolder", h.addMusicFolder)
	admin.POST("/removeMusicFolder", h.removeMusicFolder)
	admin.GET("/getFolderStats", h.getFolderStats)
	admin.GET("/startScan", h.startScan)
	admin.POST("/startScan", h.startScan)

	authed.GET("/getPlaylists", h.getPlaylists)
	authed.POST("/getPlaylists", h.getPlaylists)
	authed.GET("/getPlaylist", h.getPlaylist)
	authed.POST("/getPlaylist", h.getPlaylist)
	authed.POST("/createPlaylist", h.createPlaylist)
	authed.POST("/updatePlaylist", h.updatePlaylist)
	authed.POST("/deletePlaylist", h.deletePlaylist)
	authed.POST("/addPlaylistUser", h.addPlaylistUser)
	authed.POST("/removePlaylistUser", h.removePlaylistUser)

	return r
}

type handlers struct {
	deps *Deps
}
