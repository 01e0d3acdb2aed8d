package api

import (
	"github.com/gin-gonic/gin"

	"github.com/nghego/nghego/internal/api/middleware"
	"github.com/nghego/nghego/internal/apperr"
	"github.com/nghego/nghego/internal/library"
	"github.com/nghego/nghego/internal/models"
	"github.com/nghego/nghego/internal/search"
)

func (h *handlers) ping(c *gin.Context) {
	ok(c, nil)
}

func (h *handlers) getMusicFolders(c *gin.Context) {
	folders, err := h.deps.Store.ListMusicFolders(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	type folderDTO struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	}
	list := make([]folderDTO, 0, len(folders))
	for _, f := range folders {
		list = append(list, folderDTO{ID: f.ID, Name: f.Name})
	}
	ok(c, gin.H{"musicFolders": gin.H{"musicFolder": list}})
}

func (h *handlers) explicitFolders(c *gin.Context) []int64 {
	id := c.Query("musicFolderId")
	if id == "" {
		return nil
	}
	return []int64{queryInt64(c, "musicFolderId", 0)}
}

func (h *handlers) getArtists(c *gin.Context) {
	user, err := middleware.CurrentUser(c)
	if err != nil {
		fail(c, err)
		return
	}
	artists, err := h.deps.Store.GetArtists(c.Request.Context(), user.ID, h.explicitFolders(c))
	if err != nil {
		fail(c, err)
		return
	}

	index := map[string][]any{}
	order := []string{}
	for _, a := range artists {
		if _, seen := index[a.Index]; !seen {
			order = append(order, a.Index)
		}
		index[a.Index] = append(index[a.Index], gin.H{
			"id":         a.ID,
			"name":       a.Name,
			"albumCount": a.AlbumCount,
		})
	}

	indices := make([]gin.H, 0, len(order))
	for _, idx := range order {
		indices = append(indices, gin.H{"name": idx, "artist": index[idx]})
	}
	ok(c, gin.H{"artists": gin.H{"index": indices}})
}

func (h *handlers) getArtist(c *gin.Context) {
	user, err := middleware.CurrentUser(c)
	if err != nil {
		fail(c, err)
		return
	}
	id := queryInt64(c, "id", 0)
	a, err := h.deps.Store.GetArtist(c.Request.Context(), user.ID, id, h.explicitFolders(c))
	if err != nil {
		fail(c, err)
		return
	}

	albums := make([]gin.H, 0, len(a.Albums))
	for _, al := range a.Albums {
		albums = append(albums, albumDTO(al))
	}
	ok(c, gin.H{"artist": gin.H{
		"id":         a.ID,
		"name":       a.Name,
		"albumCount": a.AlbumCount,
		"album":      albums,
	}})
}

func albumDTO(a library.AlbumID3) gin.H {
	return gin.H{
		"id":        a.ID,
		"name":      a.Name,
		"year":      a.Year,
		"songCount": a.SongCount,
	}
}

func songDTO(s models.Song) gin.H {
	return gin.H{
		"id":          s.ID,
		"title":       s.Title,
		"albumId":     s.AlbumID,
		"trackNumber": s.TrackNumber,
		"discNumber":  s.DiscNumber,
		"duration":    s.Duration,
		"suffix":      s.Format,
	}
}

func songsDTO(songs []models.Song) []gin.H {
	out := make([]gin.H, 0, len(songs))
	for _, s := range songs {
		out = append(out, songDTO(s))
	}
	return out
}

func (h *handlers) getAlbum(c *gin.Context) {
	user, err := middleware.CurrentUser(c)
	if err != nil {
		fail(c, err)
		return
	}
	id := queryInt64(c, "id", 0)
	a, err := h.deps.Store.GetAlbum(c.Request.Context(), user.ID, id, h.explicitFolders(c))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"album": gin.H{
		"id":        a.ID,
		"name":      a.Name,
		"year":      a.Year,
		"songCount": a.SongCount,
		"song":      songsDTO(a.Songs),
	}})
}

func (h *handlers) getSong(c *gin.Context) {
	user, err := middleware.CurrentUser(c)
	if err != nil {
		fail(c, err)
		return
	}
	id := queryInt64(c, "id", 0)
	s, err := h.deps.Store.GetSong(c.Request.Context(), user.ID, id, h.explicitFolders(c))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"song": songDTO(*s)})
}

func (h *handlers) getGenres(c *gin.Context) {
	user, err := middleware.CurrentUser(c)
	if err != nil {
		fail(c, err)
		return
	}
	genres, err := h.deps.Store.GetGenres(c.Request.Context(), user.ID, h.explicitFolders(c))
	if err != nil {
		fail(c, err)
		return
	}
	list := make([]gin.H, 0, len(genres))
	for _, g := range genres {
		list = append(list, gin.H{"value": g.Name})
	}
	ok(c, gin.H{"genres": gin.H{"genre": list}})
}

func (h *handlers) getAlbumList2(c *gin.Context) {
	user, err := middleware.CurrentUser(c)
	if err != nil {
		fail(c, err)
		return
	}
	q := library.AlbumListQuery{
		Mode:            library.AlbumListMode(c.DefaultQuery("type", "alphabeticalByName")),
		Size:            queryInt(c, "size", 10),
		Offset:          queryInt(c, "offset", 0),
		FromYear:        queryOptInt(c, "fromYear"),
		ToYear:          queryOptInt(c, "toYear"),
		Genre:           c.Query("genre"),
		ExplicitFolders: h.explicitFolders(c),
	}
	albums, err := h.deps.Store.GetAlbumList(c.Request.Context(), user.ID, q)
	if err != nil {
		fail(c, err)
		return
	}
	list := make([]gin.H, 0, len(albums))
	for _, a := range albums {
		list = append(list, gin.H{"id": a.ID, "name": a.Name, "year": a.Year})
	}
	ok(c, gin.H{"albumList2": gin.H{"album": list}})
}

func (h *handlers) search3(c *gin.Context) {
	user, err := middleware.CurrentUser(c)
	if err != nil {
		fail(c, err)
		return
	}
	ctx := c.Request.Context()
	query := c.Query("query")

	permitted, err := h.deps.Store.PermittedFolderIDs(ctx, user.ID)
	if err != nil {
		fail(c, err)
		return
	}

	songCount := queryInt(c, "songCount", 20)

	if query == "" {
		songs, err := h.deps.Store.AlphabeticalSearch(ctx, user.ID, songCount, queryInt(c, "songOffset", 0), h.explicitFolders(c))
		if err != nil {
			fail(c, err)
			return
		}
		ok(c, gin.H{"searchResult3": gin.H{"song": songsDTO(songs)}})
		return
	}

	results, err := h.deps.Search.Search(ctx, query, nil, permitted, songCount+queryInt(c, "artistCount", 20)+queryInt(c, "albumCount", 20))
	if err != nil {
		fail(c, err)
		return
	}

	var songIDs, albumIDs, artistIDs []int64
	for _, r := range results {
		switch r.Kind {
		case search.KindSong:
			songIDs = append(songIDs, r.ID)
		case search.KindAlbum:
			albumIDs = append(albumIDs, r.ID)
		case search.KindArtist:
			artistIDs = append(artistIDs, r.ID)
		}
	}

	songs := make([]gin.H, 0, len(songIDs))
	for _, id := range songIDs {
		s, err := h.deps.Store.GetSong(ctx, user.ID, id, nil)
		if err != nil {
			continue
		}
		songs = append(songs, songDTO(*s))
	}
	albums := make([]gin.H, 0, len(albumIDs))
	for _, id := range albumIDs {
		a, err := h.deps.Store.GetAlbum(ctx, user.ID, id, nil)
		if err != nil {
			continue
		}
		albums = append(albums, gin.H{"id": a.ID, "name": a.Name, "year": a.Year})
	}
	artists := make([]gin.H, 0, len(artistIDs))
	for _, id := range artistIDs {
		a, err := h.deps.Store.GetArtist(ctx, user.ID, id, nil)
		if err != nil {
			continue
		}
		artists = append(artists, gin.H{"id": a.ID, "name": a.Name, "albumCount": a.AlbumCount})
	}

	ok(c, gin.H{"searchResult3": gin.H{"song": songs, "album": albums, "artist": artists}})
}

func (h *handlers) getRandomSongs(c *gin.Context) {
	user, err := middleware.CurrentUser(c)
	if err != nil {
		fail(c, err)
		return
	}
	songs, err := h.deps.Store.GetRandomSongs(c.Request.Context(), user.ID, queryInt(c, "size", 10), c.Query("genre"), queryOptInt(c, "fromYear"), queryOptInt(c, "toYear"), h.explicitFolders(c))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"randomSongs": gin.H{"song": songsDTO(songs)}})
}

func (h *handlers) getSongsByGenre(c *gin.Context) {
	user, err := middleware.CurrentUser(c)
	if err != nil {
		fail(c, err)
		return
	}
	songs, err := h.deps.Store.GetSongsByGenre(c.Request.Context(), user.ID, c.Query("genre"), queryInt(c, "count", 10), queryInt(c, "offset", 0), h.explicitFolders(c))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"songsByGenre": gin.H{"song": songsDTO(songs)}})
}

func (h *handlers) getTopSongs(c *gin.Context) {
	user, err := middleware.CurrentUser(c)
	if err != nil {
		fail(c, err)
		return
	}
	artist := c.Query("artist")
	if artist == "" {
		fail(c, apperr.New(apperr.KindInvalidParameter, "missing required parameter 'artist'"))
		return
	}
	songs, err := h.deps.Store.GetTopSongs(c.Request.Context(), user.ID, artist, queryInt(c, "count", 50), h.explicitFolders(c))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"topSongs": gin.H{"song": songsDTO(songs)}})
}
