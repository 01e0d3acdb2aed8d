// Package library implements the upsert engine that writes scanned
// tags into the relational schema, and the permission-filtered query
// layer every browse/search/stream endpoint reads through.
package library

import (
	"strconv"
	"strings"
)

// permissionFilter returns the SQL fragment restricting a query to
// folders the user may see, plus its bind arguments, to be appended
// after an existing WHERE/AND. argOffset is the next available
// placeholder index ($N).
//
// The browse, list and search queries in query.go compose this filter
// with any explicit folder restriction and the query's own domain
// predicate. Lookups by id or path that serve cover art, lyrics and the
// scanner (GetSongCoverArtID, GetAlbumCoverArtID, GetLyricsBySongID,
// DetectLyricLanguage, GetSongByPath) do not apply it.
func permissionFilter(folderColumn string, userID int64, explicitFolderIDs []int64, argOffset int) (string, []interface{}, int) {
	var b strings.Builder
	args := []interface{}{}
	n := argOffset

	b.WriteString("EXISTS (SELECT 1 FROM user_music_folder_permissions ump WHERE ump.user_id = $")
	b.WriteString(strconv.Itoa(n))
	b.WriteString(" AND ump.music_folder_id = ")
	b.WriteString(folderColumn)
	b.WriteString(")")
	args = append(args, userID)
	n++

	if len(explicitFolderIDs) > 0 {
		b.WriteString(" AND ")
		b.WriteString(folderColumn)
		b.WriteString(" = ANY($")
		b.WriteString(strconv.Itoa(n))
		b.WriteString(")")
		args = append(args, explicitFolderIDs)
		n++
	}

	return b.String(), args, n
}
