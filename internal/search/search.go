// Package search provides full-text search over artists, albums, and
// songs using a bleve index, grounded on the teacher's
// internal/search/search.go field-mapped document shape and boosted
// disjunction query builder.
package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/nghego/nghego/internal/apperr"
	"github.com/nghego/nghego/internal/models"
)

// DocKind distinguishes the three indexed entity types in one index.
type DocKind string

const (
	KindArtist DocKind = "artist"
	KindAlbum  DocKind = "album"
	KindSong   DocKind = "song"
)

// Document is the bleve-indexed projection of an artist, album, or
// song. MusicFolderID is not used in the query itself; Search checks it
// against the permitted folders after the query returns, since bleve
// itself has no folder-ACL concept.
type Document struct {
	ID            string
	Kind          DocKind
	Title         string
	Artist        string
	Album         string
	AlbumArtist   string
	Genre         string
	Year          int
	MusicFolderID int64
}

type Index struct {
	idx bleve.Index
}

func buildMapping() mapping.IndexMapping {
	docMapping := bleve.NewDocumentMapping()

	text := bleve.NewTextFieldMapping()
	text.Analyzer = "standard"

	for _, field := range []string{"Title", "Artist", "Album", "AlbumArtist", "Genre", "Kind"} {
		docMapping.AddFieldMappingsAt(field, text)
	}

	im := bleve.NewIndexMapping()
	im.DefaultMapping = docMapping
	return im
}

func New(path string) (*Index, error) {
	idx, err := bleve.Open(path)
	if err == nil {
		return &Index{idx: idx}, nil
	}
	idx, err = bleve.New(path, buildMapping())
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "open search index", err)
	}
	return &Index{idx: idx}, nil
}

func (i *Index) Close() error { return i.idx.Close() }

func (i *Index) IndexDocument(d Document) error {
	return i.idx.Index(d.ID, d)
}

func (i *Index) DeleteDocument(id string) error {
	return i.idx.Delete(id)
}

// RebuildIndex re-indexes every artist, album, and song from the
// given rows in one batch. Nothing in the repository calls it; the
// scanner indexes each song as it is processed.
func (i *Index) RebuildIndex(ctx context.Context, artists []models.Artist, albums []models.Album, songs []models.Song, songArtist map[int64]string, songAlbum map[int64]string) error {
	batch := i.idx.NewBatch()
	for _, a := range artists {
		batch.Index(fmt.Sprintf("artist:%d", a.ID), Document{
			ID: fmt.Sprintf("artist:%d", a.ID), Kind: KindArtist, Title: a.Name,
		})
	}
	for _, al := range albums {
		batch.Index(fmt.Sprintf("album:%d", al.ID), Document{
			ID: fmt.Sprintf("album:%d", al.ID), Kind: KindAlbum, Title: al.Name,
			MusicFolderID: al.MusicFolderID,
		})
	}
	for _, s := range songs {
		batch.Index(fmt.Sprintf("song:%d", s.ID), Document{
			ID: fmt.Sprintf("song:%d", s.ID), Kind: KindSong, Title: s.Title,
			Artist: songArtist[s.ID], Album: songAlbum[s.ID], MusicFolderID: s.MusicFolderID,
		})
	}
	return i.idx.Batch(batch)
}

// Result is one hit, resolved back to its domain id and kind.
type Result struct {
	Kind DocKind
	ID   int64
}

// Search runs a boosted disjunction query across title/artist/album
// fields, then drops any hit whose MusicFolderID is not in permitted
// (the permission post-filter bleve cannot express itself).
func (i *Index) Search(ctx context.Context, q string, kinds []DocKind, permitted map[int64]struct{}, size int) ([]Result, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, nil
	}

	titleQ := bleve.NewMatchQuery(q)
	titleQ.SetField("Title")
	titleQ.SetBoost(3)

	artistQ := bleve.NewMatchQuery(q)
	artistQ.SetField("Artist")
	artistQ.SetBoost(2)

	albumQ := bleve.NewMatchQuery(q)
	albumQ.SetField("Album")
	albumQ.SetBoost(1.5)

	disjunction := bleve.NewDisjunctionQuery(titleQ, artistQ, albumQ)

	req := bleve.NewSearchRequestOptions(disjunction, size*4, 0, false)
	req.Fields = []string{"Kind", "MusicFolderID"}

	res, err := i.idx.Search(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "search", err)
	}

	wantKind := map[DocKind]struct{}{}
	for _, k := range kinds {
		wantKind[k] = struct{}{}
	}

	var out []Result
	for _, hit := range res.Hits {
		kindVal, _ := hit.Fields["Kind"].(string)
		kind := DocKind(kindVal)
		if len(wantKind) > 0 {
			if _, ok := wantKind[kind]; !ok {
				continue
			}
		}
		if folderVal, ok := hit.Fields["MusicFolderID"]; ok && folderVal != nil {
			folderID := int64(folderVal.(float64))
			if folderID != 0 {
				if _, ok := permitted[folderID]; !ok {
					continue
				}
			}
		}
		var id int64
		parts := strings.SplitN(hit.ID, ":", 2)
		if len(parts) == 2 {
			fmt.Sscanf(parts[1], "%d", &id)
		}
		out = append(out, Result{Kind: kind, ID: id})
		if len(out) >= size {
			break
		}
	}
	return out, nil
}
