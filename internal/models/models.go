// Package models holds the shared entity structs for the media library:
// users, folders, permissions, and the artist/album/song/genre graph
// along with their supporting tables (cover art, lyrics, scans,
// playback, playlists).
package models

import "time"

type User struct {
	ID           int64
	Username     string
	PasswordEnc  []byte // AES-128-CBC ciphertext, 16-byte IV prefix
	Email        string
	IsAdmin      bool
	CanStream    bool
	CanDownload  bool
	CanShare     bool
	CreatedAt    time.Time
}

type MusicFolder struct {
	ID        int64
	Name      string
	Path      string // local path or object-store prefix
	Backend   string // "local" or "s3"
	Watch     bool
	CreatedAt time.Time
}

type UserMusicFolderPermission struct {
	UserID        int64
	MusicFolderID int64
}

// Artist is a top-level named performer or ensemble.
type Artist struct {
	ID            int64
	Name          string
	SortName      string
	MusicBrainzID string
	// Index is the derived index character (uppercase letter, "#", or
	// "*"); "?" is the not-yet-computed sentinel assigned at insert.
	Index     string
	CoverArtID *int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Album struct {
	ID            int64
	MusicFolderID int64
	Name          string
	SortName      string
	MusicBrainzID string
	Year          *int
	Month         *int
	Day           *int
	CoverArtID    *int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Song struct {
	ID            int64
	MusicFolderID int64
	AlbumID       *int64
	RelativePath  string
	Title         string
	SortTitle     string
	MusicBrainzID string
	TrackNumber   *int
	DiscNumber    *int
	DiscSubtitle  string
	Duration      float64 // seconds
	Bitrate       int
	SampleRate    int
	Channels      int
	Format        string // container/codec, e.g. "flac", "mp3"
	FileSize      int64
	FileHash      uint64 // xxhash64 of file contents
	FileModified  time.Time
	Compilation   bool
	CoverArtID    *int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type SongArtist struct {
	SongID     int64
	ArtistID   int64
	Position   int
	UpsertedAt time.Time
}

// SongAlbumArtist ties a song to an album-artist (distinct from the
// song-level performing artist; see Compilation normalization).
type SongAlbumArtist struct {
	SongID     int64
	ArtistID   int64
	Position   int
	UpsertedAt time.Time
}

type Genre struct {
	ID   int64
	Name string
}

type SongGenre struct {
	SongID     int64
	GenreID    int64
	UpsertedAt time.Time
}

// CoverArt is content-addressed: the same image bytes stored once.
type CoverArt struct {
	ID     int64
	Hash   uint64
	Size   int64
	Format string // "jpeg" or "png"
	Data   []byte
}

type Lyric struct {
	ID          int64
	SongID      int64
	Description string
	Language    string
	External    bool
	Synced      bool
	Content     string // plain text, or newline-joined [mm:ss.xx] lines when Synced
}

type ScanStatus string

const (
	ScanStatusRunning              ScanStatus = "running"
	ScanStatusCompleted            ScanStatus = "completed"
	ScanStatusFailedRecoverable    ScanStatus = "failed_recoverable"
	ScanStatusFailedUnrecoverable  ScanStatus = "failed_unrecoverable"
)

type Scan struct {
	ID            int64
	MusicFolderID int64
	StartedAt     time.Time
	FinishedAt    *time.Time
	Status        ScanStatus
	FilesSeen     int
	FilesAdded    int
	FilesUpdated  int
	FilesRemoved  int
	Errors        int
	LastError     string
}

type Playback struct {
	ID       int64
	UserID   int64
	SongID   int64
	PlayedAt time.Time
}

type Playlist struct {
	ID        int64
	OwnerID   int64
	Name      string
	Comment   string
	Public    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

type PlaylistSong struct {
	PlaylistID int64
	SongID     int64
	Position   int
}

// PlaylistUser grants a non-owner collaborator edit or view access.
type PlaylistUser struct {
	PlaylistID int64
	UserID     int64
	CanEdit    bool
}
