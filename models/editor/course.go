package editor

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// VideoStatus tracks where a video's media upload currently stands
type VideoStatus string

const (
	StatusPending   VideoStatus = "PENDING"
	StatusUploading VideoStatus = "UPLOADING"
	StatusUploaded  VideoStatus = "UPLOADED"
	StatusFailed    VideoStatus = "FAILED"
)

// EntityID identifies a chapter or video. Ids are client-generated until the
// first successful save round-trip, after which the server's id takes over.
// The prefix records which id space the value belongs to.
type EntityID string

// NewLocalID generates a client-side id for a freshly added entity
func NewLocalID() EntityID {
	return EntityID("local:" + uuid.NewString())
}

// RemoteID wraps a server-assigned identifier
func RemoteID(raw string) EntityID {
	return EntityID("remote:" + raw)
}

// IsLocal reports whether the id was generated client-side
func (id EntityID) IsLocal() bool {
	return strings.HasPrefix(string(id), "local:")
}

// Value returns the bare identifier without the id-space prefix
func (id EntityID) Value() string {
	if i := strings.IndexByte(string(id), ':'); i >= 0 {
		return string(id)[i+1:]
	}
	return string(id)
}

// Video is a single media unit within a chapter. MediaUID is set as soon as
// upload negotiation returns an id, before any bytes are transferred, so an
// aborted or failed transfer can still be cleaned up server-side.
type Video struct {
	ID              EntityID    `json:"id"`
	Title           string      `json:"title"`
	Description     string      `json:"description"`
	Order           int         `json:"order"`
	Status          VideoStatus `json:"status"`
	MediaUID        string      `json:"media_uid,omitempty"`
	DurationSeconds int         `json:"duration_seconds,omitempty"`
	Progress        int         `json:"progress"` // Upload percentage, advisory only
}

// Chapter is a named, ordered grouping of videos
type Chapter struct {
	ID          EntityID `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Order       int      `json:"order"`
	Videos      []*Video `json:"videos"`
}

// Thumbnail holds a staged thumbnail upload kept in memory until the next save
type Thumbnail struct {
	Data     []byte `json:"-"`
	Filename string `json:"filename"`
	MimeType string `json:"mime_type"`
}

// CourseMeta carries the course-level fields edited alongside the content tree
type CourseMeta struct {
	ID               uint       `json:"id"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	Price            float64    `json:"price"`
	SalePrice        float64    `json:"sale_price"`
	SaleExpiration   *time.Time `json:"sale_expiration,omitempty"`
	ThumbnailURL     string     `json:"thumbnail_url"`
	Status           string     `json:"status"` // DRAFT, PUBLISHED
	PendingThumbnail *Thumbnail `json:"-"`
}
