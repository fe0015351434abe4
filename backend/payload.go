package backend

import (
	"time"

	"studio/models/editor"
	"studio/store"
)

// SaveVideo is one video entry in the save payload. VideoUID is null until an
// upload finished for it.
type SaveVideo struct {
	Title           string  `json:"title"`
	Description     string  `json:"description"`
	VideoUID        *string `json:"video_uid"`
	Position        int     `json:"position"`
	DurationSeconds int     `json:"duration_seconds"`
}

// SaveChapter is one chapter entry in the save payload
type SaveChapter struct {
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Position    int         `json:"position"`
	Videos      []SaveVideo `json:"videos"`
}

// SaveRequest is the single atomic request representing the whole course:
// metadata, the full content tree in order, and every media id owed a delete.
// Saves are snapshots, not deltas, so overlapping saves converge.
type SaveRequest struct {
	CourseID         uint          `json:"course_id"`
	Title            string        `json:"title"`
	Description      string        `json:"description"`
	Price            float64       `json:"price"`
	SalePrice        float64       `json:"sale_price"`
	SaleExpiration   *time.Time    `json:"sale_expiration"`
	Status           string        `json:"status"`
	Chapters         []SaveChapter `json:"chapters"`
	DeletedVideoUIDs []string      `json:"deleted_video_uids"`
}

// BuildSaveRequest serializes course metadata plus the tree into a save
// request. overrideDeletions, when non-nil, replaces the tree's pending set,
// for folding in a media id from an upload aborted moments ago.
func BuildSaveRequest(meta editor.CourseMeta, tree *store.Tree, overrideDeletions []string) SaveRequest {
	deleted := overrideDeletions
	if deleted == nil {
		deleted = tree.PendingDeletions()
	}
	if deleted == nil {
		deleted = []string{}
	}

	chapters := make([]SaveChapter, 0, len(tree.Chapters))
	for ci, ch := range tree.Chapters {
		sc := SaveChapter{
			Title:       ch.Title,
			Description: ch.Description,
			Position:    ci,
			Videos:      make([]SaveVideo, 0, len(ch.Videos)),
		}
		for vi, v := range ch.Videos {
			sv := SaveVideo{
				Title:           v.Title,
				Description:     v.Description,
				Position:        vi,
				DurationSeconds: v.DurationSeconds,
			}
			if v.MediaUID != "" {
				uid := v.MediaUID
				sv.VideoUID = &uid
			}
			sc.Videos = append(sc.Videos, sv)
		}
		chapters = append(chapters, sc)
	}

	return SaveRequest{
		CourseID:         meta.ID,
		Title:            meta.Title,
		Description:      meta.Description,
		Price:            meta.Price,
		SalePrice:        meta.SalePrice,
		SaleExpiration:   meta.SaleExpiration,
		Status:           meta.Status,
		Chapters:         chapters,
		DeletedVideoUIDs: deleted,
	}
}

// FetchedVideo is a video as reported by the course fetch endpoint
type FetchedVideo struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Description     string `json:"description"`
	VideoUID        string `json:"video_uid"`
	DurationSeconds int    `json:"duration_seconds"`
}

// FetchedChapter is a chapter as reported by the course fetch endpoint
type FetchedChapter struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Videos      []FetchedVideo `json:"videos"`
}

// UploadConfig carries the upload parameters the backend hands out alongside
// the course. The studio forwards them to the upload client as-is.
type UploadConfig struct {
	Endpoint        string   `json:"endpoint"`
	ChunkSize       int      `json:"chunk_size"`
	ProtocolVersion string   `json:"protocol_version"`
	AllowedOrigins  []string `json:"allowed_origins"`
	CreatorID       string   `json:"creator_id"`
}

// CourseResponse is the full course fetch result
type CourseResponse struct {
	ID             uint             `json:"id"`
	Title          string           `json:"title"`
	Description    string           `json:"description"`
	Price          float64          `json:"price"`
	SalePrice      float64          `json:"sale_price"`
	SaleExpiration *time.Time       `json:"sale_expiration"`
	ThumbnailURL   string           `json:"thumbnail_url"`
	Status         string           `json:"status"`
	Chapters       []FetchedChapter `json:"chapters"`
	UploadConfig   UploadConfig     `json:"upload_config"`
}

// Meta extracts the editable course metadata
func (r *CourseResponse) Meta() editor.CourseMeta {
	return editor.CourseMeta{
		ID:             r.ID,
		Title:          r.Title,
		Description:    r.Description,
		Price:          r.Price,
		SalePrice:      r.SalePrice,
		SaleExpiration: r.SaleExpiration,
		ThumbnailURL:   r.ThumbnailURL,
		Status:         r.Status,
	}
}

// EditorChapters converts the fetched tree into the editor model. Ids become
// remote-tagged; order and status are re-derived by the tree store on replace.
func (r *CourseResponse) EditorChapters() []*editor.Chapter {
	chapters := make([]*editor.Chapter, 0, len(r.Chapters))
	for _, fc := range r.Chapters {
		ch := &editor.Chapter{
			ID:          editor.RemoteID(fc.ID),
			Title:       fc.Title,
			Description: fc.Description,
			Videos:      make([]*editor.Video, 0, len(fc.Videos)),
		}
		for _, fv := range fc.Videos {
			ch.Videos = append(ch.Videos, &editor.Video{
				ID:              editor.RemoteID(fv.ID),
				Title:           fv.Title,
				Description:     fv.Description,
				MediaUID:        fv.VideoUID,
				DurationSeconds: fv.DurationSeconds,
			})
		}
		chapters = append(chapters, ch)
	}
	return chapters
}
