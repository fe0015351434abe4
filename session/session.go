package session

import (
	"context"
	"fmt"
	"io"
	"log"
	"strconv"
	"sync"
	"time"

	"studio/backend"
	"studio/models/editor"
	"studio/store"
	"studio/upload"

	"github.com/google/uuid"
	"github.com/jinzhu/now"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

var (
	// ErrVideoNotFound is returned when an upload targets a missing video
	ErrVideoNotFound = store.ErrVideoNotFound
	// ErrUploadInFlight mirrors the upload client's single-transfer rule
	ErrUploadInFlight = upload.ErrUploadInFlight
)

// Options configures a new editor session
type Options struct {
	CourseID    uint
	BearerToken string
	BackendURL  string

	// Journal may be nil; cleanup obligations then live only in memory
	Journal *gorm.DB

	// Fallbacks for when the backend's upload config omits a field
	FallbackChunkSize int
	FallbackTusVer    string

	// AutoSaveSpec enables the periodic auto-save when non-empty
	AutoSaveSpec string
}

// Session owns the editing state for one open course: the content tree, the
// confirmation guard, the single upload slot and the save loop. All state is
// created when the editor opens and discarded when it closes; nothing here is
// process-wide.
type Session struct {
	ID       string
	CourseID uint

	mu    sync.Mutex
	Meta  editor.CourseMeta
	Tree  *store.Tree
	Guard *store.Guard

	api      *backend.Client
	uploader *upload.Client
	journal  *gorm.DB

	uploadingVideo editor.EntityID
	dirty          bool
	cron           *cron.Cron
}

// Open authorizes the user, fetches the course and builds a ready session.
// An authorization failure is fatal and surfaced as backend.ErrNotAuthorized.
func Open(ctx context.Context, opts Options) (*Session, error) {
	api := backend.NewClient(opts.BackendURL, opts.BearerToken)
	if err := api.CheckAuthorization(ctx); err != nil {
		return nil, err
	}
	course, err := api.FetchCourse(ctx, opts.CourseID)
	if err != nil {
		return nil, err
	}

	uploadCfg := upload.Config{
		Endpoint:   course.UploadConfig.Endpoint,
		ChunkSize:  course.UploadConfig.ChunkSize,
		TusVersion: course.UploadConfig.ProtocolVersion,
		CreatorID:  course.UploadConfig.CreatorID,
	}
	if uploadCfg.ChunkSize <= 0 {
		uploadCfg.ChunkSize = opts.FallbackChunkSize
	}
	if uploadCfg.TusVersion == "" {
		uploadCfg.TusVersion = opts.FallbackTusVer
	}

	tree := store.NewTree()
	tree.ReplaceTree(course.EditorChapters())

	s := &Session{
		ID:       uuid.NewString(),
		CourseID: opts.CourseID,
		Meta:     course.Meta(),
		Tree:     tree,
		Guard:    store.NewGuard(tree),
		api:      api,
		uploader: upload.NewClient(uploadCfg),
		journal:  opts.Journal,
	}

	// Cleanup obligations recorded by an earlier run come back into the set
	for _, uid := range unreclaimedOrphans(s.journal, s.CourseID) {
		s.Tree.MarkForDeletion(uid)
	}

	if opts.AutoSaveSpec != "" {
		s.cron = cron.New()
		if _, err := s.cron.AddFunc(opts.AutoSaveSpec, s.autoSaveTick); err != nil {
			log.Printf("[SESSION %s] invalid auto-save spec %q: %v", s.ID, opts.AutoSaveSpec, err)
		} else {
			s.cron.Start()
		}
	}
	return s, nil
}

// Close stops the scheduler and aborts any in-flight transfer. A media id
// reclaimed here is journaled so the next session can delete it server-side.
func (s *Session) Close() {
	if s.cron != nil {
		s.cron.Stop()
	}
	if uid := s.uploader.Abort(); uid != "" {
		recordOrphans(s.journal, s.CourseID, []string{uid})
	}
}

// AddChapter appends a chapter
func (s *Session) AddChapter() *editor.Chapter {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirty = true
	return s.Tree.AddChapter()
}

// AddVideo appends a pending video to a chapter
func (s *Session) AddVideo(chapterID editor.EntityID) *editor.Video {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirty = true
	return s.Tree.AddVideo(chapterID)
}

// MoveChapter nudges a chapter up or down
func (s *Session) MoveChapter(chapterID editor.EntityID, dir store.Direction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirty = true
	s.Tree.MoveChapter(chapterID, dir)
}

// MoveVideo nudges a video up or down within its chapter
func (s *Session) MoveVideo(chapterID, videoID editor.EntityID, dir store.Direction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirty = true
	s.Tree.MoveVideo(chapterID, videoID, dir)
}

// EditChapter updates a chapter's title and description
func (s *Session) EditChapter(chapterID editor.EntityID, title, description string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirty = true
	s.Tree.EditChapter(chapterID, title, description)
}

// EditVideo updates a video's title and description
func (s *Session) EditVideo(chapterID, videoID editor.EntityID, title, description string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirty = true
	s.Tree.EditVideo(chapterID, videoID, title, description)
}

// RequestDeleteChapter runs the confirmation guard for a chapter delete.
// A nil target means the delete already happened (nothing uploaded inside).
func (s *Session) RequestDeleteChapter(chapterID editor.EntityID) (*store.DeleteTarget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	before := s.Tree.PendingDeletions()
	target, err := s.Guard.RequestDeleteChapter(chapterID)
	if err != nil {
		return nil, err
	}
	if target == nil {
		s.dirty = true
		s.journalNewOrphansLocked(before)
	}
	return target, nil
}

// RequestDeleteVideo runs the confirmation guard for a video delete
func (s *Session) RequestDeleteVideo(chapterID, videoID editor.EntityID) (*store.DeleteTarget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	before := s.Tree.PendingDeletions()
	target, err := s.Guard.RequestDeleteVideo(chapterID, videoID)
	if err != nil {
		return nil, err
	}
	if target == nil {
		s.dirty = true
		s.journalNewOrphansLocked(before)
	}
	return target, nil
}

// ConfirmDelete executes the parked deletion
func (s *Session) ConfirmDelete() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	before := s.Tree.PendingDeletions()
	if err := s.Guard.Confirm(); err != nil {
		return err
	}
	s.dirty = true
	s.journalNewOrphansLocked(before)
	return nil
}

// CancelDelete discards the parked deletion
func (s *Session) CancelDelete() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Guard.Cancel()
}

// SetMetadata updates the course-level fields. Sale expirations are
// normalized to the end of their day.
func (s *Session) SetMetadata(meta editor.CourseMeta) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if meta.SaleExpiration != nil {
		eod := now.With(*meta.SaleExpiration).EndOfDay()
		meta.SaleExpiration = &eod
	}
	meta.ID = s.Meta.ID
	meta.ThumbnailURL = s.Meta.ThumbnailURL
	meta.PendingThumbnail = s.Meta.PendingThumbnail
	s.Meta = meta
	s.dirty = true
}

// StageThumbnail holds a new thumbnail in memory until the next save
func (s *Session) StageThumbnail(data []byte, filename, mimeType string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Meta.PendingThumbnail = &editor.Thumbnail{Data: data, Filename: filename, MimeType: mimeType}
	s.dirty = true
}

// StartUpload begins the resumable transfer for one video's media. Only one
// transfer may run per session; callers get ErrUploadInFlight otherwise.
func (s *Session) StartUpload(ctx context.Context, chapterID, videoID editor.EntityID, src io.ReadSeeker, size int64, filename, mimeType string) error {
	s.mu.Lock()
	v := s.Tree.FindVideo(chapterID, videoID)
	if v == nil {
		s.mu.Unlock()
		return ErrVideoNotFound
	}
	// uploadingVideo is checked alongside the uploader so two racing start
	// requests cannot both pass; the loser must not touch the winner's marker
	if s.uploadingVideo != "" || s.uploader.Active() {
		s.mu.Unlock()
		return ErrUploadInFlight
	}
	v.Status = editor.StatusUploading
	v.Progress = 0
	s.uploadingVideo = videoID
	metadata := map[string]string{
		"name":      filename,
		"filetype":  mimeType,
		"title":     v.Title,
		"chapter":   chapterID.Value(),
		"video":     videoID.Value(),
		"course_id": strconv.FormatUint(uint64(s.CourseID), 10),
	}
	s.mu.Unlock()

	cb := upload.Callbacks{
		// The id is known before any bytes move; record it right away so a
		// later abort or failure can be cleaned up
		OnNegotiated: func(mediaUID string) {
			s.mu.Lock()
			if v := s.Tree.FindVideo(chapterID, videoID); v != nil {
				v.MediaUID = mediaUID
			}
			s.mu.Unlock()
		},
		OnProgress: func(percent int) {
			s.mu.Lock()
			if v := s.Tree.FindVideo(chapterID, videoID); v != nil {
				v.Progress = percent
			}
			s.mu.Unlock()
		},
		OnComplete: func(mediaUID string, durationSeconds int) {
			s.onUploadComplete(chapterID, videoID, mediaUID, durationSeconds)
		},
		OnFailure: func(mediaUID string, err error) {
			s.onUploadFailure(chapterID, videoID, mediaUID, err)
		},
	}
	if err := s.uploader.Start(ctx, src, size, metadata, cb); err != nil {
		s.mu.Lock()
		if v := s.Tree.FindVideo(chapterID, videoID); v != nil {
			v.Status = editor.StatusPending
		}
		if s.uploadingVideo == videoID {
			s.uploadingVideo = ""
		}
		s.mu.Unlock()
		return err
	}
	return nil
}

// AbortUpload cancels the in-flight transfer. An already-allocated media id
// goes straight into the pending-deletion set and an immediate save persists
// the cleanup obligation.
func (s *Session) AbortUpload(ctx context.Context) string {
	uid := s.uploader.Abort()
	s.mu.Lock()
	if s.uploadingVideo != "" {
		for _, ch := range s.Tree.Chapters {
			for _, v := range ch.Videos {
				if v.ID == s.uploadingVideo {
					v.Status = editor.StatusPending
					v.Progress = 0
					v.MediaUID = ""
				}
			}
		}
		s.uploadingVideo = ""
	}
	if uid != "" {
		s.Tree.MarkForDeletion(uid)
	}
	s.mu.Unlock()
	if uid != "" {
		recordOrphans(s.journal, s.CourseID, []string{uid})
		if err := s.save(ctx, nil); err != nil {
			log.Printf("[SESSION %s] save after abort failed: %v", s.ID, err)
		}
	}
	return uid
}

// Save pushes the whole course to the backend on explicit user request
func (s *Session) Save(ctx context.Context) error {
	return s.save(ctx, nil)
}

// SaveWithDeletions saves with an explicit deletion list in place of the
// tree's pending set, for ids not yet reflected in committed state
func (s *Session) SaveWithDeletions(ctx context.Context, deletions []string) error {
	return s.save(ctx, deletions)
}

// Snapshot is a consistent copy of the session state for the UI
type Snapshot struct {
	SessionID        string              `json:"session_id"`
	CourseID         uint                `json:"course_id"`
	Meta             editor.CourseMeta   `json:"meta"`
	Chapters         []*editor.Chapter   `json:"chapters"`
	PendingDeletions []string            `json:"pending_deletions"`
	GuardState       store.GuardState    `json:"guard_state"`
	PendingDelete    *store.DeleteTarget `json:"pending_delete,omitempty"`
	UploadingVideo   editor.EntityID     `json:"uploading_video,omitempty"`
	Dirty            bool                `json:"dirty"`
}

// Snapshot copies the current state out under the lock
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	chapters := make([]*editor.Chapter, 0, len(s.Tree.Chapters))
	for _, ch := range s.Tree.Chapters {
		cc := *ch
		cc.Videos = make([]*editor.Video, 0, len(ch.Videos))
		for _, v := range ch.Videos {
			vv := *v
			cc.Videos = append(cc.Videos, &vv)
		}
		chapters = append(chapters, &cc)
	}
	snap := Snapshot{
		SessionID:        s.ID,
		CourseID:         s.CourseID,
		Meta:             s.Meta,
		Chapters:         chapters,
		PendingDeletions: s.Tree.PendingDeletions(),
		GuardState:       s.Guard.State(),
		PendingDelete:    s.Guard.Pending(),
		Dirty:            s.dirty,
	}
	if s.uploader.Active() {
		snap.UploadingVideo = s.uploadingVideo
	}
	return snap
}

// Dirty reports whether unsaved changes exist
func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// Uploading reports whether a transfer is in flight and for which video
func (s *Session) Uploading() (editor.EntityID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.uploader.Active() {
		return "", false
	}
	return s.uploadingVideo, true
}

func (s *Session) onUploadComplete(chapterID, videoID editor.EntityID, mediaUID string, durationSeconds int) {
	s.mu.Lock()
	if v := s.Tree.FindVideo(chapterID, videoID); v != nil {
		v.MediaUID = mediaUID
		v.Status = editor.StatusUploaded
		v.Progress = 100
		if durationSeconds > 0 {
			v.DurationSeconds = durationSeconds
		}
	} else {
		// Video was removed while its upload ran; the media is orphaned
		s.Tree.MarkForDeletion(mediaUID)
		recordOrphans(s.journal, s.CourseID, []string{mediaUID})
	}
	s.uploadingVideo = ""
	s.dirty = true
	s.mu.Unlock()

	// Record the new association server-side right away
	if err := s.save(context.Background(), nil); err != nil {
		log.Printf("[SESSION %s] save after upload failed: %v", s.ID, err)
	}
}

func (s *Session) onUploadFailure(chapterID, videoID editor.EntityID, mediaUID string, err error) {
	log.Printf("[SESSION %s] upload failed for video %s: %v", s.ID, videoID.Value(), err)
	s.mu.Lock()
	if v := s.Tree.FindVideo(chapterID, videoID); v != nil {
		v.Status = editor.StatusPending
		v.Progress = 0
		v.MediaUID = "" // the media is orphaned, the video no longer owns it
	}
	if mediaUID != "" {
		s.Tree.MarkForDeletion(mediaUID)
	}
	s.uploadingVideo = ""
	s.mu.Unlock()

	if mediaUID != "" {
		recordOrphans(s.journal, s.CourseID, []string{mediaUID})
		if err := s.save(context.Background(), nil); err != nil {
			log.Printf("[SESSION %s] save after failed upload did not go through: %v", s.ID, err)
		}
	}
}

// save serializes the current snapshot and sends it. On success the
// transmitted deletion ids leave the pending set and the tree is refreshed
// wholesale from the backend; on failure everything stays put for a retry.
func (s *Session) save(ctx context.Context, overrideDeletions []string) error {
	s.mu.Lock()
	req := backend.BuildSaveRequest(s.Meta, s.Tree, overrideDeletions)
	thumbnail := s.Meta.PendingThumbnail
	s.mu.Unlock()

	resp, err := s.api.SaveCourse(ctx, req, thumbnail)
	if err != nil {
		return fmt.Errorf("course save: %w", err)
	}

	s.mu.Lock()
	// Only what this request carried is confirmed. Deletion ids and a
	// thumbnail staged while the request was in flight ride the next save.
	s.Tree.RemovePendingDeletions(req.DeletedVideoUIDs)
	if s.Meta.PendingThumbnail == thumbnail {
		s.Meta.PendingThumbnail = nil
	}
	if s.Meta.ID == 0 && resp.CourseID != 0 {
		s.Meta.ID = resp.CourseID
		s.CourseID = resp.CourseID
	}
	// Leftovers keep the session dirty so the auto-saver retries them
	s.dirty = len(s.Tree.PendingDeletions()) > 0 || s.Meta.PendingThumbnail != nil
	s.mu.Unlock()
	reclaimOrphans(s.journal, s.CourseID, req.DeletedVideoUIDs)

	course, err := s.api.FetchCourse(ctx, s.CourseID)
	if err != nil {
		// The save itself went through; stay on the optimistic state
		log.Printf("[SESSION %s] refetch after save failed: %v", s.ID, err)
		return nil
	}
	s.mu.Lock()
	thumbPending := s.Meta.PendingThumbnail
	s.Meta = course.Meta()
	s.Meta.PendingThumbnail = thumbPending
	s.Tree.ReplaceTree(course.EditorChapters())
	s.mu.Unlock()
	return nil
}

// autoSaveTick runs on the cron schedule and saves only when needed
func (s *Session) autoSaveTick() {
	if !s.Dirty() {
		return
	}
	if _, busy := s.Uploading(); busy {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.save(ctx, nil); err != nil {
		log.Printf("[SESSION %s] periodic save failed: %v", s.ID, err)
	}
}

// journalNewOrphansLocked persists pending-deletion ids added since before.
// Caller holds the session lock.
func (s *Session) journalNewOrphansLocked(before []string) {
	seen := make(map[string]struct{}, len(before))
	for _, uid := range before {
		seen[uid] = struct{}{}
	}
	var added []string
	for _, uid := range s.Tree.PendingDeletions() {
		if _, ok := seen[uid]; !ok {
			added = append(added, uid)
		}
	}
	recordOrphans(s.journal, s.CourseID, added)
}
