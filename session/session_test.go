package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"studio/backend"
	"studio/models"
	"studio/models/editor"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// fakeBackend plays the marketplace API: authorization check, course fetch
// and course save. Fetches echo the chapters of the last accepted save so a
// post-save refetch behaves like the real backend.
type fakeBackend struct {
	mu         sync.Mutex
	saves      []backend.SaveRequest
	failSave   bool
	authorized bool

	// When set, the save handler signals arrival and parks until released
	saveStarted chan struct{}
	saveRelease chan struct{}
	startOnce   sync.Once

	initialChapters []backend.FetchedChapter
	uploadEndpoint  string
	srv             *httptest.Server
}

func newFakeBackend(uploadEndpoint string) *fakeBackend {
	f := &fakeBackend{authorized: true, uploadEndpoint: uploadEndpoint}
	f.srv = httptest.NewServer(http.HandlerFunc(f.handle))
	return f
}

func (f *fakeBackend) handle(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/author/access":
		f.mu.Lock()
		ok := f.authorized
		f.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		fmt.Fprint(w, `{"status":true}`)

	case strings.HasSuffix(r.URL.Path, "/edit"):
		f.mu.Lock()
		course := backend.CourseResponse{
			ID:       42,
			Title:    "Test course",
			Status:   "DRAFT",
			Chapters: f.initialChapters,
			UploadConfig: backend.UploadConfig{
				Endpoint:        f.uploadEndpoint,
				ChunkSize:       4,
				ProtocolVersion: "1.0.0",
				CreatorID:       "u1",
			},
		}
		if n := len(f.saves); n > 0 {
			course.Chapters = chaptersFromSave(f.saves[n-1])
		}
		f.mu.Unlock()
		data, _ := json.Marshal(course)
		fmt.Fprintf(w, `{"status":true,"data":%s}`, data)

	case r.URL.Path == "/courses/save":
		f.mu.Lock()
		fail := f.failSave
		started := f.saveStarted
		release := f.saveRelease
		f.mu.Unlock()
		if started != nil {
			f.startOnce.Do(func() { close(started) })
		}
		if release != nil {
			<-release
		}
		if fail {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		var req backend.SaveRequest
		if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			if err := r.ParseMultipartForm(32 << 20); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			if err := json.Unmarshal([]byte(r.FormValue("data")), &req); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
		} else if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.saves = append(f.saves, req)
		f.mu.Unlock()
		fmt.Fprint(w, `{"status":true,"data":{"course_id":42}}`)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeBackend) saveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saves)
}

func (f *fakeBackend) lastSave() backend.SaveRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saves[len(f.saves)-1]
}

func chaptersFromSave(req backend.SaveRequest) []backend.FetchedChapter {
	out := make([]backend.FetchedChapter, 0, len(req.Chapters))
	for ci, ch := range req.Chapters {
		fc := backend.FetchedChapter{
			ID:          fmt.Sprintf("c%d", ci),
			Title:       ch.Title,
			Description: ch.Description,
		}
		for vi, v := range ch.Videos {
			fv := backend.FetchedVideo{
				ID:              fmt.Sprintf("c%dv%d", ci, vi),
				Title:           v.Title,
				Description:     v.Description,
				DurationSeconds: v.DurationSeconds,
			}
			if v.VideoUID != nil {
				fv.VideoUID = *v.VideoUID
			}
			fc.Videos = append(fc.Videos, fv)
		}
		out = append(out, fc)
	}
	return out
}

// fakeMedia speaks the resumable upload protocol
type fakeMedia struct {
	failPatch bool
	srv       *httptest.Server

	// When set, the first chunk signals arrival and parks until released
	patchStarted chan struct{}
	blockPatch   chan struct{}
	patchOnce    sync.Once
}

func newFakeMedia(failPatch bool) *fakeMedia {
	f := &fakeMedia{failPatch: failPatch}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			w.Header().Set("Location", "http://"+r.Host+"/files/abc")
			w.Header().Set("Stream-Media-Id", "abc123")
			w.WriteHeader(http.StatusCreated)
		case http.MethodPatch:
			if f.patchStarted != nil {
				f.patchOnce.Do(func() { close(f.patchStarted) })
			}
			if f.blockPatch != nil {
				<-f.blockPatch
			}
			if f.failPatch {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	return f
}

func openTestSession(t *testing.T, be *fakeBackend, journal *gorm.DB) *Session {
	t.Helper()
	s, err := Open(context.Background(), Options{
		CourseID:          42,
		BearerToken:       "tok",
		BackendURL:        be.srv.URL,
		Journal:           journal,
		FallbackChunkSize: 4,
		FallbackTusVer:    "1.0.0",
	})
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestOpenUnauthorizedIsFatal(t *testing.T) {
	be := newFakeBackend("")
	defer be.srv.Close()
	be.authorized = false

	_, err := Open(context.Background(), Options{CourseID: 42, BackendURL: be.srv.URL})
	assert.ErrorIs(t, err, backend.ErrNotAuthorized)
}

func TestUploadSuccessTriggersAutoSave(t *testing.T) {
	media := newFakeMedia(false)
	defer media.srv.Close()
	be := newFakeBackend(media.srv.URL)
	defer be.srv.Close()

	s := openTestSession(t, be, nil)

	ch := s.Tree.Chapters[0]
	s.EditChapter(ch.ID, "Intro", "")
	v := s.AddVideo(ch.ID)
	require.NotNil(t, v)
	s.EditVideo(ch.ID, v.ID, "Lesson 1", "")

	payload := bytes.Repeat([]byte("x"), 10)
	require.NoError(t, s.StartUpload(context.Background(), ch.ID, v.ID, bytes.NewReader(payload), int64(len(payload)), "lesson1.mp4", "video/mp4"))

	require.Eventually(t, func() bool { return be.saveCount() >= 1 }, 5*time.Second, 10*time.Millisecond)

	save := be.lastSave()
	require.Len(t, save.Chapters, 1)
	require.Len(t, save.Chapters[0].Videos, 1)
	require.NotNil(t, save.Chapters[0].Videos[0].VideoUID)
	assert.Equal(t, "abc123", *save.Chapters[0].Videos[0].VideoUID)
	assert.Empty(t, save.DeletedVideoUIDs)

	// After save and refetch the video is the server's uploaded copy
	require.Eventually(t, func() bool {
		snap := s.Snapshot()
		return len(snap.Chapters) == 1 && len(snap.Chapters[0].Videos) == 1 &&
			snap.Chapters[0].Videos[0].Status == editor.StatusUploaded
	}, 5*time.Second, 10*time.Millisecond)
	snap := s.Snapshot()
	assert.Equal(t, "abc123", snap.Chapters[0].Videos[0].MediaUID)
	assert.Empty(t, snap.PendingDeletions)
}

func TestUploadFailureSchedulesCleanup(t *testing.T) {
	media := newFakeMedia(true)
	defer media.srv.Close()
	be := newFakeBackend(media.srv.URL)
	defer be.srv.Close()

	s := openTestSession(t, be, nil)

	ch := s.Tree.Chapters[0]
	v := s.AddVideo(ch.ID)
	payload := bytes.Repeat([]byte("x"), 10)
	require.NoError(t, s.StartUpload(context.Background(), ch.ID, v.ID, bytes.NewReader(payload), int64(len(payload)), "clip.mp4", "video/mp4"))

	require.Eventually(t, func() bool { return be.saveCount() >= 1 }, 5*time.Second, 10*time.Millisecond)

	// The issued id is reclaimed through the save's deletion list
	save := be.lastSave()
	assert.Equal(t, []string{"abc123"}, save.DeletedVideoUIDs)
	require.Len(t, save.Chapters, 1)
	require.Len(t, save.Chapters[0].Videos, 1)
	assert.Nil(t, save.Chapters[0].Videos[0].VideoUID)

	require.Eventually(t, func() bool {
		snap := s.Snapshot()
		return len(snap.Chapters[0].Videos) == 1 &&
			snap.Chapters[0].Videos[0].Status == editor.StatusPending
	}, 5*time.Second, 10*time.Millisecond)
}

func TestFailedSaveKeepsStateIntact(t *testing.T) {
	be := newFakeBackend("")
	defer be.srv.Close()
	be.initialChapters = []backend.FetchedChapter{
		{ID: "c1", Title: "Intro", Videos: []backend.FetchedVideo{{ID: "v1", Title: "L1", VideoUID: "m1"}}},
	}

	s := openTestSession(t, be, nil)

	// Build up local changes, then make the save fail
	chID := s.Tree.Chapters[0].ID
	tgt, err := s.RequestDeleteVideo(chID, editor.RemoteID("v1"))
	require.NoError(t, err)
	require.NotNil(t, tgt)
	require.NoError(t, s.ConfirmDelete())

	before, err := json.Marshal(s.Snapshot())
	require.NoError(t, err)

	be.mu.Lock()
	be.failSave = true
	be.mu.Unlock()

	require.Error(t, s.Save(context.Background()))

	after, err := json.Marshal(s.Snapshot())
	require.NoError(t, err)
	assert.Equal(t, before, after, "a failed save must not change any local state")
	assert.Equal(t, []string{"m1"}, s.Snapshot().PendingDeletions)
}

func TestSuccessfulSaveClearsPendingDeletions(t *testing.T) {
	be := newFakeBackend("")
	defer be.srv.Close()
	be.initialChapters = []backend.FetchedChapter{
		{ID: "c1", Title: "Intro", Videos: []backend.FetchedVideo{{ID: "v1", Title: "L1", VideoUID: "m1"}}},
	}

	s := openTestSession(t, be, nil)

	chID := s.Tree.Chapters[0].ID
	tgt, err := s.RequestDeleteVideo(chID, editor.RemoteID("v1"))
	require.NoError(t, err)
	require.NotNil(t, tgt)
	assert.Equal(t, 1, tgt.AffectedUploads)
	require.NoError(t, s.ConfirmDelete())

	require.NoError(t, s.Save(context.Background()))

	save := be.lastSave()
	assert.Equal(t, []string{"m1"}, save.DeletedVideoUIDs)
	assert.Empty(t, s.Snapshot().PendingDeletions)
	assert.False(t, s.Dirty())
}

func TestAbortWithoutUploadIsNoOp(t *testing.T) {
	be := newFakeBackend("")
	defer be.srv.Close()

	s := openTestSession(t, be, nil)
	before, _ := json.Marshal(s.Snapshot())

	assert.Equal(t, "", s.AbortUpload(context.Background()))

	after, _ := json.Marshal(s.Snapshot())
	assert.Equal(t, before, after)
	assert.Zero(t, be.saveCount())
}

func TestJournalRecoveryOnOpen(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(t.TempDir()+"/journal.db"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.OrphanMedia{}))

	// A previous run left an unreclaimed media id behind
	require.NoError(t, db.Create(&models.OrphanMedia{CourseID: 42, MediaUID: "lost1"}).Error)
	require.NoError(t, db.Create(&models.OrphanMedia{CourseID: 42, MediaUID: "done1", Reclaimed: true}).Error)
	require.NoError(t, db.Create(&models.OrphanMedia{CourseID: 7, MediaUID: "other"}).Error)

	be := newFakeBackend("")
	defer be.srv.Close()

	s := openTestSession(t, be, db)
	assert.Equal(t, []string{"lost1"}, s.Snapshot().PendingDeletions)

	// A successful save reclaims the journal row
	require.NoError(t, s.Save(context.Background()))
	var row models.OrphanMedia
	require.NoError(t, db.Where("media_uid = ?", "lost1").First(&row).Error)
	assert.True(t, row.Reclaimed)
}

func TestManagerLifecycle(t *testing.T) {
	be := newFakeBackend("")
	defer be.srv.Close()

	m := NewManager()
	s, err := m.Open(context.Background(), Options{CourseID: 42, BackendURL: be.srv.URL})
	require.NoError(t, err)

	got, err := m.Get(s.ID)
	require.NoError(t, err)
	assert.Same(t, s, got)

	require.NoError(t, m.Close(s.ID))
	_, err = m.Get(s.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, m.Close(s.ID), ErrSessionNotFound)
}

func TestMarksAddedDuringSaveRideTheNextSave(t *testing.T) {
	be := newFakeBackend("")
	defer be.srv.Close()
	be.initialChapters = []backend.FetchedChapter{
		{ID: "c1", Title: "Intro", Videos: []backend.FetchedVideo{
			{ID: "v1", Title: "L1", VideoUID: "m1"},
			{ID: "v2", Title: "L2", VideoUID: "m2"},
		}},
	}
	be.saveStarted = make(chan struct{})
	be.saveRelease = make(chan struct{})

	s := openTestSession(t, be, nil)
	chID := s.Tree.Chapters[0].ID

	tgt, err := s.RequestDeleteVideo(chID, editor.RemoteID("v1"))
	require.NoError(t, err)
	require.NotNil(t, tgt)
	require.NoError(t, s.ConfirmDelete())

	done := make(chan error, 1)
	go func() { done <- s.Save(context.Background()) }()
	<-be.saveStarted

	// These land while the save request is on the wire; they were not part
	// of its payload and must survive its success
	tgt, err = s.RequestDeleteVideo(chID, editor.RemoteID("v2"))
	require.NoError(t, err)
	require.NotNil(t, tgt)
	require.NoError(t, s.ConfirmDelete())
	s.StageThumbnail([]byte("png-bytes"), "cover.png", "image/png")

	close(be.saveRelease)
	require.NoError(t, <-done)

	assert.Equal(t, []string{"m1"}, be.lastSave().DeletedVideoUIDs)
	snap := s.Snapshot()
	assert.Equal(t, []string{"m2"}, snap.PendingDeletions)
	assert.True(t, snap.Dirty, "unsent work must keep the session dirty")
	s.mu.Lock()
	assert.NotNil(t, s.Meta.PendingThumbnail, "a thumbnail staged mid-save must not be dropped unsent")
	s.mu.Unlock()

	// The next save carries the leftovers
	require.NoError(t, s.Save(context.Background()))
	assert.Equal(t, []string{"m2"}, be.lastSave().DeletedVideoUIDs)
	assert.Empty(t, s.Snapshot().PendingDeletions)
	s.mu.Lock()
	assert.Nil(t, s.Meta.PendingThumbnail)
	s.mu.Unlock()
}

func TestSecondStartKeepsInFlightMarker(t *testing.T) {
	media := newFakeMedia(false)
	media.patchStarted = make(chan struct{})
	media.blockPatch = make(chan struct{})
	defer media.srv.Close()
	be := newFakeBackend(media.srv.URL)
	defer be.srv.Close()

	s := openTestSession(t, be, nil)
	ch := s.Tree.Chapters[0]
	v1 := s.AddVideo(ch.ID)
	v2 := s.AddVideo(ch.ID)

	payload := bytes.Repeat([]byte("x"), 10)
	require.NoError(t, s.StartUpload(context.Background(), ch.ID, v1.ID, bytes.NewReader(payload), int64(len(payload)), "a.mp4", "video/mp4"))
	<-media.patchStarted

	err := s.StartUpload(context.Background(), ch.ID, v2.ID, bytes.NewReader(payload), int64(len(payload)), "b.mp4", "video/mp4")
	require.ErrorIs(t, err, ErrUploadInFlight)

	// The refused start must not clobber the running transfer's marker
	id, busy := s.Uploading()
	require.True(t, busy)
	assert.Equal(t, v1.ID, id)

	close(media.blockPatch)
	require.Eventually(t, func() bool {
		_, busy := s.Uploading()
		return !busy
	}, 5*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return be.saveCount() >= 1 }, 5*time.Second, 10*time.Millisecond)
}
