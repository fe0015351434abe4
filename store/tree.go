package store

import (
	"errors"
	"sort"
	"strings"

	"studio/models/editor"
)

var (
	// ErrLastChapter is returned when a delete would leave the course without any chapter
	ErrLastChapter = errors.New("a course must have at least one chapter")
	// ErrChapterNotFound is returned when an operation addresses an unknown chapter
	ErrChapterNotFound = errors.New("chapter not found")
	// ErrVideoNotFound is returned when an operation addresses an unknown video
	ErrVideoNotFound = errors.New("video not found")
)

// Direction for move operations
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// Tree is the in-memory chapter/video tree owned by a single editor session.
// All mutations are synchronous and optimistic; the tree is replaced wholesale
// whenever a fresh fetch from the backend succeeds. The pending-deletion set
// collects remote media ids that still owe a server-side delete; every member
// was issued by upload negotiation at some point, never fabricated locally.
type Tree struct {
	Chapters []*editor.Chapter

	// Ids of the chapter/video currently open for inline editing in the UI
	EditingChapter editor.EntityID
	EditingVideo   editor.EntityID

	pending map[string]struct{}
}

// NewTree creates a tree with a single empty chapter, the minimum a course may hold
func NewTree() *Tree {
	t := &Tree{pending: make(map[string]struct{})}
	t.Chapters = []*editor.Chapter{{ID: editor.NewLocalID(), Videos: []*editor.Video{}}}
	return t
}

// AddChapter appends a new chapter and opens it for editing
func (t *Tree) AddChapter() *editor.Chapter {
	ch := &editor.Chapter{
		ID:     editor.NewLocalID(),
		Order:  len(t.Chapters),
		Videos: []*editor.Video{},
	}
	t.Chapters = append(t.Chapters, ch)
	t.EditingChapter = ch.ID
	t.EditingVideo = ""
	return ch
}

// AddVideo appends a new pending video to the given chapter and opens it for
// editing. Returns nil without touching state if the chapter does not exist.
func (t *Tree) AddVideo(chapterID editor.EntityID) *editor.Video {
	_, ch := t.findChapter(chapterID)
	if ch == nil {
		return nil
	}
	v := &editor.Video{
		ID:     editor.NewLocalID(),
		Order:  len(ch.Videos),
		Status: editor.StatusPending,
	}
	ch.Videos = append(ch.Videos, v)
	t.EditingChapter = ch.ID
	t.EditingVideo = v.ID
	return v
}

// MoveChapter swaps the chapter with its neighbor in the given direction.
// No-op at the boundaries and for unknown ids; ids never change, only order.
func (t *Tree) MoveChapter(chapterID editor.EntityID, dir Direction) {
	i, ch := t.findChapter(chapterID)
	if ch == nil {
		return
	}
	j := neighborIndex(i, len(t.Chapters), dir)
	if j < 0 {
		return
	}
	t.Chapters[i], t.Chapters[j] = t.Chapters[j], t.Chapters[i]
	t.reindexChapters()
}

// MoveVideo swaps the video with its neighbor inside its chapter
func (t *Tree) MoveVideo(chapterID, videoID editor.EntityID, dir Direction) {
	_, ch := t.findChapter(chapterID)
	if ch == nil {
		return
	}
	i, v := findVideo(ch, videoID)
	if v == nil {
		return
	}
	j := neighborIndex(i, len(ch.Videos), dir)
	if j < 0 {
		return
	}
	ch.Videos[i], ch.Videos[j] = ch.Videos[j], ch.Videos[i]
	reindexVideos(ch)
}

// DeleteChapter removes the chapter and all its videos, moving every uploaded
// media id into the pending-deletion set first. Refuses to delete the last
// remaining chapter. Callers must have run the confirmation guard already when
// the chapter holds uploaded media.
func (t *Tree) DeleteChapter(chapterID editor.EntityID) error {
	i, ch := t.findChapter(chapterID)
	if ch == nil {
		return nil
	}
	if len(t.Chapters) == 1 {
		return ErrLastChapter
	}
	for _, v := range ch.Videos {
		t.MarkForDeletion(v.MediaUID)
	}
	t.Chapters = append(t.Chapters[:i], t.Chapters[i+1:]...)
	t.reindexChapters()
	if t.EditingChapter == chapterID {
		t.EditingChapter = ""
		t.EditingVideo = ""
	}
	return nil
}

// DeleteVideo removes a single video, reclaiming its media id if one was allocated
func (t *Tree) DeleteVideo(chapterID, videoID editor.EntityID) {
	_, ch := t.findChapter(chapterID)
	if ch == nil {
		return
	}
	i, v := findVideo(ch, videoID)
	if v == nil {
		return
	}
	t.MarkForDeletion(v.MediaUID)
	ch.Videos = append(ch.Videos[:i], ch.Videos[i+1:]...)
	reindexVideos(ch)
	if t.EditingVideo == videoID {
		t.EditingVideo = ""
	}
}

// EditChapter updates title and description in place
func (t *Tree) EditChapter(chapterID editor.EntityID, title, description string) {
	_, ch := t.findChapter(chapterID)
	if ch == nil {
		return
	}
	ch.Title = strings.TrimSpace(title)
	ch.Description = strings.TrimSpace(description)
	if t.EditingChapter == chapterID && t.EditingVideo == "" {
		t.EditingChapter = ""
	}
}

// EditVideo updates title and description in place
func (t *Tree) EditVideo(chapterID, videoID editor.EntityID, title, description string) {
	v := t.FindVideo(chapterID, videoID)
	if v == nil {
		return
	}
	v.Title = strings.TrimSpace(title)
	v.Description = strings.TrimSpace(description)
	if t.EditingVideo == videoID {
		t.EditingChapter = ""
		t.EditingVideo = ""
	}
}

// ReplaceTree swaps in the server-fetched tree wholesale. Order fields are
// re-derived from array position and video status from media id presence.
// The pending-deletion set is not touched; it is cleared only by a successful save.
func (t *Tree) ReplaceTree(chapters []*editor.Chapter) {
	if len(chapters) == 0 {
		chapters = []*editor.Chapter{{ID: editor.NewLocalID(), Videos: []*editor.Video{}}}
	}
	for ci, ch := range chapters {
		ch.Order = ci
		if ch.Videos == nil {
			ch.Videos = []*editor.Video{}
		}
		for vi, v := range ch.Videos {
			v.Order = vi
			if v.MediaUID != "" {
				v.Status = editor.StatusUploaded
			} else {
				v.Status = editor.StatusPending
			}
			v.Progress = 0
		}
	}
	t.Chapters = chapters
	t.EditingChapter = ""
	t.EditingVideo = ""
}

// MarkForDeletion adds a remote media id to the pending-deletion set.
// Empty ids (videos that never negotiated an upload) are ignored.
func (t *Tree) MarkForDeletion(mediaUID string) {
	if mediaUID == "" {
		return
	}
	if t.pending == nil {
		t.pending = make(map[string]struct{})
	}
	t.pending[mediaUID] = struct{}{}
}

// PendingDeletions returns the pending-deletion set in stable order
func (t *Tree) PendingDeletions() []string {
	uids := make([]string, 0, len(t.pending))
	for uid := range t.pending {
		uids = append(uids, uid)
	}
	sort.Strings(uids)
	return uids
}

// RemovePendingDeletions drops the given ids from the set once the backend
// confirmed their deletes. Ids marked after the confirming save was built
// stay in the set for the next round-trip.
func (t *Tree) RemovePendingDeletions(uids []string) {
	for _, uid := range uids {
		delete(t.pending, uid)
	}
}

// UploadedCount reports how many videos in the chapter have uploaded media
func (t *Tree) UploadedCount(chapterID editor.EntityID) int {
	_, ch := t.findChapter(chapterID)
	if ch == nil {
		return 0
	}
	n := 0
	for _, v := range ch.Videos {
		if v.MediaUID != "" {
			n++
		}
	}
	return n
}

// FindChapter looks a chapter up by id
func (t *Tree) FindChapter(chapterID editor.EntityID) *editor.Chapter {
	_, ch := t.findChapter(chapterID)
	return ch
}

// FindVideo looks a video up by chapter and video id
func (t *Tree) FindVideo(chapterID, videoID editor.EntityID) *editor.Video {
	_, ch := t.findChapter(chapterID)
	if ch == nil {
		return nil
	}
	_, v := findVideo(ch, videoID)
	return v
}

func (t *Tree) findChapter(chapterID editor.EntityID) (int, *editor.Chapter) {
	for i, ch := range t.Chapters {
		if ch.ID == chapterID {
			return i, ch
		}
	}
	return -1, nil
}

func (t *Tree) reindexChapters() {
	for i, ch := range t.Chapters {
		ch.Order = i
	}
}

func findVideo(ch *editor.Chapter, videoID editor.EntityID) (int, *editor.Video) {
	for i, v := range ch.Videos {
		if v.ID == videoID {
			return i, v
		}
	}
	return -1, nil
}

func reindexVideos(ch *editor.Chapter) {
	for i, v := range ch.Videos {
		v.Order = i
	}
}

func neighborIndex(i, length int, dir Direction) int {
	switch dir {
	case DirectionUp:
		if i > 0 {
			return i - 1
		}
	case DirectionDown:
		if i < length-1 {
			return i + 1
		}
	}
	return -1
}
