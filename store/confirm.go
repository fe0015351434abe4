package store

import "studio/models/editor"

// GuardState is the confirmation flow state for destructive operations
type GuardState string

const (
	GuardIdle    GuardState = "IDLE"
	GuardPending GuardState = "PENDING_CONFIRMATION"
)

// DeleteTarget describes the entity a pending confirmation refers to.
// VideoID is empty when a whole chapter is targeted.
type DeleteTarget struct {
	ChapterID       editor.EntityID `json:"chapter_id"`
	VideoID         editor.EntityID `json:"video_id,omitempty"`
	AffectedUploads int             `json:"affected_uploads"`
}

// Guard gates chapter/video deletion behind a user confirmation whenever the
// delete would orphan already-uploaded remote media. Deletes with no uploaded
// media attached go straight through.
type Guard struct {
	tree   *Tree
	state  GuardState
	target *DeleteTarget
}

// NewGuard creates an idle guard over the given tree
func NewGuard(tree *Tree) *Guard {
	return &Guard{tree: tree, state: GuardIdle}
}

// State returns the current guard state
func (g *Guard) State() GuardState { return g.state }

// Pending returns the target awaiting confirmation, or nil when idle
func (g *Guard) Pending() *DeleteTarget {
	if g.state != GuardPending {
		return nil
	}
	return g.target
}

// RequestDeleteChapter asks to delete a chapter. If any contained video has
// uploaded media the guard parks in PENDING_CONFIRMATION and returns the
// target; otherwise the deletion runs immediately and (nil, nil) is returned.
// Deleting the last chapter fails up front with ErrLastChapter, an unknown
// chapter with ErrChapterNotFound.
func (g *Guard) RequestDeleteChapter(chapterID editor.EntityID) (*DeleteTarget, error) {
	ch := g.tree.FindChapter(chapterID)
	if ch == nil {
		return nil, ErrChapterNotFound
	}
	if len(g.tree.Chapters) == 1 {
		return nil, ErrLastChapter
	}
	affected := g.tree.UploadedCount(chapterID)
	if affected == 0 {
		return nil, g.tree.DeleteChapter(chapterID)
	}
	g.state = GuardPending
	g.target = &DeleteTarget{ChapterID: chapterID, AffectedUploads: affected}
	return g.target, nil
}

// RequestDeleteVideo asks to delete a single video, same contract as chapters
func (g *Guard) RequestDeleteVideo(chapterID, videoID editor.EntityID) (*DeleteTarget, error) {
	v := g.tree.FindVideo(chapterID, videoID)
	if v == nil {
		return nil, ErrVideoNotFound
	}
	if v.MediaUID == "" {
		g.tree.DeleteVideo(chapterID, videoID)
		return nil, nil
	}
	g.state = GuardPending
	g.target = &DeleteTarget{ChapterID: chapterID, VideoID: videoID, AffectedUploads: 1}
	return g.target, nil
}

// Confirm executes the parked deletion and returns the guard to idle.
// No-op when nothing is pending.
func (g *Guard) Confirm() error {
	if g.state != GuardPending || g.target == nil {
		return nil
	}
	target := g.target
	g.state = GuardIdle
	g.target = nil
	if target.VideoID != "" {
		g.tree.DeleteVideo(target.ChapterID, target.VideoID)
		return nil
	}
	return g.tree.DeleteChapter(target.ChapterID)
}

// Cancel discards the parked deletion and returns the guard to idle
func (g *Guard) Cancel() {
	g.state = GuardIdle
	g.target = nil
}
