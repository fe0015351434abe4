package store

import (
	"sort"
	"testing"

	"studio/models/editor"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func idsOf(t *Tree) []string {
	var ids []string
	for _, ch := range t.Chapters {
		ids = append(ids, string(ch.ID))
		for _, v := range ch.Videos {
			ids = append(ids, string(v.ID))
		}
	}
	sort.Strings(ids)
	return ids
}

func TestNewTreeHasOneChapter(t *testing.T) {
	tree := NewTree()
	require.Len(t, tree.Chapters, 1)
	assert.True(t, tree.Chapters[0].ID.IsLocal())
}

func TestAddChapterAndVideo(t *testing.T) {
	tree := NewTree()
	ch := tree.AddChapter()
	require.NotNil(t, ch)
	assert.Equal(t, 1, ch.Order)
	assert.Equal(t, ch.ID, tree.EditingChapter)

	v := tree.AddVideo(ch.ID)
	require.NotNil(t, v)
	assert.Equal(t, editor.StatusPending, v.Status)
	assert.Equal(t, 0, v.Order)
	assert.Equal(t, v.ID, tree.EditingVideo)

	// Unknown chapter is a silent no-op
	assert.Nil(t, tree.AddVideo("local:nope"))
}

func TestMovePreservesIds(t *testing.T) {
	tree := NewTree()
	ch := tree.Chapters[0]
	v1 := tree.AddVideo(ch.ID)
	v2 := tree.AddVideo(ch.ID)
	v3 := tree.AddVideo(ch.ID)
	tree.AddChapter()
	tree.AddChapter()

	before := idsOf(tree)

	tree.MoveChapter(tree.Chapters[2].ID, DirectionUp)
	tree.MoveChapter(tree.Chapters[0].ID, DirectionDown)
	tree.MoveVideo(ch.ID, v2.ID, DirectionUp)
	tree.MoveVideo(ch.ID, v1.ID, DirectionDown)
	tree.MoveVideo(ch.ID, v3.ID, DirectionDown) // boundary no-op

	assert.Equal(t, before, idsOf(tree))
	for i, c := range tree.Chapters {
		assert.Equal(t, i, c.Order)
	}
	for i, v := range ch.Videos {
		assert.Equal(t, i, v.Order)
	}
}

func TestMoveBoundariesAreNoOps(t *testing.T) {
	tree := NewTree()
	ch := tree.Chapters[0]
	v1 := tree.AddVideo(ch.ID)
	v2 := tree.AddVideo(ch.ID)

	tree.MoveVideo(ch.ID, v1.ID, DirectionUp)
	assert.Equal(t, v1.ID, ch.Videos[0].ID)

	tree.MoveVideo(ch.ID, v2.ID, DirectionDown)
	assert.Equal(t, v2.ID, ch.Videos[1].ID)

	tree.MoveChapter(ch.ID, DirectionUp)
	assert.Equal(t, ch.ID, tree.Chapters[0].ID)
}

func TestDeleteLastChapterRefused(t *testing.T) {
	tree := NewTree()
	ch := tree.Chapters[0]
	v := tree.AddVideo(ch.ID)
	v.MediaUID = "m1"

	err := tree.DeleteChapter(ch.ID)
	assert.ErrorIs(t, err, ErrLastChapter)
	assert.Len(t, tree.Chapters, 1)
	assert.Empty(t, tree.PendingDeletions())
}

func TestDeleteChapterReclaimsUploadedMedia(t *testing.T) {
	tree := NewTree()
	ch := tree.AddChapter()
	v1 := tree.AddVideo(ch.ID)
	v1.MediaUID = "m1"
	tree.AddVideo(ch.ID) // never uploaded

	require.NoError(t, tree.DeleteChapter(ch.ID))
	assert.Len(t, tree.Chapters, 1)
	// Only the real media id goes in, never a placeholder for the pending video
	assert.Equal(t, []string{"m1"}, tree.PendingDeletions())
}

func TestDeleteVideo(t *testing.T) {
	tree := NewTree()
	ch := tree.Chapters[0]
	v1 := tree.AddVideo(ch.ID)
	v1.MediaUID = "m9"
	v2 := tree.AddVideo(ch.ID)

	tree.DeleteVideo(ch.ID, v1.ID)
	assert.Equal(t, []string{"m9"}, tree.PendingDeletions())
	require.Len(t, ch.Videos, 1)
	assert.Equal(t, v2.ID, ch.Videos[0].ID)
	assert.Equal(t, 0, ch.Videos[0].Order)

	// Deleting a pending video adds nothing to the set
	tree.DeleteVideo(ch.ID, v2.ID)
	assert.Equal(t, []string{"m9"}, tree.PendingDeletions())
}

func TestEditTrimsFields(t *testing.T) {
	tree := NewTree()
	ch := tree.Chapters[0]
	v := tree.AddVideo(ch.ID)

	tree.EditChapter(ch.ID, "  Intro  ", " Basics ")
	assert.Equal(t, "Intro", ch.Title)
	assert.Equal(t, "Basics", ch.Description)

	tree.EditVideo(ch.ID, v.ID, " Lesson 1 ", "")
	assert.Equal(t, "Lesson 1", v.Title)
}

func TestReplaceTree(t *testing.T) {
	tree := NewTree()
	tree.MarkForDeletion("stale")

	tree.ReplaceTree([]*editor.Chapter{
		{
			ID: editor.RemoteID("c1"),
			Videos: []*editor.Video{
				{ID: editor.RemoteID("v1"), MediaUID: "m1"},
				{ID: editor.RemoteID("v2")},
			},
		},
		{ID: editor.RemoteID("c2")},
	})

	require.Len(t, tree.Chapters, 2)
	assert.Equal(t, 0, tree.Chapters[0].Order)
	assert.Equal(t, 1, tree.Chapters[1].Order)
	assert.Equal(t, editor.StatusUploaded, tree.Chapters[0].Videos[0].Status)
	assert.Equal(t, editor.StatusPending, tree.Chapters[0].Videos[1].Status)
	// Pending deletions survive a replace; only a successful save clears them
	assert.Equal(t, []string{"stale"}, tree.PendingDeletions())

	// An empty server tree still leaves one chapter to work in
	tree.ReplaceTree(nil)
	require.Len(t, tree.Chapters, 1)
}

func TestMarkForDeletionIgnoresEmpty(t *testing.T) {
	tree := NewTree()
	tree.MarkForDeletion("")
	assert.Empty(t, tree.PendingDeletions())

	tree.MarkForDeletion("a")
	tree.MarkForDeletion("a")
	assert.Equal(t, []string{"a"}, tree.PendingDeletions())
}

func TestRemovePendingDeletionsKeepsLaterMarks(t *testing.T) {
	tree := NewTree()
	tree.MarkForDeletion("a")
	tree.MarkForDeletion("b")

	// Only the ids a save actually carried are removed
	tree.RemovePendingDeletions([]string{"a", "never-marked"})
	assert.Equal(t, []string{"b"}, tree.PendingDeletions())

	tree.RemovePendingDeletions([]string{"b"})
	assert.Empty(t, tree.PendingDeletions())
}
