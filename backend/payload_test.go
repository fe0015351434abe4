package backend

import (
	"encoding/json"
	"testing"

	"studio/models/editor"
	"studio/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTree(t *testing.T) *store.Tree {
	t.Helper()
	tree := store.NewTree()
	ch := tree.Chapters[0]
	tree.EditChapter(ch.ID, "Intro", "Getting started")
	v1 := tree.AddVideo(ch.ID)
	tree.EditVideo(ch.ID, v1.ID, "Lesson 1", "Basics")
	v1.MediaUID = "abc123"
	v1.DurationSeconds = 90
	v2 := tree.AddVideo(ch.ID)
	tree.EditVideo(ch.ID, v2.ID, "Lesson 2", "")
	return tree
}

func TestBuildSaveRequest(t *testing.T) {
	tree := buildTree(t)
	meta := editor.CourseMeta{ID: 7, Title: "Go from scratch", Price: 49.9, Status: "DRAFT"}

	req := BuildSaveRequest(meta, tree, nil)

	assert.Equal(t, uint(7), req.CourseID)
	require.Len(t, req.Chapters, 1)
	ch := req.Chapters[0]
	assert.Equal(t, "Intro", ch.Title)
	assert.Equal(t, 0, ch.Position)
	require.Len(t, ch.Videos, 2)

	require.NotNil(t, ch.Videos[0].VideoUID)
	assert.Equal(t, "abc123", *ch.Videos[0].VideoUID)
	assert.Equal(t, 90, ch.Videos[0].DurationSeconds)
	assert.Equal(t, 0, ch.Videos[0].Position)

	// A video without uploaded media serializes a null uid, never a placeholder
	assert.Nil(t, ch.Videos[1].VideoUID)
	assert.Equal(t, 1, ch.Videos[1].Position)

	assert.Equal(t, []string{}, req.DeletedVideoUIDs)
}

func TestBuildSaveRequestDeletions(t *testing.T) {
	tree := buildTree(t)
	tree.MarkForDeletion("zz9")
	tree.MarkForDeletion("aa1")

	req := BuildSaveRequest(editor.CourseMeta{}, tree, nil)
	assert.Equal(t, []string{"aa1", "zz9"}, req.DeletedVideoUIDs)

	// An override replaces the set for ids not yet reflected in the tree
	req = BuildSaveRequest(editor.CourseMeta{}, tree, []string{"fresh"})
	assert.Equal(t, []string{"fresh"}, req.DeletedVideoUIDs)
}

func TestSaveRequestIsDeterministic(t *testing.T) {
	tree := buildTree(t)
	meta := editor.CourseMeta{ID: 3, Title: "Course"}

	a, err := json.Marshal(BuildSaveRequest(meta, tree, nil))
	require.NoError(t, err)
	b, err := json.Marshal(BuildSaveRequest(meta, tree, nil))
	require.NoError(t, err)
	assert.Equal(t, a, b, "same state must serialize to the same bytes")
}

func TestEditorChaptersConversion(t *testing.T) {
	resp := &CourseResponse{
		ID:    5,
		Title: "Algo",
		Chapters: []FetchedChapter{
			{
				ID:    "c1",
				Title: "Sorting",
				Videos: []FetchedVideo{
					{ID: "v1", Title: "Quicksort", VideoUID: "m1", DurationSeconds: 300},
					{ID: "v2", Title: "Heapsort"},
				},
			},
		},
	}

	chapters := resp.EditorChapters()
	require.Len(t, chapters, 1)
	assert.False(t, chapters[0].ID.IsLocal())
	assert.Equal(t, "c1", chapters[0].ID.Value())
	require.Len(t, chapters[0].Videos, 2)
	assert.Equal(t, "m1", chapters[0].Videos[0].MediaUID)
	assert.Equal(t, 300, chapters[0].Videos[0].DurationSeconds)
	assert.Empty(t, chapters[0].Videos[1].MediaUID)

	meta := resp.Meta()
	assert.Equal(t, uint(5), meta.ID)
	assert.Equal(t, "Algo", meta.Title)
}
