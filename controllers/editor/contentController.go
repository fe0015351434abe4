package controllers

import (
	"errors"

	"studio/middleware"
	"studio/models/editor"
	"studio/store"

	"github.com/gofiber/fiber/v2"
)

func chapterID(c *fiber.Ctx) editor.EntityID {
	id, _ := c.Locals("chapterID").(string)
	return editor.EntityID(id)
}

func videoID(c *fiber.Ctx) editor.EntityID {
	id, _ := c.Locals("videoID").(string)
	return editor.EntityID(id)
}

// AddChapter appends a new chapter to the course tree
func AddChapter(c *fiber.Ctx) error {
	s, err := getSession(c)
	if err != nil {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "Session not found!", nil)
	}
	ch := s.AddChapter()
	return middleware.JsonResponse(c, fiber.StatusCreated, true, "Chapter added!", ch)
}

// AddVideo appends a new pending video to a chapter
func AddVideo(c *fiber.Ctx) error {
	s, err := getSession(c)
	if err != nil {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "Session not found!", nil)
	}
	v := s.AddVideo(chapterID(c))
	if v == nil {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "Chapter not found!", nil)
	}
	return middleware.JsonResponse(c, fiber.StatusCreated, true, "Video added!", v)
}

// MoveChapter nudges a chapter up or down
func MoveChapter(c *fiber.Ctx) error {
	s, err := getSession(c)
	if err != nil {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "Session not found!", nil)
	}
	dir := c.Locals("direction").(store.Direction)
	s.MoveChapter(chapterID(c), dir)
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Chapter moved!", s.Snapshot())
}

// MoveVideo nudges a video up or down within its chapter
func MoveVideo(c *fiber.Ctx) error {
	s, err := getSession(c)
	if err != nil {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "Session not found!", nil)
	}
	dir := c.Locals("direction").(store.Direction)
	s.MoveVideo(chapterID(c), videoID(c), dir)
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Video moved!", s.Snapshot())
}

// EditChapter updates a chapter's title and description
func EditChapter(c *fiber.Ctx) error {
	s, err := getSession(c)
	if err != nil {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "Session not found!", nil)
	}
	reqData := c.Locals("validatedEdit").(*struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	})
	s.EditChapter(chapterID(c), reqData.Title, reqData.Description)
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Chapter updated!", nil)
}

// EditVideo updates a video's title and description
func EditVideo(c *fiber.Ctx) error {
	s, err := getSession(c)
	if err != nil {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "Session not found!", nil)
	}
	reqData := c.Locals("validatedEdit").(*struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	})
	s.EditVideo(chapterID(c), videoID(c), reqData.Title, reqData.Description)
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Video updated!", nil)
}

// DeleteChapter requests a chapter delete through the confirmation guard.
// When the chapter holds uploaded media the response asks for confirmation
// instead of deleting.
func DeleteChapter(c *fiber.Ctx) error {
	s, err := getSession(c)
	if err != nil {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "Session not found!", nil)
	}
	target, err := s.RequestDeleteChapter(chapterID(c))
	if err != nil {
		if errors.Is(err, store.ErrLastChapter) {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "A course must keep at least one chapter!", nil)
		}
		if errors.Is(err, store.ErrChapterNotFound) {
			return middleware.JsonResponse(c, fiber.StatusNotFound, false, "Chapter not found!", nil)
		}
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to delete chapter!", nil)
	}
	if target != nil {
		return middleware.JsonResponse(c, fiber.StatusOK, true, "Confirmation required!", fiber.Map{
			"confirmation_required": true,
			"target":                target,
		})
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Chapter deleted!", nil)
}

// DeleteVideo requests a video delete through the confirmation guard
func DeleteVideo(c *fiber.Ctx) error {
	s, err := getSession(c)
	if err != nil {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "Session not found!", nil)
	}
	target, err := s.RequestDeleteVideo(chapterID(c), videoID(c))
	if err != nil {
		if errors.Is(err, store.ErrVideoNotFound) {
			return middleware.JsonResponse(c, fiber.StatusNotFound, false, "Video not found!", nil)
		}
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to delete video!", nil)
	}
	if target != nil {
		return middleware.JsonResponse(c, fiber.StatusOK, true, "Confirmation required!", fiber.Map{
			"confirmation_required": true,
			"target":                target,
		})
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Video deleted!", nil)
}

// ConfirmDelete executes the deletion parked by the guard
func ConfirmDelete(c *fiber.Ctx) error {
	s, err := getSession(c)
	if err != nil {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "Session not found!", nil)
	}
	if err := s.ConfirmDelete(); err != nil {
		if errors.Is(err, store.ErrLastChapter) {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "A course must keep at least one chapter!", nil)
		}
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to delete!", nil)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Deleted!", s.Snapshot())
}

// CancelDelete discards the deletion parked by the guard
func CancelDelete(c *fiber.Ctx) error {
	s, err := getSession(c)
	if err != nil {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "Session not found!", nil)
	}
	s.CancelDelete()
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Deletion cancelled!", nil)
}
