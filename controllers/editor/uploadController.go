package controllers

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"

	"studio/middleware"
	"studio/session"
	"studio/utils"

	"github.com/gofiber/fiber/v2"
)

// StartUpload kicks off the resumable transfer for one video. The transfer
// keeps running after this request returns; progress is polled via GetSession.
func StartUpload(c *fiber.Ctx) error {
	s, err := getSession(c)
	if err != nil {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "Session not found!", nil)
	}

	file, ok := c.Locals("uploadFile").(*multipart.FileHeader)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request data!", nil)
	}
	data, filename, mimeType, err := utils.ReadMultipartFile(file)
	if err != nil {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Failed to read uploaded file!", nil)
	}

	// The transfer outlives this request, so it gets its own context
	err = s.StartUpload(context.Background(), chapterID(c), videoID(c), bytes.NewReader(data), int64(len(data)), filename, mimeType)
	if err != nil {
		if errors.Is(err, session.ErrUploadInFlight) {
			return middleware.JsonResponse(c, fiber.StatusConflict, false, "Another upload is already in progress!", nil)
		}
		if errors.Is(err, session.ErrVideoNotFound) {
			return middleware.JsonResponse(c, fiber.StatusNotFound, false, "Video not found!", nil)
		}
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to start upload!", nil)
	}

	return middleware.JsonResponse(c, fiber.StatusAccepted, true, "Upload started!", nil)
}

// AbortUpload cancels the in-flight transfer. An already-allocated media id
// is reported back so the UI can reflect the scheduled cleanup.
func AbortUpload(c *fiber.Ctx) error {
	s, err := getSession(c)
	if err != nil {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "Session not found!", nil)
	}
	uid := s.AbortUpload(c.Context())
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Upload aborted!", fiber.Map{
		"reclaimed_media_uid": uid,
	})
}
