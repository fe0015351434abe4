package controllers

import (
	"errors"

	"studio/backend"
	"studio/config"
	"studio/database"
	"studio/middleware"
	"studio/session"

	"github.com/gofiber/fiber/v2"
)

// getSession resolves the session id stashed by the validator
func getSession(c *fiber.Ctx) (*session.Session, error) {
	sessionID, ok := c.Locals("sessionID").(string)
	if !ok {
		return nil, session.ErrSessionNotFound
	}
	return session.DefaultManager.Get(sessionID)
}

// OpenSession authorizes the caller against the backend, fetches the course
// and opens an editor session for it
func OpenSession(c *fiber.Ctx) error {
	bearer, ok := c.Locals("bearer").(string)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Unauthorized!", nil)
	}
	courseID, ok := c.Locals("courseID").(uint)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request data!", nil)
	}

	s, err := session.DefaultManager.Open(c.Context(), session.Options{
		CourseID:          courseID,
		BearerToken:       bearer,
		BackendURL:        config.AppConfig.BackendApiURL,
		Journal:           database.Database.Db,
		FallbackChunkSize: config.AppConfig.UploadChunkSize,
		FallbackTusVer:    config.AppConfig.UploadTusVersion,
		AutoSaveSpec:      config.AppConfig.AutoSaveSpec,
	})
	if err != nil {
		if errors.Is(err, backend.ErrNotAuthorized) {
			// Hard signal: the UI must redirect away from the editor
			return middleware.JsonResponse(c, fiber.StatusForbidden, false, "You are not allowed to edit this course!", fiber.Map{
				"redirect": true,
			})
		}
		return middleware.JsonResponse(c, fiber.StatusBadGateway, false, "Failed to load course from backend!", nil)
	}

	return middleware.JsonResponse(c, fiber.StatusCreated, true, "Editor session opened!", s.Snapshot())
}

// GetSession returns the current editor state
func GetSession(c *fiber.Ctx) error {
	s, err := getSession(c)
	if err != nil {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "Session not found!", nil)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Session fetched successfully!", s.Snapshot())
}

// CloseSession tears the editor session down
func CloseSession(c *fiber.Ctx) error {
	sessionID, ok := c.Locals("sessionID").(string)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request data!", nil)
	}
	if err := session.DefaultManager.Close(sessionID); err != nil {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "Session not found!", nil)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Session closed!", nil)
}
