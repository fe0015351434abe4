package editorValidator

import (
	"regexp"
	"strings"

	"studio/middleware"
	"studio/store"

	"github.com/gofiber/fiber/v2"
)

// SessionScoped ensures a session id is present on session-bound routes
func SessionScoped() fiber.Handler {
	return func(c *fiber.Ctx) error {
		sessionID := strings.TrimSpace(c.Params("session_id"))
		if sessionID == "" {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Session ID is required in the URL!", nil)
		}
		c.Locals("sessionID", sessionID)
		return c.Next()
	}
}

// ChapterScoped validates routes addressing one chapter
func ChapterScoped() fiber.Handler {
	return func(c *fiber.Ctx) error {
		chapterID := strings.TrimSpace(c.Params("chapter_id"))
		if chapterID == "" {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Chapter ID is required in the URL!", nil)
		}
		c.Locals("chapterID", chapterID)
		return c.Next()
	}
}

// VideoScoped validates routes addressing one video within a chapter
func VideoScoped() fiber.Handler {
	return func(c *fiber.Ctx) error {
		chapterID := strings.TrimSpace(c.Params("chapter_id"))
		videoID := strings.TrimSpace(c.Params("video_id"))
		if chapterID == "" || videoID == "" {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Chapter ID and Video ID are required in the URL!", nil)
		}
		c.Locals("chapterID", chapterID)
		c.Locals("videoID", videoID)
		return c.Next()
	}
}

// MoveEntity validates the direction of a move request
func MoveEntity() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := new(struct {
			Direction string `json:"direction"`
		})

		if err := c.BodyParser(reqData); err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request body!", nil)
		}

		dir := store.Direction(strings.ToLower(strings.TrimSpace(reqData.Direction)))
		if dir != store.DirectionUp && dir != store.DirectionDown {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Direction must be 'up' or 'down'!", nil)
		}

		c.Locals("direction", dir)
		return c.Next()
	}
}

// EditEntity validates title/description edits for chapters and videos
func EditEntity() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := new(struct {
			Title       string `json:"title"`
			Description string `json:"description"`
		})

		if err := c.BodyParser(reqData); err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request body!", nil)
		}

		errors := make(map[string]string)

		// Normalize and sanitize inputs
		reqData.Title = strings.TrimSpace(reqData.Title)
		reqData.Description = strings.TrimSpace(reqData.Description)

		// Validate Title
		if reqData.Title == "" {
			errors["title"] = "Title is required!"
		} else {
			if len(reqData.Title) > 100 {
				errors["title"] = "Title must not exceed 100 characters!"
			}
			// Check for invalid characters (e.g., HTML tags)
			if matched, _ := regexp.MatchString(`[<>{}]`, reqData.Title); matched {
				errors["title"] = "Title contains invalid characters (e.g., <, >, {, })!"
			}
		}

		// Validate Description (optional field)
		if reqData.Description != "" {
			if len(reqData.Description) > 1000 {
				errors["description"] = "Description must not exceed 1000 characters!"
			}
			if matched, _ := regexp.MatchString(`[<>{}]`, reqData.Description); matched {
				errors["description"] = "Description contains invalid characters (e.g., <, >, {, })!"
			}
		}

		if len(errors) > 0 {
			return middleware.ValidationErrorResponse(c, errors)
		}

		c.Locals("validatedEdit", reqData)
		return c.Next()
	}
}
