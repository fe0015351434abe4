package controllers

import (
	"mime/multipart"

	"studio/middleware"
	"studio/models/editor"
	"studio/utils"
	editorValidator "studio/validators/editor"

	"github.com/gofiber/fiber/v2"
)

// SaveCourse pushes the whole course snapshot to the backend. On failure the
// local state is untouched and the user may simply retry.
func SaveCourse(c *fiber.Ctx) error {
	s, err := getSession(c)
	if err != nil {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "Session not found!", nil)
	}
	if err := s.Save(c.Context()); err != nil {
		return middleware.JsonResponse(c, fiber.StatusBadGateway, false, "Save failed, your changes are kept locally. Please retry.", nil)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Course saved!", s.Snapshot())
}

// UpdateMetadata applies the validated course-level fields to the session
func UpdateMetadata(c *fiber.Ctx) error {
	s, err := getSession(c)
	if err != nil {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "Session not found!", nil)
	}
	reqData, ok := c.Locals("validatedMetadata").(*editorValidator.MetadataRequest)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request data!", nil)
	}
	s.SetMetadata(editor.CourseMeta{
		Title:          reqData.Title,
		Description:    reqData.Description,
		Price:          reqData.Price,
		SalePrice:      reqData.SalePrice,
		SaleExpiration: reqData.ParsedExpiration,
		Status:         reqData.Status,
	})
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Course details updated!", nil)
}

// StageThumbnail holds a new thumbnail in memory until the next save
func StageThumbnail(c *fiber.Ctx) error {
	s, err := getSession(c)
	if err != nil {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "Session not found!", nil)
	}
	file, ok := c.Locals("thumbnailFile").(*multipart.FileHeader)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request data!", nil)
	}
	data, filename, mimeType, err := utils.ReadMultipartFile(file)
	if err != nil {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Failed to read uploaded file!", nil)
	}
	s.StageThumbnail(data, filename, mimeType)
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Thumbnail staged, it will be sent with the next save!", nil)
}
