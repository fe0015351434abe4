package editorValidator

import (
	"strconv"
	"strings"
	"time"

	"studio/middleware"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var validate = validator.New()

// MetadataRequest carries the editable course-level fields
type MetadataRequest struct {
	Title          string  `json:"title" validate:"required,min=3,max=100"`
	Description    string  `json:"description" validate:"max=5000"`
	Price          float64 `json:"price" validate:"gte=0"`
	SalePrice      float64 `json:"sale_price" validate:"gte=0"`
	SaleExpiration string  `json:"sale_expiration" validate:"omitempty,datetime=2006-01-02"`
	Status         string  `json:"status" validate:"required,oneof=DRAFT PUBLISHED"`

	ParsedExpiration *time.Time `json:"-"`
}

// UpdateMetadata validates the course metadata form
func UpdateMetadata() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := new(MetadataRequest)

		if err := c.BodyParser(reqData); err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request body!", nil)
		}

		reqData.Title = strings.TrimSpace(reqData.Title)
		reqData.Description = strings.TrimSpace(reqData.Description)
		reqData.Status = strings.ToUpper(strings.TrimSpace(reqData.Status))

		if err := validate.Struct(reqData); err != nil {
			errors := make(map[string]string)
			for _, fieldErr := range err.(validator.ValidationErrors) {
				errors[strings.ToLower(fieldErr.Field())] = "Invalid value for " + fieldErr.Field() + " (" + fieldErr.Tag() + ")"
			}
			return middleware.ValidationErrorResponse(c, errors)
		}

		if reqData.SalePrice > reqData.Price {
			return middleware.ValidationErrorResponse(c, map[string]string{
				"sale_price": "Sale price cannot exceed the regular price!",
			})
		}

		if reqData.SaleExpiration != "" {
			t, err := time.Parse("2006-01-02", reqData.SaleExpiration)
			if err != nil {
				return middleware.ValidationErrorResponse(c, map[string]string{
					"sale_expiration": "Sale expiration must be a YYYY-MM-DD date!",
				})
			}
			reqData.ParsedExpiration = &t
		}

		c.Locals("validatedMetadata", reqData)
		return c.Next()
	}
}

// OpenSession validates the request to open an editor session for a course
func OpenSession() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := new(struct {
			CourseID uint `json:"course_id"`
		})

		if err := c.BodyParser(reqData); err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request body!", nil)
		}

		if reqData.CourseID == 0 {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Course ID is required!", nil)
		}

		c.Locals("courseID", reqData.CourseID)
		return c.Next()
	}
}

// UploadVideo validates the multipart body of an upload-start request
func UploadVideo() fiber.Handler {
	return func(c *fiber.Ctx) error {
		file, err := c.FormFile("file")
		if err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "A video file is required!", nil)
		}
		if file.Size <= 0 {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Uploaded file is empty!", nil)
		}

		mimeType := file.Header.Get("Content-Type")
		if !strings.HasPrefix(mimeType, "video/") {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Only video files can be uploaded here!", nil)
		}

		c.Locals("uploadFile", file)
		return c.Next()
	}
}

// UploadThumbnail validates the staged thumbnail image
func UploadThumbnail() fiber.Handler {
	return func(c *fiber.Ctx) error {
		file, err := c.FormFile("file")
		if err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "A thumbnail image is required!", nil)
		}
		if file.Size <= 0 {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Uploaded file is empty!", nil)
		}
		const maxThumbnailSize = 5 << 20
		if file.Size > maxThumbnailSize {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Thumbnail must be smaller than "+strconv.Itoa(maxThumbnailSize>>20)+" MB!", nil)
		}

		mimeType := file.Header.Get("Content-Type")
		if !strings.HasPrefix(mimeType, "image/") {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Thumbnail must be an image!", nil)
		}

		c.Locals("thumbnailFile", file)
		return c.Next()
	}
}
