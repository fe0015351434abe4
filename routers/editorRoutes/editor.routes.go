package editorRoutes

import (
	controllers "studio/controllers/editor"
	"studio/middleware"
	validators "studio/validators/editor"

	"github.com/gofiber/fiber/v2"
)

// SetupEditorRoutes sets up all course editor routes
func SetupEditorRoutes(app *fiber.App) {
	editorGroup := app.Group("/editor")

	// Session lifecycle
	editorGroup.Post("/session", middleware.BearerMiddleware, validators.OpenSession(), controllers.OpenSession)
	editorGroup.Get("/session/:session_id", middleware.BearerMiddleware, validators.SessionScoped(), controllers.GetSession)
	editorGroup.Delete("/session/:session_id", middleware.BearerMiddleware, validators.SessionScoped(), controllers.CloseSession)

	sessionGroup := app.Group("/editor/session/:session_id", middleware.BearerMiddleware, validators.SessionScoped())

	// Course metadata and save
	sessionGroup.Put("/course", validators.UpdateMetadata(), controllers.UpdateMetadata)
	sessionGroup.Post("/course/thumbnail", validators.UploadThumbnail(), controllers.StageThumbnail)
	sessionGroup.Post("/save", controllers.SaveCourse)

	// Chapter management
	sessionGroup.Post("/chapter", controllers.AddChapter)
	sessionGroup.Put("/chapter/:chapter_id", validators.ChapterScoped(), validators.EditEntity(), controllers.EditChapter)
	sessionGroup.Post("/chapter/:chapter_id/move", validators.ChapterScoped(), validators.MoveEntity(), controllers.MoveChapter)
	sessionGroup.Delete("/chapter/:chapter_id", validators.ChapterScoped(), controllers.DeleteChapter)

	// Video management
	sessionGroup.Post("/chapter/:chapter_id/video", validators.ChapterScoped(), controllers.AddVideo)
	sessionGroup.Put("/chapter/:chapter_id/video/:video_id", validators.VideoScoped(), validators.EditEntity(), controllers.EditVideo)
	sessionGroup.Post("/chapter/:chapter_id/video/:video_id/move", validators.VideoScoped(), validators.MoveEntity(), controllers.MoveVideo)
	sessionGroup.Delete("/chapter/:chapter_id/video/:video_id", validators.VideoScoped(), controllers.DeleteVideo)

	// Destructive-delete confirmation flow
	sessionGroup.Post("/delete/confirm", controllers.ConfirmDelete)
	sessionGroup.Post("/delete/cancel", controllers.CancelDelete)

	// Media upload
	sessionGroup.Post("/chapter/:chapter_id/video/:video_id/upload", validators.VideoScoped(), validators.UploadVideo(), controllers.StartUpload)
	sessionGroup.Post("/upload/abort", controllers.AbortUpload)
}
