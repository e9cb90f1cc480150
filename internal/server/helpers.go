package server

import (
	"emojifeed/internal/middleware"
	"emojifeed/internal/models"

	"github.com/gofiber/fiber/v2"
)

// respondError writes err with the status its AppError code maps to.
func respondError(c *fiber.Ctx, err error) error {
	return models.RespondWithError(c, models.StatusForError(err), err)
}

// viewerID returns the resolved actor, or "" for anonymous readers.
func viewerID(c *fiber.Ctx) string {
	id, _ := middleware.ActorID(c)
	return id
}
