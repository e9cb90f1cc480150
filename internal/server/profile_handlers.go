package server

import (
	"github.com/gofiber/fiber/v2"
)

// GetUserByUsername handles GET /api/profiles/:username
// @Summary Look up a profile by username
// @Tags profile
// @Produce json
// @Param username path string true "Username"
// @Success 200 {object} models.AuthorProfile
// @Failure 404 {object} models.ErrorResponse
// @Failure 503 {object} models.ErrorResponse
// @Router /profiles/{username} [get]
func (s *Server) GetUserByUsername(c *fiber.Ctx) error {
	profile, err := s.profileService.GetUserByUsername(c.UserContext(), c.Params("username"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(profile)
}
