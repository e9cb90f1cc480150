package server

import (
	"emojifeed/internal/middleware"
	"emojifeed/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GetAllPosts handles GET /api/posts
// @Summary List the global feed
// @Description Newest posts first, each with its author profile, like count and whether the caller liked it.
// @Tags posts
// @Produce json
// @Success 200 {array} models.EnrichedPost
// @Failure 500 {object} models.ErrorResponse
// @Failure 503 {object} models.ErrorResponse
// @Router /posts [get]
func (s *Server) GetAllPosts(c *fiber.Ctx) error {
	posts, err := s.postService.ListAll(c.UserContext(), viewerID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(posts)
}

// GetPostByID handles GET /api/posts/:id
// @Summary Get one enriched post
// @Tags posts
// @Produce json
// @Param id path string true "Post ID"
// @Success 200 {object} models.EnrichedPost
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id} [get]
func (s *Server) GetPostByID(c *fiber.Ctx) error {
	post, err := s.postService.GetByID(c.UserContext(), c.Params("id"), viewerID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(post)
}

// GetPostsByUserID handles GET /api/users/:userId/posts
// @Summary List one author's posts
// @Tags posts
// @Produce json
// @Param userId path string true "Author user ID"
// @Success 200 {array} models.EnrichedPost
// @Failure 500 {object} models.ErrorResponse
// @Router /users/{userId}/posts [get]
func (s *Server) GetPostsByUserID(c *fiber.Ctx) error {
	posts, err := s.postService.ListByAuthor(c.UserContext(), c.Params("userId"), viewerID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(posts)
}

// CreatePost handles POST /api/posts
// @Summary Create a post
// @Description Content must be 1 to 280 characters of emoji only. Shares the write budget with likes.
// @Tags posts
// @Accept json
// @Produce json
// @Param request body object{content=string} true "Post content"
// @Success 201 {object} models.Post
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 429 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /posts [post]
func (s *Server) CreatePost(c *fiber.Ctx) error {
	actorID, _ := middleware.ActorID(c)

	var req struct {
		Content string `json:"content"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	post, err := s.postService.Create(c.UserContext(), actorID, req.Content)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

// CreateLikedPostEntry handles POST /api/posts/:id/likes
// @Summary Like a post
// @Description Liking the same post twice returns the existing entry.
// @Tags posts
// @Produce json
// @Param id path string true "Post ID"
// @Success 201 {object} models.LikedPost
// @Failure 401 {object} models.ErrorResponse
// @Failure 429 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /posts/{id}/likes [post]
func (s *Server) CreateLikedPostEntry(c *fiber.Ctx) error {
	actorID, _ := middleware.ActorID(c)

	like, err := s.postService.CreateLikedPostEntry(c.UserContext(), actorID, c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(like)
}

// DeleteLikedPostEntry handles DELETE /api/posts/:id/likes
// @Summary Remove the caller's like
// @Tags posts
// @Produce json
// @Param id path string true "Post ID"
// @Success 200 {object} object{deleted=int}
// @Failure 401 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /posts/{id}/likes [delete]
func (s *Server) DeleteLikedPostEntry(c *fiber.Ctx) error {
	actorID, _ := middleware.ActorID(c)

	deleted, err := s.postService.DeleteLikedPostEntry(c.UserContext(), actorID, c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"deleted": deleted})
}
