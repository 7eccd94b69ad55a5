package server

import (
	"postflow/internal/models"
	"postflow/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreatePostRequest is the body of POST /posts.
type CreatePostRequest struct {
	Title   string `json:"title" example:"Spring planting notes"`
	Content string `json:"content" example:"Tomatoes go in once the soil is warm enough to hold a seedling."`
}

// EditPostRequest is the body of PATCH /posts/:id. Omitted fields are left unchanged.
type EditPostRequest struct {
	Title   *string `json:"title,omitempty"`
	Content *string `json:"content,omitempty"`
}

// ListPosts handles GET /posts
// @Summary List posts
// @Description List posts newest first, optionally filtered by status. Unknown statuses match nothing.
// @Tags posts
// @Produce json
// @Param status query string false "draft, pending_review, approved, flagged or published"
// @Success 200 {array} models.Post
// @Failure 500 {object} models.ErrorResponse
// @Router /posts [get]
func (s *Server) ListPosts(c *fiber.Ctx) error {
	posts, err := s.lifecycle.List(c.UserContext(), c.Query("status"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(posts)
}

// GetPost handles GET /posts/:id
// @Summary Get post
// @Tags posts
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} models.Post
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id} [get]
func (s *Server) GetPost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	post, err := s.lifecycle.Get(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(post)
}

// CreatePost handles POST /posts
// @Summary Create draft
// @Description Create a post in draft status. Length rules beyond the title limit are enforced on submit.
// @Tags posts
// @Accept json
// @Produce json
// @Param request body CreatePostRequest true "Post"
// @Success 201 {object} models.Post
// @Failure 400 {object} models.ErrorResponse
// @Router /posts [post]
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var req CreatePostRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	post, err := s.lifecycle.Create(c.UserContext(), service.CreatePostInput{
		Title:   req.Title,
		Content: req.Content,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

// EditPost handles PATCH /posts/:id
// @Summary Edit post
// @Description Replace title and/or content of a draft, flagged or approved post. Status is unchanged.
// @Tags posts
// @Accept json
// @Produce json
// @Param id path int true "Post ID"
// @Param request body EditPostRequest true "Fields to replace"
// @Success 200 {object} models.Post
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /posts/{id} [patch]
func (s *Server) EditPost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req EditPostRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	post, err := s.lifecycle.Edit(c.UserContext(), service.EditPostInput{
		PostID:  id,
		Title:   req.Title,
		Content: req.Content,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(post)
}

// SubmitPost handles POST /posts/:id/submit
// @Summary Submit for review
// @Description Validate and moderate a draft or flagged post. The post ends approved or flagged.
// @Tags posts
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} models.Post
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Failure 422 {object} models.ErrorResponse "Input checks failed; the post is unchanged"
// @Failure 503 {object} models.ErrorResponse
// @Router /posts/{id}/submit [post]
func (s *Server) SubmitPost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	post, err := s.lifecycle.Submit(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(post)
}

// PublishPost handles PATCH /posts/:id/publish
// @Summary Publish
// @Description Re-validate an approved post and publish it. On failure the post is flagged and the reasons are returned.
// @Tags posts
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} models.Post
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Failure 422 {object} models.ErrorResponse "Re-validation failed; the post is now flagged"
// @Failure 503 {object} models.ErrorResponse
// @Router /posts/{id}/publish [patch]
func (s *Server) PublishPost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	post, err := s.lifecycle.Publish(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(post)
}

// GetStats handles GET /stats
// @Summary Post counts by status
// @Tags posts
// @Produce json
// @Success 200 {object} models.StatusCounts
// @Failure 500 {object} models.ErrorResponse
// @Router /stats [get]
func (s *Server) GetStats(c *fiber.Ctx) error {
	stats, err := s.lifecycle.Stats(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(stats)
}
