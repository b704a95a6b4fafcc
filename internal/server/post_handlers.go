package server

import (
	"agora/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreatePostRequest is sent as JSON or as multipart with an optional "image" file.
type CreatePostRequest struct {
	Description string `json:"description" form:"description" validate:"required,notblank"`
}

// UpdatePostRequest leaves the description unchanged when absent. The image is
// replaced only when a new file is uploaded.
type UpdatePostRequest struct {
	Description *string `json:"description" form:"description" validate:"omitempty,notblank"`
}

// GetPosts handles GET /api/posts
// @Summary List posts
// @Description Newest first, paginated
// @Tags posts
// @Produce json
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} Page[PostView]
// @Failure 404 {object} models.ErrorResponse
// @Router /posts [get]
func (s *Server) GetPosts(c *fiber.Ctx) error {
	page, err := parsePage(c)
	if err != nil {
		return nil
	}
	posts, total, err := s.postService.ListPosts(c.UserContext(), page.Limit(), page.Offset())
	if err != nil {
		return respondError(c, err)
	}
	return respondPage(c, page, total, s.postViews(posts))
}

// GetPost handles GET /api/posts/:id
// @Summary Retrieve post
// @Tags posts
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} PostView
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id} [get]
func (s *Server) GetPost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	post, err := s.postService.GetPost(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(s.postView(*post))
}

// CreatePost handles POST /api/posts
// @Summary Create post
// @Tags posts
// @Security BearerAuth
// @Accept json,mpfd
// @Produce json
// @Param request body CreatePostRequest true "Post"
// @Success 201 {object} PostView
// @Failure 400 {object} models.ErrorResponse
// @Router /posts [post]
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var req CreatePostRequest
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}
	image, err := s.formImage(c, "image")
	if err != nil {
		return respondError(c, err)
	}

	post, err := s.postService.CreatePost(c.UserContext(), service.CreatePostInput{
		UserID:      currentUserID(c),
		Description: req.Description,
		Image:       image,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(s.postView(*post))
}

// UpdatePost handles PUT /api/posts/:id
// @Summary Update post
// @Description Owner or staff only. Without a new image file the current image is kept.
// @Tags posts
// @Security BearerAuth
// @Accept json,mpfd
// @Produce json
// @Param id path int true "Post ID"
// @Param request body UpdatePostRequest true "Fields to change"
// @Success 200 {object} DataResponse[PostView]
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id} [put]
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var req UpdatePostRequest
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}
	image, err := s.formImage(c, "image")
	if err != nil {
		return respondError(c, err)
	}

	post, err := s.postService.UpdatePost(c.UserContext(), service.UpdatePostInput{
		UserID:      currentUserID(c),
		PostID:      id,
		Description: req.Description,
		Image:       image,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(DataResponse[PostView]{Message: "Post updated successfully", Data: s.postView(*post)})
}

// DeletePost handles DELETE /api/posts/:id
// @Summary Delete post
// @Description Owner or staff only. Comments and reactions go with the post.
// @Tags posts
// @Security BearerAuth
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} MessageResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id} [delete]
func (s *Server) DeletePost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	err = s.postService.DeletePost(c.UserContext(), service.DeletePostInput{UserID: currentUserID(c), PostID: id})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(MessageResponse{Message: "Post deleted successfully"})
}
