package server

import (
	"agora/internal/service"

	"github.com/gofiber/fiber/v2"
)

type CreateCommentRequest struct {
	PostID uint   `json:"post_id" form:"post_id" validate:"required,gt=0"`
	Text   string `json:"text" form:"text" validate:"required,notblank"`
}

type UpdateCommentRequest struct {
	Text string `json:"text" form:"text" validate:"required,notblank"`
}

// GetComments handles GET /api/comments
// @Summary List comments
// @Tags comments
// @Produce json
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} Page[CommentView]
// @Router /comments [get]
func (s *Server) GetComments(c *fiber.Ctx) error {
	page, err := parsePage(c)
	if err != nil {
		return nil
	}
	comments, total, err := s.commentService.ListComments(c.UserContext(), page.Limit(), page.Offset())
	if err != nil {
		return respondError(c, err)
	}
	return respondPage(c, page, total, s.commentViews(comments))
}

// GetComment handles GET /api/comments/:id
// @Summary Retrieve comment
// @Tags comments
// @Produce json
// @Param id path int true "Comment ID"
// @Success 200 {object} CommentView
// @Failure 404 {object} models.ErrorResponse
// @Router /comments/{id} [get]
func (s *Server) GetComment(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	comment, err := s.commentService.GetComment(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(s.commentView(*comment))
}

// CreateComment handles POST /api/comments
// @Summary Create comment
// @Tags comments
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body CreateCommentRequest true "Comment"
// @Success 201 {object} CommentView
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /comments [post]
func (s *Server) CreateComment(c *fiber.Ctx) error {
	var req CreateCommentRequest
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}
	comment, err := s.commentService.CreateComment(c.UserContext(), service.CreateCommentInput{
		UserID: currentUserID(c),
		PostID: req.PostID,
		Text:   req.Text,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(s.commentView(*comment))
}

// UpdateComment handles PUT /api/comments/:id
// @Summary Update comment
// @Description Owner or staff only
// @Tags comments
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path int true "Comment ID"
// @Param request body UpdateCommentRequest true "New text"
// @Success 200 {object} DataResponse[CommentView]
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /comments/{id} [put]
func (s *Server) UpdateComment(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var req UpdateCommentRequest
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}
	comment, err := s.commentService.UpdateComment(c.UserContext(), service.UpdateCommentInput{
		UserID:    currentUserID(c),
		CommentID: id,
		Text:      req.Text,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(DataResponse[CommentView]{Message: "Comment updated successfully", Data: s.commentView(*comment)})
}

// DeleteComment handles DELETE /api/comments/:id when the comment_delete flag is on
// @Summary Delete comment
// @Description Owner or staff only
// @Tags comments
// @Security BearerAuth
// @Produce json
// @Param id path int true "Comment ID"
// @Success 200 {object} MessageResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /comments/{id} [delete]
func (s *Server) DeleteComment(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	err = s.commentService.DeleteComment(c.UserContext(), service.DeleteCommentInput{UserID: currentUserID(c), CommentID: id})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(MessageResponse{Message: "Comment deleted successfully"})
}
