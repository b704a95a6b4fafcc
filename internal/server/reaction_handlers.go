package server

import (
	"agora/internal/models"
	"agora/internal/service"

	"github.com/gofiber/fiber/v2"
)

// React returns the handler applying action to the target named by :id.
// @Summary Like, unlike, dislike or undislike
// @Description Likes and dislikes exclude each other. Removing a reaction the user does not hold is a 400.
// @Tags reactions
// @Security BearerAuth
// @Produce json
// @Param id path int true "Post or comment ID"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/like [post]
// @Router /posts/{id}/remove-like [delete]
// @Router /posts/{id}/dislike [post]
// @Router /posts/{id}/remove-dislike [delete]
// @Router /comments/{id}/like [post]
// @Router /comments/{id}/remove-like [delete]
// @Router /comments/{id}/dislike [post]
// @Router /comments/{id}/remove-dislike [delete]
func (s *Server) React(target models.TargetType, action service.Action) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := parseID(c, "id")
		if err != nil {
			return nil
		}
		if err := s.reactionService.Apply(c.UserContext(), target, id, currentUserID(c), action); err != nil {
			return respondError(c, err)
		}
		return c.JSON(MessageResponse{Message: service.SuccessMessage(target, action)})
	}
}
