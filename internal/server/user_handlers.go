package server

import (
	"agora/internal/models"
	"agora/internal/service"

	"github.com/gofiber/fiber/v2"
)

// UpdateUserRequest is a partial profile update. Absent fields are left as they are.
type UpdateUserRequest struct {
	Username  *string `json:"username" form:"username" validate:"omitempty,username"`
	Email     *string `json:"email" form:"email" validate:"omitempty,email"`
	FirstName *string `json:"first_name" form:"first_name" validate:"omitempty,max=150"`
	LastName  *string `json:"last_name" form:"last_name" validate:"omitempty,max=150"`
	Bio       *string `json:"bio" form:"bio"`
}

type ChangePasswordRequest struct {
	Password1 string `json:"password1" form:"password1" validate:"required,password"`
	Password2 string `json:"password2" form:"password2" validate:"required"`
}

// GetUsers handles GET /api/users
// @Summary List users
// @Description Active users with their posts, paginated
// @Tags users
// @Security BearerAuth
// @Produce json
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} Page[UserView]
// @Router /users [get]
func (s *Server) GetUsers(c *fiber.Ctx) error {
	page, err := parsePage(c)
	if err != nil {
		return nil
	}
	users, total, err := s.userService.ListUsers(c.UserContext(), page.Limit(), page.Offset())
	if err != nil {
		return respondError(c, err)
	}
	out := make([]UserView, 0, len(users))
	for _, u := range users {
		out = append(out, s.userView(u))
	}
	return respondPage(c, page, total, out)
}

// GetUser handles GET /api/users/:id
// @Summary Retrieve user
// @Tags users
// @Security BearerAuth
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} UserView
// @Failure 404 {object} models.ErrorResponse
// @Router /users/{id} [get]
func (s *Server) GetUser(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	user, err := s.userService.GetUser(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(s.userView(*user))
}

// UpdateUser handles PUT /api/users/:id
// @Summary Update user
// @Description Owner or staff only. Multipart requests may include an "image" file.
// @Tags users
// @Security BearerAuth
// @Accept json,mpfd
// @Produce json
// @Param id path int true "User ID"
// @Param request body UpdateUserRequest true "Fields to change"
// @Success 200 {object} DataResponse[UserView]
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /users/{id} [put]
func (s *Server) UpdateUser(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var req UpdateUserRequest
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}
	image, err := s.formImage(c, "image")
	if err != nil {
		return respondError(c, err)
	}

	user, err := s.userService.UpdateUser(c.UserContext(), service.UpdateUserInput{
		ActorID:   currentUserID(c),
		UserID:    id,
		Username:  req.Username,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Bio:       req.Bio,
		Image:     image,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(DataResponse[UserView]{Message: "User updated successfully", Data: s.userView(*user)})
}

// DeactivateUser handles DELETE /api/users/:id
// @Summary Deactivate user
// @Description Staff only. The account is kept but no longer listed or retrievable.
// @Tags users
// @Security BearerAuth
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} MessageResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /users/{id} [delete]
func (s *Server) DeactivateUser(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.userService.DeactivateUser(c.UserContext(), currentUserID(c), id); err != nil {
		return respondError(c, err)
	}
	return c.JSON(MessageResponse{Message: "User deleted successfully"})
}

// ChangePassword handles POST /api/users/:id/change_password
// @Summary Change password
// @Tags users
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path int true "User ID"
// @Param request body ChangePasswordRequest true "New password twice"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /users/{id}/change_password [post]
func (s *Server) ChangePassword(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var req ChangePasswordRequest
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}
	err = s.userService.ChangePassword(c.UserContext(), service.ChangePasswordInput{
		ActorID:   currentUserID(c),
		UserID:    id,
		Password1: req.Password1,
		Password2: req.Password2,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(MessageResponse{Message: "Password changed successfully"})
}

// SearchUsers handles GET /api/users-search?search=
// @Summary Search users
// @Description Case-insensitive match on username, first name or last name
// @Tags users
// @Produce json
// @Param search query string false "Search text"
// @Param page query int false "Page number"
// @Success 200 {object} Page[SearchUserView]
// @Router /users-search [get]
func (s *Server) SearchUsers(c *fiber.Ctx) error {
	page, err := parsePage(c)
	if err != nil {
		return nil
	}
	hits, total, err := s.userService.SearchUsers(c.UserContext(), c.Query("search"), page.Limit(), page.Offset())
	if err != nil {
		return respondError(c, err)
	}
	out := make([]SearchUserView, 0, len(hits))
	for _, h := range hits {
		out = append(out, s.searchUserView(h))
	}
	return respondPage(c, page, total, out)
}

// GetLoggedUser handles GET /api/user-logged
// @Summary Current user
// @Tags users
// @Security BearerAuth
// @Produce json
// @Success 200 {object} AccountView
// @Failure 401 {object} models.ErrorResponse
// @Router /user-logged [get]
func (s *Server) GetLoggedUser(c *fiber.Ctx) error {
	user, err := s.userService.Profile(c.UserContext(), currentUserID(c))
	if models.ErrorCode(err) == models.CodeNotFound {
		return respondError(c, models.NewUnauthorizedError("User is inactive or no longer exists"))
	}
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(s.accountView(user))
}
