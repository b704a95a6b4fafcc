package server

import (
	"agora/internal/middleware"
	"agora/internal/models"
	"agora/internal/service"

	"github.com/gofiber/fiber/v2"
)

// RegisterRequest is the sign-up payload, sent as JSON or multipart with an
// optional "image" file.
type RegisterRequest struct {
	Username  string `json:"username" form:"username" validate:"required,username"`
	Email     string `json:"email" form:"email" validate:"required,email"`
	Password  string `json:"password" form:"password" validate:"required,password"`
	Password2 string `json:"password2" form:"password2" validate:"omitempty,eqfield=Password"`
	FirstName string `json:"first_name" form:"first_name" validate:"max=150"`
	LastName  string `json:"last_name" form:"last_name" validate:"max=150"`
	Bio       string `json:"bio" form:"bio"`
}

type LoginRequest struct {
	Username string `json:"username" form:"username" validate:"required"`
	Password string `json:"password" form:"password" validate:"required"`
}

type RefreshRequest struct {
	Refresh string `json:"refresh" form:"refresh" validate:"required"`
}

// Register handles POST /api/users and POST /api/auth/register
// @Summary Register
// @Description Create an account. Multipart requests may include an "image" file.
// @Tags auth
// @Accept json,mpfd
// @Produce json
// @Param request body RegisterRequest true "Account"
// @Success 201 {object} AccountView
// @Failure 400 {object} models.ErrorResponse
// @Router /users [post]
func (s *Server) Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}
	image, err := s.formImage(c, "image")
	if err != nil {
		return respondError(c, err)
	}

	user, err := s.userService.Register(c.UserContext(), service.RegisterInput{
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Bio:       req.Bio,
		Image:     image,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(s.accountView(user))
}

// Login handles POST /api/auth/login
// @Summary Login
// @Description Exchange username and password for an access and refresh token pair
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Credentials"
// @Success 200 {object} LoginResponse
// @Failure 400 {object} models.ErrorResponse
// @Router /auth/login [post]
func (s *Server) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}

	res, err := s.authService.Login(c.UserContext(), req.Username, req.Password)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(LoginResponse{
		Access:  res.Access,
		Refresh: res.Refresh,
		User:    s.accountView(res.User),
		Message: "Login successful",
	})
}

// Refresh handles POST /api/auth/refresh
// @Summary Refresh access token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body RefreshRequest true "Refresh token"
// @Success 200 {object} RefreshResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/refresh [post]
func (s *Server) Refresh(c *fiber.Ctx) error {
	var req RefreshRequest
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}
	access, err := s.authService.Refresh(c.UserContext(), req.Refresh)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(RefreshResponse{Access: access})
}

// Logout handles POST /api/auth/logout
// @Summary Logout
// @Description Revoke the access token and, when supplied, the refresh token
// @Tags auth
// @Security BearerAuth
// @Produce json
// @Success 200 {object} MessageResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/logout [post]
func (s *Server) Logout(c *fiber.Ctx) error {
	claims, ok := c.Locals("claims").(*middleware.Claims)
	if !ok {
		return respondError(c, models.NewUnauthorizedError("Authentication credentials were not provided."))
	}

	var req struct {
		Refresh string `json:"refresh"`
	}
	if len(c.Body()) > 0 {
		_ = c.BodyParser(&req)
	}

	if err := s.authService.Logout(c.UserContext(), claims, req.Refresh); err != nil {
		return respondError(c, err)
	}
	return c.JSON(MessageResponse{Message: "Logged out successfully"})
}
