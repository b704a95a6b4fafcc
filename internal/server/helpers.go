package server

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	"agora/internal/middleware"
	"agora/internal/models"
	"agora/internal/service"
	"agora/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper. Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

const (
	defaultPageSize = 10
	maxPageSize     = 100
	invalidPage     = "Invalid page."
)

// MessageResponse is the body of confirmations such as "Post deleted successfully".
type MessageResponse struct {
	Message string `json:"message"`
}

// DataResponse pairs a confirmation with the changed resource.
type DataResponse[T any] struct {
	Message string `json:"message"`
	Data    T      `json:"data"`
}

// Page is the envelope of every list endpoint.
type Page[T any] struct {
	Count    int64   `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

// pageRequest is a 1-based page number and its size.
type pageRequest struct {
	Number int
	Size   int
}

func (p pageRequest) Limit() int  { return p.Size }
func (p pageRequest) Offset() int { return (p.Number - 1) * p.Size }

// parsePage reads ?page= and ?page_size=. A malformed page number writes a
// 404 and returns errResponseWritten.
func parsePage(c *fiber.Ctx) (pageRequest, error) {
	p := pageRequest{Number: 1, Size: defaultPageSize}

	if raw := c.Query("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			_ = models.RespondWithError(c, fiber.StatusNotFound, models.NewNotFoundError(invalidPage))
			return p, errResponseWritten
		}
		p.Number = n
	}

	size := c.QueryInt("page_size", defaultPageSize)
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	p.Size = size
	return p, nil
}

// respondPage writes the page envelope. Pages past the end are 404 except
// the first, which is always valid.
func respondPage[T any](c *fiber.Ctx, p pageRequest, total int64, results []T) error {
	if p.Number > 1 && int64(p.Offset()) >= total {
		return models.RespondWithError(c, fiber.StatusNotFound, models.NewNotFoundError(invalidPage))
	}
	if results == nil {
		results = []T{}
	}

	out := Page[T]{Count: total, Results: results}
	if int64(p.Offset()+len(results)) < total {
		next := pageURL(c, p.Number+1)
		out.Next = &next
	}
	if p.Number > 1 {
		prev := pageURL(c, p.Number-1)
		out.Previous = &prev
	}
	return c.JSON(out)
}

// pageURL is the absolute URL of the current request with page replaced.
// Page 1 drops the parameter.
func pageURL(c *fiber.Ctx, number int) string {
	q, _ := url.ParseQuery(string(c.Request().URI().QueryString()))
	if number <= 1 {
		q.Del("page")
	} else {
		q.Set("page", strconv.Itoa(number))
	}
	u := c.BaseURL() + c.Path()
	if enc := q.Encode(); enc != "" {
		u += "?" + enc
	}
	return u
}

// parseID extracts a route parameter by name as a positive uint.
// On failure it writes a 400 JSON response and returns errResponseWritten.
func parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid "+strings.ToUpper(param)))
		return 0, errResponseWritten
	}
	return uint(id), nil
}

// currentUserID is the id stored by AuthRequired.
func currentUserID(c *fiber.Ctx) uint {
	id, _ := c.Locals("userID").(uint)
	return id
}

// mapServiceError maps AppError codes to HTTP status. Unknown errors are 500.
func mapServiceError(err error) int {
	return models.HTTPStatus(models.ErrorCode(err))
}

// validationResponse carries per-field failures.
type validationResponse struct {
	Error  string            `json:"error"`
	Code   string            `json:"code"`
	Fields validation.Errors `json:"fields"`
}

// respondError writes err using the shared error shape. Anything that is not
// an AppError or a validation failure is logged and hidden behind a 500.
func respondError(c *fiber.Ctx, err error) error {
	var verrs validation.Errors
	if errors.As(err, &verrs) {
		return c.Status(fiber.StatusBadRequest).JSON(validationResponse{
			Error:  "Invalid input",
			Code:   models.CodeValidation,
			Fields: verrs,
		})
	}

	status := mapServiceError(err)
	if status >= fiber.StatusInternalServerError {
		middleware.Logger.ErrorContext(c.UserContext(), "request failed", "error", err, "path", c.Path())
		if models.ErrorCode(err) == "" {
			err = models.NewInternalError(err)
		}
	}
	return models.RespondWithError(c, status, err)
}

// bind parses a JSON or multipart body into dst and validates it.
func bind(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		return models.NewValidationError("Invalid request body")
	}
	return validation.Struct(dst)
}

func isMultipart(c *fiber.Ctx) bool {
	return strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm)
}

// formImage reads the uploaded file in field. A missing file yields nil so
// callers keep the current image.
func (s *Server) formImage(c *fiber.Ctx, field string) (*service.Upload, error) {
	if !isMultipart(c) {
		return nil, nil
	}
	form, err := c.MultipartForm()
	if err != nil {
		return nil, models.NewValidationError("Invalid multipart body")
	}
	files := form.File[field]
	if len(files) == 0 {
		return nil, nil
	}

	fh := files[0]
	f, err := fh.Open()
	if err != nil {
		return nil, models.NewInternalError(fmt.Errorf("open upload: %w", err))
	}
	defer f.Close()

	limit := int64(s.config.MediaMaxUploadMB) << 20
	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, models.NewInternalError(fmt.Errorf("read upload: %w", err))
	}
	return &service.Upload{Filename: fh.Filename, Data: data}, nil
}
