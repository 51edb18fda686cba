package utils

import "github.com/gofiber/fiber/v2"

// Response is the standard API response envelope
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   any    `json:"error,omitempty"`
}

// SuccessResponse sends a success response with optional data
func SuccessResponse(c *fiber.Ctx, status int, message string, data any) error {
	return c.Status(status).JSON(Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// ErrorResponse sends an error response
func ErrorResponse(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(Response{
		Success: false,
		Error: fiber.Map{
			"code":    code,
			"message": message,
		},
	})
}

// APIErrorResponse sends an error response from an APIError
func APIErrorResponse(c *fiber.Ctx, err *APIError) error {
	return ErrorResponse(c, err.Status, err.Code, err.Message)
}

// RequiresLoginResponse sends a 401 that tells the client to re-authenticate.
// Clients key off the requires_login flag to redirect to the login page.
func RequiresLoginResponse(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"success":        false,
		"requires_login": true,
		"error": fiber.Map{
			"code":    "UNAUTHORIZED",
			"message": message,
		},
	})
}
