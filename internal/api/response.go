package api

import "github.com/gofiber/fiber/v2"

// APIResponse is the envelope every JSON endpoint returns.
type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
}

// APIError carries a human-readable message plus optional details.
type APIError struct {
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func RespondSuccess(c *fiber.Ctx, data any) error {
	return c.JSON(APIResponse{Success: true, Data: data})
}

func RespondAccepted(c *fiber.Ctx, data any) error {
	return c.Status(fiber.StatusAccepted).JSON(APIResponse{Success: true, Data: data})
}

func respondError(c *fiber.Ctx, status int, message, details string) error {
	return c.Status(status).JSON(APIResponse{
		Success: false,
		Error:   &APIError{Message: message, Details: details},
	})
}

func RespondBadRequest(c *fiber.Ctx, message, details string) error {
	return respondError(c, fiber.StatusBadRequest, message, details)
}

func RespondValidationError(c *fiber.Ctx, message, details string) error {
	return respondError(c, fiber.StatusUnprocessableEntity, message, details)
}

func RespondNotFound(c *fiber.Ctx, resource, details string) error {
	return respondError(c, fiber.StatusNotFound, resource+" not found", details)
}

func RespondConflict(c *fiber.Ctx, message, details string) error {
	return respondError(c, fiber.StatusConflict, message, details)
}

func RespondInternalError(c *fiber.Ctx, message, details string) error {
	return respondError(c, fiber.StatusInternalServerError, message, details)
}

// RespondServiceUnavailable is used while the server is still initializing.
func RespondServiceUnavailable(c *fiber.Ctx, message, details string) error {
	c.Set("Retry-After", "10")
	return respondError(c, fiber.StatusServiceUnavailable, message, details)
}
