package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/lootsift/lootsift/internal/config"
)

func (s *Server) handleGetSettings(c *fiber.Ctx) error {
	return RespondSuccess(c, s.cfg.Get())
}

// handleUpdateSettings replaces the whole configuration. Validation happens
// at save time; a rejected config leaves the running one untouched. Changes
// to batch sizes and limits apply to the next run, not to runs in flight.
func (s *Server) handleUpdateSettings(c *fiber.Ctx) error {
	updated := config.DefaultConfig()
	if err := c.BodyParser(updated); err != nil {
		return RespondBadRequest(c, "Invalid JSON", err.Error())
	}
	if err := s.cfg.Update(updated); err != nil {
		return RespondValidationError(c, "Invalid configuration", err.Error())
	}
	return RespondSuccess(c, s.cfg.Get())
}
