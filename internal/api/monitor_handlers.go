package api

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

func (s *Server) handleListMonitoredDomains(c *fiber.Ctx) error {
	domains, err := s.repo.ListMonitoredDomains(c.UserContext())
	if err != nil {
		return RespondInternalError(c, "Failed to list monitored domains", err.Error())
	}
	return RespondSuccess(c, domains)
}

type addMonitoredDomainRequest struct {
	Domain string `json:"domain"`
	Label  string `json:"label"`
}

func (s *Server) handleAddMonitoredDomain(c *fiber.Ctx) error {
	var req addMonitoredDomainRequest
	if err := c.BodyParser(&req); err != nil {
		return RespondBadRequest(c, "Invalid JSON", err.Error())
	}

	domain := strings.ToLower(strings.TrimSpace(req.Domain))
	if domain == "" || !strings.Contains(domain, ".") {
		return RespondValidationError(c, "A valid domain is required", "")
	}

	if err := s.repo.AddMonitoredDomain(c.UserContext(), domain, req.Label); err != nil {
		return RespondInternalError(c, "Failed to add monitored domain", err.Error())
	}
	return RespondSuccess(c, fiber.Map{"domain": domain, "label": req.Label})
}
