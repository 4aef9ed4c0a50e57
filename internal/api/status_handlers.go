package api

import (
	"bufio"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
)

func (s *Server) handleListJobs(c *fiber.Ctx) error {
	limit, err := strconv.Atoi(c.Query("limit", "50"))
	if err != nil || limit < 1 || limit > 500 {
		limit = 50
	}
	jobs, err := s.repo.ListJobs(c.UserContext(), limit)
	if err != nil {
		return RespondInternalError(c, "Failed to list jobs", err.Error())
	}
	return RespondSuccess(c, jobs)
}

func (s *Server) handleGetJob(c *fiber.Ctx) error {
	job, err := s.repo.GetJob(c.UserContext(), c.Params("id"))
	if err != nil {
		return RespondInternalError(c, "Failed to load job", err.Error())
	}
	if job == nil {
		return RespondNotFound(c, "Job", "")
	}
	return RespondSuccess(c, job)
}

// handleCancelJob aborts a queued or running job. Cancelling a job the
// registry no longer tracks is a conflict if the job already finished and a
// 404 if it never existed.
func (s *Server) handleCancelJob(c *fiber.Ctx) error {
	jobID := c.Params("id")
	if s.registry.Cancel(jobID) {
		return RespondSuccess(c, fiber.Map{"job_id": jobID, "cancelling": true})
	}

	job, err := s.repo.GetJob(c.UserContext(), jobID)
	if err != nil {
		return RespondInternalError(c, "Failed to load job", err.Error())
	}
	if job == nil {
		return RespondNotFound(c, "Job", "")
	}
	return RespondConflict(c, "Job is not running",
		fmt.Sprintf("job is already %s", job.Status))
}

// handleJobEvents streams the job's progress events as server-sent events.
// History is replayed first, then live events until the session closes or
// the client disconnects.
func (s *Server) handleJobEvents(c *fiber.Ctx) error {
	jobID := c.Params("id")
	job, err := s.repo.GetJob(c.UserContext(), jobID)
	if err != nil {
		return RespondInternalError(c, "Failed to load job", err.Error())
	}
	if job == nil {
		return RespondNotFound(c, "Job", "")
	}

	events, unsubscribe := s.broker.Subscribe(jobID)

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer unsubscribe()
		for ev := range events {
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
				return
			}
			if err := w.Flush(); err != nil {
				// Client went away.
				return
			}
		}
		fmt.Fprint(w, "event: done\ndata: {}\n\n")
		w.Flush()
	}))
	return nil
}
