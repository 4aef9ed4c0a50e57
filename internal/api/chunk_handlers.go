package api

import (
	"context"
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/lootsift/lootsift/internal/database"
)

// handleUploadChunk stores one chunk of a chunked upload. Chunks may arrive
// in any order and may be retried; a rewrite of the same index replaces the
// previous fragment.
func (s *Server) handleUploadChunk(c *fiber.Ctx) error {
	fileID := c.FormValue("file_id")
	if fileID == "" {
		return RespondBadRequest(c, "Field 'file_id' is required", "")
	}
	index, err := strconv.Atoi(c.FormValue("chunk_index"))
	if err != nil || index < 0 {
		return RespondBadRequest(c, "Field 'chunk_index' must be a non-negative integer", "")
	}

	fh, err := c.FormFile("chunk")
	if err != nil {
		return RespondBadRequest(c, "Multipart field 'chunk' is required", err.Error())
	}
	if limit := s.cfg.Get().ChunkSizeBytes(); fh.Size > limit {
		return RespondValidationError(c, "Chunk too large",
			fmt.Sprintf("chunk of %d bytes exceeds the %d byte limit", fh.Size, limit))
	}

	src, err := fh.Open()
	if err != nil {
		return RespondInternalError(c, "Failed to read chunk", err.Error())
	}
	defer src.Close()

	written, err := s.chunks.WriteChunk(c.UserContext(), fileID, index, src)
	if err != nil {
		return RespondInternalError(c, "Failed to store chunk", err.Error())
	}

	return RespondSuccess(c, fiber.Map{
		"file_id":     fileID,
		"chunk_index": index,
		"bytes":       written,
	})
}

type completeUploadRequest struct {
	FileID      string `json:"file_id"`
	TotalChunks int    `json:"total_chunks"`
	FileName    string `json:"file_name"`
	FileSize    int64  `json:"file_size"`
	Owner       string `json:"owner"`
	Origin      string `json:"origin"`
}

// handleUploadComplete verifies that every chunk is present, creates the
// job, and queues the ingestion run. The response is a 202 pointing at the
// job's status and event stream; assembly and processing happen in the
// background under the admission gate.
func (s *Server) handleUploadComplete(c *fiber.Ctx) error {
	var req completeUploadRequest
	if err := c.BodyParser(&req); err != nil {
		return RespondBadRequest(c, "Invalid JSON", err.Error())
	}
	if req.FileID == "" || req.TotalChunks < 1 {
		return RespondBadRequest(c, "Fields 'file_id' and 'total_chunks' are required", "")
	}
	if err := validateArchiveName(req.FileName); err != nil {
		return RespondValidationError(c, "Unsupported archive type", err.Error())
	}
	if req.FileSize > s.cfg.Get().MaxFileSizeBytes() {
		return RespondValidationError(c, "Archive too large", "")
	}

	missing, err := s.chunks.MissingChunks(req.FileID, req.TotalChunks)
	if err != nil {
		return RespondInternalError(c, "Failed to check chunks", err.Error())
	}
	if len(missing) > 0 {
		return RespondBadRequest(c, "Upload is incomplete",
			fmt.Sprintf("%d of %d chunks missing (first missing index %d)", len(missing), req.TotalChunks, missing[0]))
	}

	jobID := uuid.NewString()
	origin := database.JobOriginWeb
	if req.Origin == string(database.JobOriginAPI) {
		origin = database.JobOriginAPI
	}
	job := &database.UploadJob{
		ID:       jobID,
		Owner:    req.Owner,
		Origin:   origin,
		FileName: req.FileName,
		FileSize: req.FileSize,
	}
	if err := s.repo.CreateJob(c.UserContext(), job); err != nil {
		return RespondInternalError(c, "Failed to create job", err.Error())
	}

	fileID, totalChunks := req.FileID, req.TotalChunks
	err = s.registry.Start(jobID, func(ctx context.Context) {
		// Run records its own outcome in the job row and on the stream.
		if _, runErr := s.pipeline.RunChunked(ctx, jobID, s.chunks, fileID, totalChunks); runErr != nil {
			s.log.Warn("background ingestion finished with error", "job_id", jobID, "error", runErr)
		}
	})
	if err != nil {
		return RespondConflict(c, "Job is already running", err.Error())
	}

	return RespondAccepted(c, fiber.Map{
		"job_id":     jobID,
		"status_url": fmt.Sprintf("/api/jobs/%s", jobID),
		"events_url": fmt.Sprintf("/api/jobs/%s/events", jobID),
	})
}

// handleUploadAbort discards the stored fragments of an unfinished chunked
// upload. In-flight jobs are cancelled through the jobs API instead.
func (s *Server) handleUploadAbort(c *fiber.Ctx) error {
	fileID := c.Params("fileID")
	if err := s.chunks.Discard(fileID); err != nil {
		return RespondInternalError(c, "Failed to discard upload", err.Error())
	}
	return RespondSuccess(c, fiber.Map{"file_id": fileID, "discarded": true})
}
