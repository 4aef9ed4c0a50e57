package api

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/lootsift/lootsift/internal/database"
	"github.com/lootsift/lootsift/internal/errors"
)

func validateArchiveName(name string) error {
	if !strings.EqualFold(filepath.Ext(name), ".zip") {
		return fmt.Errorf("only .zip archives are accepted, got %q", filepath.Ext(name))
	}
	return nil
}

func jobOrigin(c *fiber.Ctx) database.JobOrigin {
	if c.FormValue("origin") == string(database.JobOriginAPI) {
		return database.JobOriginAPI
	}
	return database.JobOriginWeb
}

// handleUpload ingests a small archive synchronously: the archive is spooled
// to the temp dir, run through the pipeline on the request context, and the
// summary is returned in the response. Large archives should use the chunked
// path instead.
func (s *Server) handleUpload(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return RespondBadRequest(c, "Multipart field 'file' is required", err.Error())
	}
	if err := validateArchiveName(fh.Filename); err != nil {
		return RespondValidationError(c, "Unsupported archive type", err.Error())
	}

	cfg := s.cfg.Get()
	if fh.Size > cfg.MaxFileSizeBytes() {
		return RespondValidationError(c, "Archive too large",
			fmt.Sprintf("%s exceeds the %s limit",
				humanize.Bytes(uint64(fh.Size)), humanize.Bytes(uint64(cfg.MaxFileSizeBytes()))))
	}

	src, err := fh.Open()
	if err != nil {
		return RespondInternalError(c, "Failed to read upload", err.Error())
	}
	defer src.Close()

	jobID := uuid.NewString()
	spoolPath := filepath.Join(cfg.Upload.TempDir, fmt.Sprintf("direct_%s.zip", jobID))
	dst, err := os.Create(spoolPath)
	if err != nil {
		return RespondInternalError(c, "Failed to spool upload", err.Error())
	}
	defer func() {
		if rmErr := os.Remove(spoolPath); rmErr != nil {
			s.log.Warn("failed to remove spooled upload", "path", spoolPath, "error", rmErr)
		}
	}()
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return RespondInternalError(c, "Failed to spool upload", err.Error())
	}
	if err := dst.Close(); err != nil {
		return RespondInternalError(c, "Failed to spool upload", err.Error())
	}

	job := &database.UploadJob{
		ID:       jobID,
		Owner:    c.FormValue("owner"),
		Origin:   jobOrigin(c),
		FileName: fh.Filename,
		FileSize: fh.Size,
	}
	if err := s.repo.CreateJob(c.UserContext(), job); err != nil {
		return RespondInternalError(c, "Failed to create job", err.Error())
	}

	summary, err := s.pipeline.Run(c.UserContext(), jobID, spoolPath)
	if err != nil {
		if errors.Is(err, errors.KindArchiveRead) {
			return RespondBadRequest(c, "Archive could not be read", err.Error())
		}
		return RespondInternalError(c, "Ingestion failed", err.Error())
	}
	return RespondSuccess(c, summary)
}
