// Package importer runs the ingestion pipeline: it claims an upload job,
// walks the archive, groups entries into devices, filters duplicates, parses
// and materializes each new device, and persists everything through batched
// writers. One Pipeline instance is shared by all jobs; per-job state lives
// on the stack of Run.
package importer

import (
	"archive/zip"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/lootsift/lootsift/internal/chunkstore"
	"github.com/lootsift/lootsift/internal/config"
	"github.com/lootsift/lootsift/internal/database"
	"github.com/lootsift/lootsift/internal/errors"
	"github.com/lootsift/lootsift/internal/filestore"
	"github.com/lootsift/lootsift/internal/importer/structure"
	"github.com/lootsift/lootsift/internal/progress"
)

// Pipeline executes ingestion runs. It is safe for concurrent use; each Run
// call is independent.
type Pipeline struct {
	cfg    config.ConfigGetter
	repo   *database.Repository
	files  filestore.Store
	broker *progress.Broker
	log    *slog.Logger
}

func NewPipeline(cfg config.ConfigGetter, repo *database.Repository, files filestore.Store, broker *progress.Broker) *Pipeline {
	return &Pipeline{
		cfg:    cfg,
		repo:   repo,
		files:  files,
		broker: broker,
		log:    slog.Default().With("component", "pipeline"),
	}
}

// Summary is the final accounting of one run.
type Summary struct {
	JobID            string            `json:"job_id"`
	Layout           structure.Layout  `json:"layout"`
	DevicesFound     int               `json:"devices_found"`
	DevicesProcessed int               `json:"devices_processed"`
	DevicesSkipped   int               `json:"devices_skipped"`
	ProcessedDevices []string          `json:"processed_devices"`
	SkippedDevices   []string          `json:"skipped_devices"`
	TotalFiles       int               `json:"total_files"`
	TotalCredentials int               `json:"total_credentials"`
	TotalBinaries    int               `json:"total_binaries"`
	TotalSoftware    int               `json:"total_software"`
	DistinctDomains  int               `json:"distinct_domains"`
	TotalURLs        int               `json:"total_urls"`
	FailedBatches    int               `json:"failed_batches"`
	MonitorMatches   int               `json:"monitor_matches"`
	Duration         time.Duration     `json:"duration"`
}

// RunChunked assembles a chunked upload into a temporary archive file and
// ingests it. The assembled file is removed afterwards regardless of outcome.
func (p *Pipeline) RunChunked(ctx context.Context, jobID string, chunks *chunkstore.Store, fileID string, totalChunks int) (*Summary, error) {
	cfg := p.cfg()

	archivePath := filepath.Join(cfg.Upload.TempDir, fmt.Sprintf("assembled_%s.zip", jobID))
	p.broker.Publish(jobID, progress.Infof("Assembling %d chunks...", totalChunks))

	size, err := chunks.Assemble(ctx, fileID, totalChunks, archivePath)
	if err != nil {
		if errors.IsCancelled(err) {
			p.cancelJob(jobID, err)
		} else {
			p.failJob(jobID, err)
		}
		return nil, err
	}
	defer func() {
		if rmErr := os.Remove(archivePath); rmErr != nil {
			p.log.Warn("failed to remove assembled archive", "path", archivePath, "error", rmErr)
		}
	}()

	p.broker.Publish(jobID, progress.Infof("Archive assembled (%s)", humanize.Bytes(uint64(size))))
	return p.Run(ctx, jobID, archivePath)
}

// Run ingests one archive for an already-created job. It claims the job
// first; a second Run for the same job returns a validation error without
// touching anything. The returned error is also reflected in the job row and
// on the progress stream, so callers only need it for logging.
func (p *Pipeline) Run(ctx context.Context, jobID, archivePath string) (*Summary, error) {
	cfg := p.cfg()
	started := time.Now()
	log := p.log.With("job_id", jobID)

	claimed, err := p.repo.ClaimJob(ctx, jobID)
	if err != nil {
		return nil, errors.Wrap(errors.KindPersistence, err, "claiming job %s", jobID)
	}
	if !claimed {
		return nil, errors.New(errors.KindValidation, "job %s is not claimable", jobID)
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(cfg.Ingest.ProcessingTimeoutMinutes)*time.Minute)
	defer cancel()

	summary, err := p.run(ctx, cfg, jobID, archivePath)
	if err != nil {
		if errors.IsCancelled(err) {
			log.Warn("ingestion cancelled", "duration", time.Since(started))
			p.cancelJob(jobID, err)
		} else {
			log.Error("ingestion failed", "error", err, "duration", time.Since(started))
			p.failJob(jobID, err)
		}
		return nil, err
	}

	summary.Duration = time.Since(started).Round(time.Millisecond)
	p.completeJob(jobID, summary)
	log.Info("ingestion completed",
		"devices_found", summary.DevicesFound,
		"devices_processed", summary.DevicesProcessed,
		"devices_skipped", summary.DevicesSkipped,
		"credentials", summary.TotalCredentials,
		"files", summary.TotalFiles,
		"duration", summary.Duration)
	return summary, nil
}

func (p *Pipeline) run(ctx context.Context, cfg *config.Config, jobID, archivePath string) (*Summary, error) {
	p.broker.Publish(jobID, progress.Infof("Opening archive..."))

	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, errors.Wrap(errors.KindArchiveRead, err, "opening archive")
	}
	defer zr.Close()

	entries := make([]structure.Entry, 0, len(zr.File))
	paths := make([]string, 0, len(zr.File))
	for i, f := range zr.File {
		entries = append(entries, structure.Entry{
			Path:  f.Name,
			IsDir: f.FileInfo().IsDir(),
			Size:  int64(f.UncompressedSize64),
			Index: i,
		})
		paths = append(paths, f.Name)
	}

	st := structure.Analyze(paths)
	p.publishProgress(ctx, jobID, 10, nil)
	switch st.Layout {
	case structure.LayoutWrapped:
		p.broker.Publish(jobID, progress.Infof("Detected wrapped layout under %q", st.WrapperName))
	case structure.LayoutIrregular:
		p.broker.Publish(jobID, progress.Warningf("Irregular archive layout (%d top-level entries), treating top-level names as devices", len(st.TopLevelNames)))
	default:
		p.broker.Publish(jobID, progress.Infof("Detected flat layout (%d top-level entries)", len(st.TopLevelNames)))
	}

	groups := structure.Group(entries, st)
	if len(groups) == 0 {
		return nil, errors.New(errors.KindArchiveRead, "archive contains no device directories")
	}

	names := make([]string, len(groups))
	groupByName := make(map[string]structure.DeviceGroup, len(groups))
	for i, g := range groups {
		names[i] = g.Name
		groupByName[g.Name] = g
	}

	part, err := p.partitionDevices(ctx, names)
	if err != nil {
		return nil, errors.Wrap(errors.KindPersistence, err, "partitioning devices")
	}
	p.broker.Publish(jobID, progress.Infof("Found %d devices (%d new, %d already known)",
		len(groups), len(part.New), len(part.Duplicate)))

	summary := &Summary{
		JobID:          jobID,
		Layout:         st.Layout,
		DevicesFound:   len(groups),
		SkippedDevices: append([]string(nil), part.Duplicate...),
	}
	for _, name := range part.Duplicate {
		p.broker.Publish(jobID, progress.Infof("Skipping duplicate device %q", name))
	}
	summary.DevicesSkipped = len(part.Duplicate)

	w := newWriters(cfg, p.repo)
	domainOwners := make(map[string][]int64)

	total := len(part.New)
	for i, name := range part.New {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(errors.KindCancelled, err, "ingestion interrupted")
		}

		outcome, err := p.processDevice(ctx, cfg, jobID, &zr.Reader, groupByName[name], w)
		switch {
		case err != nil && errors.IsCancelled(err):
			return nil, err
		case err != nil:
			// One broken device must not sink the archive.
			p.log.Error("device processing failed", "job_id", jobID, "device", name, "error", err)
			p.broker.Publish(jobID, progress.Warningf("Device %q failed: %v", name, err))
			summary.DevicesSkipped++
			summary.SkippedDevices = append(summary.SkippedDevices, name)
		case outcome.raced:
			summary.DevicesSkipped++
			summary.SkippedDevices = append(summary.SkippedDevices, name)
		default:
			summary.DevicesProcessed++
			summary.ProcessedDevices = append(summary.ProcessedDevices, name)
			summary.TotalFiles += outcome.files
			summary.TotalCredentials += outcome.credentials
			summary.TotalBinaries += outcome.binaries
			summary.TotalSoftware += outcome.software
			summary.TotalURLs += outcome.urls
			for domain := range outcome.domains {
				domainOwners[domain] = append(domainOwners[domain], outcome.deviceID)
			}
			// End-of-device flush on a cancellation-proof context: once a
			// device row is committed its child rows must land too, even
			// when the run is aborted right after.
			w.FlushAll(context.WithoutCancel(ctx))
		}

		p.broker.Publish(jobID, progress.Progress(i+1, total))
		p.publishProgress(ctx, jobID, 15+(75*(i+1))/max(total, 1), summary)
	}

	w.FlushAll(context.WithoutCancel(ctx))
	summary.FailedBatches = w.FailedBatches()
	if summary.FailedBatches > 0 {
		p.broker.Publish(jobID, progress.Warningf("%d batch(es) failed to persist, results are partial", summary.FailedBatches))
	}
	summary.DistinctDomains = len(domainOwners)

	matches, err := p.runMonitorCheck(ctx, jobID, domainOwners)
	if err != nil {
		// The ingest itself succeeded; a monitor failure is reported but
		// does not fail the job.
		p.log.Error("domain monitor check failed", "job_id", jobID, "error", err)
		p.broker.Publish(jobID, progress.Warningf("Domain monitor check failed: %v", err))
	}
	summary.MonitorMatches = matches

	return summary, nil
}

// publishProgress persists coarse progress to the job row. Failures are
// logged and ignored; progress is advisory.
func (p *Pipeline) publishProgress(ctx context.Context, jobID string, pct int, s *Summary) {
	var found, processed, skipped, credentials, files int
	if s != nil {
		found, processed, skipped = s.DevicesFound, s.DevicesProcessed, s.DevicesSkipped
		credentials, files = s.TotalCredentials, s.TotalFiles
	}
	if err := p.repo.UpdateJobProgress(ctx, jobID, pct, found, processed, skipped, credentials, files); err != nil {
		p.log.Warn("failed to update job progress", "job_id", jobID, "error", err)
	}
}

// Terminal job updates run on a detached context: the run context is often
// already cancelled or past its deadline when they happen.
func (p *Pipeline) finishDetached(jobID string, status database.JobStatus, errorMessage string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.repo.FinishJob(ctx, jobID, status, errorMessage); err != nil {
		p.log.Error("failed to finish job", "job_id", jobID, "status", status, "error", err)
	}
}

const (
	// sessionCloseGrace lets streaming consumers drain the terminal event.
	sessionCloseGrace = 30 * time.Second
	// sessionRetention keeps closed-session history around for polling
	// clients before the broker forgets it.
	sessionRetention = time.Hour
)

// endSession closes the progress session after the drain grace and drops its
// history once the retention window passes.
func (p *Pipeline) endSession(jobID string) {
	p.broker.CloseAfter(jobID, sessionCloseGrace)
	time.AfterFunc(sessionRetention, func() { p.broker.Forget(jobID) })
}

func (p *Pipeline) failJob(jobID string, cause error) {
	p.finishDetached(jobID, database.JobStatusFailed, cause.Error())
	p.broker.Publish(jobID, progress.Errorf("Ingestion failed: %v", cause))
	p.endSession(jobID)
}

func (p *Pipeline) cancelJob(jobID string, cause error) {
	p.finishDetached(jobID, database.JobStatusCancelled, cause.Error())
	p.broker.Publish(jobID, progress.Warningf("Ingestion cancelled"))
	p.endSession(jobID)
}

func (p *Pipeline) completeJob(jobID string, s *Summary) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	p.publishProgress(ctx, jobID, 100, s)
	p.finishDetached(jobID, database.JobStatusCompleted, "")
	p.broker.Publish(jobID, progress.Successf(
		"Done: %d/%d devices processed (%d skipped), %d credentials, %d files, %d distinct domains in %s",
		s.DevicesProcessed, s.DevicesFound, s.DevicesSkipped,
		s.TotalCredentials, s.TotalFiles, s.DistinctDomains, s.Duration))
	p.endSession(jobID)
}
