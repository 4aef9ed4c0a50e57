package importer

import (
	"context"

	"github.com/lootsift/lootsift/internal/batch"
	"github.com/lootsift/lootsift/internal/config"
	"github.com/lootsift/lootsift/internal/database"
)

// writers bundles the batched row sinks shared by every device of a single
// ingestion run. Flushes are partial-failure tolerant: a failed batch is
// counted and dropped, later batches still go through.
type writers struct {
	credentials   *batch.Writer[*database.Credential]
	passwordStats *batch.Writer[*database.PasswordStat]
	files         *batch.Writer[*database.FileRecord]
	software      *batch.Writer[*database.SoftwareEntry]
}

func newWriters(cfg *config.Config, repo *database.Repository) *writers {
	return &writers{
		credentials: batch.NewWriter(
			"credentials", cfg.Batch.CredentialsBatchSize, repo.InsertCredentials),
		passwordStats: batch.NewWriter(
			"password_stats", cfg.Batch.PasswordStatsBatchSize, repo.InsertPasswordStats),
		files: batch.NewWriter(
			"file_records", cfg.Batch.FilesBatchSize, repo.InsertFileRecords),
		software: batch.NewWriter(
			"software_entries", cfg.Batch.FilesBatchSize, repo.InsertSoftwareEntries),
	}
}

func (w *writers) FlushAll(ctx context.Context) {
	w.credentials.Flush(ctx)
	w.passwordStats.Flush(ctx)
	w.files.Flush(ctx)
	w.software.Flush(ctx)
}

func (w *writers) FailedBatches() int {
	return w.credentials.FailedBatches() +
		w.passwordStats.FailedBatches() +
		w.files.FailedBatches() +
		w.software.FailedBatches()
}
