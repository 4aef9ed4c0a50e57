package importer

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/sourcegraph/conc/pool"

	"github.com/lootsift/lootsift/internal/config"
	"github.com/lootsift/lootsift/internal/database"
	"github.com/lootsift/lootsift/internal/errors"
	"github.com/lootsift/lootsift/internal/filestore"
	"github.com/lootsift/lootsift/internal/importer/parser"
	"github.com/lootsift/lootsift/internal/importer/structure"
	"github.com/lootsift/lootsift/internal/progress"
)

// Text entries larger than this are materialized like binaries instead of
// being parsed and stored inline.
const maxInlineTextBytes = 16 << 20

// textRole is what a text file contains, decided from its name.
type textRole int

const (
	roleOther textRole = iota
	rolePasswords
	roleSoftware
	roleSysInfo
)

func classifyText(name string) textRole {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "password") || strings.Contains(lower, "credential") || strings.Contains(lower, "login"):
		return rolePasswords
	case strings.Contains(lower, "software") || strings.Contains(lower, "installed") || strings.Contains(lower, "programs"):
		return roleSoftware
	case strings.Contains(lower, "information") || strings.Contains(lower, "system"):
		return roleSysInfo
	default:
		return roleOther
	}
}

// deviceOutcome is what one processed device contributed.
type deviceOutcome struct {
	deviceID    int64
	raced       bool
	files       int
	credentials int
	binaries    int
	software    int
	urls        int
	domains     map[string]int
	entryErrors int
}

// processDevice parses and materializes one new device, inserts its row, and
// queues its child rows on the shared writers. Nothing is queued until the
// device row insert succeeds, so a failed device leaves no orphans. A raced
// duplicate (another upload inserted the same fingerprint since the batch
// check) is reported via outcome.raced, not as an error.
func (p *Pipeline) processDevice(ctx context.Context, cfg *config.Config, jobID string, zr *zip.Reader, group structure.DeviceGroup, w *writers) (*deviceOutcome, error) {
	outcome := &deviceOutcome{domains: make(map[string]int)}

	var (
		candidates  []parser.Candidate
		candPaths   []string
		stats       = make(map[string]int)
		fileRows    []*database.FileRecord
		softRows    []*database.SoftwareEntry
		sysinfo     *parser.SystemDetails
		binaryTasks []structure.Entry
		binaryRows  []*database.FileRecord
	)

	for _, entry := range group.Entries {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(errors.KindCancelled, err, "device %q interrupted", group.Name)
		}

		if entry.IsDir {
			fileRows = append(fileRows, &database.FileRecord{
				Path:   entry.Path,
				Name:   entry.Name(),
				Parent: entry.Parent(),
				IsDir:  true,
			})
			continue
		}
		outcome.files++

		if !filestore.IsText(entry.Name()) || entry.Size > maxInlineTextBytes {
			row := &database.FileRecord{
				Path:   entry.Path,
				Name:   entry.Name(),
				Parent: entry.Parent(),
				Size:   entry.Size,
			}
			binaryRows = append(binaryRows, row)
			binaryTasks = append(binaryTasks, entry)
			continue
		}

		text, err := p.readText(zr, entry)
		if err != nil {
			outcome.entryErrors++
			p.log.Warn("failed to read archive entry", "job_id", jobID, "device", group.Name, "path", entry.Path, "error", err)
			continue
		}

		switch classifyText(entry.Name()) {
		case rolePasswords:
			res := parser.ParseCredentials(text)
			for _, c := range res.Credentials {
				candidates = append(candidates, c)
				candPaths = append(candPaths, entry.Path)
			}
			for pw, n := range res.PasswordCounts {
				stats[pw] += n
			}
			for d, n := range res.Domains {
				outcome.domains[d] += n
			}
			outcome.urls += res.URLCount
		case roleSoftware:
			for _, item := range parser.ParseSoftware(text) {
				softRows = append(softRows, &database.SoftwareEntry{Name: item.Name, Version: item.Version})
			}
		case roleSysInfo:
			if sysinfo == nil {
				sysinfo = parser.ParseSystemInfo(text)
			}
		}

		content := text
		fileRows = append(fileRows, &database.FileRecord{
			Path:    entry.Path,
			Name:    entry.Name(),
			Parent:  entry.Parent(),
			Size:    int64(utf8.RuneCountInString(text)),
			Content: &content,
		})
	}

	if n := len(binaryTasks); n > 0 {
		outcome.entryErrors += p.materializeBinaries(ctx, jobID, group.Name, zr, binaryTasks, binaryRows, cfg.Batch.FileWriteParallelLimit)
		outcome.binaries = n
		// Rows without a storage key failed to materialize and are not
		// recorded; a file_records row must point at real content.
		for _, row := range binaryRows {
			if row.StorageKey != nil {
				fileRows = append(fileRows, row)
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(errors.KindCancelled, err, "device %q interrupted", group.Name)
	}
	if outcome.entryErrors > 0 {
		p.broker.Publish(jobID, progress.Warningf("Device %q: %d entries could not be read", group.Name, outcome.entryErrors))
	}

	outcome.credentials = len(candidates)
	outcome.software = len(softRows)

	device := &database.Device{
		Name:            group.Name,
		NameFingerprint: Fingerprint(group.Name),
		UploadID:        jobID,
		FileCount:       outcome.files,
		CredentialCount: outcome.credentials,
		DomainCount:     len(outcome.domains),
		URLCount:        outcome.urls,
	}
	// Device row and system info commit together; a rolled-back device
	// leaves no trace and stays ingestable by a later upload.
	inserted := false
	err := p.repo.WithTransaction(ctx, func(tx *database.Repository) error {
		ins, err := tx.InsertDevice(ctx, device)
		if err != nil {
			return err
		}
		inserted = ins
		if !ins || sysinfo == nil {
			return nil
		}
		return tx.InsertSystemInfo(ctx, &database.SystemInfo{
			DeviceID:     device.ID,
			OS:           sysinfo.OS,
			ComputerName: sysinfo.ComputerName,
			Username:     sysinfo.Username,
			IP:           sysinfo.IP,
			Country:      sysinfo.Country,
			HWID:         sysinfo.HWID,
			RAM:          sysinfo.RAM,
			CPU:          sysinfo.CPU,
			Antivirus:    sysinfo.Antivirus,
			Extra:        sysinfo.ExtraJSON(),
		})
	})
	if err != nil {
		return nil, errors.Wrap(errors.KindPersistence, err, "inserting device %q", group.Name)
	}
	if !inserted {
		outcome.raced = true
		return outcome, nil
	}
	outcome.deviceID = device.ID

	// The device row exists now; queue its child rows on a context that
	// survives cancellation so a committed device never loses them.
	persistCtx := context.WithoutCancel(ctx)
	for i, c := range candidates {
		w.credentials.Add(persistCtx, &database.Credential{
			DeviceID: device.ID,
			URL:      c.URL,
			Domain:   c.Domain,
			TLD:      c.TLD,
			Username: c.Username,
			Password: c.Password,
			Browser:  c.Browser,
			FilePath: candPaths[i],
		})
	}
	for pw, n := range stats {
		w.passwordStats.Add(persistCtx, &database.PasswordStat{DeviceID: device.ID, Password: pw, Count: n})
	}
	for _, row := range fileRows {
		row.DeviceID = device.ID
		w.files.Add(persistCtx, row)
	}
	for _, row := range softRows {
		row.DeviceID = device.ID
		w.software.Add(persistCtx, row)
	}

	return outcome, nil
}

func (p *Pipeline) readText(zr *zip.Reader, entry structure.Entry) (string, error) {
	rc, err := zr.File[entry.Index].Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, maxInlineTextBytes+1))
	if err != nil {
		return "", err
	}
	return parser.DecodeText(data), nil
}

// materializeBinaries streams binary entries to the file store with bounded
// parallelism. rows[i] corresponds to tasks[i]; StorageKey and Size are
// filled on success. Returns the number of entries that failed.
func (p *Pipeline) materializeBinaries(ctx context.Context, jobID, deviceName string, zr *zip.Reader, tasks []structure.Entry, rows []*database.FileRecord, limit int) int {
	if limit < 1 {
		limit = 1
	}

	var (
		mu     sync.Mutex
		failed int
	)
	workers := pool.New().WithMaxGoroutines(limit)
	for i := range tasks {
		entry, row := tasks[i], rows[i]
		workers.Go(func() {
			if ctx.Err() != nil {
				return
			}
			key, err := p.saveBinary(ctx, jobID, zr, entry)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				p.log.Warn("failed to materialize binary", "job_id", jobID, "device", deviceName, "path", entry.Path, "error", err)
				return
			}
			row.StorageKey = &key
		})
	}
	workers.Wait()
	return failed
}

func (p *Pipeline) saveBinary(ctx context.Context, jobID string, zr *zip.Reader, entry structure.Entry) (string, error) {
	rc, err := zr.File[entry.Index].Open()
	if err != nil {
		return "", fmt.Errorf("opening entry: %w", err)
	}
	defer rc.Close()

	key := filestore.SanitizeKey(jobID + "/" + entry.Path)
	return p.files.Save(ctx, key, rc, entry.Size)
}
