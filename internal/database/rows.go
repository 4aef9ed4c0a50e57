package database

import (
	"context"
	"fmt"
	"strings"
)

// Multi-row insert builders for the high-volume tables. Each call issues a
// single INSERT with one VALUES tuple per row; batch sizing is the caller's
// concern (see internal/batch).

// InsertCredentials persists a batch of credential rows.
func (r *Repository) InsertCredentials(ctx context.Context, rows []*Credential) error {
	if len(rows) == 0 {
		return nil
	}
	var sb strings.Builder
	sb.WriteString(`INSERT INTO credentials (device_id, url, domain, tld, username, password, browser, file_path) VALUES `)
	args := make([]any, 0, len(rows)*8)
	for i, row := range rows {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("(?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args, row.DeviceID, row.URL, row.Domain, row.TLD, row.Username, row.Password, row.Browser, row.FilePath)
	}
	if _, err := r.db.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("failed to insert %d credentials: %w", len(rows), err)
	}
	return nil
}

// InsertPasswordStats persists a batch of per-device password counts.
func (r *Repository) InsertPasswordStats(ctx context.Context, rows []*PasswordStat) error {
	if len(rows) == 0 {
		return nil
	}
	var sb strings.Builder
	sb.WriteString(`INSERT INTO password_stats (device_id, password, count) VALUES `)
	args := make([]any, 0, len(rows)*3)
	for i, row := range rows {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("(?, ?, ?)")
		args = append(args, row.DeviceID, row.Password, row.Count)
	}
	if _, err := r.db.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("failed to insert %d password stats: %w", len(rows), err)
	}
	return nil
}

// InsertFileRecords persists a batch of archive entry rows.
func (r *Repository) InsertFileRecords(ctx context.Context, rows []*FileRecord) error {
	if len(rows) == 0 {
		return nil
	}
	var sb strings.Builder
	sb.WriteString(`INSERT INTO file_records (device_id, path, name, parent, is_dir, size, content, storage_key) VALUES `)
	args := make([]any, 0, len(rows)*8)
	for i, row := range rows {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("(?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args, row.DeviceID, row.Path, row.Name, row.Parent, row.IsDir, row.Size, row.Content, row.StorageKey)
	}
	if _, err := r.db.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("failed to insert %d file records: %w", len(rows), err)
	}
	return nil
}

// InsertSoftwareEntries persists a batch of installed-software rows.
func (r *Repository) InsertSoftwareEntries(ctx context.Context, rows []*SoftwareEntry) error {
	if len(rows) == 0 {
		return nil
	}
	var sb strings.Builder
	sb.WriteString(`INSERT INTO software_entries (device_id, name, version) VALUES `)
	args := make([]any, 0, len(rows)*3)
	for i, row := range rows {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("(?, ?, ?)")
		args = append(args, row.DeviceID, row.Name, row.Version)
	}
	if _, err := r.db.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("failed to insert %d software entries: %w", len(rows), err)
	}
	return nil
}

// InsertSystemInfo persists the parsed system metadata for one device.
func (r *Repository) InsertSystemInfo(ctx context.Context, info *SystemInfo) error {
	query := `
		INSERT INTO system_info (device_id, os, computer_name, username, ip, country, hwid, ram, cpu, antivirus, extra)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := r.db.ExecContext(ctx, query,
		info.DeviceID, info.OS, info.ComputerName, info.Username, info.IP,
		info.Country, info.HWID, info.RAM, info.CPU, info.Antivirus, info.Extra); err != nil {
		return fmt.Errorf("failed to insert system info: %w", err)
	}
	return nil
}

// CountRows returns the row count of one of the ingestion tables. Used by
// tests and the summary endpoints; table names are restricted to a fixed set
// to keep this safe.
func (r *Repository) CountRows(ctx context.Context, table string) (int, error) {
	switch table {
	case "credentials", "password_stats", "file_records", "software_entries", "system_info", "devices", "domain_matches":
	default:
		return 0, fmt.Errorf("unknown table %q", table)
	}
	var n int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count rows in %s: %w", table, err)
	}
	return n, nil
}
