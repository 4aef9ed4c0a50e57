package database

import (
	"context"
	"fmt"
)

// fingerprintQueryChunk bounds the number of placeholders per existence
// query; archives can carry thousands of devices.
const fingerprintQueryChunk = 500

// ExistingFingerprints returns the subset of the given device-name
// fingerprints already present in the store, using batched IN queries
// instead of one query per device.
func (r *Repository) ExistingFingerprints(ctx context.Context, fingerprints []string) (map[string]struct{}, error) {
	existing := make(map[string]struct{})
	for start := 0; start < len(fingerprints); start += fingerprintQueryChunk {
		end := start + fingerprintQueryChunk
		if end > len(fingerprints) {
			end = len(fingerprints)
		}
		chunk := fingerprints[start:end]

		query := fmt.Sprintf(
			`SELECT name_fingerprint FROM devices WHERE name_fingerprint IN (%s)`,
			inPlaceholders(len(chunk)),
		)
		args := make([]any, len(chunk))
		for i, fp := range chunk {
			args[i] = fp
		}

		rows, err := r.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to query existing fingerprints: %w", err)
		}
		for rows.Next() {
			var fp string
			if err := rows.Scan(&fp); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan fingerprint: %w", err)
			}
			existing[fp] = struct{}{}
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to read fingerprints: %w", err)
		}
		rows.Close()
	}
	return existing, nil
}

// InsertDevice inserts a device, relying on the unique fingerprint index to
// make a duplicate insert an atomic no-op. It returns false when the device
// already existed.
func (r *Repository) InsertDevice(ctx context.Context, device *Device) (bool, error) {
	query := `
		INSERT INTO devices (name, name_fingerprint, upload_id, file_count, credential_count, domain_count, url_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, datetime('now'))
		ON CONFLICT(name_fingerprint) DO NOTHING
	`
	res, err := r.db.ExecContext(ctx, query,
		device.Name, device.NameFingerprint, device.UploadID,
		device.FileCount, device.CredentialCount, device.DomainCount, device.URLCount)
	if err != nil {
		return false, fmt.Errorf("failed to insert device %s: %w", device.Name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to inspect device insert: %w", err)
	}
	if n == 0 {
		return false, nil
	}
	id, err := res.LastInsertId()
	if err != nil {
		return false, fmt.Errorf("failed to get device id: %w", err)
	}
	device.ID = id
	return true, nil
}

// CountDevices returns the number of persisted devices.
func (r *Repository) CountDevices(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM devices`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count devices: %w", err)
	}
	return n, nil
}
