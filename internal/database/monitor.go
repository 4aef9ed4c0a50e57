package database

import (
	"context"
	"fmt"
)

// ListMonitoredDomains returns the full watchlist, oldest first.
func (r *Repository) ListMonitoredDomains(ctx context.Context) ([]*MonitoredDomain, error) {
	query := `SELECT id, domain, label, created_at FROM monitored_domains ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list monitored domains: %w", err)
	}
	defer rows.Close()

	var out []*MonitoredDomain
	for rows.Next() {
		m := &MonitoredDomain{}
		if err := rows.Scan(&m.ID, &m.Domain, &m.Label, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan monitored domain: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// AddMonitoredDomain inserts a watchlist entry; re-adding an existing domain
// is a no-op.
func (r *Repository) AddMonitoredDomain(ctx context.Context, domain, label string) error {
	query := `
		INSERT INTO monitored_domains (domain, label, created_at)
		VALUES (?, ?, datetime('now'))
		ON CONFLICT(domain) DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, query, domain, label); err != nil {
		return fmt.Errorf("failed to add monitored domain %s: %w", domain, err)
	}
	return nil
}

// InsertDomainMatches records watchlist hits surfaced by one ingest.
func (r *Repository) InsertDomainMatches(ctx context.Context, matches []*DomainMatch) error {
	for _, m := range matches {
		query := `
			INSERT INTO domain_matches (monitored_id, device_id, upload_id, domain, created_at)
			VALUES (?, ?, ?, ?, datetime('now'))
		`
		if _, err := r.db.ExecContext(ctx, query, m.MonitoredID, m.DeviceID, m.UploadID, m.Domain); err != nil {
			return fmt.Errorf("failed to insert domain match for %s: %w", m.Domain, err)
		}
	}
	return nil
}
