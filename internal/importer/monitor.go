package importer

import (
	"context"
	"strings"

	"github.com/lootsift/lootsift/internal/database"
	"github.com/lootsift/lootsift/internal/progress"
)

// runMonitorCheck compares the run's credential domains against the
// watchlist after the ingest proper has finished. A watchlist entry matches
// a domain that equals it or is a subdomain of it. Matches are persisted per
// affected device; progress is streamed with the monitor prefix so clients
// can render it separately from device progress.
func (p *Pipeline) runMonitorCheck(ctx context.Context, jobID string, domainOwners map[string][]int64) (int, error) {
	watched, err := p.repo.ListMonitoredDomains(ctx)
	if err != nil {
		return 0, err
	}
	if len(watched) == 0 || len(domainOwners) == 0 {
		return 0, nil
	}

	p.broker.Publish(jobID, progress.Infof("Checking %d monitored domains...", len(watched)))

	var matches []*database.DomainMatch
	for i, m := range watched {
		for domain, deviceIDs := range domainOwners {
			if !domainMatches(domain, m.Domain) {
				continue
			}
			for _, deviceID := range deviceIDs {
				matches = append(matches, &database.DomainMatch{
					MonitoredID: m.ID,
					DeviceID:    deviceID,
					UploadID:    jobID,
					Domain:      domain,
				})
			}
		}
		p.broker.Publish(jobID, progress.MonitorProgress(i+1, len(watched), m.Domain))
	}

	if len(matches) == 0 {
		return 0, nil
	}
	if err := p.repo.InsertDomainMatches(ctx, matches); err != nil {
		return 0, err
	}
	p.broker.Publish(jobID, progress.Warningf("%d monitored domain hits in this upload", len(matches)))
	return len(matches), nil
}

func domainMatches(domain, watched string) bool {
	domain = strings.ToLower(domain)
	watched = strings.ToLower(watched)
	return domain == watched || strings.HasSuffix(domain, "."+watched)
}
