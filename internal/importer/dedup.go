package importer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Fingerprint returns the stable dedup key for a device name: a sha256 of
// the lower-cased name, hex encoded. It is a dedup key, not a security
// boundary.
func Fingerprint(deviceName string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(deviceName)))
	return hex.EncodeToString(sum[:])
}

// Partition splits device names into new and duplicate sets using a single
// batched existence query against the device store. Order is preserved.
type Partition struct {
	New       []string
	Duplicate []string
}

func (p *Pipeline) partitionDevices(ctx context.Context, names []string) (*Partition, error) {
	fingerprints := make([]string, len(names))
	for i, name := range names {
		fingerprints[i] = Fingerprint(name)
	}

	existing, err := p.repo.ExistingFingerprints(ctx, fingerprints)
	if err != nil {
		return nil, fmt.Errorf("duplicate check failed: %w", err)
	}

	part := &Partition{}
	for i, name := range names {
		if _, ok := existing[fingerprints[i]]; ok {
			part.Duplicate = append(part.Duplicate, name)
		} else {
			part.New = append(part.New, name)
		}
	}
	return part, nil
}
