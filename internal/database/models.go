package database

import "time"

// JobStatus is the lifecycle state of an upload job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// IsTerminal reports whether the status can never change again.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// JobOrigin records which surface accepted the upload.
type JobOrigin string

const (
	JobOriginWeb JobOrigin = "web"
	JobOriginAPI JobOrigin = "api"
)

// UploadJob is one user-initiated ingestion attempt. It is created at upload
// acceptance and mutated only by the pipeline as phases complete.
type UploadJob struct {
	ID               string     `json:"id"`
	Owner            string     `json:"owner"`
	Origin           JobOrigin  `json:"origin"`
	FileName         string     `json:"file_name"`
	FileSize         int64      `json:"file_size"`
	Status           JobStatus  `json:"status"`
	Progress         int        `json:"progress"`
	DevicesFound     int        `json:"devices_found"`
	DevicesProcessed int        `json:"devices_processed"`
	DevicesSkipped   int        `json:"devices_skipped"`
	TotalCredentials int        `json:"total_credentials"`
	TotalFiles       int        `json:"total_files"`
	ErrorMessage     *string    `json:"error_message,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}

// Device is one logical victim machine found inside an archive. Counts are
// write-once at creation; the row is never mutated afterwards.
type Device struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	NameFingerprint string    `json:"name_fingerprint"`
	UploadID        string    `json:"upload_id"`
	FileCount       int       `json:"file_count"`
	CredentialCount int       `json:"credential_count"`
	DomainCount     int       `json:"domain_count"`
	URLCount        int       `json:"url_count"`
	CreatedAt       time.Time `json:"created_at"`
}

// Credential is one extracted login record.
type Credential struct {
	ID       int64  `json:"id"`
	DeviceID int64  `json:"device_id"`
	URL      string `json:"url"`
	Domain   string `json:"domain"`
	TLD      string `json:"tld"`
	Username string `json:"username"`
	Password string `json:"password"`
	Browser  string `json:"browser"`
	FilePath string `json:"file_path"`
}

// PasswordStat is the per-device occurrence count of one password string.
type PasswordStat struct {
	ID       int64  `json:"id"`
	DeviceID int64  `json:"device_id"`
	Password string `json:"password"`
	Count    int    `json:"count"`
}

// FileRecord is one archive entry. Exactly one of Content and StorageKey is
// set for non-directory entries, depending on the text/binary classification.
type FileRecord struct {
	ID         int64   `json:"id"`
	DeviceID   int64   `json:"device_id"`
	Path       string  `json:"path"`
	Name       string  `json:"name"`
	Parent     string  `json:"parent"`
	IsDir      bool    `json:"is_dir"`
	Size       int64   `json:"size"`
	Content    *string `json:"content,omitempty"`
	StorageKey *string `json:"storage_key,omitempty"`
}

// SoftwareEntry is one installed program parsed from a software inventory file.
type SoftwareEntry struct {
	ID       int64  `json:"id"`
	DeviceID int64  `json:"device_id"`
	Name     string `json:"name"`
	Version  string `json:"version"`
}

// SystemInfo is the parsed system metadata for one device.
type SystemInfo struct {
	ID           int64  `json:"id"`
	DeviceID     int64  `json:"device_id"`
	OS           string `json:"os"`
	ComputerName string `json:"computer_name"`
	Username     string `json:"username"`
	IP           string `json:"ip"`
	Country      string `json:"country"`
	HWID         string `json:"hwid"`
	RAM          string `json:"ram"`
	CPU          string `json:"cpu"`
	Antivirus    string `json:"antivirus"`
	Extra        string `json:"extra"`
}

// MonitoredDomain is a watchlist entry checked after every ingest.
type MonitoredDomain struct {
	ID        int64     `json:"id"`
	Domain    string    `json:"domain"`
	Label     string    `json:"label"`
	CreatedAt time.Time `json:"created_at"`
}

// DomainMatch records that an ingest surfaced a credential domain matching a
// watchlist entry.
type DomainMatch struct {
	ID          int64     `json:"id"`
	MonitoredID int64     `json:"monitored_id"`
	DeviceID    int64     `json:"device_id"`
	UploadID    string    `json:"upload_id"`
	Domain      string    `json:"domain"`
	CreatedAt   time.Time `json:"created_at"`
}
