package api

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lootsift/lootsift/internal/chunkstore"
	"github.com/lootsift/lootsift/internal/config"
	"github.com/lootsift/lootsift/internal/database"
	"github.com/lootsift/lootsift/internal/filestore"
	"github.com/lootsift/lootsift/internal/importer"
	"github.com/lootsift/lootsift/internal/progress"
)

func newTestServer(t *testing.T) (*Server, *database.Repository) {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Database.Path = filepath.Join(t.TempDir(), "test.db")
	cfg.Upload.TempDir = t.TempDir()
	cfg.Storage.LocalPath = filepath.Join(t.TempDir(), "files")
	manager := config.NewManager(filepath.Join(t.TempDir(), "config.yaml"), cfg)

	db, err := database.Open(cfg.Database.Path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	repo := database.NewRepository(db)

	chunks, err := chunkstore.New(afero.NewOsFs(), t.TempDir())
	require.NoError(t, err)
	store, err := filestore.NewLocalStore(afero.NewOsFs(), cfg.Storage.LocalPath)
	require.NoError(t, err)

	broker := progress.NewBroker()
	pipeline := importer.NewPipeline(manager.Getter(), repo, store, broker)
	registry := importer.NewRegistry(cfg.Upload.APIConcurrency)

	s := NewServer(ServerOptions{
		Config:   manager,
		Repo:     repo,
		Chunks:   chunks,
		Pipeline: pipeline,
		Registry: registry,
		Broker:   broker,
	})
	s.SetReady(true)
	return s, repo
}

func buildTestArchive(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("DeviceA/passwords.txt")
	require.NoError(t, err)
	_, err = w.Write([]byte("URL: https://example.com\nUsername: a\nPassword: b\n"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func multipartBody(t *testing.T, field, filename string, content []byte, values map[string]string) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range values {
		require.NoError(t, mw.WriteField(k, v))
	}
	fw, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func decodeResponse(t *testing.T, resp *http.Response) APIResponse {
	t.Helper()
	var body APIResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestUploadRequiresReadiness(t *testing.T) {
	s, _ := newTestServer(t)
	s.SetReady(false)

	body, contentType := multipartBody(t, "file", "logs.zip", buildTestArchive(t), nil)
	req := httptest.NewRequest("POST", "/api/upload", body)
	req.Header.Set("Content-Type", contentType)

	resp, err := s.App().Test(req)
	require.NoError(t, err)
	assert.Equal(t, 503, resp.StatusCode)
}

func TestDirectUploadSynchronous(t *testing.T) {
	s, repo := newTestServer(t)

	body, contentType := multipartBody(t, "file", "logs.zip", buildTestArchive(t), map[string]string{"owner": "tester"})
	req := httptest.NewRequest("POST", "/api/upload", body)
	req.Header.Set("Content-Type", contentType)

	resp, err := s.App().Test(req, 30000)
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)

	env := decodeResponse(t, resp)
	require.True(t, env.Success)

	data, err := json.Marshal(env.Data)
	require.NoError(t, err)
	var summary importer.Summary
	require.NoError(t, json.Unmarshal(data, &summary))
	assert.Equal(t, 1, summary.DevicesProcessed)
	assert.Equal(t, 1, summary.TotalCredentials)

	devices, err := repo.CountDevices(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, devices)
}

func TestDirectUploadRejectsNonZip(t *testing.T) {
	s, _ := newTestServer(t)

	body, contentType := multipartBody(t, "file", "logs.rar", []byte("x"), nil)
	req := httptest.NewRequest("POST", "/api/upload", body)
	req.Header.Set("Content-Type", contentType)

	resp, err := s.App().Test(req)
	require.NoError(t, err)
	assert.Equal(t, 422, resp.StatusCode)
}

func TestChunkedUploadFlow(t *testing.T) {
	s, repo := newTestServer(t)
	archive := buildTestArchive(t)

	// Send the archive as two chunks, out of order.
	half := len(archive) / 2
	chunks := [][]byte{archive[:half], archive[half:]}
	for _, index := range []int{1, 0} {
		body, contentType := multipartBody(t, "chunk", "blob", chunks[index], map[string]string{
			"file_id":     "upload-1",
			"chunk_index": fmt.Sprint(index),
		})
		req := httptest.NewRequest("POST", "/api/upload/chunk", body)
		req.Header.Set("Content-Type", contentType)
		resp, err := s.App().Test(req)
		require.NoError(t, err)
		require.Equal(t, 200, resp.StatusCode)
	}

	complete, err := json.Marshal(map[string]any{
		"file_id":      "upload-1",
		"total_chunks": 2,
		"file_name":    "logs.zip",
		"file_size":    len(archive),
		"owner":        "tester",
	})
	require.NoError(t, err)
	req := httptest.NewRequest("POST", "/api/upload/complete", bytes.NewReader(complete))
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.App().Test(req)
	require.NoError(t, err)
	require.Equal(t, 202, resp.StatusCode)

	env := decodeResponse(t, resp)
	require.True(t, env.Success)
	data := env.Data.(map[string]any)
	jobID := data["job_id"].(string)
	require.NotEmpty(t, jobID)

	<-s.registry.Wait(jobID)

	require.Eventually(t, func() bool {
		job, err := repo.GetJob(context.Background(), jobID)
		return err == nil && job != nil && job.Status == database.JobStatusCompleted
	}, 10*time.Second, 50*time.Millisecond)

	devices, err := repo.CountDevices(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, devices)
}

func TestCompleteRejectsMissingChunks(t *testing.T) {
	s, _ := newTestServer(t)

	body, contentType := multipartBody(t, "chunk", "blob", []byte("partial"), map[string]string{
		"file_id":     "upload-2",
		"chunk_index": "0",
	})
	req := httptest.NewRequest("POST", "/api/upload/chunk", body)
	req.Header.Set("Content-Type", contentType)
	resp, err := s.App().Test(req)
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)

	complete, err := json.Marshal(map[string]any{
		"file_id":      "upload-2",
		"total_chunks": 3,
		"file_name":    "logs.zip",
		"file_size":    7,
	})
	require.NoError(t, err)
	req = httptest.NewRequest("POST", "/api/upload/complete", bytes.NewReader(complete))
	req.Header.Set("Content-Type", "application/json")
	resp, err = s.App().Test(req)
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)

	env := decodeResponse(t, resp)
	assert.Contains(t, env.Error.Details, "missing")
}

func TestCancelUnknownJob(t *testing.T) {
	s, _ := newTestServer(t)

	resp, err := s.App().Test(httptest.NewRequest("POST", "/api/jobs/nope/cancel", nil))
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)
}

func TestCancelFinishedJobConflicts(t *testing.T) {
	s, repo := newTestServer(t)

	job := &database.UploadJob{ID: "job-done", FileName: "a.zip", Origin: database.JobOriginWeb}
	require.NoError(t, repo.CreateJob(context.Background(), job))
	claimed, err := repo.ClaimJob(context.Background(), "job-done")
	require.NoError(t, err)
	require.True(t, claimed)
	require.NoError(t, repo.FinishJob(context.Background(), "job-done", database.JobStatusCompleted, ""))

	resp, err := s.App().Test(httptest.NewRequest("POST", "/api/jobs/job-done/cancel", nil))
	require.NoError(t, err)
	assert.Equal(t, 409, resp.StatusCode)
}

func TestSettingsRoundTrip(t *testing.T) {
	s, _ := newTestServer(t)

	resp, err := s.App().Test(httptest.NewRequest("GET", "/api/settings", nil))
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)

	env := decodeResponse(t, resp)
	data, err := json.Marshal(env.Data)
	require.NoError(t, err)
	var cfg config.Config
	require.NoError(t, json.Unmarshal(data, &cfg))

	cfg.Batch.CredentialsBatchSize = 250
	update, err := json.Marshal(&cfg)
	require.NoError(t, err)
	req := httptest.NewRequest("PUT", "/api/settings", bytes.NewReader(update))
	req.Header.Set("Content-Type", "application/json")
	resp, err = s.App().Test(req)
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, 250, s.cfg.Get().Batch.CredentialsBatchSize)

	// Out-of-range values are rejected and leave the config untouched.
	cfg.Batch.CredentialsBatchSize = 0
	update, err = json.Marshal(&cfg)
	require.NoError(t, err)
	req = httptest.NewRequest("PUT", "/api/settings", bytes.NewReader(update))
	req.Header.Set("Content-Type", "application/json")
	resp, err = s.App().Test(req)
	require.NoError(t, err)
	assert.Equal(t, 422, resp.StatusCode)
	assert.Equal(t, 250, s.cfg.Get().Batch.CredentialsBatchSize)
}

func TestMonitoredDomainEndpoints(t *testing.T) {
	s, _ := newTestServer(t)

	add, err := json.Marshal(map[string]string{"domain": "Example.COM", "label": "client"})
	require.NoError(t, err)
	req := httptest.NewRequest("POST", "/api/monitor/domains", bytes.NewReader(add))
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.App().Test(req)
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)

	resp, err = s.App().Test(httptest.NewRequest("GET", "/api/monitor/domains", nil))
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)

	env := decodeResponse(t, resp)
	data, err := json.Marshal(env.Data)
	require.NoError(t, err)
	var domains []*database.MonitoredDomain
	require.NoError(t, json.Unmarshal(data, &domains))
	require.Len(t, domains, 1)
	assert.Equal(t, "example.com", domains[0].Domain)
}
