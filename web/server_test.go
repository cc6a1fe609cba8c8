package web_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nihatbirbudak/Hotel-Lead-Builder/web"
	"github.com/nihatbirbudak/Hotel-Lead-Builder/web/sqlite"
)

type recordingStarter struct {
	discovery []web.Job
	email     []web.Job
}

func (r *recordingStarter) StartDiscovery(job web.Job, _ []string, _ string, _ float64) {
	r.discovery = append(r.discovery, job)
}

func (r *recordingStarter) StartEmailCrawl(job web.Job, _ []string, _ string, _ float64) {
	r.email = append(r.email, job)
}

func newTestServer(t *testing.T) (http.Handler, *recordingStarter) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "leads.db")

	repo, err := sqlite.New(dbPath)
	require.NoError(t, err)

	t.Cleanup(func() { _ = repo.Close() })

	starter := &recordingStarter{}
	svc := web.NewService(repo, repo)

	// Start is never called in tests; exercise the handler directly.
	srv := web.NewServer(svc, starter, ":0", dbPath, nil)

	return srv.Handler(), starter
}

func doJSON(t *testing.T, handler http.Handler, method, target string, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	var decoded map[string]any

	if strings.Contains(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}

	return rec, decoded
}

func TestUploadAndListFlow(t *testing.T) {
	handler, _ := newTestServer(t)

	rec, body := doJSON(t, handler, http.MethodPost, "/api/upload?reset_db=true",
		`[{"TesisAdi":"PEARL ISTANBUL HOUSE","Sehir":"İSTANBUL","BelgeTuru":"Turizm İşletmesi Belgesi"},
		  {"TesisAdi":"ALEXIA RESORT & SPA HOTEL","Sehir":"ANTALYA"}]`)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, float64(2), body["inserted"])
	require.Equal(t, true, body["reset_applied"])

	rec, body = doJSON(t, handler, http.MethodGet, "/api/facilities?status_filter=pending&limit=10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, float64(2), body["total"])

	rec, body = doJSON(t, handler, http.MethodGet, "/api/facilities/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, float64(2), body["pending"])

	rec, body = doJSON(t, handler, http.MethodGet, "/api/filters/types", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, body["types"], 2)
}

func TestJobLifecycleEndpoints(t *testing.T) {
	handler, starter := newTestServer(t)

	rec, body := doJSON(t, handler, http.MethodPost, "/api/jobs/website-discovery",
		`{"mode":"all","uids":[],"settings":{"rate_limit":1.0}}`)

	require.Equal(t, http.StatusOK, rec.Code)

	jobID, ok := body["job_id"].(string)
	require.True(t, ok, "expected a job id")
	require.Len(t, starter.discovery, 1)

	rec, body = doJSON(t, handler, http.MethodGet, "/api/jobs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, body["jobs"], 1)

	rec, body = doJSON(t, handler, http.MethodGet, "/api/jobs/"+jobID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "queued", body["status"])

	rec, _ = doJSON(t, handler, http.MethodDelete, "/api/jobs/"+jobID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	// Cancelling twice is rejected.
	rec, _ = doJSON(t, handler, http.MethodDelete, "/api/jobs/"+jobID, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = doJSON(t, handler, http.MethodGet, "/api/jobs/does-not-exist", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEmailJobEndpoint(t *testing.T) {
	handler, starter := newTestServer(t)

	rec, _ := doJSON(t, handler, http.MethodPost, "/api/jobs/email-crawl", `{"mode":"all"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, starter.email, 1)
	require.Equal(t, web.JobTypeEmailCrawl, starter.email[0].JobType)
}

func TestExportCSVEndpoint(t *testing.T) {
	handler, _ := newTestServer(t)

	_, _ = doJSON(t, handler, http.MethodPost, "/api/upload",
		`[{"TesisAdi":"PEARL","Sehir":"İSTANBUL"}]`)

	req := httptest.NewRequest(http.MethodGet, "/api/export/csv", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "text/csv")

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 2, "header plus one row")
	require.Contains(t, lines[0], "website_status")
	require.Contains(t, lines[1], "PEARL")
}

func TestExportSQLiteEndpoint(t *testing.T) {
	handler, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/export/sqlite", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "sqlite")
}
