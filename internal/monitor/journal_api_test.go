package monitor

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
)

func writeJournalFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatalf("write journal file: %v", err)
	}
}

func TestJournalList(t *testing.T) {
	dir := t.TempDir()
	writeJournalFile(t, dir, "journal-20250101-120000.jsonl", "{}\n")
	writeJournalFile(t, dir, "journal-20250102-120000.jsonl", "{}\n{}\n")
	writeJournalFile(t, dir, "notes.txt", "not a journal")

	server := NewWebServer(WebServerConfig{Address: ":0", JournalDir: dir})

	req := httptest.NewRequest(http.MethodGet, "/api/journals", nil)
	rr := httptest.NewRecorder()
	server.handleJournalList(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp struct {
		JournalDir string            `json:"journal_dir"`
		Files      []JournalFileInfo `json:"files"`
		Count      int               `json:"count"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if resp.Count != 2 {
		t.Fatalf("expected 2 journal files, got %d", resp.Count)
	}
	for _, f := range resp.Files {
		if filepath.IsAbs(f.Path) {
			t.Errorf("expected relative path, got %q", f.Path)
		}
		if f.SizeBytes == 0 {
			t.Errorf("expected non-zero size for %q", f.Path)
		}
		if f.ModifiedAt == "" {
			t.Errorf("expected modified timestamp for %q", f.Path)
		}
	}
}

func TestJournalList_NotConfigured(t *testing.T) {
	server := NewWebServer(WebServerConfig{Address: ":0"})

	req := httptest.NewRequest(http.MethodGet, "/api/journals", nil)
	rr := httptest.NewRecorder()
	server.handleJournalList(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 ServiceUnavailable, got %d", rr.Code)
	}
}

func TestJournalList_EmptyDirectory(t *testing.T) {
	server := NewWebServer(WebServerConfig{Address: ":0", JournalDir: t.TempDir()})

	req := httptest.NewRequest(http.MethodGet, "/api/journals", nil)
	rr := httptest.NewRecorder()
	server.handleJournalList(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", rr.Code)
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["count"].(float64) != 0 {
		t.Errorf("expected count 0, got %v", resp["count"])
	}
	if resp["files"] == nil {
		t.Error("expected empty files array, got null")
	}
}

func TestJournalDownload(t *testing.T) {
	dir := t.TempDir()
	content := `{"time":"2025-01-01T12:00:00Z","envelope":{}}` + "\n"
	writeJournalFile(t, dir, "journal-20250101-120000.jsonl", content)

	server := NewWebServer(WebServerConfig{Address: ":0", JournalDir: dir})

	req := httptest.NewRequest(http.MethodGet,
		"/api/journals/download?file="+url.QueryEscape("journal-20250101-120000.jsonl"), nil)
	rr := httptest.NewRecorder()
	server.handleJournalDownload(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d: %s", rr.Code, rr.Body.String())
	}
	if rr.Body.String() != content {
		t.Errorf("unexpected body: %q", rr.Body.String())
	}
	if cd := rr.Header().Get("Content-Disposition"); cd == "" {
		t.Error("expected a Content-Disposition header")
	}
}

func TestJournalDownload_Traversal(t *testing.T) {
	dir := t.TempDir()
	secret := filepath.Join(filepath.Dir(dir), "secret.jsonl")
	if err := os.WriteFile(secret, []byte("secret"), 0644); err != nil {
		t.Fatalf("write secret: %v", err)
	}

	server := NewWebServer(WebServerConfig{Address: ":0", JournalDir: dir})

	req := httptest.NewRequest(http.MethodGet,
		"/api/journals/download?file="+url.QueryEscape("../secret.jsonl"), nil)
	rr := httptest.NewRecorder()
	server.handleJournalDownload(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 BadRequest for traversal, got %d", rr.Code)
	}
}

func TestJournalDownload_MissingParam(t *testing.T) {
	server := NewWebServer(WebServerConfig{Address: ":0", JournalDir: t.TempDir()})

	req := httptest.NewRequest(http.MethodGet, "/api/journals/download", nil)
	rr := httptest.NewRecorder()
	server.handleJournalDownload(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 BadRequest, got %d", rr.Code)
	}
}

func TestJournalDownload_NotFound(t *testing.T) {
	server := NewWebServer(WebServerConfig{Address: ":0", JournalDir: t.TempDir()})

	req := httptest.NewRequest(http.MethodGet,
		"/api/journals/download?file=missing.jsonl", nil)
	rr := httptest.NewRecorder()
	server.handleJournalDownload(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 NotFound, got %d", rr.Code)
	}
}
