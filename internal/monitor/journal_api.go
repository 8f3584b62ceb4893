package monitor

import (
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cwon789/adaptive-filter/internal/httputil"
	"github.com/cwon789/adaptive-filter/internal/security"
)

// JournalFileInfo describes a single journal file found in the
// configured journal directory.
type JournalFileInfo struct {
	Path       string `json:"path"`
	SizeBytes  int64  `json:"size_bytes"`
	ModifiedAt string `json:"modified_at"`
}

// handleJournalList scans the configured journal directory for .jsonl
// files and returns them as JSON.
//
// GET /api/journals
func (ws *WebServer) handleJournalList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	if ws.journalDir == "" {
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, "journal directory not configured")
		return
	}

	safeDirAbs, err := filepath.Abs(ws.journalDir)
	if err != nil {
		httputil.InternalServerError(w, "invalid journal directory configuration")
		return
	}

	const maxFiles = 500
	var files []JournalFileInfo

	_ = filepath.WalkDir(safeDirAbs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // skip entries we cannot read
		}
		if d.IsDir() {
			return nil
		}
		if strings.ToLower(filepath.Ext(path)) != ".jsonl" {
			return nil
		}

		rel, relErr := filepath.Rel(safeDirAbs, path)
		if relErr != nil {
			return nil
		}

		info, statErr := d.Info()
		if statErr != nil {
			return nil
		}

		files = append(files, JournalFileInfo{
			Path:       rel,
			SizeBytes:  info.Size(),
			ModifiedAt: info.ModTime().UTC().Format(time.RFC3339),
		})

		if len(files) >= maxFiles {
			return filepath.SkipAll
		}
		return nil
	})

	if files == nil {
		files = []JournalFileInfo{}
	}

	httputil.WriteJSONOK(w, map[string]interface{}{
		"journal_dir": ws.journalDir,
		"files":       files,
		"count":       len(files),
	})
}

// handleJournalDownload serves one journal file by its relative path.
//
// GET /api/journals/download?file=journal-20250102-150405.jsonl
func (ws *WebServer) handleJournalDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	if ws.journalDir == "" {
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, "journal directory not configured")
		return
	}

	name := r.URL.Query().Get("file")
	if name == "" {
		httputil.BadRequest(w, "missing 'file' parameter")
		return
	}

	safeDirAbs, err := filepath.Abs(ws.journalDir)
	if err != nil {
		httputil.InternalServerError(w, "invalid journal directory configuration")
		return
	}

	path := filepath.Join(safeDirAbs, name)
	if err := security.ValidatePathWithinDirectory(path, safeDirAbs); err != nil {
		httputil.BadRequest(w, "invalid 'file' parameter")
		return
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		httputil.NotFound(w, "journal file not found")
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Content-Disposition", "attachment; filename=\""+filepath.Base(path)+"\"")
	http.ServeFile(w, r, path)
}
