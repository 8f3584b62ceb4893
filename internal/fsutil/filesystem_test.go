package fsutil

import (
	"errors"
	"io"
	"io/fs"
	"path/filepath"
	"testing"
)

func TestOSFileSystemRoundTrip(t *testing.T) {
	t.Parallel()

	osfs := OSFileSystem{}
	path := filepath.Join(t.TempDir(), "journals", "journal.jsonl")

	if err := osfs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	w, err := osfs.Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := w.Write([]byte("line one\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if !osfs.Exists(path) {
		t.Fatal("created file should exist")
	}

	f, err := osfs.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(data) != "line one\n" {
		t.Errorf("read back %q", data)
	}
}

func TestOSFileSystemExistsMissing(t *testing.T) {
	t.Parallel()

	if (OSFileSystem{}).Exists(filepath.Join(t.TempDir(), "missing.jsonl")) {
		t.Error("missing file reported as existing")
	}
}

func TestMemoryFileSystemWriteFile(t *testing.T) {
	t.Parallel()

	mfs := NewMemoryFileSystem()
	if err := mfs.WriteFile("journals/a.jsonl", []byte("payload"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	f, err := mfs.Open("journals/a.jsonl")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	data, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(data) != "payload" {
		t.Errorf("read back %q", data)
	}

	info, err := f.Stat()
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Name() != "a.jsonl" || info.Size() != int64(len("payload")) {
		t.Errorf("Stat = %s/%d", info.Name(), info.Size())
	}
}

func TestMemoryFileSystemCreateCommitsOnClose(t *testing.T) {
	t.Parallel()

	mfs := NewMemoryFileSystem()
	w, err := mfs.Create("out.jsonl")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := w.Write([]byte("first\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := w.Write([]byte("second\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f, err := mfs.Open("out.jsonl")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	data, _ := io.ReadAll(f)
	if string(data) != "first\nsecond\n" {
		t.Errorf("committed content %q", data)
	}
}

func TestMemoryFileSystemOpenMissing(t *testing.T) {
	t.Parallel()

	_, err := NewMemoryFileSystem().Open("nope.jsonl")
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("err = %v, want fs.ErrNotExist", err)
	}
}

func TestMemoryFileSystemMkdirAllParents(t *testing.T) {
	t.Parallel()

	mfs := NewMemoryFileSystem()
	if err := mfs.MkdirAll("a/b/c", 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	for _, dir := range []string{"a", "a/b", "a/b/c"} {
		if !mfs.Exists(dir) {
			t.Errorf("directory %q should exist", dir)
		}
	}
	if mfs.Exists("a/b/c/d") {
		t.Error("uncreated directory reported as existing")
	}
}

func TestMemoryFileSystemCleansPaths(t *testing.T) {
	t.Parallel()

	mfs := NewMemoryFileSystem()
	if err := mfs.WriteFile("journals//x.jsonl", []byte("x"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if !mfs.Exists("journals/x.jsonl") {
		t.Error("cleaned path should resolve to the same file")
	}
}
