package filemanager

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestAppendOffsetsMonotonic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "segment")
	m := New()

	chunks := [][]byte{[]byte("aaa"), []byte("bb"), []byte("cccc")}
	var offsets []int64
	for _, c := range chunks {
		off, err := m.Append(path, c)
		if err != nil {
			t.Fatalf("Append: %v", err)
		}
		offsets = append(offsets, off)
	}

	for i := 1; i < len(offsets); i++ {
		if offsets[i] <= offsets[i-1] {
			t.Fatalf("offsets not monotonic: %v", offsets)
		}
	}

	for i, c := range chunks {
		buf := make([]byte, len(c))
		n, err := m.ReadAt(path, offsets[i], buf)
		if err != nil {
			t.Fatalf("ReadAt: %v", err)
		}
		if n != len(c) || !bytes.Equal(buf, c) {
			t.Errorf("ReadAt(%d) = %q, want %q", offsets[i], buf[:n], c)
		}
	}
}

func TestReadAtMissingFileDoesNotCreateIt(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "deleted-segment")
	m := New()

	if _, err := m.ReadAt(path, 0, make([]byte, 4)); err == nil {
		t.Fatal("ReadAt on a missing file should fail")
	}
	if _, err := m.GetFile(path); err == nil {
		t.Fatal("GetFile on a missing file should fail")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("read paths must not create the file, stat err = %v", err)
	}
}

func TestFileSizeCachesAbsence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "missing")
	m := New()

	_, ok, err := m.FileSize(path)
	if err != nil {
		t.Fatalf("FileSize: %v", err)
	}
	if ok {
		t.Fatal("FileSize reported existence for a missing file")
	}

	// The absence is cached: a file created behind the manager's back is
	// not seen by the next lookup.
	if err := os.WriteFile(path, []byte("late"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	_, ok, err = m.FileSize(path)
	if err != nil {
		t.Fatalf("FileSize: %v", err)
	}
	if ok {
		t.Error("FileSize did not reuse the cached absence")
	}
}

func TestFileSizeReflectsAppends(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "segment")
	m := New()

	if _, err := m.Append(path, []byte("hello")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	size, ok, err := m.FileSize(path)
	if err != nil {
		t.Fatalf("FileSize: %v", err)
	}
	if !ok || size != 5 {
		t.Errorf("FileSize = %d, %v, want 5, true", size, ok)
	}
}

func TestUnmanageAllowsDeletion(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "segment")
	m := New()

	if _, err := m.Append(path, []byte("data")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := m.Unmanage(path); err != nil {
		t.Fatalf("Unmanage: %v", err)
	}
	if err := os.Remove(path); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, ok, err := m.FileSize(path); err != nil || ok {
		t.Errorf("FileSize after deletion = ok %v, err %v; want ok false, err nil", ok, err)
	}
}
