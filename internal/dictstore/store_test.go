package dictstore

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

func fakeDict(id uint32, payload string) []byte {
	b := make([]byte, 8+len(payload))
	binary.LittleEndian.PutUint32(b[0:4], 0x37 /* zstd magic placeholder */)
	binary.LittleEndian.PutUint32(b[4:8], id)
	copy(b[8:], payload)
	return b
}

func TestOpenAndGet(t *testing.T) {
	dir := t.TempDir()
	dict := fakeDict(42, "dictionary-bytes")
	if err := os.WriteFile(filepath.Join(dir, "mylabel.42.zstdict"), dict, 0644); err != nil {
		t.Fatal(err)
	}

	s, err := Open(dir, zap.NewNop().Sugar())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !s.Has(42) {
		t.Fatal("expected dictionary 42 to be registered")
	}
	got, err := s.Get(42)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != string(dict) {
		t.Errorf("Get(42) = %q, want %q", got, dict)
	}
}

func TestReloadPicksUpNewDictionary(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, zap.NewNop().Sugar())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if s.Has(7) {
		t.Fatal("dictionary 7 should not exist yet")
	}

	dict := fakeDict(7, "x")
	if err := os.WriteFile(filepath.Join(dir, "label.7.zstdict"), dict, 0644); err != nil {
		t.Fatal(err)
	}
	added, err := s.Reload()
	if err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if len(added) != 1 || added[0] != 7 {
		t.Errorf("Reload() added = %v, want [7]", added)
	}
	if !s.Has(7) {
		t.Fatal("expected dictionary 7 to be registered after reload")
	}
}

func TestReloadSkipsMalformedFilenames(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bad-name.zstdict"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	s, err := Open(dir, zap.NewNop().Sugar())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if s.Has(0) {
		t.Fatal("malformed filename should not have registered anything")
	}
}

func TestReloadDuplicateIDDifferentPathIsFatal(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.5.zstdict"), fakeDict(5, "a"), 0644); err != nil {
		t.Fatal(err)
	}
	s, err := Open(dir, zap.NewNop().Sugar())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "b.5.zstdict"), fakeDict(5, "b"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Reload(); err == nil {
		t.Fatal("expected error for duplicate dictionary id with different path")
	}
}

func TestSelfDescribedID(t *testing.T) {
	dict := fakeDict(99, "payload")
	id, err := SelfDescribedID(dict)
	if err != nil {
		t.Fatalf("SelfDescribedID: %v", err)
	}
	if id != 99 {
		t.Errorf("SelfDescribedID = %d, want 99", id)
	}
}
