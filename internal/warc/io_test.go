package warc

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestRoundTripOneRecord(t *testing.T) {
	rec := NewRecord("response")
	rec.SetHeader("WARC-Target-URI", "http://example.com/a")
	rec.AddHeader("X-Multi", "one")
	rec.AddHeader("X-Multi", "two")
	rec.Body = []byte("hello")

	serialized := rec.Serialize()

	got, err := ReadRecord(bufio.NewReader(bytes.NewReader(serialized)))
	if err != nil {
		t.Fatalf("ReadRecord: %v", err)
	}
	if got == nil {
		t.Fatal("ReadRecord returned nil record")
	}

	if diff := cmp.Diff(rec.headers, got.headers, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("headers mismatch (-want +got):\n%s", diff)
	}
	if !bytes.Equal(rec.Body, got.Body) {
		t.Errorf("body = %q, want %q", got.Body, rec.Body)
	}
}

func TestReadRecordMultipleRecordsThenEOF(t *testing.T) {
	var buf bytes.Buffer
	const n = 3
	for i := 0; i < n; i++ {
		rec := NewRecord("resource")
		rec.Body = []byte("record body")
		buf.Write(rec.Serialize())
	}

	r := bufio.NewReader(&buf)
	count := 0
	for {
		rec, err := ReadRecord(r)
		if err != nil {
			t.Fatalf("ReadRecord: %v", err)
		}
		if rec == nil {
			break
		}
		count++
	}
	if count != n {
		t.Errorf("read %d records, want %d", count, n)
	}
}

func TestReadRecordRejectsBadVersion(t *testing.T) {
	r := bufio.NewReader(bytes.NewReader([]byte("WARC/1.0\r\n\r\n")))
	if _, err := ReadRecord(r); err == nil {
		t.Fatal("expected error for wrong version line")
	}
}

func TestReadRecordRejectsTruncatedBody(t *testing.T) {
	raw := "WARC/1.1\r\nWARC-Type: resource\r\nContent-Length: 10\r\n\r\nshort"
	r := bufio.NewReader(bytes.NewReader([]byte(raw)))
	if _, err := ReadRecord(r); err == nil {
		t.Fatal("expected error for truncated body")
	}
}

func TestRecordAccessors(t *testing.T) {
	rec := NewRecord("warcinfo")
	typ, err := rec.Type()
	if err != nil || typ != "warcinfo" {
		t.Fatalf("Type() = %q, %v", typ, err)
	}
	id, err := rec.ID()
	if err != nil {
		t.Fatalf("ID(): %v", err)
	}
	if len(id) == 0 || id[0] == '<' {
		t.Errorf("ID() = %q, want angle brackets stripped", id)
	}
	if _, err := rec.Date(); err != nil {
		t.Fatalf("Date(): %v", err)
	}
	if _, ok := rec.TargetURI(); ok {
		t.Error("TargetURI() should be absent on a fresh warcinfo record")
	}
}
