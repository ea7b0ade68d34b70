package cdx

import "testing"

func TestRecordRoundTrip(t *testing.T) {
	r := Record{
		URL:       "http://example.com/a",
		Type:      "response",
		ID:        "urn:uuid:1234",
		Date:      "20240101000000",
		Filename:  "records.1.warc",
		Offset:    128,
		HasOffset: true,
		RawSize:   64,
	}
	got, err := Parse(r.String())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got != r {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, r)
	}
}

func TestRecordSentinelFields(t *testing.T) {
	r := Record{Type: "warcinfo", ID: "x", Date: "20240101000000"}
	line := r.String()
	const want = "- warcinfo x 20240101000000 - - 0"
	if line != want {
		t.Errorf("String() = %q, want %q", line, want)
	}
	got, err := Parse(line)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got.URL != "" || got.Filename != "" || got.HasOffset {
		t.Errorf("expected absent optional fields, got %+v", got)
	}
}

func TestParseLegacySixFieldLine(t *testing.T) {
	line := "http://x/ response id123 20240101000000 records.1.warc 42"
	got, err := Parse(line)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got.RawSize != 0 {
		t.Errorf("RawSize = %d, want 0 for legacy six-field line", got.RawSize)
	}
	if !got.HasOffset || got.Offset != 42 {
		t.Errorf("Offset = %v/%v, want 42/true", got.Offset, got.HasOffset)
	}
}

func TestParseRejectsWrongFieldCount(t *testing.T) {
	if _, err := Parse("too few fields"); err == nil {
		t.Fatal("expected error for malformed cdx line")
	}
}
