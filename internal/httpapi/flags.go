package httpapi

import "strings"

// recordFlags decodes the path-segment flag characters described in
// spec.md §6: 'h' prepends WARC headers and the trailer so the body is a
// self-contained WARC record, 'd' forces a download content-type, and 'r'
// returns the raw, compressed-on-disk bytes without decompression.
type recordFlags struct {
	headers  bool
	download bool
	raw      bool
}

func parseFlags(s string) recordFlags {
	return recordFlags{
		headers:  strings.ContainsRune(s, 'h'),
		download: strings.ContainsRune(s, 'd'),
		raw:      strings.ContainsRune(s, 'r'),
	}
}
