package urlkey

import (
	"regexp"
	"strconv"
	"strings"
)

// HostMatch selects how a search pattern matches the host component of a
// massaged URL.
type HostMatch int

const (
	HostAny HostMatch = iota
	HostExact
	HostPartial
)

// PathMatch selects how a search pattern matches the path component.
type PathMatch int

const (
	PathAny PathMatch = iota
	PathExact
	PathPartial
)

// Pattern describes a host/port/path search request.
type Pattern struct {
	Host      HostMatch
	HostValue string // domain, not yet reversed
	Port      *uint16
	Path      PathMatch
	PathValue string
}

// BuildRegexp renders p as a regular expression matching the massaged form
// of a URL, for use by the external index's LIKE/regexp search.
func BuildRegexp(p Pattern) string {
	var b strings.Builder

	switch p.Host {
	case HostAny:
		b.WriteString(".*")
	case HostExact:
		b.WriteString(regexp.QuoteMeta(reverseDomain(strings.ToLower(p.HostValue))))
	case HostPartial:
		b.WriteString(regexp.QuoteMeta(reverseDomain(strings.ToLower(p.HostValue))))
		b.WriteString(`(,[a-z0-9]+)*`)
	}

	if p.Port != nil {
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(int(*p.Port)))
	} else if !strings.HasSuffix(b.String(), ".*") {
		b.WriteString(`(:[0-9]{1,5})?`)
	}

	if !strings.HasSuffix(b.String(), ".*") {
		b.WriteString(`\)`)
	}

	switch p.Path {
	case PathAny:
		if !strings.HasSuffix(b.String(), ".*") {
			b.WriteString(".*")
		}
	case PathExact:
		b.WriteString(regexp.QuoteMeta(p.PathValue))
	case PathPartial:
		b.WriteString(regexp.QuoteMeta(p.PathValue))
		b.WriteString(".*")
	}

	return b.String()
}
