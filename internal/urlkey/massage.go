// Package urlkey implements the massaged-URL canonical form used as the
// search key for URL lookups: a reversed-host, literal-path form chosen so
// that near-matches sort together and prefix/regex queries can express
// host/path patterns without backtracking.
package urlkey

import (
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/xerrors"
)

var defaultPortByScheme = map[string]int{
	"http":  80,
	"https": 443,
}

// Massage computes the canonical massaged form of rawURL.
//
//	reversed, comma-joined host (or the IP literal, verbatim)
//	optional ":<port>" when the port is non-default for the scheme
//	host/path separator literal ')'
//	literal path
//	optional "?&k=v&..." with pairs stable-sorted by key then value
func Massage(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", xerrors.Errorf("massaging url %q: %w", rawURL, err)
	}

	var b strings.Builder
	host := u.Hostname()
	if isIPLiteral(host) {
		b.WriteString(host)
	} else if host != "" {
		b.WriteString(reverseDomain(strings.ToLower(host)))
	}

	if portStr := u.Port(); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return "", xerrors.Errorf("massaging url %q: invalid port: %w", rawURL, err)
		}
		if def, ok := defaultPortByScheme[u.Scheme]; !ok || def != port {
			b.WriteByte(':')
			b.WriteString(portStr)
		}
	}

	b.WriteByte(')')
	b.WriteString(u.Path)

	if u.RawQuery != "" {
		pairs := sortedQueryPairs(u.Query())
		if len(pairs) > 0 {
			b.WriteString("?&")
			for _, p := range pairs {
				b.WriteString(p.key)
				b.WriteByte('=')
				b.WriteString(url.QueryEscape(p.value))
				b.WriteByte('&')
			}
		}
	}

	return b.String(), nil
}

type queryPair struct{ key, value string }

func sortedQueryPairs(values url.Values) []queryPair {
	var pairs []queryPair
	for k, vs := range values {
		for _, v := range vs {
			pairs = append(pairs, queryPair{k, v})
		}
	}
	sort.SliceStable(pairs, func(i, j int) bool {
		if pairs[i].key != pairs[j].key {
			return pairs[i].key < pairs[j].key
		}
		return pairs[i].value < pairs[j].value
	})
	return pairs
}

func reverseDomain(host string) string {
	host = strings.Trim(host, ".")
	if host == "" {
		return ""
	}
	parts := strings.Split(host, ".")
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, ",")
}

var ipv4Re = regexp.MustCompile(`^(\d{1,3}\.){3}\d{1,3}$`)

func isIPLiteral(host string) bool {
	if host == "" {
		return false
	}
	// A dotted-quad is unambiguous. IPv6 literals contain ':' and never
	// contain '.' as a domain separator in our inputs, so a ':' is enough
	// of a signal without pulling in net.ParseIP for every hostname.
	if strings.Contains(host, ":") {
		return true
	}
	return ipv4Re.MatchString(host)
}
