// Copyright 2025 Author(s) of airlock
// SPDX-License-Identifier: Apache-2.0

// Package safeurl parses untrusted http(s) URLs into a canonical, immutable
// form that is safe to classify.
//
// Parsing closes the usual host-confusion vectors: embedded credentials are
// dropped, IPv6 literals are unwrapped, numeric IPv4 spellings such as
// 0177.0.0.1, 0x7f.1 or 2130706433 are rewritten to dotted decimal, and
// internationalised names are mapped to their ASCII form. Anything the parser
// cannot reduce to one unambiguous host is rejected.
package safeurl

import (
	"net/netip"
	"net/url"
	"strconv"
	"strings"
	"unicode"
)

// MaxLength is the longest raw URL Parse accepts.
const MaxLength = 2048

// SafeURL is a canonicalised http or https URL. The zero value is not usable;
// obtain one from Parse.
type SafeURL struct {
	scheme string
	host   string
	key    string
	port   uint16
	addr   netip.Addr
	path   string
	query  string
}

// Parse canonicalises raw. It returns an *Error for anything that is not an
// absolute http or https URL with an unambiguous host.
func Parse(raw string) (*SafeURL, error) {
	if len(raw) > MaxLength {
		return nil, newError(raw, "URL exceeds maximum length", nil)
	}
	if reason := rejectRaw(raw); reason != "" {
		return nil, newError(raw, reason, nil)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, newError(raw, "malformed URL", err)
	}

	switch u.Scheme {
	case "http", "https":
	case "":
		return nil, newError(raw, "missing scheme", nil)
	default:
		return nil, newError(raw, "scheme "+strconv.Quote(u.Scheme)+" is not allowed", nil)
	}
	if u.Opaque != "" {
		return nil, newError(raw, "missing \"//\" after scheme", nil)
	}
	if strings.Count(authority(raw), "@") > 1 {
		return nil, newError(raw, "multiple '@' in authority", nil)
	}

	s := &SafeURL{scheme: u.Scheme}

	if err := s.setHost(u); err != nil {
		return nil, newError(raw, err.reason, err.err)
	}
	if err := s.setPort(u.Port()); err != "" {
		return nil, newError(raw, err, nil)
	}

	s.path = u.EscapedPath()
	if s.path == "" {
		s.path = "/"
	}
	if u.RawQuery != "" || u.ForceQuery {
		s.query = u.RawQuery
		if s.query == "" {
			s.query = "?"
		}
	}
	return s, nil
}

// MustParse is Parse that panics on error. Intended for tests and constants.
func MustParse(raw string) *SafeURL {
	s, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return s
}

// Scheme returns "http" or "https".
func (s *SafeURL) Scheme() string { return s.scheme }

// IsHTTPS reports whether the scheme is https.
func (s *SafeURL) IsHTTPS() bool { return s.scheme == "https" }

// Host returns the canonical host without brackets or port. ASCII hostnames
// keep the caller's casing so the value can be sent as Host header and TLS
// server name; internationalised names are returned in punycode and IP
// literals in canonical form.
func (s *SafeURL) Host() string { return s.host }

// Key returns the lower-cased host with any trailing dot removed. It is the
// form used for hostname matching.
func (s *SafeURL) Key() string { return s.key }

// Port returns the explicit port, or 80/443 by scheme.
func (s *SafeURL) Port() uint16 { return s.port }

// Addr returns the address when the host is an IP literal.
func (s *SafeURL) Addr() (netip.Addr, bool) { return s.addr, s.addr.IsValid() }

// IsIP reports whether the host is an IP literal.
func (s *SafeURL) IsIP() bool { return s.addr.IsValid() }

// Path returns the escaped path, at least "/".
func (s *SafeURL) Path() string { return s.path }

// RequestURI returns the path and query as sent on the request line.
func (s *SafeURL) RequestURI() string {
	switch s.query {
	case "":
		return s.path
	case "?":
		return s.path + "?"
	default:
		return s.path + "?" + s.query
	}
}

// HostPort returns host:port suitable for the Host header. The default port
// for the scheme is omitted.
func (s *SafeURL) HostPort() string {
	h := s.host
	if s.addr.Is6() {
		h = "[" + h + "]"
	}
	if s.port == defaultPort(s.scheme) {
		return h
	}
	return h + ":" + strconv.Itoa(int(s.port))
}

// String returns scheme://host[:port]path[?query]. Parsing the result yields
// an equal SafeURL.
func (s *SafeURL) String() string {
	return s.scheme + "://" + s.HostPort() + s.RequestURI()
}

// URL returns a fresh *url.URL for the canonical form.
func (s *SafeURL) URL() *url.URL {
	u, _ := url.Parse(s.String())
	return u
}

type hostError struct {
	reason string
	err    error
}

func (s *SafeURL) setHost(u *url.URL) *hostError {
	if strings.HasPrefix(u.Host, "[") {
		h := u.Hostname()
		if strings.Contains(h, "%") {
			return &hostError{reason: "IPv6 zone identifiers are not allowed"}
		}
		ip, err := netip.ParseAddr(h)
		if err != nil || !ip.Is6() {
			return &hostError{reason: "invalid IPv6 literal", err: err}
		}
		s.addr = ip
		s.host = ip.String()
		s.key = s.host
		return nil
	}

	h := u.Hostname()
	if h == "" {
		return &hostError{reason: "missing host"}
	}

	ascii, key, herr := mapHost(h)
	if herr != nil {
		return herr
	}

	if endsInNumber(key) {
		ip, ok := parseIPv4(key)
		if !ok {
			return &hostError{reason: "invalid IPv4 literal " + strconv.Quote(h)}
		}
		s.addr = ip
		s.host = ip.String()
		s.key = s.host
		return nil
	}

	s.key = key
	s.host = ascii
	if isASCII(h) && strings.EqualFold(h, ascii) {
		s.host = h
	}
	return nil
}

func (s *SafeURL) setPort(p string) string {
	if p == "" {
		s.port = defaultPort(s.scheme)
		return ""
	}
	n, err := strconv.ParseUint(p, 10, 16)
	if err != nil || n == 0 {
		return "invalid port " + strconv.Quote(p)
	}
	s.port = uint16(n)
	return ""
}

func defaultPort(scheme string) uint16 {
	if scheme == "https" {
		return 443
	}
	return 80
}

// rejectRaw screens input that different URL parsers are known to disagree on.
func rejectRaw(raw string) string {
	if raw == "" {
		return "empty URL"
	}
	for _, r := range raw {
		switch {
		case r == '\\':
			return "backslash in URL"
		case r < 0x20 || r == 0x7f:
			return "control character in URL"
		case unicode.IsSpace(r):
			return "whitespace in URL"
		case unicode.IsControl(r):
			return "control character in URL"
		}
	}
	return ""
}

// authority returns the text between "//" and the next '/', '?' or '#'.
func authority(raw string) string {
	_, rest, ok := strings.Cut(raw, "//")
	if !ok {
		return ""
	}
	if i := strings.IndexAny(rest, "/?#"); i >= 0 {
		rest = rest[:i]
	}
	return rest
}

func hostByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '-' || c == '.' || c == '_'
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}

// Redact removes userinfo from raw so it can be logged. Unparseable input is
// returned with everything up to the last '@' of the authority cut away.
func Redact(raw string) string {
	if u, err := url.Parse(raw); err == nil && u.User != nil {
		u.User = nil
		return u.String()
	}
	auth := authority(raw)
	i := strings.LastIndex(auth, "@")
	if i < 0 {
		return raw
	}
	start := strings.Index(raw, auth)
	return raw[:start] + auth[i+1:] + raw[start+len(auth):]
}
