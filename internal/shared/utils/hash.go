package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strconv"
	"strings"
)

// ShellIdentifier derives the duplicate-detection fingerprint of a shell.
type ShellIdentifier struct{}

// NewShellIdentifier creates an identifier.
func NewShellIdentifier() *ShellIdentifier {
	return &ShellIdentifier{}
}

// Fingerprint identifies the location+credential pair. The location is
// normalized first: scheme and host are case-insensitive and a default
// port is dropped.
func (si *ShellIdentifier) Fingerprint(location, credential string) string {
	return hashOrdered(NormalizeLocation(location), credential)
}

// hashOrdered is the hex SHA-256 of fields in the given order. Each field is
// length prefixed so ("ab","c") and ("a","bc") differ.
func hashOrdered(fields ...string) string {
	var b strings.Builder
	for _, f := range fields {
		b.WriteString(strconv.Itoa(len(f)))
		b.WriteByte(':')
		b.WriteString(f)
		b.WriteByte('|')
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// ShortFingerprint returns the first 8 characters for display.
func (si *ShellIdentifier) ShortFingerprint(full string) string {
	if len(full) < 8 {
		return full
	}
	return full[:8]
}

// NormalizeLocation canonicalizes a stub URL for comparison.
func NormalizeLocation(location string) string {
	u, err := url.Parse(strings.TrimSpace(location))
	if err != nil || u.Host == "" {
		return strings.TrimSpace(location)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		port = ""
	}
	if port != "" {
		host = host + ":" + port
	}
	if strings.Contains(u.Hostname(), ":") {
		host = "[" + strings.ToLower(u.Hostname()) + "]"
		if port != "" {
			host += ":" + port
		}
	}
	u.Host = host
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}
