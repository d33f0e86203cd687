package utils

import (
	"encoding/base64"
	"fmt"
	"net"
	"net/url"
	"strings"
	"unicode/utf8"
)

// String length limits
const (
	MaxLocationLength = 2048
	MaxLabelLength    = 128
	MaxNoteLength     = 4096
	MaxCommandLength  = 64 * 1024
)

// ValidateString validates a string field with length and content checks
func ValidateString(value, fieldName string, minLen, maxLen int, required bool) error {
	if required && value == "" {
		return fmt.Errorf("%s is required", fieldName)
	}
	if value == "" && !required {
		return nil
	}

	length := utf8.RuneCountInString(value)
	if length < minLen {
		return fmt.Errorf("%s must be at least %d characters", fieldName, minLen)
	}
	if length > maxLen {
		return fmt.Errorf("%s must not exceed %d characters", fieldName, maxLen)
	}
	if strings.Contains(value, "\x00") {
		return fmt.Errorf("%s contains invalid characters", fieldName)
	}
	return nil
}

// ValidateLocation checks a stub URL: http or https with a host.
func ValidateLocation(location string) error {
	if err := ValidateString(location, "location", 1, MaxLocationLength, true); err != nil {
		return err
	}
	u, err := url.Parse(location)
	if err != nil {
		return fmt.Errorf("location is not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("location must use http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("location has no host")
	}
	return nil
}

// ValidateCredential checks an optional base64 key.
func ValidateCredential(credential string) error {
	if credential == "" {
		return nil
	}
	key, err := base64.StdEncoding.DecodeString(credential)
	if err != nil {
		return fmt.Errorf("credential must be base64: %w", err)
	}
	if len(key) == 0 {
		return fmt.Errorf("credential decodes to an empty key")
	}
	return nil
}

// ValidateSourceIP accepts an empty value or a literal IP address.
func ValidateSourceIP(ip string) error {
	if ip == "" || net.ParseIP(ip) != nil {
		return nil
	}
	return fmt.Errorf("source_ip %q is not an IP address", ip)
}

// ValidateLabel validates the optional display label.
func ValidateLabel(label string) error {
	return ValidateString(label, "label", 0, MaxLabelLength, false)
}

// ValidateNote validates the optional free-form note.
func ValidateNote(note string) error {
	return ValidateString(note, "note", 0, MaxNoteLength, false)
}

// ValidateCommand rejects empty or oversized commands.
func ValidateCommand(command string) error {
	if strings.TrimSpace(command) == "" {
		return fmt.Errorf("command is required")
	}
	if len(command) > MaxCommandLength {
		return fmt.Errorf("command exceeds %d bytes", MaxCommandLength)
	}
	return nil
}
