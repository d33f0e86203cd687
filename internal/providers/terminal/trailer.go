package terminal

import (
	"strings"
)

// between returns the text strictly between the last two occurrences of
// sentinel, and the text before the earlier one.
func between(raw, sentinel string) (before, inner string, ok bool) {
	closing := strings.LastIndex(raw, sentinel)
	if closing < 0 {
		return raw, "", false
	}
	opening := strings.LastIndex(raw[:closing], sentinel)
	if opening < 0 {
		return raw, "", false
	}
	return raw[:opening], raw[opening+len(sentinel) : closing], true
}

// trimInserted removes the single line break the wrapper prints before its
// trailer.
func trimInserted(s string) string {
	if strings.HasSuffix(s, "\r\n") {
		return s[:len(s)-2]
	}
	return strings.TrimSuffix(s, "\n")
}

// splitTrailer separates user output from the post-command directory.
func splitTrailer(raw, sentinel string) (output, cwd string, ok bool) {
	before, inner, ok := between(raw, sentinel)
	if !ok {
		return raw, "", false
	}
	return trimInserted(before), strings.TrimSpace(inner), true
}

// parseFields reads key=value lines. Later keys win.
func parseFields(block string) map[string]string {
	fields := make(map[string]string)
	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSpace(line)
		k, v, ok := strings.Cut(line, "=")
		if !ok || k == "" {
			continue
		}
		fields[k] = strings.TrimSpace(v)
	}
	return fields
}

// frameBody returns the query output between the sentinels with the final
// line break removed.
func frameBody(raw, sentinel string) (string, bool) {
	_, inner, ok := between(raw, sentinel)
	if !ok {
		return "", false
	}
	inner = strings.TrimPrefix(inner, "\r\n")
	inner = strings.TrimPrefix(inner, "\n")
	return trimInserted(inner), true
}
