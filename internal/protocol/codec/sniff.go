package codec

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/gabriel-vasile/mimetype"
	"github.com/microcosm-cc/bluemonday"
)

const snippetLimit = 120

var textPolicy = bluemonday.StrictPolicy()

// describeForeign summarizes a reply that is not a stub envelope: a WAF
// block page, a default vhost, a login redirect. The summary ends up in
// MalformedResponseError and in the probe log.
func describeForeign(raw []byte) string {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "empty reply"
	}

	mime := mimetype.Detect(raw)
	if mime.Is("text/html") {
		if title := pageTitle(raw); title != "" {
			return fmt.Sprintf("%s page %q", mime.String(), title)
		}
	}
	if strings.HasPrefix(mime.String(), "text/") || mime.Is("application/json") {
		return fmt.Sprintf("%s reply %q", mime.String(), snippet(raw))
	}
	return fmt.Sprintf("%s reply of %d bytes", mime.String(), len(raw))
}

func pageTitle(raw []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return ""
	}
	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = strings.TrimSpace(doc.Find("h1").First().Text())
	}
	return truncate(title)
}

func snippet(raw []byte) string {
	text := textPolicy.SanitizeBytes(raw)
	return truncate(strings.Join(strings.Fields(string(text)), " "))
}

func truncate(s string) string {
	if len(s) <= snippetLimit {
		return s
	}
	cut := snippetLimit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
