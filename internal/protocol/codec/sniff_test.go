package codec

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescribeForeign(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"empty", "  \n", "empty reply"},
		{"html title", "<html><head><title>403 Forbidden</title></head><body>blocked</body></html>", `page "403 Forbidden"`},
		{"html heading", "<html><body><h1>Site Maintenance</h1></body></html>", `page "Site Maintenance"`},
		{"plain text", "Service <b>Unavailable</b>\n\n retry later", `"Service Unavailable retry later"`},
		{"json", `{"error":"denied"}`, "application/json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, describeForeign([]byte(tt.raw)), tt.want)
		})
	}
}

func TestDescribeForeignTruncates(t *testing.T) {
	got := snippet([]byte(strings.Repeat("é", 200)))
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.LessOrEqual(t, len(got), snippetLimit+3)
}

func TestMalformedReasonNamesForeignPage(t *testing.T) {
	c, err := New(DefaultProfile())
	require.NoError(t, err)

	_, err = c.DecodeResponse([]byte("<html><title>Welcome to nginx!</title></html>"))

	var malformed *MalformedResponseError
	require.ErrorAs(t, err, &malformed)
	assert.Contains(t, malformed.Reason, "Welcome to nginx!")
}
