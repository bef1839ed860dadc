package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zilogo/simba/internal/kberr"
)

func TestSupportedTypes(t *testing.T) {
	types := SupportedTypes()
	assert.Contains(t, types, "text/plain")
	assert.Contains(t, types, "text/markdown")
	assert.Contains(t, types, "text/csv")
	assert.Contains(t, types, "application/json")
}

func TestSupported(t *testing.T) {
	assert.True(t, Supported("text/plain", "notes"))
	assert.True(t, Supported("text/plain; charset=utf-8", "notes"))
	assert.True(t, Supported("application/octet-stream", "readme.md"))
	assert.False(t, Supported("application/pdf", "report.pdf"))
}

func TestParsePlainText(t *testing.T) {
	text, err := Parse([]byte("hello world"), "text/plain", "notes.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello world", text)
}

func TestParseMarkdownByExtension(t *testing.T) {
	text, err := Parse([]byte("# Title\n\nBody."), "", "readme.md")
	require.NoError(t, err)
	assert.Contains(t, text, "# Title")
}

func TestParseUnsupportedType(t *testing.T) {
	_, err := Parse([]byte{0x25, 0x50, 0x44, 0x46}, "application/pdf", "report.pdf")
	require.Error(t, err)
	assert.True(t, kberr.IsParse(err))
}

func TestParseUnsupportedTypeNameVerbatim(t *testing.T) {
	// A percent sign in the filename must survive into the message as-is,
	// not be reinterpreted as a formatting verb.
	_, err := Parse([]byte("data"), "application/pdf", "q4 report 100%.pdf")
	require.Error(t, err)
	assert.True(t, kberr.IsParse(err))
	assert.Contains(t, err.Error(), `"q4 report 100%.pdf"`)
}

func TestParseInvalidUTF8(t *testing.T) {
	_, err := Parse([]byte{0xff, 0xfe, 0x00}, "text/plain", "junk.txt")
	require.Error(t, err)
	assert.True(t, kberr.IsParse(err))
}

func TestParseCSV(t *testing.T) {
	content := []byte("name,role\nalice,admin\nbob,viewer\n")
	text, err := Parse(content, "text/csv", "users.csv")
	require.NoError(t, err)
	assert.Contains(t, text, "alice, admin")
	assert.Contains(t, text, "bob, viewer")
}

func TestParseCSVInvalid(t *testing.T) {
	_, err := Parse([]byte("a,\"unterminated\n"), "text/csv", "broken.csv")
	require.Error(t, err)
	assert.True(t, kberr.IsParse(err))
}

func TestParseJSON(t *testing.T) {
	content := []byte(`{"title": "Guide", "tags": ["go", "search"], "meta": {"pages": 12}}`)
	text, err := Parse(content, "application/json", "doc.json")
	require.NoError(t, err)
	assert.Contains(t, text, "title: Guide")
	assert.Contains(t, text, "tags.0: go")
	assert.Contains(t, text, "meta.pages: 12")
}

func TestParseJSONInvalid(t *testing.T) {
	_, err := Parse([]byte("{not json"), "application/json", "doc.json")
	require.Error(t, err)
	assert.True(t, kberr.IsParse(err))
}
