// Package parser extracts plain text from uploaded document bytes.
package parser

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/zilogo/simba/internal/kberr"
)

const (
	mimeText     = "text/plain"
	mimeMarkdown = "text/markdown"
	mimeCSV      = "text/csv"
	mimeJSON     = "application/json"
)

var extensionMimes = map[string]string{
	".txt":      mimeText,
	".text":     mimeText,
	".md":       mimeMarkdown,
	".markdown": mimeMarkdown,
	".csv":      mimeCSV,
	".json":     mimeJSON,
}

// SupportedTypes lists the MIME types Parse accepts, sorted.
func SupportedTypes() []string {
	types := []string{mimeText, mimeMarkdown, mimeCSV, mimeJSON}
	sort.Strings(types)
	return types
}

// Supported reports whether the MIME type (or, failing that, the filename
// extension) maps to a parseable format.
func Supported(mimeType, filename string) bool {
	return resolveType(mimeType, filename) != ""
}

func resolveType(mimeType, filename string) string {
	// Strip parameters like "; charset=utf-8".
	if idx := strings.Index(mimeType, ";"); idx >= 0 {
		mimeType = mimeType[:idx]
	}
	mimeType = strings.TrimSpace(strings.ToLower(mimeType))

	switch mimeType {
	case mimeText, mimeMarkdown, mimeCSV, mimeJSON:
		return mimeType
	}
	if mt, ok := extensionMimes[strings.ToLower(filepath.Ext(filename))]; ok {
		return mt
	}
	return ""
}

// Parse extracts plain text from the file content. Unsupported types and
// undecodable content fail with a ParseError.
func Parse(content []byte, mimeType, filename string) (string, error) {
	resolved := resolveType(mimeType, filename)
	if resolved == "" {
		return "", kberr.NewParse("unsupported document type %q for file %q", mimeType, filename)
	}

	switch resolved {
	case mimeText, mimeMarkdown:
		return parsePlain(content)
	case mimeCSV:
		return parseCSV(content)
	case mimeJSON:
		return parseJSON(content)
	}
	return "", kberr.NewParse("unsupported document type %q", resolved)
}

func parsePlain(content []byte) (string, error) {
	if !utf8.Valid(content) {
		return "", kberr.NewParse("document is not valid UTF-8 text")
	}
	return string(content), nil
}

// parseCSV flattens rows into lines so the chunker sees one record per line.
func parseCSV(content []byte) (string, error) {
	reader := csv.NewReader(bytes.NewReader(content))
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return "", kberr.NewParse("invalid CSV: %v", err)
	}

	var sb strings.Builder
	for _, record := range records {
		sb.WriteString(strings.Join(record, ", "))
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

// parseJSON renders scalar values line by line, descending into objects and
// arrays, so nested structures stay searchable as text.
func parseJSON(content []byte) (string, error) {
	var value interface{}
	if err := json.Unmarshal(content, &value); err != nil {
		return "", kberr.NewParse("invalid JSON: %v", err)
	}

	var sb strings.Builder
	flattenJSON("", value, &sb)
	return sb.String(), nil
}

func flattenJSON(prefix string, value interface{}, sb *strings.Builder) {
	switch v := value.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			flattenJSON(joinPath(prefix, k), v[k], sb)
		}
	case []interface{}:
		for i, item := range v {
			flattenJSON(joinPath(prefix, fmt.Sprintf("%d", i)), item, sb)
		}
	case nil:
		// skip nulls
	default:
		if prefix == "" {
			fmt.Fprintf(sb, "%v\n", v)
		} else {
			fmt.Fprintf(sb, "%s: %v\n", prefix, v)
		}
	}
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
