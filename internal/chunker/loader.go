package chunker

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ErrUnsupportedFormat indicates a document format the loader cannot handle.
var ErrUnsupportedFormat = errors.New("unsupported document format")

var (
	multiSpace = regexp.MustCompile(` +`)
)

// LoadFile loads a document by file extension, returning the cleaned text
// and its detected type. Unsupported extensions fail fast with
// ErrUnsupportedFormat.
func LoadFile(path string) (string, DocType, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt":
		text, err := LoadText(path)
		return text, TypeText, err
	case ".html", ".htm":
		text, err := LoadHTML(path)
		return text, TypeHTML, err
	default:
		return "", "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// LoadText loads a plain-text file and normalizes its whitespace.
func LoadText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return cleanText(string(data)), nil
}

// LoadHTML loads an HTML file and extracts its visible text, dropping
// script and style elements.
func LoadHTML(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return "", fmt.Errorf("parsing %s: %w", path, err)
	}

	doc.Find("script, style").Remove()

	return cleanText(doc.Text()), nil
}

// cleanText collapses runs of spaces, trims every line, and drops blank
// lines so chunk boundaries track real content.
func cleanText(s string) string {
	s = multiSpace.ReplaceAllString(s, " ")

	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, line := range lines {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return strings.Join(out, "\n")
}
