// Package documents finds source documents and extracts their text.
package documents

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"sftgen/internal/models"
	"sftgen/internal/util"

	"github.com/ledongthuc/pdf"
	"golang.org/x/net/html"
)

// Discover returns the paths in dir matching pattern, sorted by name.
func Discover(dir, pattern string) ([]string, error) {
	if strings.TrimSpace(pattern) == "" {
		pattern = "*.txt"
	}
	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("%w: file pattern %q: %v", util.ErrConfiguration, pattern, err)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: docs dir %s: %v", util.ErrConfiguration, dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: docs dir %s is not a directory", util.ErrConfiguration, dir)
	}
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, fmt.Errorf("%w: glob %s: %v", util.ErrConfiguration, pattern, err)
	}
	out := matches[:0]
	for _, m := range matches {
		if fi, err := os.Stat(m); err == nil && fi.Mode().IsRegular() {
			out = append(out, m)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Load reads a document and returns its text. The extractor is chosen by extension; anything
// that is not .pdf or .html/.htm is read as UTF-8 text unchanged.
func Load(path string) (models.Document, error) {
	doc := models.Document{Name: filepath.Base(path), Path: path}
	var (
		text string
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		text, err = extractPDF(path)
	case ".html", ".htm":
		text, err = extractHTML(path)
	default:
		var b []byte
		b, err = os.ReadFile(path)
		text = string(b)
	}
	if err != nil {
		return doc, fmt.Errorf("%w: %s: %v", util.ErrDocumentRead, doc.Name, err)
	}
	doc.Text = text
	return doc, nil
}

func extractPDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	reader, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}
	buf := new(strings.Builder)
	if _, err := io.Copy(buf, reader); err != nil {
		return "", fmt.Errorf("read extracted text: %w", err)
	}
	text := util.SanitizeText(strings.TrimSpace(buf.String()))
	if text == "" {
		return "", util.ErrNoExtractableText
	}
	return text, nil
}

// extractHTML keeps the text of <p> and <pre> elements, one block per element, separated by a
// blank line. Pages scraped from documentation sites carry their content in those two tags.
func extractHTML(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	root, err := html.Parse(f)
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	var blocks []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "p" || n.Data == "pre") {
			var buf strings.Builder
			collectText(n, &buf)
			if s := strings.TrimSpace(buf.String()); s != "" {
				blocks = append(blocks, s)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return strings.Join(blocks, "\n\n"), nil
}

func collectText(n *html.Node, buf *strings.Builder) {
	if n.Type == html.TextNode {
		buf.WriteString(n.Data)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, buf)
	}
}
