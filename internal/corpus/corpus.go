// Package corpus loads documents for extraction from JSONL, text, markdown,
// HTML, PDF and DOCX files.
package corpus

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Document is one input document.
type Document struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Source string `json:"source"`
	Text   string `json:"text"`
	Format string `json:"format"` // "html" or "markdown" marks Text as markup
}

var (
	urlPattern     = regexp.MustCompile(`(?i)\b(?:https?://|www\.)[^\s<>"]+`)
	mentionPattern = regexp.MustCompile(`(^|\s)@[\p{L}\p{N}_.\-]+`)
	emojiPattern   = regexp.MustCompile(`:[a-z][a-z0-9_+\-]*:`)
	spacePattern   = regexp.MustCompile(`[ \t\f\v\x{00a0}\x{3000}]+`)
)

// Load reads documents from a file or, for a directory, from every supported
// file below it in lexical order. Documents whose text is empty after
// cleaning are dropped.
func Load(path string) ([]Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.IsDir() {
		if !Supported(path) {
			return nil, fmt.Errorf("unsupported input %s", path)
		}
		return loadFile(path)
	}

	var docs []Document
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !Supported(p) {
			return nil
		}
		loaded, err := loadFile(p)
		if err != nil {
			return err
		}
		docs = append(docs, loaded...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// Supported reports whether path has an extension Load understands.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl", ".txt", ".md", ".markdown", ".html", ".htm", ".pdf", ".docx":
		return true
	}
	return false
}

func loadFile(path string) ([]Document, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".pdf":
		text, err := extractPDF(path)
		if err != nil {
			return nil, fmt.Errorf("extract pdf %s: %w", path, err)
		}
		return single(path, text), nil
	case ".docx":
		text, err := extractDOCX(path)
		if err != nil {
			return nil, fmt.Errorf("extract docx %s: %w", path, err)
		}
		return single(path, text), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file %s: %w", path, err)
	}
	switch ext {
	case ".jsonl":
		return parseJSONL(path, string(data)), nil
	case ".html", ".htm":
		return single(path, ExtractHTML(string(data))), nil
	case ".md", ".markdown":
		return single(path, ExtractMarkdown(data)), nil
	default:
		return single(path, string(data)), nil
	}
}

func single(path, text string) []Document {
	text = Clean(text)
	if text == "" {
		return nil
	}
	return []Document{{ID: filepath.Base(path), Source: path, Text: text}}
}

func parseJSONL(path, data string) []Document {
	var docs []Document
	for i, line := range strings.Split(data, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		var doc Document
		if err := json.Unmarshal([]byte(line), &doc); err != nil {
			log.Printf("Warning: skipping malformed JSON at line %d in %s: %v", i+1, path, err)
			continue
		}
		switch strings.ToLower(doc.Format) {
		case "html":
			doc.Text = ExtractHTML(doc.Text)
		case "markdown", "md":
			doc.Text = ExtractMarkdown([]byte(doc.Text))
		}
		doc.Text = Clean(doc.Text)
		if doc.Text == "" {
			continue
		}
		if doc.ID == "" {
			doc.ID = fmt.Sprintf("%s:%d", filepath.Base(path), i+1)
		}
		if doc.Source == "" {
			doc.Source = path
		}
		docs = append(docs, doc)
	}
	return docs
}

// Texts returns the text of every document in order.
func Texts(docs []Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.Text
	}
	return out
}

// Clean strips URLs, chat mentions and emoji shortcodes, collapses blank
// runs and normalizes to NFC.
func Clean(text string) string {
	text = norm.NFC.String(text)
	text = urlPattern.ReplaceAllString(text, " ")
	text = mentionPattern.ReplaceAllString(text, "$1")
	text = emojiPattern.ReplaceAllString(text, " ")

	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(spacePattern.ReplaceAllString(line, " "))
		if line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
