package ingest

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"contentfactory/internal/textutil"
)

// noise is removed before text is collected.
const noise = "script, style, noscript, nav, footer, header, sup.reference, .mw-editsection, .navbox"

// blocks are the elements whose text becomes one line each.
const blocks = "h1, h2, h3, h4, h5, h6, p, li, dt, dd, blockquote, td"

// HTMLToText reduces an HTML document to one line per text block.
func HTMLToText(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	doc.Find(noise).Remove()

	var lines []string
	doc.Find(blocks).Each(func(_ int, sel *goquery.Selection) {
		// Nested blocks (a <p> inside an <li>) are emitted by the inner match.
		if sel.Find(blocks).Length() > 0 {
			return
		}
		if line := textutil.CollapseWhitespace(sel.Text()); line != "" {
			lines = append(lines, line)
		}
	})
	if len(lines) == 0 {
		if body := textutil.CollapseWhitespace(doc.Text()); body != "" {
			lines = append(lines, body)
		}
	}
	return strings.Join(lines, "\n"), nil
}

// ChunkLines groups lines into chunks whose rune count stays within limit.
// A single line longer than limit forms its own chunk.
func ChunkLines(text string, limit int) []string {
	var (
		chunks  []string
		current []string
		size    int
	)
	for _, line := range strings.Split(text, "\n") {
		n := utf8.RuneCountInString(line)
		if len(current) > 0 && size+n > limit {
			chunks = append(chunks, strings.Join(current, "\n"))
			current = current[:0]
			size = 0
		}
		current = append(current, line)
		size += n
	}
	if joined := strings.Join(current, "\n"); strings.TrimSpace(joined) != "" {
		chunks = append(chunks, joined)
	}
	return chunks
}

func isHTML(name string, head []byte) bool {
	lower := strings.ToLower(name)
	if strings.HasSuffix(lower, ".html") || strings.HasSuffix(lower, ".htm") {
		return true
	}
	sniff := strings.ToLower(strings.TrimSpace(string(head)))
	return strings.HasPrefix(sniff, "<!doctype html") || strings.HasPrefix(sniff, "<html")
}
