package document

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"
)

const (
	maxPages    = 50
	maxTextSize = 1 << 20
)

// ErrNoText is returned when a PDF parses but yields no extractable text.
var ErrNoText = errors.New("pdf contains no extractable text")

// ExtractText pulls plain text out of a PDF resume. Pages that fail to
// decode are skipped rather than failing the whole document.
func ExtractText(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	totalPages := reader.NumPage()
	if totalPages == 0 {
		return "", errors.New("pdf has no pages")
	}
	if totalPages > maxPages {
		return "", fmt.Errorf("pdf has %d pages, max allowed is %d", totalPages, maxPages)
	}

	var b strings.Builder
	for pageNum := 1; pageNum <= totalPages; pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		cleaned := cleanText(text)
		if cleaned == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(cleaned)
		if b.Len() > maxTextSize {
			break
		}
	}

	out := b.String()
	if len(out) > maxTextSize {
		out = out[:maxTextSize]
	}
	if strings.TrimSpace(out) == "" {
		return "", ErrNoText
	}
	return out, nil
}

func cleanText(text string) string {
	text = strings.ReplaceAll(text, "\x00", "")

	var result strings.Builder
	lastWasSpace := false
	for _, r := range text {
		if unicode.IsSpace(r) {
			if r == '\n' {
				result.WriteRune('\n')
				lastWasSpace = false
			} else if !lastWasSpace {
				result.WriteRune(' ')
				lastWasSpace = true
			}
		} else {
			result.WriteRune(r)
			lastWasSpace = false
		}
	}
	return strings.TrimSpace(result.String())
}
