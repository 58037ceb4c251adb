package extract

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"golang.org/x/net/html"
)

// PreviewLimit caps the extracted-text preview returned with upload
// responses.
const PreviewLimit = 1000

// FromFile extracts plain text from an uploaded file based on its name and
// MIME type. Unsupported formats return an empty string with no error; the
// upload is still stored, just without searchable text.
func FromFile(filename, mimeType string, data []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch {
	case ext == ".pdf" || mimeType == "application/pdf":
		return FromPDF(data)
	case strings.HasPrefix(mimeType, "image/"):
		return FromImage(data, ext)
	case ext == ".html" || ext == ".htm" || mimeType == "text/html":
		return FromHTML(data)
	case ext == ".txt" || ext == ".md" || strings.HasPrefix(mimeType, "text/"):
		return normalizeText(string(data)), nil
	default:
		return "", nil
	}
}

// FromPDF tries pdftotext first (better support for complex layouts) and
// falls back to the Go PDF library.
func FromPDF(data []byte) (string, error) {
	if text, err := pdfWithPdftotext(data); err == nil && text != "" {
		return text, nil
	}
	return pdfWithGoLib(data)
}

func pdfWithPdftotext(data []byte) (string, error) {
	if _, err := exec.LookPath("pdftotext"); err != nil {
		return "", fmt.Errorf("pdftotext not found: %w", err)
	}
	path, cleanup, err := tempFile(data, "*.pdf")
	if err != nil {
		return "", err
	}
	defer cleanup()

	cmd := exec.Command("pdftotext", "-layout", "-enc", "UTF-8", path, "-")
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("pdftotext failed: %w", err)
	}
	text := normalizeText(string(output))
	if text == "" {
		return "", fmt.Errorf("no text extracted from PDF")
	}
	return text, nil
}

func pdfWithGoLib(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	var buf strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// Skip problematic pages instead of failing entirely
			continue
		}
		buf.WriteString(text)
		buf.WriteString("\n")
	}
	text := normalizeText(buf.String())
	if text == "" {
		return "", fmt.Errorf("no text extracted from PDF")
	}
	return text, nil
}

// FromImage runs tesseract OCR when available. Images without an OCR tool
// installed yield no text.
func FromImage(data []byte, ext string) (string, error) {
	if _, err := exec.LookPath("tesseract"); err != nil {
		return "", nil
	}
	if ext == "" {
		ext = ".png"
	}
	path, cleanup, err := tempFile(data, "*"+ext)
	if err != nil {
		return "", err
	}
	defer cleanup()

	cmd := exec.Command("tesseract", path, "stdout")
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("tesseract failed: %w", err)
	}
	return normalizeText(string(output)), nil
}

// FromHTML extracts visible text, skipping script and style blocks.
func FromHTML(data []byte) (string, error) {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	return normalizeText(nodeText(doc)), nil
}

// Preview truncates extracted text for upload listings.
func Preview(text string) string {
	runes := []rune(text)
	if len(runes) <= PreviewLimit {
		return text
	}
	return string(runes[:PreviewLimit]) + "..."
}

func tempFile(data []byte, pattern string) (string, func(), error) {
	f, err := os.CreateTemp("", pattern)
	if err != nil {
		return "", nil, fmt.Errorf("create temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", nil, fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", nil, fmt.Errorf("close temp file: %w", err)
	}
	return f.Name(), func() { os.Remove(f.Name()) }, nil
}

// normalizeText keeps line structure but strips control bytes and trims
// trailing whitespace per line.
func normalizeText(text string) string {
	text = strings.ReplaceAll(text, "\x00", " ")
	text = strings.ToValidUTF8(text, "")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func nodeText(n *html.Node) string {
	var buf strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		switch node.Type {
		case html.TextNode:
			buf.WriteString(node.Data)
			buf.WriteString(" ")
		case html.ElementNode:
			if node.Data == "script" || node.Data == "style" {
				return
			}
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
		if node.Type == html.ElementNode && (node.Data == "p" || node.Data == "br" || node.Data == "div" || node.Data == "li") {
			buf.WriteString("\n")
		}
	}
	walk(n)
	return buf.String()
}
