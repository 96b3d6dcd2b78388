package extract

import (
	"bytes"
	"fmt"
	"log"
	"strings"

	"github.com/ledongthuc/pdf"
)

// sanitizePDF truncates trailing garbage after the last %%EOF marker.
// PDFs downloaded from the web often carry HTML or tracking bytes appended
// after the document end, which breaks strict parsers.
func sanitizePDF(content []byte) []byte {
	if len(content) == 0 || !bytes.HasPrefix(content, []byte("%PDF-")) {
		return content
	}

	eofMarker := []byte("%%EOF")
	lastEOF := bytes.LastIndex(content, eofMarker)
	if lastEOF == -1 {
		return content
	}

	pdfEnd := lastEOF + len(eofMarker)
	for pdfEnd < len(content) && (content[pdfEnd] == '\n' || content[pdfEnd] == '\r') {
		pdfEnd++
	}

	if extra := len(content) - pdfEnd; extra > 10 {
		log.Printf("pdf: removing %d bytes of trailing garbage after %%EOF", extra)
		return content[:pdfEnd]
	}

	return content
}

// extractPDF pulls plain text out of a PDF, page by page
func (n *Normalizer) extractPDF(content []byte) (string, error) {
	if len(content) == 0 {
		return "", ErrEmptyContent
	}

	content = sanitizePDF(content)

	reader := bytes.NewReader(content)
	pdfReader, err := pdf.NewReader(reader, int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrParseFailed, err)
	}

	numPages := pdfReader.NumPage()
	if numPages == 0 {
		return "", ErrEmptyContent
	}

	var sb strings.Builder
	extracted := 0
	for i := 1; i <= numPages; i++ {
		page := pdfReader.Page(i)
		if page.V.IsNull() {
			continue
		}

		pageText, err := page.GetPlainText(nil)
		if err != nil {
			log.Printf("pdf: failed to extract page %d: %v", i, err)
			continue
		}

		pageText = strings.TrimSpace(pageText)
		if pageText == "" {
			continue
		}

		if extracted > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(pageText)
		extracted++
	}

	if extracted == 0 {
		return "", fmt.Errorf("%w: no extractable text in %d pages", ErrEmptyContent, numPages)
	}

	return sb.String(), nil
}
