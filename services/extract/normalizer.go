package extract

import (
	"bytes"
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"github.com/xuebang/xuebang-api/config"
	"github.com/xuebang/xuebang-api/utils"
)

// Normalizer turns uploaded study material into plain UTF-8 text so every
// downstream prompt works from the same representation regardless of the
// original file format.
type Normalizer struct {
	maxBytes int
}

// NewNormalizer creates a normalizer with the default upload size cap
func NewNormalizer() *Normalizer {
	return &Normalizer{maxBytes: config.MaxUploadBytes}
}

// supported maps accepted extensions to their handlers. Extensions are
// matched case-insensitively.
var supportedExtensions = map[string]bool{
	".pdf":  true,
	".docx": true,
	".pptx": true,
	".txt":  true,
	".zip":  true,
}

// IsSupported reports whether the filename carries an accepted extension
func IsSupported(filename string) bool {
	return supportedExtensions[strings.ToLower(filepath.Ext(filename))]
}

// Normalize extracts plain text from the uploaded file. The returned text
// is sanitized and never empty; any failure maps to one of the typed errors
// in this package.
func (n *Normalizer) Normalize(filename string, content []byte) (string, error) {
	if len(content) > n.maxBytes {
		return "", fmt.Errorf("%w: %d bytes (max %d)", ErrTooLarge, len(content), n.maxBytes)
	}

	ext := strings.ToLower(filepath.Ext(filename))

	var (
		text string
		err  error
	)
	switch ext {
	case ".pdf":
		text, err = n.extractPDF(content)
	case ".docx":
		text, err = n.extractDOCX(content)
	case ".pptx":
		text, err = n.extractPPTX(content)
	case ".txt":
		text, err = n.extractTXT(content)
	case ".zip":
		text, err = n.extractZIP(content)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, ext)
	}
	if err != nil {
		return "", err
	}

	text = utils.CleanText(text)
	if text == "" {
		return "", ErrEmptyContent
	}

	log.Printf("normalized %s (%s, %d bytes) into %d chars", filename, ext, len(content), len(text))
	return text, nil
}

// extractTXT decodes a plain text upload, replacing invalid UTF-8 sequences
func (n *Normalizer) extractTXT(content []byte) (string, error) {
	if len(bytes.TrimSpace(content)) == 0 {
		return "", ErrEmptyContent
	}
	// Strip UTF-8 BOM if present
	content = bytes.TrimPrefix(content, []byte{0xEF, 0xBB, 0xBF})
	return strings.ToValidUTF8(string(content), "�"), nil
}
