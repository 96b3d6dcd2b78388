package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// sourceExtensions lists the code/text files pulled out of zip uploads.
// Anything else inside the archive is ignored.
var sourceExtensions = map[string]bool{
	".c":    true,
	".h":    true,
	".cpp":  true,
	".cc":   true,
	".hpp":  true,
	".py":   true,
	".java": true,
	".go":   true,
	".js":   true,
	".ts":   true,
	".txt":  true,
	".md":   true,
	".sql":  true,
}

// perFileCap bounds how much of any single archive member is included
const perFileCap = 256 * 1024

// extractZIP concatenates readable source files from the archive, each
// under a labeled header, in lexical path order.
func (n *Normalizer) extractZIP(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrArchiveInvalid, err)
	}

	var files []*zip.File
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		name := f.Name
		// Skip archive junk and hidden files
		if strings.Contains(name, "__MACOSX") || strings.HasPrefix(filepath.Base(name), ".") {
			continue
		}
		if !sourceExtensions[strings.ToLower(filepath.Ext(name))] {
			continue
		}
		files = append(files, f)
	}

	if len(files) == 0 {
		return "", fmt.Errorf("%w: no readable source files", ErrArchiveInvalid)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })

	var sb strings.Builder
	total := 0
	for _, f := range files {
		data, err := readZipFile(f)
		if err != nil {
			return "", fmt.Errorf("%w: %s: %v", ErrArchiveInvalid, f.Name, err)
		}
		if len(data) > perFileCap {
			data = data[:perFileCap]
		}

		text := strings.ToValidUTF8(string(data), "�")
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}

		sb.WriteString(fmt.Sprintf("文件: %s\n\n", f.Name))
		sb.WriteString(text)
		sb.WriteString("\n\n---\n\n")

		total += len(text)
		if total > n.maxBytes {
			return "", fmt.Errorf("%w: extracted content exceeds %d bytes", ErrTooLarge, n.maxBytes)
		}
	}

	if sb.Len() == 0 {
		return "", fmt.Errorf("%w: all source files empty", ErrArchiveInvalid)
	}

	return sb.String(), nil
}
