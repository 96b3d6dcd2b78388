package extract

import (
	"archive/zip"
	"bytes"
	"errors"
	"strings"
	"testing"
)

// buildZip assembles an in-memory zip archive from name -> content pairs,
// in the order given.
func buildZip(t *testing.T, entries [][2]string) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		w, err := zw.Create(e[0])
		if err != nil {
			t.Fatalf("zip create %s: %v", e[0], err)
		}
		if _, err := w.Write([]byte(e[1])); err != nil {
			t.Fatalf("zip write %s: %v", e[0], err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

func TestIsSupported(t *testing.T) {
	for _, name := range []string{"notes.pdf", "essay.DOCX", "deck.pptx", "a.txt", "hw.zip"} {
		if !IsSupported(name) {
			t.Errorf("%s should be supported", name)
		}
	}
	for _, name := range []string{"photo.jpg", "hw.doc", "deck.ppt", "noext"} {
		if IsSupported(name) {
			t.Errorf("%s should not be supported", name)
		}
	}
}

func TestNormalizeTXT(t *testing.T) {
	n := NewNormalizer()

	text, err := n.Normalize("notes.txt", []byte("第一章 绪论\n\n算法复杂度"))
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if text != "第一章 绪论\n\n算法复杂度" {
		t.Errorf("unexpected text: %q", text)
	}
}

func TestNormalizeTXTStripsBOM(t *testing.T) {
	n := NewNormalizer()

	content := append([]byte{0xEF, 0xBB, 0xBF}, []byte("hello")...)
	text, err := n.Normalize("notes.txt", content)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if text != "hello" {
		t.Errorf("BOM not stripped: %q", text)
	}
}

func TestNormalizeTXTReplacesInvalidUTF8(t *testing.T) {
	n := NewNormalizer()

	text, err := n.Normalize("notes.txt", []byte{'a', 0xFF, 'b'})
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if !strings.Contains(text, "�") {
		t.Errorf("invalid byte should become the replacement character: %q", text)
	}
}

func TestNormalizeUnsupportedType(t *testing.T) {
	n := NewNormalizer()

	_, err := n.Normalize("photo.jpg", []byte("data"))
	if !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("expected ErrUnsupportedType, got %v", err)
	}
}

func TestNormalizeEmptyTXT(t *testing.T) {
	n := NewNormalizer()

	_, err := n.Normalize("empty.txt", []byte("   \n  "))
	if !errors.Is(err, ErrEmptyContent) {
		t.Errorf("expected ErrEmptyContent, got %v", err)
	}
}

func TestNormalizeTooLarge(t *testing.T) {
	n := &Normalizer{maxBytes: 16}

	_, err := n.Normalize("big.txt", bytes.Repeat([]byte("a"), 17))
	if !errors.Is(err, ErrTooLarge) {
		t.Errorf("expected ErrTooLarge, got %v", err)
	}
}

func TestNormalizeZIP(t *testing.T) {
	n := NewNormalizer()

	content := buildZip(t, [][2]string{
		{"src/main.c", "#include <stdio.h>\nint main() { return 0; }"},
		{"README.md", "# homework 3"},
		{"__MACOSX/src/._main.c", "junk"},
		{"src/.hidden.c", "junk"},
		{"report.bin", "binary payload"},
	})

	text, err := n.Normalize("hw.zip", content)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	// Lexical path order: README.md before src/main.c
	readmeIdx := strings.Index(text, "文件: README.md")
	mainIdx := strings.Index(text, "文件: src/main.c")
	if readmeIdx == -1 || mainIdx == -1 {
		t.Fatalf("missing file sections:\n%s", text)
	}
	if readmeIdx > mainIdx {
		t.Error("sections should be in lexical path order")
	}

	if !strings.Contains(text, "#include <stdio.h>") {
		t.Error("source content missing")
	}
	if !strings.Contains(text, "\n\n---\n\n") {
		t.Error("sections should be separated by ---")
	}
	if strings.Contains(text, "junk") || strings.Contains(text, "binary payload") {
		t.Errorf("junk and unreadable entries should be skipped:\n%s", text)
	}
}

func TestNormalizeZIPNoReadableFiles(t *testing.T) {
	n := NewNormalizer()

	content := buildZip(t, [][2]string{
		{"photo.jpg", "jpeg bytes"},
	})

	_, err := n.Normalize("hw.zip", content)
	if !errors.Is(err, ErrArchiveInvalid) {
		t.Errorf("expected ErrArchiveInvalid, got %v", err)
	}
}

func TestNormalizeZIPGarbage(t *testing.T) {
	n := NewNormalizer()

	_, err := n.Normalize("hw.zip", []byte("not a zip archive"))
	if !errors.Is(err, ErrArchiveInvalid) {
		t.Errorf("expected ErrArchiveInvalid, got %v", err)
	}
}

func TestNormalizeDOCX(t *testing.T) {
	n := NewNormalizer()

	docXML := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>第一段内容</w:t></w:r></w:p>
    <w:p><w:r><w:t>第二段内容</w:t></w:r></w:p>
  </w:body>
</w:document>`

	content := buildZip(t, [][2]string{
		{"[Content_Types].xml", "<Types/>"},
		{"word/document.xml", docXML},
	})

	text, err := n.Normalize("essay.docx", content)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if !strings.Contains(text, "第一段内容") || !strings.Contains(text, "第二段内容") {
		t.Errorf("paragraph text missing: %q", text)
	}
}

func TestNormalizeDOCXMissingDocumentPart(t *testing.T) {
	n := NewNormalizer()

	content := buildZip(t, [][2]string{
		{"[Content_Types].xml", "<Types/>"},
	})

	_, err := n.Normalize("essay.docx", content)
	if !errors.Is(err, ErrParseFailed) {
		t.Errorf("expected ErrParseFailed, got %v", err)
	}
}

func TestNormalizePPTX(t *testing.T) {
	n := NewNormalizer()

	slide := func(body string) string {
		return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<p:sld xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main"
       xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main">` + body + `</p:sld>`
	}

	content := buildZip(t, [][2]string{
		// Slide 10 listed before slide 2 in the archive; output must be
		// in numeric order.
		{"ppt/slides/slide10.xml", slide(`<a:t>最后一页</a:t>`)},
		{"ppt/slides/slide1.xml", slide(`<a:t>课程介绍</a:t>`)},
		{"ppt/slides/slide2.xml", slide(`<a:t>目录</a:t><p:pic></p:pic>`)},
	})

	text, err := n.Normalize("deck.pptx", content)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	first := strings.Index(text, "幻灯片 1:")
	second := strings.Index(text, "幻灯片 2:")
	last := strings.Index(text, "幻灯片 10:")
	if first == -1 || second == -1 || last == -1 {
		t.Fatalf("missing slide headings:\n%s", text)
	}
	if !(first < second && second < last) {
		t.Error("slides should be in numeric order")
	}
	if !strings.Contains(text, "[图片]") {
		t.Error("picture elements should become the image placeholder")
	}
}

func TestNormalizePPTXNoSlides(t *testing.T) {
	n := NewNormalizer()

	content := buildZip(t, [][2]string{
		{"ppt/presentation.xml", "<p:presentation/>"},
	})

	_, err := n.Normalize("deck.pptx", content)
	if !errors.Is(err, ErrParseFailed) {
		t.Errorf("expected ErrParseFailed, got %v", err)
	}
}
