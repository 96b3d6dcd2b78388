package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// OOXML documents (docx, pptx) are zip archives of XML parts. Text lives in
// <w:t> runs for Word and <a:t> runs for PowerPoint; no third-party library
// is needed to walk them.

var slideNameRe = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

// extractDOCX reads word/document.xml and joins paragraph text
func (n *Normalizer) extractDOCX(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrParseFailed, err)
	}

	var docXML []byte
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			docXML, err = readZipFile(f)
			if err != nil {
				return "", fmt.Errorf("%w: %v", ErrParseFailed, err)
			}
			break
		}
	}
	if docXML == nil {
		return "", fmt.Errorf("%w: missing word/document.xml", ErrParseFailed)
	}

	text, err := walkRuns(docXML, "t", "p", "drawing")
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrParseFailed, err)
	}
	return text, nil
}

// extractPPTX reads each slide part in order and prefixes it with a
// slide heading so the model can reference positions.
func (n *Normalizer) extractPPTX(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrParseFailed, err)
	}

	type slidePart struct {
		num  int
		file *zip.File
	}
	var slides []slidePart
	for _, f := range zr.File {
		m := slideNameRe.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		num, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		slides = append(slides, slidePart{num: num, file: f})
	}
	if len(slides) == 0 {
		return "", fmt.Errorf("%w: no slides found", ErrParseFailed)
	}

	sort.Slice(slides, func(i, j int) bool { return slides[i].num < slides[j].num })

	var sb strings.Builder
	for _, s := range slides {
		slideXML, err := readZipFile(s.file)
		if err != nil {
			return "", fmt.Errorf("%w: slide %d: %v", ErrParseFailed, s.num, err)
		}

		text, err := walkRuns(slideXML, "t", "br", "pic")
		if err != nil {
			return "", fmt.Errorf("%w: slide %d: %v", ErrParseFailed, s.num, err)
		}

		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(fmt.Sprintf("幻灯片 %d:\n", s.num))
		sb.WriteString(strings.TrimSpace(text))
	}

	return sb.String(), nil
}

// walkRuns streams XML tokens and collects character data inside textTag
// elements. breakTag elements emit a newline; imageTag elements emit an
// image placeholder.
func walkRuns(doc []byte, textTag, breakTag, imageTag string) (string, error) {
	decoder := xml.NewDecoder(bytes.NewReader(doc))

	var sb strings.Builder
	inText := false
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case textTag:
				inText = true
			case imageTag:
				sb.WriteString("\n[图片]\n")
			}
		case xml.EndElement:
			switch t.Name.Local {
			case textTag:
				inText = false
			case breakTag:
				sb.WriteString("\n")
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}

	return sb.String(), nil
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
