package extract

import "errors"

var (
	// ErrUnsupportedType is returned for file extensions outside the
	// accepted set (pdf, docx, pptx, txt, zip).
	ErrUnsupportedType = errors.New("unsupported file type")

	// ErrParseFailed is returned when a document of a supported type
	// cannot be parsed.
	ErrParseFailed = errors.New("failed to parse document")

	// ErrArchiveInvalid is returned when a zip upload cannot be opened
	// or contains no readable source files.
	ErrArchiveInvalid = errors.New("invalid or empty archive")

	// ErrTooLarge is returned when an upload exceeds the size cap.
	ErrTooLarge = errors.New("file too large")

	// ErrEmptyContent is returned when extraction yields no usable text.
	ErrEmptyContent = errors.New("no text content extracted")
)
