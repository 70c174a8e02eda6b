package pdfextract

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"strings"

	"github.com/ledongthuc/pdf"
)

const pdfContentType = "application/pdf"

var (
	ErrEmptyDocument = errors.New("empty file")
	ErrUnreadable    = errors.New("parse error")
)

// Extractor turns an uploaded PDF into plain text. It holds no per-document
// state and is safe for concurrent use.
type Extractor struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{logger: logger.With("component", "text_extractor")}
}

// Extract concatenates the text of every page in page order and trims the
// result. A declared content type other than PDF is logged and ignored.
func (e *Extractor) Extract(data []byte, contentType string) (text string, err error) {
	if len(data) == 0 {
		return "", ErrEmptyDocument
	}
	if contentType != "" {
		if mediaType, _, perr := mime.ParseMediaType(contentType); perr != nil || mediaType != pdfContentType {
			e.logger.Warn("unexpected content type, parsing as pdf anyway", "content_type", contentType)
		}
	}

	// The pdf package reports some structural damage by panicking.
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("%w: %v", ErrUnreadable, r)
		}
	}()

	pdfReader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	if pdfReader.Trailer().Key("Encrypt").Kind() != pdf.Null {
		e.logger.Warn("document is encrypted, extracting readable text")
	}

	plainReader, err := pdfReader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	out, err := io.ReadAll(plainReader)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreadable, err)
	}

	text = strings.TrimSpace(string(out))
	e.logger.Debug("extracted text", "pages", pdfReader.NumPage(), "chars", len(text))
	return text, nil
}
