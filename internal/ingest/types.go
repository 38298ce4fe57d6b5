package ingest

import (
	"context"
	"errors"
	"io"
)

var (
	// ErrUnsupportedType indicates the attachment content type cannot be
	// extracted. Callers downgrade it to a note; it never aborts a turn.
	ErrUnsupportedType = errors.New("unsupported attachment type")
	// ErrNoText indicates extraction produced no usable text.
	ErrNoText = errors.New("no extractable text")
)

// Recognizer turns image bytes into text. Implementations wrap an external
// OCR engine; its internals are out of scope here.
type Recognizer interface {
	RecognizeImage(ctx context.Context, image io.Reader) (string, error)
}

// PDFConverter extracts a PDF's embedded text layer and rasterizes pages
// for OCR fallback.
type PDFConverter interface {
	ExtractText(ctx context.Context, pdf io.Reader) (string, error)
	RasterizeFirstPage(ctx context.Context, pdf io.Reader) (io.Reader, error)
}

// MediaFetcher resolves an attachment reference into bytes. The transport
// layer implements it because media URLs carry transport auth.
type MediaFetcher interface {
	FetchMedia(ctx context.Context, mediaURL string) (io.ReadCloser, string, error)
}

// MarkerExtractor turns normalized document text into named numeric values.
// It is a strategy interface so stricter per-document-type parsers can
// replace the default line scanner.
type MarkerExtractor interface {
	ExtractMarkers(normalizedText string) map[string]float64
}

// ReadingSink receives the extraction output for durable append.
type ReadingSink interface {
	Append(ctx context.Context, id string, markers map[string]float64, rawText, cleanedText string) error
}

// Result is the outcome of ingesting one attachment. A failed attachment
// yields Note set and Persisted false; the message turn continues.
type Result struct {
	Markers     map[string]float64
	RawText     string
	CleanedText string
	Persisted   bool
	// Note is a human-readable context note describing what happened,
	// suitable for inclusion in the composed reply context.
	Note string
}
