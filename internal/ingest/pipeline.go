// Package ingest extracts structured biomarker values from uploaded lab
// documents: text extraction (PDF text layer or OCR), whitespace
// normalization, line-oriented marker scanning, and append-only persistence.
package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// minTextDensity is the alphanumeric-density threshold below which a PDF
// text layer is considered uninformative (a scanned document) and the
// pipeline falls back to OCR on a rasterized page.
const minTextDensity = 0.35

// minTextLength guards against trivially short extractions passing the
// density check.
const minTextLength = 24

// Pipeline runs attachment ingestion end to end.
type Pipeline struct {
	fetcher    MediaFetcher
	recognizer Recognizer
	pdf        PDFConverter
	extractor  MarkerExtractor
	sink       ReadingSink
	logger     *slog.Logger
}

// NewPipeline creates an ingestion pipeline.
func NewPipeline(log *slog.Logger, fetcher MediaFetcher, recognizer Recognizer, pdf PDFConverter, extractor MarkerExtractor, sink ReadingSink) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	if extractor == nil {
		extractor = NewLineExtractor()
	}
	return &Pipeline{
		fetcher:    fetcher,
		recognizer: recognizer,
		pdf:        pdf,
		extractor:  extractor,
		sink:       sink,
		logger:     log.With(slog.String("service", "ingest")),
	}
}

// IngestAttachment fetches, extracts, and persists one attachment for the
// identity. It never returns an error for per-document failures: those
// come back as a Result carrying only a note, so one bad attachment cannot
// abort the message turn.
func (p *Pipeline) IngestAttachment(ctx context.Context, id, mediaURL, contentType string) Result {
	raw, err := p.extractText(ctx, mediaURL, contentType)
	if err != nil {
		p.logger.Warn("attachment extraction failed",
			slog.String("identity", id),
			slog.String("content_type", contentType),
			slog.Any("error", err),
		)
		return Result{Note: extractionNote(contentType, err)}
	}

	cleaned := NormalizeText(raw)
	markers := p.extractor.ExtractMarkers(cleaned)

	result := Result{
		Markers:     markers,
		RawText:     raw,
		CleanedText: cleaned,
	}
	if len(markers) == 0 {
		result.Note = "Document processed but no recognizable biomarker values were found."
		return result
	}

	if err := p.sink.Append(ctx, id, markers, raw, cleaned); err != nil {
		p.logger.Error("persist reading failed", slog.String("identity", id), slog.Any("error", err))
		result.Note = fmt.Sprintf("Extracted %d biomarker value(s) but could not store them.", len(markers))
		return result
	}
	result.Persisted = true
	result.Note = fmt.Sprintf("Stored %d biomarker value(s) from the uploaded document.", len(markers))
	p.logger.Info("attachment ingested",
		slog.String("identity", id),
		slog.Int("markers", len(markers)),
	)
	return result
}

// IngestDocument runs extraction and persistence over already-fetched
// bytes. The direct upload endpoint uses it.
func (p *Pipeline) IngestDocument(ctx context.Context, id string, content io.Reader, contentType string) Result {
	data, err := io.ReadAll(content)
	if err != nil {
		return Result{Note: extractionNote(contentType, err)}
	}
	raw, err := p.extractFromBytes(ctx, data, contentType)
	if err != nil {
		return Result{Note: extractionNote(contentType, err)}
	}

	cleaned := NormalizeText(raw)
	markers := p.extractor.ExtractMarkers(cleaned)
	result := Result{Markers: markers, RawText: raw, CleanedText: cleaned}
	if len(markers) == 0 {
		result.Note = "Document processed but no recognizable biomarker values were found."
		return result
	}
	if err := p.sink.Append(ctx, id, markers, raw, cleaned); err != nil {
		result.Note = fmt.Sprintf("Extracted %d biomarker value(s) but could not store them.", len(markers))
		return result
	}
	result.Persisted = true
	result.Note = fmt.Sprintf("Stored %d biomarker value(s) from the uploaded document.", len(markers))
	return result
}

func (p *Pipeline) extractText(ctx context.Context, mediaURL, contentType string) (string, error) {
	body, fetchedType, err := p.fetcher.FetchMedia(ctx, mediaURL)
	if err != nil {
		return "", fmt.Errorf("fetch media: %w", err)
	}
	defer body.Close()

	if strings.TrimSpace(contentType) == "" {
		contentType = fetchedType
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("read media: %w", err)
	}
	return p.extractFromBytes(ctx, data, contentType)
}

func (p *Pipeline) extractFromBytes(ctx context.Context, data []byte, contentType string) (string, error) {
	switch {
	case isPDF(contentType):
		return p.extractPDF(ctx, data)
	case isImage(contentType):
		text, err := p.recognizer.RecognizeImage(ctx, bytes.NewReader(data))
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(text) == "" {
			return "", ErrNoText
		}
		return text, nil
	default:
		return "", ErrUnsupportedType
	}
}

// extractPDF tries the embedded text layer first. Scanned PDFs have a
// missing or garbage text layer; when the extracted text is too sparse,
// rasterize page one and OCR it instead.
func (p *Pipeline) extractPDF(ctx context.Context, data []byte) (string, error) {
	text, err := p.pdf.ExtractText(ctx, bytes.NewReader(data))
	if err == nil {
		trimmed := strings.TrimSpace(text)
		if len(trimmed) >= minTextLength && alphanumericDensity(trimmed) >= minTextDensity {
			return text, nil
		}
	}

	page, rasterErr := p.pdf.RasterizeFirstPage(ctx, bytes.NewReader(data))
	if rasterErr != nil {
		if err != nil {
			return "", fmt.Errorf("text layer: %w; rasterize: %w", err, rasterErr)
		}
		return "", rasterErr
	}
	ocrText, ocrErr := p.recognizer.RecognizeImage(ctx, page)
	if ocrErr != nil {
		return "", ocrErr
	}
	if strings.TrimSpace(ocrText) == "" {
		return "", ErrNoText
	}
	return ocrText, nil
}

func extractionNote(contentType string, err error) string {
	if errors.Is(err, ErrUnsupportedType) {
		return fmt.Sprintf("Attachment of type %q could not be read (unsupported format).", contentType)
	}
	return "An attachment could not be processed; its contents were skipped."
}

func isPDF(contentType string) bool {
	return strings.Contains(strings.ToLower(contentType), "pdf")
}

func isImage(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "image/")
}
