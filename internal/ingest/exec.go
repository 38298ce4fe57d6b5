package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// ExecRecognizer shells out to the tesseract binary. The OCR engine is an
// external collaborator; only the text-out contract lives here.
type ExecRecognizer struct {
	bin string
}

// NewExecRecognizer creates a Recognizer backed by the tesseract binary.
func NewExecRecognizer(bin string) *ExecRecognizer {
	if strings.TrimSpace(bin) == "" {
		bin = "tesseract"
	}
	return &ExecRecognizer{bin: bin}
}

// RecognizeImage runs OCR over the image and returns the recognized text.
func (r *ExecRecognizer) RecognizeImage(ctx context.Context, image io.Reader) (string, error) {
	out, err := runPipe(ctx, image, r.bin, "stdin", "stdout", "-l", "eng")
	if err != nil {
		return "", fmt.Errorf("tesseract: %w", err)
	}
	return string(out), nil
}

// PopplerConverter shells out to poppler's pdftotext and pdftoppm.
type PopplerConverter struct {
	pdfToTextBin string
	pdfToPpmBin  string
}

// NewPopplerConverter creates a PDFConverter backed by poppler binaries.
func NewPopplerConverter(pdfToTextBin, pdfToPpmBin string) *PopplerConverter {
	if strings.TrimSpace(pdfToTextBin) == "" {
		pdfToTextBin = "pdftotext"
	}
	if strings.TrimSpace(pdfToPpmBin) == "" {
		pdfToPpmBin = "pdftoppm"
	}
	return &PopplerConverter{pdfToTextBin: pdfToTextBin, pdfToPpmBin: pdfToPpmBin}
}

// ExtractText pulls the PDF's embedded text layer.
func (c *PopplerConverter) ExtractText(ctx context.Context, pdf io.Reader) (string, error) {
	out, err := runPipe(ctx, pdf, c.pdfToTextBin, "-layout", "-", "-")
	if err != nil {
		return "", fmt.Errorf("pdftotext: %w", err)
	}
	return string(out), nil
}

// RasterizeFirstPage renders page one as a PNG for the OCR fallback.
func (c *PopplerConverter) RasterizeFirstPage(ctx context.Context, pdf io.Reader) (io.Reader, error) {
	out, err := runPipe(ctx, pdf, c.pdfToPpmBin, "-png", "-r", "300", "-f", "1", "-l", "1", "-")
	if err != nil {
		return nil, fmt.Errorf("pdftoppm: %w", err)
	}
	return bytes.NewReader(out), nil
}

func runPipe(ctx context.Context, stdin io.Reader, bin string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stdin = stdin
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail != "" {
			return nil, fmt.Errorf("%w: %s", err, detail)
		}
		return nil, err
	}
	return stdout.Bytes(), nil
}
