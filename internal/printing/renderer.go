// Package printing turns disbursement documents into PDFs.
package printing

import (
	"context"
	"time"
)

// PaperSize names a supported sheet format
type PaperSize string

const (
	PaperA4     PaperSize = "A4"
	PaperLetter PaperSize = "LETTER"
	PaperLegal  PaperSize = "LEGAL"
)

// Dimensions returns width and height in millimetres
func (p PaperSize) Dimensions() (width, height float64) {
	switch p {
	case PaperLetter:
		return 215.9, 279.4
	case PaperLegal:
		return 215.9, 355.6
	default:
		return 210, 297
	}
}

func (p PaperSize) IsValid() bool {
	return p == PaperA4 || p == PaperLetter || p == PaperLegal
}

// Margins in millimetres
type Margins struct {
	Top, Right, Bottom, Left float64
}

// RenderRequest contains the parameters for rendering HTML to PDF
type RenderRequest struct {
	HTML      string
	Title     string
	PaperSize PaperSize
	Landscape bool
	Margins   Margins
	// Timeout overrides the renderer default
	Timeout time.Duration
}

// RenderResult contains the output from PDF rendering
type RenderResult struct {
	PDFData        []byte
	RenderDuration time.Duration
}

// PDFRenderer defines the interface for rendering HTML to PDF
type PDFRenderer interface {
	Render(ctx context.Context, req *RenderRequest) (*RenderResult, error)
	Close() error
}

// RenderError represents an error during PDF rendering
type RenderError struct {
	Code    string
	Message string
	Cause   error
}

func (e *RenderError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *RenderError) Unwrap() error {
	return e.Cause
}

// Error codes for rendering failures
const (
	ErrCodeRenderTimeout    = "RENDER_TIMEOUT"
	ErrCodeRenderFailed     = "RENDER_FAILED"
	ErrCodeInvalidHTML      = "INVALID_HTML"
	ErrCodeInvalidPaperSize = "INVALID_PAPER_SIZE"
	ErrCodeTemplateFailed   = "TEMPLATE_FAILED"
)

func NewRenderError(code, message string, cause error) *RenderError {
	return &RenderError{Code: code, Message: message, Cause: cause}
}

func mmToInches(mm float64) float64 {
	return mm / 25.4
}
