// Package extract turns submitted résumé documents into plain text.
package extract

import (
	"context"
	"fmt"
	"strings"

	"cvscreen/internal/errors"
	"cvscreen/internal/types"
	"cvscreen/internal/utils"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Extractor dispatches documents to the reader for their format.
// It never touches the network.
type Extractor struct {
	logger  *errors.Logger
	pdfConf *model.Configuration
}

// New creates an extractor. pdfcpu's on-disk configuration directory is
// disabled so extraction leaves no files behind.
func New(logger *errors.Logger) *Extractor {
	if logger == nil {
		logger = errors.NewNopLogger()
	}
	api.DisableConfigDir()
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &Extractor{logger: logger, pdfConf: conf}
}

// DetectFormat derives the document format from a file name, ignoring case.
func DetectFormat(name string) (types.Format, bool) {
	switch utils.GetFileExtension(name) {
	case ".pdf":
		return types.FormatPDF, true
	case ".docx":
		return types.FormatDOCX, true
	}
	return "", false
}

// Extract returns the plain text of doc. Formats other than pdf and docx are
// rejected before any parsing. Failures carry one of the kinds
// UnsupportedFormat, CorruptDocument or ExtractionFailed.
func (e *Extractor) Extract(ctx context.Context, doc types.Document) (text string, err error) {
	switch doc.Format {
	case types.FormatPDF, types.FormatDOCX:
	default:
		return "", errors.NewKindError(errors.KindUnsupportedFormat,
			fmt.Sprintf("unsupported format %q", doc.Format), nil).
			WithContext("document", doc.Name)
	}

	if err := ctx.Err(); err != nil {
		return "", errors.NewKindError(errors.KindExtractionFailed, "extraction canceled", err)
	}

	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = errors.NewKindError(errors.KindExtractionFailed,
				fmt.Sprintf("parser panic: %v", r), nil).
				WithContext("document", doc.Name)
		}
	}()

	if doc.Format == types.FormatPDF {
		text, err = e.extractPDF(ctx, doc.Content)
	} else {
		text, err = extractDOCX(doc.Content)
	}
	if err != nil {
		e.logger.Debug("Extraction failed",
			"document", doc.Name,
			"format", doc.Format,
			"kind", errors.KindOf(err),
			"error", err.Error())
		return "", err
	}

	e.logger.Debug("Extracted document text",
		"document", doc.Name,
		"format", doc.Format,
		"chars", len([]rune(text)),
		"trimmed_empty", strings.TrimSpace(text) == "")
	return text, nil
}
