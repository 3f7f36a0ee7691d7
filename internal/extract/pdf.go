package extract

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"cvscreen/internal/errors"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// extractPDF reads pages 1..N in order. The text runs of a page are joined
// with single spaces and pages are joined with newlines.
func (e *Extractor) extractPDF(ctx context.Context, content []byte) (string, error) {
	pdfCtx, err := api.ReadContext(bytes.NewReader(content), e.pdfConf)
	if err != nil {
		return "", errors.NewKindError(errors.KindCorruptDocument, "cannot read pdf", err)
	}
	if err := api.ValidateContext(pdfCtx); err != nil {
		return "", errors.NewKindError(errors.KindCorruptDocument, "invalid pdf structure", err)
	}
	if err := pdfCtx.EnsurePageCount(); err != nil {
		return "", errors.NewKindError(errors.KindCorruptDocument, "cannot determine page count", err)
	}

	pages := make([]string, 0, pdfCtx.PageCount)
	for pageNr := 1; pageNr <= pdfCtx.PageCount; pageNr++ {
		if err := ctx.Err(); err != nil {
			return "", errors.NewKindError(errors.KindExtractionFailed, "extraction canceled", err)
		}

		pageDict, _, attrs, err := pdfCtx.PageDict(pageNr, false)
		if err != nil {
			return "", pageError(pageNr, err)
		}
		stream, err := pdfCtx.PageContent(pageDict, pageNr)
		if err != nil && err != model.ErrNoContent {
			return "", pageError(pageNr, err)
		}

		var resources types.Dict
		if attrs != nil {
			resources = attrs.Resources
		}
		fonts, err := pageFonts(pdfCtx.XRefTable, resources)
		if err != nil {
			return "", errors.NewKindError(errors.KindExtractionFailed,
				fmt.Sprintf("cannot read fonts of page %d", pageNr), err).
				WithContext("page", pageNr)
		}

		pages = append(pages, strings.Join(textRuns(stream, fonts), " "))
	}

	return strings.Join(pages, "\n"), nil
}

func pageError(pageNr int, err error) error {
	return errors.NewKindError(errors.KindExtractionFailed,
		fmt.Sprintf("cannot read content of page %d", pageNr), err).
		WithContext("page", pageNr)
}
