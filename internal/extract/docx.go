package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"io"
	"strings"

	"cvscreen/internal/errors"
)

const docxBody = "word/document.xml"

// extractDOCX returns the raw text of the main document part. Every
// paragraph is followed by a blank line; tabs and breaks are kept.
func extractDOCX(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", errors.NewKindError(errors.KindCorruptDocument, "not a valid docx archive", err)
	}

	var body *zip.File
	for _, f := range zr.File {
		if f.Name == docxBody {
			body = f
			break
		}
	}
	if body == nil {
		return "", errors.NewKindError(errors.KindCorruptDocument, "docx archive has no "+docxBody, nil)
	}

	rc, err := body.Open()
	if err != nil {
		return "", errors.NewKindError(errors.KindCorruptDocument, "cannot open "+docxBody, err)
	}
	defer func() { _ = rc.Close() }()

	text, err := documentText(rc)
	if err != nil {
		return "", errors.NewKindError(errors.KindExtractionFailed, "cannot parse "+docxBody, err)
	}
	return text, nil
}

// documentText walks WordprocessingML and collects the text of w:t runs.
func documentText(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var (
		sb     strings.Builder
		inText bool
		inRun  int
	)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "r":
				inRun++
			case "t":
				inText = true
			case "tab":
				// w:tab also declares tab stops in paragraph properties
				if inRun > 0 {
					sb.WriteByte('\t')
				}
			case "br", "cr":
				if inRun > 0 {
					sb.WriteByte('\n')
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "r":
				inRun--
			case "t":
				inText = false
			case "p":
				sb.WriteString("\n\n")
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}

	return sb.String(), nil
}
