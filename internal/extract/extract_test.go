package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"testing"

	"cvscreen/internal/errors"
	"cvscreen/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildPDF assembles an uncompressed PDF with one page per content stream.
func buildPDF(t *testing.T, pages ...string) []byte {
	t.Helper()

	n := len(pages)
	fontObj := 3 + 2*n
	var objects []string
	objects = append(objects, "<< /Type /Catalog /Pages 2 0 R >>")

	kids := ""
	for i := range pages {
		kids += fmt.Sprintf("%d 0 R ", 3+2*i)
	}
	objects = append(objects, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", kids, n))

	for i, content := range pages {
		objects = append(objects,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] "+
				"/Resources << /Font << /F1 %d 0 R >> >> /Contents %d 0 R >>", fontObj, 4+2*i),
			streamObject(content))
	}
	objects = append(objects, "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>")
	return assemblePDF(objects)
}

// assemblePDF numbers objects from 1 and writes them with a matching xref
// table. The first object must be the catalog.
func assemblePDF(objects []string) []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f\r\n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n\r\n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func streamObject(content string) string {
	return fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content)
}

const identityCMap = `/CIDInit /ProcSet findresource begin
12 dict begin
begincmap
/CIDSystemInfo << /Registry (Adobe) /Ordering (UCS) /Supplement 0 >> def
/CMapName /Adobe-Identity-UCS def
/CMapType 2 def
1 begincodespacerange
<0000> <FFFF>
endcodespacerange
2 beginbfchar
<0024> <004A>
<0045> <0061>
endbfchar
1 beginbfrange
<0046> <0047> [<006E> <0065>]
endbfrange
endcmap
CMapName currentdict /CMap defineresource pop
end
end`

// buildType0PDF renders one page with an Identity-H composite font, the way
// most office suites and browsers export text. toUnicode may be empty.
func buildType0PDF(t *testing.T, content, toUnicode string) []byte {
	t.Helper()

	font := "<< /Type /Font /Subtype /Type0 /BaseFont /Roboto /Encoding /Identity-H /DescendantFonts [6 0 R]"
	if toUnicode != "" {
		font += " /ToUnicode 7 0 R"
	}
	font += " >>"

	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] " +
			"/Resources << /Font << /F1 5 0 R >> >> /Contents 4 0 R >>",
		streamObject(content),
		font,
		"<< /Type /Font /Subtype /CIDFontType2 /BaseFont /Roboto " +
			"/CIDSystemInfo << /Registry (Adobe) /Ordering (Identity) /Supplement 0 >> " +
			"/FontDescriptor 8 0 R /CIDToGIDMap /Identity >>",
		streamObject(toUnicode),
		"<< /Type /FontDescriptor /FontName /Roboto /Flags 4 /FontBBox [0 -200 1000 900] " +
			"/ItalicAngle 0 /Ascent 900 /Descent -200 /CapHeight 700 /StemV 80 >>",
	}
	return assemblePDF(objects)
}

func buildDOCX(t *testing.T, files map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

const documentXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p>
      <w:pPr><w:tabs><w:tab w:val="left" w:pos="720"/></w:tabs></w:pPr>
      <w:r><w:t>Jane</w:t></w:r><w:r><w:t xml:space="preserve"> Doe</w:t></w:r>
    </w:p>
    <w:p>
      <w:r><w:t>Skills:</w:t><w:tab/><w:t>Go</w:t><w:br/><w:t>Kubernetes</w:t></w:r>
    </w:p>
  </w:body>
</w:document>`

func TestExtractDOCX(t *testing.T) {
	ex := New(nil)
	doc := types.Document{
		Name:    "jane.docx",
		Format:  types.FormatDOCX,
		Content: buildDOCX(t, map[string]string{"word/document.xml": documentXML}),
	}

	text, err := ex.Extract(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe\n\nSkills:\tGo\nKubernetes\n\n", text)
}

func TestExtractPDF(t *testing.T) {
	ex := New(nil)
	content := buildPDF(t,
		"BT /F1 12 Tf 72 720 Td (Jane Doe) Tj 0 -14 Td [(Senior) -300 (Engineer)] TJ ET",
		"BT /F1 12 Tf 72 720 Td (Go, Kubernetes) Tj ET",
	)
	doc := types.Document{Name: "jane.pdf", Format: types.FormatPDF, Content: content}

	text, err := ex.Extract(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe Senior Engineer\nGo, Kubernetes", text)
}

func TestExtractPDFCompositeFont(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		toUnicode string
		want      string
	}{
		{
			name:      "glyph codes mapped through ToUnicode",
			content:   "BT /F1 12 Tf 72 720 Td <0024004500460047> Tj ET",
			toUnicode: identityCMap,
			want:      "Jane",
		},
		{
			name:      "kerned array in composite font",
			content:   "BT /F1 12 Tf 72 720 Td [<00240045> 15 <00460047>] TJ ET",
			toUnicode: identityCMap,
			want:      "Jane",
		},
		{
			name:    "composite font without unicode map yields no text",
			content: "BT /F1 12 Tf 72 720 Td <0024004500460047> Tj ET",
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := types.Document{
				Name:    "jane.pdf",
				Format:  types.FormatPDF,
				Content: buildType0PDF(t, tt.content, tt.toUnicode),
			}

			text, err := New(nil).Extract(context.Background(), doc)
			require.NoError(t, err)
			assert.Equal(t, tt.want, text)
		})
	}
}

func TestExtractErrors(t *testing.T) {
	ex := New(nil)
	noBody := buildDOCX(t, map[string]string{"word/styles.xml": "<w:styles/>"})
	badXML := buildDOCX(t, map[string]string{"word/document.xml": "<w:document><w:body>"})

	tests := []struct {
		name string
		doc  types.Document
		want errors.Kind
	}{
		{
			name: "unsupported format is rejected before parsing",
			doc:  types.Document{Name: "notes.txt", Format: "txt", Content: []byte("%PDF-garbage")},
			want: errors.KindUnsupportedFormat,
		},
		{
			name: "pdf that is not a pdf",
			doc:  types.Document{Name: "cv.pdf", Format: types.FormatPDF, Content: []byte("definitely not a pdf")},
			want: errors.KindCorruptDocument,
		},
		{
			name: "docx that is not a zip",
			doc:  types.Document{Name: "cv.docx", Format: types.FormatDOCX, Content: []byte("PK?? nope")},
			want: errors.KindCorruptDocument,
		},
		{
			name: "docx without document part",
			doc:  types.Document{Name: "cv.docx", Format: types.FormatDOCX, Content: noBody},
			want: errors.KindCorruptDocument,
		},
		{
			name: "docx with malformed xml",
			doc:  types.Document{Name: "cv.docx", Format: types.FormatDOCX, Content: badXML},
			want: errors.KindExtractionFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, err := ex.Extract(context.Background(), tt.doc)
			require.Error(t, err)
			assert.Empty(t, text)
			assert.Equal(t, tt.want, errors.KindOf(err))
		})
	}
}

func TestExtractCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(nil).Extract(ctx, types.Document{Name: "cv.docx", Format: types.FormatDOCX})
	require.Error(t, err)
	assert.Equal(t, errors.KindExtractionFailed, errors.KindOf(err))
}

func TestDetectFormat(t *testing.T) {
	f, ok := DetectFormat("Resume.PDF")
	assert.True(t, ok)
	assert.Equal(t, types.FormatPDF, f)

	f, ok = DetectFormat("resume.docx")
	assert.True(t, ok)
	assert.Equal(t, types.FormatDOCX, f)

	_, ok = DetectFormat("resume.txt")
	assert.False(t, ok)
}
