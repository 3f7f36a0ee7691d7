package extract

import (
	"strings"
	"unicode/utf16"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// maxRangeSpan caps the number of codes a single bfrange may define.
const maxRangeSpan = 0xFFFF

// fontCodec turns the character codes carried by a font's strings into text.
type fontCodec struct {
	codeLen   int // bytes per character code
	toUnicode map[uint32]string
}

// decode maps raw string bytes to text. A nil codec or a simple font
// without a ToUnicode map falls back to Latin-1 / UTF-16 reading. Codes
// of a composite font that the map does not cover are dropped.
func (f *fontCodec) decode(raw []byte) string {
	if f == nil || (f.toUnicode == nil && f.codeLen == 1) {
		return decodePDFString(raw)
	}
	if f.toUnicode == nil {
		// glyph ids without a unicode map carry no readable text
		return ""
	}

	var sb strings.Builder
	for i := 0; i+f.codeLen <= len(raw); i += f.codeLen {
		code := codeValue(raw[i : i+f.codeLen])
		if s, ok := f.toUnicode[code]; ok {
			sb.WriteString(s)
			continue
		}
		if f.codeLen == 1 {
			sb.WriteRune(rune(raw[i]))
		}
	}
	return cleanControl(sb.String())
}

// pageFonts builds a codec for every font in a page's resource dictionary.
func pageFonts(xRefTable *model.XRefTable, resources types.Dict) (map[string]*fontCodec, error) {
	if resources == nil {
		return nil, nil
	}
	o, found := resources.Find("Font")
	if !found || o == nil {
		return nil, nil
	}
	fontDict, err := xRefTable.DereferenceDict(o)
	if err != nil || fontDict == nil {
		return nil, err
	}

	fonts := make(map[string]*fontCodec, len(fontDict))
	for name, ref := range fontDict {
		d, err := xRefTable.DereferenceDict(ref)
		if err != nil {
			return nil, err
		}
		if d == nil {
			continue
		}
		fc, err := newFontCodec(xRefTable, d)
		if err != nil {
			return nil, err
		}
		fonts[name] = fc
	}
	return fonts, nil
}

func newFontCodec(xRefTable *model.XRefTable, d types.Dict) (*fontCodec, error) {
	fc := &fontCodec{codeLen: 1}
	if subtype := d.NameEntry("Subtype"); subtype != nil && *subtype == "Type0" {
		fc.codeLen = 2
	}

	o, found := d.Find("ToUnicode")
	if !found || o == nil {
		return fc, nil
	}
	if _, isName := o.(types.Name); isName {
		return fc, nil
	}
	sd, _, err := xRefTable.DereferenceStreamDict(o)
	if err != nil {
		return nil, err
	}
	if sd == nil {
		return fc, nil
	}
	if err := sd.Decode(); err != nil {
		return nil, err
	}

	m, codeLen := parseToUnicode(sd.Content)
	if len(m) > 0 {
		fc.toUnicode = m
	}
	if codeLen > 0 {
		fc.codeLen = codeLen
	}
	return fc, nil
}

// parseToUnicode reads the bfchar and bfrange sections of a ToUnicode CMap.
// The second result is the code width declared by the first codespace
// range, or zero when the CMap declares none.
func parseToUnicode(cmap []byte) (map[uint32]string, int) {
	lx := &lexer{data: cmap}
	var (
		operands []token
		codeLen  int
	)
	m := make(map[uint32]string)

	for {
		tok, ok := lx.next()
		if !ok {
			break
		}
		if tok.kind != tokOperator {
			operands = append(operands, tok)
			continue
		}

		switch tok.text {
		case "endcodespacerange":
			if codeLen == 0 && len(operands) > 0 && operands[0].kind == tokString {
				codeLen = len(operands[0].raw)
			}
		case "endbfchar":
			for i := 0; i+1 < len(operands); i += 2 {
				src, dst := operands[i], operands[i+1]
				if src.kind == tokString && dst.kind == tokString {
					m[codeValue(src.raw)] = utf16String(dst.raw)
				}
			}
		case "endbfrange":
			for i := 0; i+2 < len(operands); i += 3 {
				addRange(m, operands[i], operands[i+1], operands[i+2])
			}
		}
		operands = operands[:0]
	}

	return m, codeLen
}

func addRange(m map[uint32]string, lo, hi, dst token) {
	if lo.kind != tokString || hi.kind != tokString {
		return
	}
	first, last := codeValue(lo.raw), codeValue(hi.raw)
	if last < first || last-first > maxRangeSpan {
		return
	}

	switch dst.kind {
	case tokString:
		base := utf16Units(dst.raw)
		if len(base) == 0 {
			return
		}
		for off := uint32(0); off <= last-first; off++ {
			units := append([]uint16(nil), base...)
			units[len(units)-1] += uint16(off)
			m[first+off] = string(utf16.Decode(units))
		}
	case tokArray:
		for i, item := range dst.items {
			if uint32(i) > last-first {
				break
			}
			if item.kind == tokString {
				m[first+uint32(i)] = utf16String(item.raw)
			}
		}
	}
}

func codeValue(b []byte) uint32 {
	var v uint32
	for _, c := range b {
		v = v<<8 | uint32(c)
	}
	return v
}

func utf16Units(b []byte) []uint16 {
	units := make([]uint16, 0, len(b)/2)
	for i := 0; i+1 < len(b); i += 2 {
		units = append(units, uint16(b[i])<<8|uint16(b[i+1]))
	}
	return units
}

func utf16String(b []byte) string {
	if len(b) == 1 {
		return string(rune(b[0]))
	}
	return string(utf16.Decode(utf16Units(b)))
}
