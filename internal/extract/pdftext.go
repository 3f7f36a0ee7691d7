package extract

import (
	"strings"
	"unicode/utf16"
)

// pdfcpu hands back decoded page content streams and font dictionaries but
// has no text layer, so the show-text operators are picked out here and
// decoded through the font selected by Tf.

type tokenKind int

const (
	tokNumber tokenKind = iota
	tokString
	tokName
	tokArray
	tokDict
	tokOperator
)

type token struct {
	kind  tokenKind
	text  string
	raw   []byte
	num   float64
	items []token
}

// wordGap is the TJ displacement, in thousandths of an em, beyond which two
// adjacent strings are treated as separate words.
const wordGap = -250

// textRuns returns the strings painted by Tj, TJ, ' and " in stream order.
// Runs that hold only whitespace are dropped. fonts maps resource names to
// their codecs; strings shown in an unknown font are read as Latin-1.
func textRuns(content []byte, fonts map[string]*fontCodec) []string {
	lx := &lexer{data: content}
	var (
		operands []token
		runs     []string
		font     *fontCodec
	)

	add := func(s string) {
		if strings.TrimSpace(s) != "" {
			runs = append(runs, s)
		}
	}

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
		case "Tf":
			if n := len(operands); n >= 2 && operands[n-2].kind == tokName {
				font = fonts[operands[n-2].text]
			}
		case "Tj", "'", "\"":
			if n := len(operands); n > 0 && operands[n-1].kind == tokString {
				add(font.decode(operands[n-1].raw))
			}
		case "TJ":
			if n := len(operands); n > 0 && operands[n-1].kind == tokArray {
				add(joinShowArray(font, operands[n-1].items))
			}
		case "BI":
			lx.skipInlineImage()
		}
		operands = operands[:0]
	}

	return runs
}

func joinShowArray(font *fontCodec, items []token) string {
	var sb strings.Builder
	for _, it := range items {
		switch it.kind {
		case tokString:
			sb.WriteString(font.decode(it.raw))
		case tokNumber:
			if it.num < wordGap && sb.Len() > 0 && !strings.HasSuffix(sb.String(), " ") {
				sb.WriteByte(' ')
			}
		}
	}
	return sb.String()
}

type lexer struct {
	data []byte
	pos  int
}

func isWhite(b byte) bool {
	switch b {
	case 0, '\t', '\n', '\f', '\r', ' ':
		return true
	}
	return false
}

func isDelim(b byte) bool {
	switch b {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func (lx *lexer) skipSpaceAndComments() {
	for lx.pos < len(lx.data) {
		b := lx.data[lx.pos]
		switch {
		case isWhite(b):
			lx.pos++
		case b == '%':
			for lx.pos < len(lx.data) && lx.data[lx.pos] != '\n' && lx.data[lx.pos] != '\r' {
				lx.pos++
			}
		default:
			return
		}
	}
}

// next returns the next complete object or operator.
func (lx *lexer) next() (token, bool) {
	for {
		lx.skipSpaceAndComments()
		if lx.pos >= len(lx.data) {
			return token{}, false
		}

		b := lx.data[lx.pos]
		switch {
		case b == '(':
			lx.pos++
			return token{kind: tokString, raw: lx.readLiteral()}, true
		case b == '<' && lx.peek(1) == '<':
			lx.pos += 2
			return token{kind: tokDict, items: lx.readUntil(">>")}, true
		case b == '<':
			lx.pos++
			return token{kind: tokString, raw: lx.readHex()}, true
		case b == '[':
			lx.pos++
			return token{kind: tokArray, items: lx.readUntil("]")}, true
		case b == '/':
			lx.pos++
			return token{kind: tokName, text: lx.readRegular()}, true
		case b == ')' || b == '>' || b == ']' || b == '{' || b == '}':
			// stray closers and postscript braces carry no text
			lx.pos++
			continue
		case b == '+' || b == '-' || b == '.' || (b >= '0' && b <= '9'):
			word := lx.readRegular()
			if n, ok := parseNumber(word); ok {
				return token{kind: tokNumber, num: n, text: word}, true
			}
			return token{kind: tokOperator, text: word}, true
		default:
			return token{kind: tokOperator, text: lx.readRegular()}, true
		}
	}
}

func (lx *lexer) peek(offset int) byte {
	if lx.pos+offset < len(lx.data) {
		return lx.data[lx.pos+offset]
	}
	return 0
}

// readUntil collects objects up to the closing delimiter of an array or
// dictionary. An unterminated container ends at the end of the stream.
func (lx *lexer) readUntil(closer string) []token {
	var items []token
	for {
		lx.skipSpaceAndComments()
		if lx.pos >= len(lx.data) {
			return items
		}
		if strings.HasPrefix(string(lx.data[lx.pos:min(lx.pos+len(closer), len(lx.data))]), closer) {
			lx.pos += len(closer)
			return items
		}
		tok, ok := lx.next()
		if !ok {
			return items
		}
		items = append(items, tok)
	}
}

func (lx *lexer) readRegular() string {
	start := lx.pos
	for lx.pos < len(lx.data) && !isWhite(lx.data[lx.pos]) && !isDelim(lx.data[lx.pos]) {
		lx.pos++
	}
	if lx.pos == start {
		// a lone delimiter, consume it so scanning always advances
		lx.pos++
	}
	return string(lx.data[start:lx.pos])
}

// readLiteral reads a parenthesised string body; the opening parenthesis has
// already been consumed.
func (lx *lexer) readLiteral() []byte {
	var out []byte
	depth := 1
	for lx.pos < len(lx.data) {
		b := lx.data[lx.pos]
		lx.pos++
		switch b {
		case '(':
			depth++
			out = append(out, b)
		case ')':
			depth--
			if depth == 0 {
				return out
			}
			out = append(out, b)
		case '\\':
			out = lx.readEscape(out)
		default:
			out = append(out, b)
		}
	}
	return out
}

func (lx *lexer) readEscape(out []byte) []byte {
	if lx.pos >= len(lx.data) {
		return out
	}
	b := lx.data[lx.pos]
	lx.pos++
	switch b {
	case 'n':
		return append(out, '\n')
	case 'r':
		return append(out, '\r')
	case 't':
		return append(out, '\t')
	case 'b':
		return append(out, '\b')
	case 'f':
		return append(out, '\f')
	case '\r':
		if lx.pos < len(lx.data) && lx.data[lx.pos] == '\n' {
			lx.pos++
		}
		return out
	case '\n':
		return out
	}

	if b >= '0' && b <= '7' {
		v := int(b - '0')
		for i := 0; i < 2 && lx.pos < len(lx.data); i++ {
			c := lx.data[lx.pos]
			if c < '0' || c > '7' {
				break
			}
			v = v*8 + int(c-'0')
			lx.pos++
		}
		return append(out, byte(v))
	}

	return append(out, b)
}

// readHex reads a hex string body up to '>'. An odd final digit is padded
// with zero.
func (lx *lexer) readHex() []byte {
	var (
		out  []byte
		hi   byte
		half bool
	)
	for lx.pos < len(lx.data) {
		b := lx.data[lx.pos]
		lx.pos++
		if b == '>' {
			break
		}
		v, ok := hexVal(b)
		if !ok {
			continue
		}
		if half {
			out = append(out, hi<<4|v)
			half = false
		} else {
			hi = v
			half = true
		}
	}
	if half {
		out = append(out, hi<<4)
	}
	return out
}

func hexVal(b byte) (byte, bool) {
	switch {
	case b >= '0' && b <= '9':
		return b - '0', true
	case b >= 'a' && b <= 'f':
		return b - 'a' + 10, true
	case b >= 'A' && b <= 'F':
		return b - 'A' + 10, true
	}
	return 0, false
}

// skipInlineImage moves past the binary payload of a BI ... ID ... EI block.
func (lx *lexer) skipInlineImage() {
	for {
		tok, ok := lx.next()
		if !ok {
			return
		}
		if tok.kind == tokOperator && tok.text == "ID" {
			break
		}
	}
	// a single white-space byte separates ID from the data
	lx.pos++
	for lx.pos+1 < len(lx.data) {
		if lx.data[lx.pos] == 'E' && lx.data[lx.pos+1] == 'I' &&
			lx.pos > 0 && isWhite(lx.data[lx.pos-1]) &&
			(lx.pos+2 >= len(lx.data) || isWhite(lx.data[lx.pos+2])) {
			lx.pos += 2
			return
		}
		lx.pos++
	}
	lx.pos = len(lx.data)
}

func parseNumber(s string) (float64, bool) {
	var (
		n        float64
		frac     float64
		seenDot  bool
		seenDig  bool
		negative bool
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case i == 0 && (c == '+' || c == '-'):
			negative = c == '-'
		case c == '.' && !seenDot:
			seenDot = true
			frac = 1
		case c >= '0' && c <= '9':
			seenDig = true
			if seenDot {
				frac /= 10
				n += float64(c-'0') * frac
			} else {
				n = n*10 + float64(c-'0')
			}
		default:
			return 0, false
		}
	}
	if !seenDig {
		return 0, false
	}
	if negative {
		n = -n
	}
	return n, true
}

// decodePDFString turns raw string bytes into text. A UTF-16BE byte order
// mark selects UTF-16; anything else is read as Latin-1. Control characters
// become spaces or are dropped.
func decodePDFString(raw []byte) string {
	if len(raw) >= 2 && raw[0] == 0xFE && raw[1] == 0xFF {
		units := make([]uint16, 0, (len(raw)-2)/2)
		for i := 2; i+1 < len(raw); i += 2 {
			units = append(units, uint16(raw[i])<<8|uint16(raw[i+1]))
		}
		return cleanControl(string(utf16.Decode(units)))
	}

	var sb strings.Builder
	for _, b := range raw {
		sb.WriteRune(rune(b))
	}
	return cleanControl(sb.String())
}

func cleanControl(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\t' || r == '\n' || r == '\r':
			return ' '
		case r < 0x20 || r == 0x7f:
			return -1
		}
		return r
	}, s)
}
