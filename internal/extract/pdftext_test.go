package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTextRuns(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []string
	}{
		{
			name:    "simple show",
			content: "BT /F1 12 Tf (Hello) Tj ET",
			want:    []string{"Hello"},
		},
		{
			name:    "kerned array joins fragments",
			content: "BT [(Wo) 20 (rld)] TJ ET",
			want:    []string{"World"},
		},
		{
			name:    "large gap inside array becomes a space",
			content: "BT [(Senior) -400 (Engineer)] TJ ET",
			want:    []string{"Senior Engineer"},
		},
		{
			name:    "quote operators",
			content: "BT (line one) ' 1 2 (line two) \" ET",
			want:    []string{"line one", "line two"},
		},
		{
			name:    "escapes and octal",
			content: `BT (a\(b\) c\\d \101\102) Tj ET`,
			want:    []string{`a(b) c\d AB`},
		},
		{
			name:    "hex string with odd length",
			content: "BT <48656C6C6F2> Tj ET",
			want:    []string{"Hello "},
		},
		{
			name:    "utf16 hex string",
			content: "BT <FEFF004A00FC007200670065006E> Tj ET",
			want:    []string{"Jürgen"},
		},
		{
			name:    "whitespace-only runs dropped",
			content: "BT ( ) Tj (x) Tj () Tj ET",
			want:    []string{"x"},
		},
		{
			name:    "marked content dictionary and comments",
			content: "/Span << /ActualText (ignored) >> BDC % a comment (not text) Tj\nBT (kept) Tj ET EMC",
			want:    []string{"kept"},
		},
		{
			name:    "inline image payload skipped",
			content: "BI /W 1 /H 1 /BPC 8 /CS /G ID \x00(Tj)\xff EI BT (after) Tj ET",
			want:    []string{"after"},
		},
		{
			name:    "nested parentheses",
			content: "BT (f(x) = (y)) Tj ET",
			want:    []string{"f(x) = (y)"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, textRuns([]byte(tt.content), nil))
		})
	}
}

func TestTextRunsEmptyStream(t *testing.T) {
	assert.Empty(t, textRuns(nil, nil))
	assert.Empty(t, textRuns([]byte("q 1 0 0 1 0 0 cm Q"), nil))
}

func TestParseNumber(t *testing.T) {
	n, ok := parseNumber("-12.5")
	assert.True(t, ok)
	assert.Equal(t, -12.5, n)

	n, ok = parseNumber(".5")
	assert.True(t, ok)
	assert.Equal(t, 0.5, n)

	_, ok = parseNumber("-")
	assert.False(t, ok)
	_, ok = parseNumber("1.2.3")
	assert.False(t, ok)
}
