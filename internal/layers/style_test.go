package layers

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xkilldash9x/scrollstate/internal/scrolling"
)

func TestParseInlineStyle(t *testing.T) {
	s := parseInlineStyle(" Position: FIXED ; top:10px;; width : 50% !important; bogus; left: ")

	assert.Equal(t, inlineStyle{"position": "fixed", "top": "10px", "width": "50%"}, s)
	assert.Equal(t, "fixed", s.position())
	assert.Equal(t, "static", inlineStyle{}.position())
}

func TestInlineStyleScrolls(t *testing.T) {
	assert.True(t, parseInlineStyle("overflow: auto").scrolls())
	assert.True(t, parseInlineStyle("overflow: hidden scroll").scrolls())
	assert.True(t, parseInlineStyle("overflow-y: scroll").scrolls())
	assert.False(t, parseInlineStyle("overflow: hidden").scrolls())
	assert.False(t, parseInlineStyle("").scrolls())
}

func TestParseLength(t *testing.T) {
	viewport := scrolling.FloatSize{Width: 1000, Height: 500}

	testCases := []struct {
		value string
		want  float64
		ok    bool
	}{
		{"12px", 12, true},
		{"-4.5px", -4.5, true},
		{"25%", 50, true},
		{"10vw", 100, true},
		{"10vh", 50, true},
		{"0", 0, true},
		{"auto", 0, false},
		{"3em", 0, false},
		{"px", 0, false},
		{"", 0, false},
	}
	for _, tc := range testCases {
		t.Run(tc.value, func(t *testing.T) {
			got, ok := parseLength(tc.value, 200, viewport)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}
