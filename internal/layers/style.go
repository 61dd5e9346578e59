// internal/layers/style.go
package layers

import (
	"strconv"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/scrollstate/internal/scrolling"
)

// inlineStyle holds the declarations of a style attribute, keyed by lower case
// property name. Later declarations win.
type inlineStyle map[string]string

func parseInlineStyle(s string) inlineStyle {
	style := make(inlineStyle)
	for decl := range strings.SplitSeq(s, ";") {
		prop, value, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		prop = strings.ToLower(strings.TrimSpace(prop))
		value = strings.TrimSpace(value)
		value = strings.TrimSpace(strings.TrimSuffix(value, "!important"))
		if prop == "" || value == "" {
			continue
		}
		style[prop] = strings.ToLower(value)
	}
	return style
}

func styleOf(n *html.Node) inlineStyle {
	return parseInlineStyle(htmlquery.SelectAttr(n, "style"))
}

// position returns the computed position keyword, "static" when unset.
func (s inlineStyle) position() string {
	if p, ok := s["position"]; ok {
		return p
	}
	return "static"
}

// scrolls reports whether either axis is a scroll container.
func (s inlineStyle) scrolls() bool {
	for _, prop := range []string{"overflow", "overflow-x", "overflow-y"} {
		for v := range strings.FieldsSeq(s[prop]) {
			if v == "scroll" || v == "auto" {
				return true
			}
		}
	}
	return false
}

// length resolves prop against reference (for percentages) and the viewport.
func (s inlineStyle) length(prop string, reference float64, viewport scrolling.FloatSize) (float64, bool) {
	v, ok := s[prop]
	if !ok {
		return 0, false
	}
	return parseLength(v, reference, viewport)
}

// lengthOr is length with a fallback for unset or unparsable values.
func (s inlineStyle) lengthOr(prop string, reference float64, viewport scrolling.FloatSize, fallback float64) float64 {
	if v, ok := s.length(prop, reference, viewport); ok {
		return v
	}
	return fallback
}

// parseLength understands px, %, vw, vh and unitless zero. "auto" and anything
// else is reported as unset.
func parseLength(value string, reference float64, viewport scrolling.FloatSize) (float64, bool) {
	value = strings.TrimSpace(value)
	if value == "" || value == "auto" {
		return 0, false
	}

	parseNumeric := func(suffix string) (float64, bool) {
		f, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(value, suffix)), 64)
		return f, err == nil
	}

	switch {
	case strings.HasSuffix(value, "px"):
		return parseNumeric("px")
	case strings.HasSuffix(value, "%"):
		if pct, ok := parseNumeric("%"); ok {
			return reference * pct / 100, true
		}
	case strings.HasSuffix(value, "vw"):
		if v, ok := parseNumeric("vw"); ok {
			return viewport.Width * v / 100, true
		}
	case strings.HasSuffix(value, "vh"):
		if v, ok := parseNumeric("vh"); ok {
			return viewport.Height * v / 100, true
		}
	case value == "0":
		return 0, true
	}
	return 0, false
}

// floatAttr reads a numeric data attribute.
func floatAttr(n *html.Node, name string) (float64, bool) {
	v := htmlquery.SelectAttr(n, name)
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	return f, err == nil
}
