package render

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"
	"unicode/utf8"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Width is the number of columns between the box borders.
const Width = 70

//go:embed templates/*.tmpl
var templatesFS embed.FS

// Engine renders the embedded box-drawing templates.
type Engine struct {
	templates *template.Template
}

// New parses all embedded templates.
func New() (*Engine, error) {
	t, err := template.New("render").Funcs(Funcs()).ParseFS(templatesFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Engine{templates: t}, nil
}

// Render executes the named template with data.
func (e *Engine) Render(name string, data any) (string, error) {
	if e == nil || e.templates == nil {
		return "", fmt.Errorf("nil engine")
	}

	buf := bytes.NewBuffer(nil)
	if err := e.templates.ExecuteTemplate(buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}

	return buf.String(), nil
}

// Funcs returns the helpers available to templates.
func Funcs() template.FuncMap {
	return template.FuncMap{
		"rule":   Rule,
		"row":    Row,
		"center": Center,
		"metric": Metric,
		"blank":  func() string { return Row("") },
		"count":  Count,
		"money":  Money,
		"upper":  strings.ToUpper,
	}
}

// Rule draws a horizontal border: "top", "mid" or "bottom".
func Rule(kind string) string {
	left, right := "╠", "╣"
	switch kind {
	case "top":
		left, right = "╔", "╗"
	case "bottom":
		left, right = "╚", "╝"
	}
	return left + strings.Repeat("═", Width) + right
}

// Row left-aligns s inside the box with a two column indent.
func Row(s string) string {
	return "║" + pad("  "+s, Width) + "║"
}

// Center centres s inside the box.
func Center(s string) string {
	n := utf8.RuneCountInString(s)
	if n >= Width {
		return "║" + s + "║"
	}
	left := (Width - n) / 2
	return "║" + strings.Repeat(" ", left) + pad(s, Width-left) + "║"
}

// Metric renders label on the left and [value] flush right.
func Metric(label, value string) string {
	right := "[" + value + "] "
	gap := Width - 2 - utf8.RuneCountInString(label) - utf8.RuneCountInString(right)
	if gap < 1 {
		gap = 1
	}
	return "║  " + label + strings.Repeat(" ", gap) + right + "║"
}

// Count formats an integer with thousand separators.
func Count(v any) string {
	return message.NewPrinter(language.English).Sprintf("%d", toInt(v))
}

// Money formats v as dollars with two decimals and thousand separators.
func Money(v float64) string {
	return message.NewPrinter(language.English).Sprintf("$%.2f", v)
}

func toInt(v any) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int64:
		return n
	case int32:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}

func pad(s string, width int) string {
	n := utf8.RuneCountInString(s)
	if n >= width {
		return s
	}
	return s + strings.Repeat(" ", width-n)
}
