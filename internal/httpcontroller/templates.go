package httpcontroller

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"net/url"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/tphakala/birdnet-listener/internal/diagnostics"
)

//go:embed views/*.html
var viewsFS embed.FS

// TemplateRenderer is a custom HTML template renderer for Echo framework.
type TemplateRenderer struct {
	templates *template.Template
}

func newTemplateRenderer() *TemplateRenderer {
	tmpl := template.Must(template.New("").Funcs(templateFunctions()).ParseFS(viewsFS, "views/*.html"))
	return &TemplateRenderer{templates: tmpl}
}

// Render executes into a buffer first so a failing template never
// leaves a half written page.
func (t *TemplateRenderer) Render(w io.Writer, name string, data any, _ echo.Context) error {
	var buf bytes.Buffer
	if err := t.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return err
	}
	_, err := buf.WriteTo(w)
	return err
}

func templateFunctions() template.FuncMap {
	return template.FuncMap{
		"title":           cases.Title(language.English).String,
		"confidence":      confidence,
		"confidenceClass": confidenceClass,
		"clock":           clock,
		"hhmm":            hhmm,
		"since":           since,
		"pathEscape":      url.PathEscape,
		"bytes":           diagnostics.FormatBytes,
	}
}

// confidence converts a confidence value (0.0 - 1.0) to a percentage string.
func confidence(c float64) string {
	return fmt.Sprintf("%.0f%%", c*100)
}

func confidenceClass(c float64) string {
	switch {
	case c >= 0.8:
		return "high"
	case c >= 0.4:
		return "medium"
	default:
		return "low"
	}
}

func clock(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return "never"
	}
	return t.In(loc).Format("2006-01-02 15:04:05")
}

func hhmm(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("15:04")
}

// since formats the age of t relative to now in whole units.
func since(t, now time.Time) string {
	if t.IsZero() {
		return "-"
	}
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%d min ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%d h ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%d d ago", int(d.Hours()/24))
	}
}
